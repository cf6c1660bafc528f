package runcount

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	dbFile        = "linkd.run-count"
	bucketName    = "run_count"
	dbPermissions = 0600
)

// RunCount persists how often each link has been launched, keyed by the
// link's source file. The link index itself is never persisted; only
// this usage data survives restarts.
type RunCount struct {
	db *bbolt.DB
}

// NewRunCount creates or opens the database under the user cache dir.
func NewRunCount() (*RunCount, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user cache directory: %w", err)
	}
	return NewRunCountWithCacheDir(cacheDir)
}

// NewRunCountWithCacheDir creates or opens the database under the given
// cache directory.
func NewRunCountWithCacheDir(cacheDir string) (*RunCount, error) {
	// Create ade directory in cache if it doesn't exist
	adeCacheDir := filepath.Join(cacheDir, "ade")
	if err := os.MkdirAll(adeCacheDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dbPath := filepath.Join(adeCacheDir, dbFile)

	db, err := bbolt.Open(dbPath, dbPermissions, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create the bucket if it doesn't exist
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &RunCount{db: db}, nil
}

// Increment increases the launch count for a link's source file.
func (rc *RunCount) Increment(sourceFile string) error {
	return rc.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}

		var count uint64
		if val := b.Get([]byte(sourceFile)); val != nil {
			count = binary.BigEndian.Uint64(val)
		}
		count++

		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, count)
		return b.Put([]byte(sourceFile), buf)
	})
}

// Counts retrieves the launch counts for a list of source files.
func (rc *RunCount) Counts(sourceFiles []string) map[string]uint64 {
	counts := make(map[string]uint64)
	rc.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil // Bucket doesn't exist, no counts
		}

		for _, f := range sourceFiles {
			if val := b.Get([]byte(f)); val != nil {
				counts[f] = binary.BigEndian.Uint64(val)
			} else {
				counts[f] = 0
			}
		}
		return nil
	})
	return counts
}

// Close closes the database connection.
func (rc *RunCount) Close() error {
	if rc.db != nil {
		return rc.db.Close()
	}
	return nil
}
