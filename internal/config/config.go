package config

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/kelseyhightower/envconfig"

	"github.com/0xADE/ade-linkd/internal/link"
)

const linkdrc = "~/.config/ade/linkd.rc"

var (
	globalConfig *config
	once         sync.Once
)

type config struct {
	static  env
	dynamic rc
	watcher *fsnotify.Watcher
}

type (
	env struct {
		DataHome     string `envconfig:"XDG_DATA_HOME"`
		DataDirs     string `envconfig:"XDG_DATA_DIRS" default:"/usr/local/share:/usr/share"`
		UnixSocket   string `envconfig:"ADE_LINKD_SOCK"`
		Terminal     string `envconfig:"ADE_DEFAULT_TERM"`
		Environments string `envconfig:"ADE_LINKD_ENV" default:"Openbox"`
		LCMessages   string `envconfig:"LC_MESSAGES"`
		Lang         string `envconfig:"LANG"`
	}
	rc struct {
		sync.RWMutex
		additionalDirs []string
	}
)

// Init initializes and loads configuration
func Init() error {
	var err error
	once.Do(func() {
		globalConfig = &config{}

		// Load environment variables
		if err = envconfig.Process("", &globalConfig.static); err != nil {
			return
		}

		// Default data home per the XDG base directory spec
		if globalConfig.static.DataHome == "" {
			home, homeErr := os.UserHomeDir()
			if homeErr != nil {
				err = homeErr
				return
			}
			globalConfig.static.DataHome = filepath.Join(home, ".local", "share")
		}

		// Set default socket path if not provided
		if globalConfig.static.UnixSocket == "" {
			currentUser, userErr := user.Current()
			if userErr != nil {
				err = userErr
				return
			}
			globalConfig.static.UnixSocket = fmt.Sprintf("/tmp/ade-%s/linkd", currentUser.Uid)
		}

		// Expand tilde in socket path
		globalConfig.static.UnixSocket = expandPath(globalConfig.static.UnixSocket)

		// Load rc file
		if err = globalConfig.loadRC(); err != nil {
			return
		}

		// Setup file watcher
		if err = globalConfig.setupWatcher(); err != nil {
			return
		}
	})
	return err
}

// Run starts the configuration watcher loop
func Run() error {
	if globalConfig == nil {
		if err := Init(); err != nil {
			return err
		}
	}

	go globalConfig.watchLoop()
	return nil
}

// Get returns the global config instance
func Get() *config {
	if globalConfig == nil {
		Init()
	}
	return globalConfig
}

func (c *config) loadRC() error {
	rcPath := expandPath(linkdrc)

	// Create directory if it doesn't exist
	rcDir := filepath.Dir(rcPath)
	if err := os.MkdirAll(rcDir, 0750); err != nil {
		return err
	}

	// Try to read rc file
	file, err := os.Open(rcPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Create empty file
			file, err = os.Create(rcPath)
			if err != nil {
				return err
			}
			file.Close()
			return nil
		}
		return err
	}
	defer file.Close()

	c.dynamic.Lock()
	defer c.dynamic.Unlock()

	c.dynamic.additionalDirs = []string{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		expanded := expandPath(line)
		c.dynamic.additionalDirs = append(c.dynamic.additionalDirs, expanded)
	}

	return scanner.Err()
}

func (c *config) setupWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	c.watcher = watcher
	rcPath := expandPath(linkdrc)
	rcDir := filepath.Dir(rcPath)

	// Watch the directory
	if err := watcher.Add(rcDir); err != nil {
		return err
	}

	return nil
}

func (c *config) watchLoop() {
	for {
		select {
		case event, ok := <-c.watcher.Events:
			if !ok {
				return
			}
			rcPath := expandPath(linkdrc)
			if event.Name == rcPath && (event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create) {
				if err := c.loadRC(); err != nil {
					// Log error but continue
					fmt.Fprintf(os.Stderr, "Error reloading config: %v\n", err)
				}
			}
		case err, ok := <-c.watcher.Errors:
			if !ok {
				return
			}
			fmt.Fprintf(os.Stderr, "Config watcher error: %v\n", err)
		}
	}
}

// DataDirs returns the ordered list of base directories to search for
// links: the user's data home first, then the system data dirs, then
// any extra directories from the rc file. Order is precedence.
func (c *config) DataDirs() []string {
	c.dynamic.RLock()
	defer c.dynamic.RUnlock()

	dirs := []string{c.static.DataHome}
	for _, d := range strings.Split(c.static.DataDirs, ":") {
		if d != "" {
			dirs = append(dirs, d)
		}
	}
	dirs = append(dirs, c.dynamic.additionalDirs...)
	return dirs
}

// Locale returns the locale specifier for localizing link names
func (c *config) Locale() string {
	if c.static.LCMessages != "" {
		return c.static.LCMessages
	}
	return c.static.Lang
}

// Environments returns the mask of active desktop environments,
// parsed from the semicolon-separated ADE_LINKD_ENV list
func (c *config) Environments() link.EnvMask {
	return link.EnvFromList(c.static.Environments)
}

// UnixSocket returns the Unix socket path
func (c *config) UnixSocket() string {
	return c.static.UnixSocket
}

// Terminal returns the default terminal command
func (c *config) Terminal() string {
	if c.static.Terminal != "" {
		return c.static.Terminal
	}
	// Fallback to TERM env var
	if term := os.Getenv("TERM"); term != "" {
		return term
	}
	return "xterm" // Ultimate fallback
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return strings.Replace(path, "~", home, 1)
	}
	return path
}
