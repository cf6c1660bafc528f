package runcount

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RunCount", func() {
	var (
		rc           *RunCount
		testCacheDir string
	)

	BeforeEach(func() {
		var err error
		testCacheDir, err = os.MkdirTemp("", "ade-runcount-test-*")
		Expect(err).NotTo(HaveOccurred())

		rc, err = NewRunCountWithCacheDir(testCacheDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(rc).NotTo(BeNil())
	})

	AfterEach(func() {
		if rc != nil {
			Expect(rc.Close()).To(Succeed())
		}
		if testCacheDir != "" {
			Expect(os.RemoveAll(testCacheDir)).To(Succeed())
		}
	})

	Describe("NewRunCountWithCacheDir", func() {
		It("should create the ade directory in cache", func() {
			Expect(filepath.Join(testCacheDir, "ade")).To(BeADirectory())
		})

		It("should create the database file", func() {
			Expect(filepath.Join(testCacheDir, "ade", "linkd.run-count")).To(BeAnExistingFile())
		})
	})

	Describe("Increment", func() {
		const source = "/usr/share/applications/editor.desktop"

		It("should start every source at zero", func() {
			counts := rc.Counts([]string{source})
			Expect(counts[source]).To(Equal(uint64(0)))
		})

		It("should count launches per source file", func() {
			Expect(rc.Increment(source)).To(Succeed())
			Expect(rc.Increment(source)).To(Succeed())

			counts := rc.Counts([]string{source})
			Expect(counts[source]).To(Equal(uint64(2)))
		})

		It("should keep sources independent", func() {
			other := "/usr/share/applications/browser.desktop"
			Expect(rc.Increment(source)).To(Succeed())

			counts := rc.Counts([]string{source, other})
			Expect(counts[source]).To(Equal(uint64(1)))
			Expect(counts[other]).To(Equal(uint64(0)))
		})
	})

	Describe("persistence", func() {
		It("should survive a close and reopen", func() {
			const source = "/usr/share/applications/editor.desktop"
			Expect(rc.Increment(source)).To(Succeed())
			Expect(rc.Close()).To(Succeed())

			reopened, err := NewRunCountWithCacheDir(testCacheDir)
			Expect(err).NotTo(HaveOccurred())
			defer reopened.Close()
			rc = nil

			counts := reopened.Counts([]string{source})
			Expect(counts[source]).To(Equal(uint64(1)))
		})
	})
})
