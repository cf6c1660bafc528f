package watch

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// recorder collects notifications from the watch goroutine.
type recorder struct {
	mu       sync.Mutex
	notifies []Notify
}

func (r *recorder) handle(n Notify) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifies = append(r.notifies, n)
}

func (r *recorder) all() []Notify {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notify(nil), r.notifies...)
}

var _ = Describe("Watch", func() {
	var (
		w      *Watch
		tmpDir string
		rec    *recorder
	)

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "ade-linkd-watch-*")
		Expect(err).NotTo(HaveOccurred())

		w, err = New()
		Expect(err).NotTo(HaveOccurred())

		rec = &recorder{}
	})

	AfterEach(func() {
		w.Close()
		os.RemoveAll(tmpDir)
	})

	Describe("Add", func() {
		Context("when files already exist in the directory", func() {
			BeforeEach(func() {
				Expect(os.WriteFile(filepath.Join(tmpDir, "a.desktop"), []byte("x"), 0644)).To(Succeed())
				Expect(os.WriteFile(filepath.Join(tmpDir, "b.desktop"), []byte("x"), 0644)).To(Succeed())
			})

			It("should replay them as Added before returning", func() {
				Expect(w.Add(tmpDir, false, rec.handle)).To(Succeed())

				notifies := rec.all()
				Expect(notifies).To(HaveLen(2))
				subs := []string{notifies[0].SubPath, notifies[1].SubPath}
				Expect(subs).To(ConsistOf("a.desktop", "b.desktop"))
				for _, n := range notifies {
					Expect(n.Kind).To(Equal(Added))
					Expect(n.BasePath).To(Equal(tmpDir))
					Expect(n.FullPath).To(Equal(filepath.Join(tmpDir, n.SubPath)))
				}
			})
		})

		Context("when the directory does not exist", func() {
			It("should succeed and stay silent", func() {
				Expect(w.Add(filepath.Join(tmpDir, "missing"), false, rec.handle)).To(Succeed())
				Expect(rec.all()).To(BeEmpty())
			})
		})
	})

	Describe("event delivery", func() {
		BeforeEach(func() {
			Expect(w.Add(tmpDir, false, rec.handle)).To(Succeed())
		})

		kinds := func() []Kind {
			var ks []Kind
			for _, n := range rec.all() {
				ks = append(ks, n.Kind)
			}
			return ks
		}

		It("should report a new file as Added", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, "new.desktop"), []byte("x"), 0644)).To(Succeed())
			Eventually(kinds, 5*time.Second).Should(ContainElement(Added))
		})

		It("should report a removed file as Removed", func() {
			path := filepath.Join(tmpDir, "gone.desktop")
			Expect(os.WriteFile(path, []byte("x"), 0644)).To(Succeed())
			Eventually(kinds, 5*time.Second).Should(ContainElement(Added))

			Expect(os.Remove(path)).To(Succeed())
			Eventually(kinds, 5*time.Second).Should(ContainElement(Removed))
		})

		It("should report the watched directory vanishing as SelfRemoved", func() {
			Expect(os.RemoveAll(tmpDir)).To(Succeed())
			Eventually(kinds, 5*time.Second).Should(ContainElement(SelfRemoved))
		})
	})
})
