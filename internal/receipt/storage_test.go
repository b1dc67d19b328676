package receipt

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("LocalSpool", func() {
	var (
		dir   string
		spool *LocalSpool
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		var err error
		spool, err = NewLocalSpool(filepath.Join(dir, "spool"))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("Save", func() {
		It("stages the upload under the spool directory", func() {
			path, err := spool.Save("receipt.png", []byte("image bytes"))
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(HavePrefix(filepath.Join(dir, "spool")))

			data, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(Equal([]byte("image bytes")))
		})

		It("preserves the original extension", func() {
			path, err := spool.Save("scan.pdf", []byte("%PDF"))
			Expect(err).NotTo(HaveOccurred())
			Expect(filepath.Ext(path)).To(Equal(".pdf"))
		})

		It("ignores any directory components in the filename", func() {
			path, err := spool.Save("../../etc/passwd.png", []byte("x"))
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(HavePrefix(filepath.Join(dir, "spool")))
		})

		It("keeps concurrent uploads of the same name apart", func() {
			first, err := spool.Save("receipt.png", []byte("one"))
			Expect(err).NotTo(HaveOccurred())
			second, err := spool.Save("receipt.png", []byte("two"))
			Expect(err).NotTo(HaveOccurred())
			Expect(first).NotTo(Equal(second))
		})
	})

	Describe("Remove", func() {
		It("deletes a staged file", func() {
			path, err := spool.Save("receipt.png", []byte("image bytes"))
			Expect(err).NotTo(HaveOccurred())
			Expect(spool.Remove(path)).To(Succeed())
			_, err = os.Stat(path)
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("fails for a file that was never staged", func() {
			Expect(spool.Remove(filepath.Join(dir, "spool", "missing.png"))).NotTo(Succeed())
		})
	})
})
