package receipt

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/receipt-ocr/internal/recognition"
)

var _ = Describe("Assembler", func() {
	var (
		assembler *Assembler
		now       time.Time
		res       *recognition.Result
		opts      AssembleOptions
		doc       *Document
	)

	BeforeEach(func() {
		now = time.Date(2024, 1, 20, 9, 30, 0, 0, time.UTC)
		assembler = NewAssemblerWithDeps(&seqIDGenerator{}, &mockTimeSource{now: now})
		res = bigMartResult()
		opts = AssembleOptions{Language: "en", MinConfidence: 0.3, PageLimit: 10}
	})

	JustBeforeEach(func() {
		doc = assembler.Assemble(res, "receipt.png", 2048, opts)
	})

	Describe("a full receipt", func() {
		It("extracts the store header", func() {
			Expect(doc.Store.Name).To(HaveValue(Equal("BIG MART")))
			Expect(doc.Store.Address).To(HaveValue(ContainSubstring("MG Road")))
			Expect(doc.Store.Website).To(HaveValue(Equal("www.bigmart.com")))
		})

		It("extracts the receipt number", func() {
			Expect(doc.Receipt.ReceiptNumber).To(HaveValue(Equal("RCP-2024-001")))
		})

		It("extracts the purchase date", func() {
			Expect(doc.Receipt.PurchaseDate).NotTo(BeNil())
			Expect(doc.Receipt.PurchaseDate.Year()).To(Equal(2024))
			Expect(doc.Receipt.PurchaseDate.Month()).To(Equal(time.January))
			Expect(doc.Receipt.PurchaseDate.Day()).To(Equal(15))
		})

		It("extracts total and tax", func() {
			Expect(doc.Receipt.TotalAmount).To(HaveValue(Equal(194.25)))
			Expect(doc.Receipt.TaxAmount).To(HaveValue(Equal(9.25)))
		})

		It("extracts the payment method with the masked card", func() {
			Expect(doc.Receipt.PaymentMethod).To(HaveValue(ContainSubstring("VISA")))
			Expect(doc.Receipt.PaymentMethod).To(HaveValue(ContainSubstring("****1234")))
		})

		It("defaults the currency to USD for English text without symbols", func() {
			Expect(doc.Receipt.OCRMetadata.Currency).To(HaveValue(Equal("USD")))
		})

		It("parses the item lines in order", func() {
			Expect(doc.Items).To(HaveLen(2))
			Expect(doc.Items[0].Description).To(HaveValue(Equal("Rice 5kg")))
			Expect(doc.Items[0].SequenceNumber).To(Equal(1))
			Expect(doc.Items[1].SequenceNumber).To(Equal(2))
		})

		It("marks the receipt processed", func() {
			Expect(doc.Receipt.Status).To(Equal(StatusProcessed))
		})

		It("carries the recognition provenance", func() {
			meta := doc.Receipt.OCRMetadata
			Expect(meta.Detector).To(Equal("db_resnet50"))
			Expect(meta.Recognizer).To(Equal("crnn_vgg16_bn"))
			Expect(meta.Backend).To(Equal("pytorch"))
			Expect(meta.InferenceMS).To(Equal(12.34))
			Expect(meta.PageCount).To(Equal(1))
			Expect(meta.MinConfidence).To(Equal(0.3))
			Expect(meta.PageLimit).To(Equal(10))
		})

		It("stamps injected identifiers and timestamps", func() {
			Expect(doc.Receipt.ID).To(Equal("id-1"))
			Expect(doc.Receipt.CreatedAt).To(Equal(now))
			Expect(doc.Receipt.UpdatedAt).To(Equal(now))
			Expect(doc.Upload.UploadedAt).To(Equal(now))
			Expect(doc.Items[0].ID).NotTo(Equal(doc.Items[1].ID))
		})

		It("records the upload bookkeeping", func() {
			Expect(doc.Upload.OriginalFilename).To(Equal("receipt.png"))
			Expect(doc.Upload.FileSize).To(Equal(int64(2048)))
			Expect(doc.Upload.FileType).To(Equal(".png"))
			Expect(doc.Upload.ProcessingStatus).To(Equal("completed"))
		})

		It("omits the raw text by default", func() {
			Expect(doc.Receipt.RawText).To(BeNil())
		})
	})

	When("raw text is requested", func() {
		BeforeEach(func() {
			opts.ReturnText = true
		})

		It("includes the full recognized text", func() {
			Expect(doc.Receipt.RawText).To(HaveValue(Equal(res.Text)))
		})
	})

	When("raw blocks are requested", func() {
		BeforeEach(func() {
			opts.ReturnBlocks = true
			res.Blocks = []recognition.PageExport{{Blocks: []recognition.Block{{}}}}
		})

		It("passes them through the metadata", func() {
			Expect(doc.Receipt.OCRMetadata.RawBlocks).To(Equal(res.Blocks))
		})
	})

	When("the recognition result is empty", func() {
		BeforeEach(func() {
			res = &recognition.Result{Detector: "db_resnet50", Recognizer: "crnn_vgg16_bn", Backend: "pytorch"}
		})

		It("leaves every extracted field unset instead of failing", func() {
			Expect(doc.Store.Name).To(BeNil())
			Expect(doc.Receipt.ReceiptNumber).To(BeNil())
			Expect(doc.Receipt.PurchaseDate).To(BeNil())
			Expect(doc.Receipt.TotalAmount).To(BeNil())
			Expect(doc.Receipt.TaxAmount).To(BeNil())
			Expect(doc.Receipt.PaymentMethod).To(BeNil())
			Expect(doc.Items).To(BeEmpty())
		})

		It("still defaults the currency for English", func() {
			Expect(doc.Receipt.OCRMetadata.Currency).To(HaveValue(Equal("USD")))
		})
	})

	When("the language is not English and no symbol appears", func() {
		BeforeEach(func() {
			opts.Language = "fr"
		})

		It("leaves the currency unset", func() {
			Expect(doc.Receipt.OCRMetadata.Currency).To(BeNil())
		})
	})

	When("assembled twice from the same inputs", func() {
		It("produces identical documents", func() {
			other := NewAssemblerWithDeps(&seqIDGenerator{}, &mockTimeSource{now: now})
			again := other.Assemble(bigMartResult(), "receipt.png", 2048, opts)
			Expect(again).To(Equal(doc))
		})
	})
})
