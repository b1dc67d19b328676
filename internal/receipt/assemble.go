package receipt

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/receipt-ocr/internal/parsing"
	"github.com/zombor/receipt-ocr/internal/recognition"
)

// IDGenerator generates unique identifiers for assembled entities.
type IDGenerator interface {
	Generate() string
}

// TimeSource provides the current time.
type TimeSource interface {
	Now() time.Time
}

// uuidGenerator generates random UUIDs.
type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

// utcClock provides the current UTC time.
type utcClock struct{}

func (utcClock) Now() time.Time {
	return time.Now().UTC()
}

// AssembleOptions carry the request parameters that end up in the document.
type AssembleOptions struct {
	Language      string
	MinConfidence float64
	PageLimit     int
	ReturnText    bool
	ReturnBlocks  bool
}

// Assembler runs the extraction heuristics over a recognition result and
// packages the final document, stamping identifiers and timestamps from its
// injected sources. Deterministic given the result plus the two injected
// values.
type Assembler struct {
	ids   IDGenerator
	clock TimeSource
}

// NewAssembler creates an Assembler with UUID identifiers and UTC timestamps.
func NewAssembler() *Assembler {
	return NewAssemblerWithDeps(uuidGenerator{}, utcClock{})
}

// NewAssemblerWithDeps creates an Assembler with custom dependencies for
// testing.
func NewAssemblerWithDeps(ids IDGenerator, clock TimeSource) *Assembler {
	return &Assembler{ids: ids, clock: clock}
}

// Assemble extracts every receipt field from the recognition result and
// builds the response document. Heuristics that find nothing leave their
// field unset; assembly itself cannot fail.
func (a *Assembler) Assemble(res *recognition.Result, filename string, fileSize int64, opts AssembleOptions) *Document {
	lines := res.LineTexts()
	now := a.clock.Now()
	receiptID := a.ids.Generate()

	info := parsing.ExtractStoreInfo(lines)
	store := Store{
		Name:    optString(info.Name),
		Website: optString(info.Website),
		Address: optString(info.Address),
	}

	total, tax := parsing.ExtractTotals(lines)
	currency := parsing.InferCurrency(res.Text, opts.Language)

	start, end := parsing.ItemRegion(lines)
	items := make([]ReceiptItem, 0)
	for i, item := range parsing.ParseItems(lines, start, end) {
		items = append(items, ReceiptItem{
			ID:             a.ids.Generate(),
			Description:    optString(item.Description),
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			TotalPrice:     &item.TotalPrice,
			SequenceNumber: i + 1,
		})
	}

	meta := OCRMeta{
		Detector:          res.Detector,
		Recognizer:        res.Recognizer,
		Backend:           res.Backend,
		InferenceMS:       res.ElapsedMS,
		PageCount:         res.PageCount,
		Language:          opts.Language,
		AverageConfidence: res.AverageConfidence,
		MedianConfidence:  res.MedianConfidence,
		MinConfidence:     opts.MinConfidence,
		Currency:          optString(currency),
		PageLimit:         opts.PageLimit,
		ModelVersions: map[string]string{
			"detector":   res.Detector,
			"recognizer": res.Recognizer,
		},
	}
	if opts.ReturnBlocks {
		meta.RawBlocks = res.Blocks
	}

	rec := Receipt{
		ID:             receiptID,
		ReceiptNumber:  optString(parsing.ExtractReceiptNumber(res.Text)),
		PurchaseDate:   parsing.ParseDate(res.Text),
		TotalAmount:    total,
		TaxAmount:      tax,
		PaymentMethod:  optString(parsing.ExtractPaymentMethod(res.Text)),
		SourceFilename: filename,
		OCRMetadata:    meta,
		Status:         StatusProcessed,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if opts.ReturnText {
		text := res.Text
		rec.RawText = &text
	}

	upload := UploadRecord{
		ID:               a.ids.Generate(),
		FileType:         strings.ToLower(filepath.Ext(filename)),
		OriginalFilename: filename,
		FileSize:         fileSize,
		ProcessingStatus: "completed",
		UploadedAt:       now,
	}

	return &Document{
		Receipt: rec,
		Items:   items,
		Store:   store,
		Upload:  upload,
	}
}

// optString returns nil for the empty string.
func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
