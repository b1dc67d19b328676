package receipt

import (
	"time"

	"github.com/zombor/receipt-ocr/internal/recognition"
)

// StatusProcessed is the terminal status of an assembled receipt. Entities
// are created fresh per request and never updated after assembly.
const StatusProcessed = "processed"

// Store is the merchant information extracted from the receipt header.
// ID is reserved for database matching, which this service never performs.
type Store struct {
	ID      *string `json:"id"`
	Name    *string `json:"name"`
	Website *string `json:"website"`
	Address *string `json:"address"`
}

// ReceiptItem is one parsed line item. SequenceNumber is 1-based and
// contiguous in detection order.
type ReceiptItem struct {
	ID             string   `json:"id"`
	Description    *string  `json:"description"`
	Quantity       float64  `json:"quantity"`
	UnitPrice      *float64 `json:"unit_price"`
	TotalPrice     *float64 `json:"total_price"`
	SequenceNumber int      `json:"sequence_number"`
	Confidence     *float64 `json:"confidence"`
}

// OCRMeta records the processing provenance of a receipt.
type OCRMeta struct {
	Detector          string                   `json:"detector"`
	Recognizer        string                   `json:"recognizer"`
	Backend           string                   `json:"backend"`
	InferenceMS       float64                  `json:"inference_ms"`
	PageCount         int                      `json:"page_count"`
	Language          string                   `json:"language"`
	AverageConfidence float64                  `json:"average_confidence"`
	MedianConfidence  float64                  `json:"median_confidence"`
	MinConfidence     float64                  `json:"min_confidence"`
	Currency          *string                  `json:"currency"`
	PageLimit         int                      `json:"page_limit"`
	ModelVersions     map[string]string        `json:"model_versions"`
	RawBlocks         []recognition.PageExport `json:"raw_blocks,omitempty"`
}

// Receipt is the main extracted entity.
type Receipt struct {
	ID             string     `json:"id"`
	ReceiptNumber  *string    `json:"receipt_number"`
	PurchaseDate   *time.Time `json:"purchase_date"`
	TotalAmount    *float64   `json:"total_amount"`
	TaxAmount      *float64   `json:"tax_amount"`
	PaymentMethod  *string    `json:"payment_method"`
	SourceFilename string     `json:"source_filename"`
	RawText        *string    `json:"raw_text,omitempty"`
	OCRMetadata    OCRMeta    `json:"ocr_metadata"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// UploadRecord is the file-level bookkeeping for one processed upload.
type UploadRecord struct {
	ID               string    `json:"id"`
	FileType         string    `json:"file_type"`
	OriginalFilename string    `json:"original_filename"`
	FileSize         int64     `json:"file_size"`
	ProcessingStatus string    `json:"processing_status"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// Document is the complete response for one processed file.
type Document struct {
	Receipt Receipt       `json:"receipt"`
	Items   []ReceiptItem `json:"items"`
	Store   Store         `json:"store"`
	Upload  UploadRecord  `json:"upload"`
}

// BatchError reports one file that failed during batch processing.
type BatchError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// BatchSummary counts the outcomes of a batch run.
type BatchSummary struct {
	TotalFiles int `json:"total_files"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// BatchResult is the envelope for a multi-file run. A file's failure never
// aborts the batch; it is recorded in Errors instead.
type BatchResult struct {
	JobID   string       `json:"job_id"`
	Results []Document   `json:"results"`
	Errors  []BatchError `json:"errors"`
	Summary BatchSummary `json:"summary"`
}
