package receipt

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/zombor/receipt-ocr/internal/recognition"
)

// Recognizer is the text-recognition capability the service drives. The
// production implementation is the recognition orchestrator.
type Recognizer interface {
	RecognizeFile(ctx context.Context, path string, opts recognition.Options) (*recognition.Result, error)
}

// Options are the per-request processing parameters. MinConfidence nil
// applies the recognition default; an explicit zero keeps every word.
type Options struct {
	Language      string
	MinConfidence *float64
	PageLimit     int
	ReturnText    bool
	ReturnBlocks  bool
}

func (o Options) withDefaults() Options {
	if o.Language == "" {
		o.Language = "en"
	}
	if o.MinConfidence == nil {
		def := recognition.DefaultMinConfidence
		o.MinConfidence = &def
	}
	if o.PageLimit < 1 {
		o.PageLimit = 10
	}
	return o
}

// Service runs the full per-file pipeline: validate, recognize, extract,
// assemble. Each file runs to completion before the next; there is no
// internal parallelism.
type Service struct {
	recognizer Recognizer
	assembler  *Assembler
	ids        IDGenerator
}

// NewService creates a Service with default ID generation.
func NewService(recognizer Recognizer) *Service {
	return NewServiceWithDeps(recognizer, NewAssembler(), uuidGenerator{})
}

// NewServiceWithDeps creates a Service with custom dependencies for testing.
func NewServiceWithDeps(recognizer Recognizer, assembler *Assembler, ids IDGenerator) *Service {
	return &Service{
		recognizer: recognizer,
		assembler:  assembler,
		ids:        ids,
	}
}

// ProcessFile processes a single file into a document. It fails only for
// input errors (unsupported type, unreadable file) and unrecoverable pipeline
// errors; extraction misses degrade to unset fields.
func (s *Service) ProcessFile(ctx context.Context, path string, opts Options) (*Document, error) {
	opts = opts.withDefaults()

	if !recognition.SupportedExtension(path) {
		return nil, fmt.Errorf("%w: %s", recognition.ErrUnsupportedType, filepath.Ext(path))
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", err)
	}

	slog.Info("Processing file", "file", path, "size", stat.Size())
	res, err := s.recognizer.RecognizeFile(ctx, path, recognition.Options{
		MinConfidence: opts.MinConfidence,
		PageLimit:     opts.PageLimit,
		Language:      opts.Language,
		ReturnBlocks:  opts.ReturnBlocks,
	})
	if err != nil {
		return nil, fmt.Errorf("recognizing %s: %w", filepath.Base(path), err)
	}

	doc := s.assembler.Assemble(res, filepath.Base(path), stat.Size(), AssembleOptions{
		Language:      opts.Language,
		MinConfidence: *opts.MinConfidence,
		PageLimit:     opts.PageLimit,
		ReturnText:    opts.ReturnText,
		ReturnBlocks:  opts.ReturnBlocks,
	})

	slog.Info("Parsed receipt",
		"file", path,
		"store", deref(doc.Store.Name),
		"receipt_number", deref(doc.Receipt.ReceiptNumber),
		"items", len(doc.Items),
	)
	return doc, nil
}

// ProcessBatch processes files sequentially. A file's failure is recorded and
// skipped; the batch itself fails only when no files were given.
func (s *Service) ProcessBatch(ctx context.Context, paths []string, opts Options) (*BatchResult, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files provided")
	}

	batch := &BatchResult{
		JobID:   s.ids.Generate(),
		Results: make([]Document, 0, len(paths)),
		Errors:  make([]BatchError, 0),
	}

	for _, path := range paths {
		doc, err := s.ProcessFile(ctx, path, opts)
		if err != nil {
			slog.Error("Failed to process file", "file", path, "error", err)
			batch.Errors = append(batch.Errors, BatchError{File: path, Error: err.Error()})
			continue
		}
		batch.Results = append(batch.Results, *doc)
	}

	batch.Summary = BatchSummary{
		TotalFiles: len(paths),
		Successful: len(batch.Results),
		Failed:     len(batch.Errors),
	}
	return batch, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
