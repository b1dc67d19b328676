package recognition

import (
	"context"
	"errors"
	"image"
)

// ErrUnavailable marks a backend that is not configured or not reachable in
// this environment. The orchestrator treats it as a skipped fallback stage.
var ErrUnavailable = errors.New("recognition backend unavailable")

// Word is a single recognized token with its model confidence in [0,1].
type Word struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// Line groups the words the detector placed on one baseline.
type Line struct {
	Words []Word `json:"words"`
}

// Block is a detected structural region of a page (paragraph, column, stamp).
type Block struct {
	Lines []Line `json:"lines"`
}

// PageExport is the raw structural output of a backend for one page:
// blocks contain lines, lines contain confidence-scored words.
type PageExport struct {
	Blocks []Block `json:"blocks"`
}

// HasText reports whether any page carries at least one structural block.
func HasText(pages []PageExport) bool {
	for _, p := range pages {
		if len(p.Blocks) > 0 {
			return true
		}
	}
	return false
}

// Backend is a concrete text-recognition implementation. Implementations must
// be safe for read-only concurrent Predict calls; the orchestrator never
// mutates a backend after construction.
type Backend interface {
	// Predict runs recognition on the given page images and returns one
	// export per page, in page order.
	Predict(ctx context.Context, pages []image.Image) ([]PageExport, error)

	// Detector and Recognizer identify the model pairing for provenance;
	// Family names the backend implementation itself.
	Detector() string
	Recognizer() string
	Family() string

	// Close releases any resources held by the backend.
	Close() error
}
