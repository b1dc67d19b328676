package recognition

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// minTextLength is the acceptance threshold for recognized output: anything
// shorter after trimming triggers the alternate-recognizer and
// alternate-backend stages.
const minTextLength = 10

// stageTimeout bounds a single backend call so a hung backend becomes a
// skipped stage instead of a hung request.
const stageTimeout = 2 * time.Minute

// DefaultMinConfidence is the per-word confidence floor applied when a
// request does not set one.
const DefaultMinConfidence = 0.3

// Options control one recognition run.
type Options struct {
	// MinConfidence is the per-word confidence floor; words below it are
	// discarded. nil applies DefaultMinConfidence; an explicit zero keeps
	// every word.
	MinConfidence *float64
	// PageLimit bounds multi-page sources before any recognition attempt.
	// Defaults to 10.
	PageLimit int
	// Language is the declared OCR language code. Defaults to "en".
	Language string
	// ReturnBlocks includes the accepted stage's raw exports in the result.
	ReturnBlocks bool
}

func (o Options) withDefaults() Options {
	if o.MinConfidence == nil {
		def := DefaultMinConfidence
		o.MinConfidence = &def
	}
	if o.PageLimit < 1 {
		o.PageLimit = 10
	}
	if o.Language == "" {
		o.Language = "en"
	}
	return o
}

// BackendFactory constructs a fallback backend on demand. Fallback backends
// are created per call and discarded afterwards to bound memory; only the
// primary instance is shared across requests.
type BackendFactory func(ctx context.Context) (Backend, error)

// Orchestrator drives a bounded, ordered sequence of recognition strategies
// until an output-quality threshold is met or strategies are exhausted. Each
// accepted stage replaces the entire working result; stages never merge.
type Orchestrator struct {
	primary    Backend
	alternates []Backend
	fallback   BackendFactory
	lastResort BackendFactory
}

// NewOrchestrator wires an orchestrator from explicit stages. alternates are
// same-family recognizer variants; fallback and lastResort may be nil.
func NewOrchestrator(primary Backend, alternates []Backend, fallback, lastResort BackendFactory) *Orchestrator {
	return &Orchestrator{
		primary:    primary,
		alternates: alternates,
		fallback:   fallback,
		lastResort: lastResort,
	}
}

// Config selects the concrete backend stack.
type Config struct {
	DocTRURL      string
	AzureEndpoint string
	AzureKey      string
	GeminiAPIKey  string
	GeminiModel   string
}

// NewFromConfig builds the production ladder: the shared docTR primary with
// its alternate recognizers, Azure as the alternate backend, and Gemini as
// the last resort. Unconfigured fallbacks surface ErrUnavailable when their
// stage runs and are skipped.
func NewFromConfig(cfg Config) (*Orchestrator, error) {
	primary, err := SharedDocTR(cfg.DocTRURL)
	if err != nil {
		return nil, err
	}

	alternates := make([]Backend, 0, len(AlternateRecognizers))
	for _, reco := range AlternateRecognizers {
		alternates = append(alternates, primary.WithRecognizer(reco))
	}

	fallback := func(ctx context.Context) (Backend, error) {
		return NewAzure(cfg.AzureEndpoint, cfg.AzureKey)
	}
	lastResort := func(ctx context.Context) (Backend, error) {
		return NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	}

	return NewOrchestrator(primary, alternates, fallback, lastResort), nil
}

// sharedDocTR is the process-wide primary backend. Model-backed services are
// expensive to warm up, so the instance is created once on first use and
// reused across requests. Fallback backends are never cached.
var (
	sharedMu    sync.Mutex
	sharedDocTR *DocTR
)

// SharedDocTR returns the shared primary backend, creating it on first use.
func SharedDocTR(baseURL string) (*DocTR, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedDocTR == nil {
		backend, err := NewDocTR(baseURL, DefaultDetector, DefaultRecognizer)
		if err != nil {
			return nil, err
		}
		slog.Info("Initialized shared recognition backend", "detector", backend.Detector(), "recognizer", backend.Recognizer())
		sharedDocTR = backend
	}
	return sharedDocTR, nil
}

// ResetSharedBackend tears down the shared primary instance so the next call
// re-initializes it. Intended for tests.
func ResetSharedBackend() {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedDocTR != nil {
		sharedDocTR.Close()
		sharedDocTR = nil
	}
}

// RecognizeFile loads a document's pages and recognizes them. Unsupported or
// unreadable sources are the only errors it returns.
func (o *Orchestrator) RecognizeFile(ctx context.Context, path string, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	pages, err := LoadPages(path, opts.PageLimit)
	if err != nil {
		return nil, err
	}
	return o.Recognize(ctx, pages, opts)
}

// Recognize runs the escalation ladder over the given page images:
//
//  1. primary backend on the pages as given
//  2. if no page produced a structural block: retry on enhanced pages
//  3. if still nothing: retry enhanced pages at 90 and 270 degree rotations
//  4. if the trimmed text is shorter than the acceptance threshold: cascade
//     through the alternate recognizers of the primary family
//  5. if still short: alternate backend, accepted when non-empty
//  6. if still short: last-resort backend, accepted unconditionally
//
// Stage failures are logged and skipped. "No text found" is not an error:
// the returned result simply has empty text and zero confidences.
func (o *Orchestrator) Recognize(ctx context.Context, pages []image.Image, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	minConf := *opts.MinConfidence

	working := pages
	exports, elapsed, err := o.predict(ctx, o.primary, working)
	if err != nil {
		slog.Debug("Primary recognition pass failed", "error", err)
	}

	// Later stages reuse the pages as given; only an accepted rotation
	// replaces them. Enhancement is a detection aid, not a new working set.
	if !HasText(exports) {
		slog.Debug("No text detected on first pass; retrying with enhanced pages")
		enhanced := enhanceAll(working)
		if ex, el, err := o.predict(ctx, o.primary, enhanced); err != nil {
			slog.Debug("Enhanced recognition pass failed", "error", err)
		} else {
			exports, elapsed = ex, el
		}

		if !HasText(exports) {
			slog.Debug("Still nothing after enhancement; trying rotated variants")
			for _, angle := range []int{90, 270} {
				rotated := rotateAll(enhanced, angle)
				ex, el, err := o.predict(ctx, o.primary, rotated)
				if err != nil {
					slog.Debug("Rotated recognition pass failed", "angle", angle, "error", err)
					continue
				}
				exports, elapsed = ex, el
				if HasText(exports) {
					working = rotated
					break
				}
			}
		}
	}

	detector, recognizer, family := o.primary.Detector(), o.primary.Recognizer(), o.primary.Family()
	result := buildResult(exports, minConf)

	if tooShort(result) {
		for _, alt := range o.alternates {
			slog.Debug("Output below length threshold; retrying with alternate recognizer", "recognizer", alt.Recognizer())
			ex, el, err := o.predict(ctx, alt, working)
			if err != nil {
				slog.Debug("Alternate recognizer failed", "recognizer", alt.Recognizer(), "error", err)
				continue
			}
			exports, elapsed = ex, el
			detector, recognizer, family = alt.Detector(), alt.Recognizer(), alt.Family()
			result = buildResult(exports, minConf)
			if !tooShort(result) {
				break
			}
		}
	}

	if tooShort(result) && o.fallback != nil {
		if ex, el, backend, err := o.runFallback(ctx, o.fallback, working); err != nil {
			slog.Debug("Alternate backend unavailable or failed", "error", err)
		} else {
			candidate := buildResult(ex, minConf)
			if strings.TrimSpace(candidate.Text) != "" {
				exports, elapsed = ex, el
				detector, recognizer, family = backend.Detector(), backend.Recognizer(), backend.Family()
				result = candidate
			}
		}
	}

	if tooShort(result) && o.lastResort != nil {
		if ex, el, backend, err := o.runFallback(ctx, o.lastResort, working); err != nil {
			slog.Debug("Last-resort backend unavailable or failed", "error", err)
		} else {
			exports, elapsed = ex, el
			detector, recognizer, family = backend.Detector(), backend.Recognizer(), backend.Family()
			result = buildResult(exports, minConf)
		}
	}

	result.ElapsedMS = roundMillis(elapsed)
	result.Detector = detector
	result.Recognizer = recognizer
	result.Backend = family
	if opts.ReturnBlocks {
		result.Blocks = exports
	}

	slog.Info("Recognition complete",
		"pages", result.PageCount,
		"avg_confidence", result.AverageConfidence,
		"detector", detector,
		"recognizer", recognizer,
		"elapsed_ms", result.ElapsedMS,
	)
	return result, nil
}

// predict runs one backend call under the stage timeout and measures its
// wall-clock duration in milliseconds.
func (o *Orchestrator) predict(ctx context.Context, backend Backend, pages []image.Image) ([]PageExport, float64, error) {
	ctx, cancel := context.WithTimeout(ctx, stageTimeout)
	defer cancel()

	start := time.Now()
	exports, err := backend.Predict(ctx, pages)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	if err != nil {
		return nil, 0, err
	}
	return exports, elapsed, nil
}

// runFallback instantiates a per-call backend, runs it, and closes it.
func (o *Orchestrator) runFallback(ctx context.Context, factory BackendFactory, pages []image.Image) ([]PageExport, float64, Backend, error) {
	backend, err := factory(ctx)
	if err != nil {
		return nil, 0, nil, err
	}
	defer backend.Close()

	exports, elapsed, err := o.predict(ctx, backend, pages)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("%s/%s: %w", backend.Detector(), backend.Recognizer(), err)
	}
	return exports, elapsed, backend, nil
}

func tooShort(r *Result) bool {
	return len(strings.TrimSpace(r.Text)) < minTextLength
}
