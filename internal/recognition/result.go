package recognition

import (
	"math"
	"sort"
	"strings"
)

// RecognizedWord is a word that passed the confidence filter.
type RecognizedWord struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// RecognizedLine is the space-joined text of the retained words on one line.
type RecognizedLine struct {
	Text  string           `json:"text"`
	Words []RecognizedWord `json:"words"`
}

// RecognizedPage holds a page's retained lines in top-to-bottom order. The
// order is load-bearing for every extraction heuristic downstream.
type RecognizedPage struct {
	Index int              `json:"page"`
	Lines []RecognizedLine `json:"lines"`
}

// Result is the orchestrator's output for one document. It is never mutated
// after being returned.
type Result struct {
	Text              string           `json:"text"`
	Pages             []RecognizedPage `json:"pages"`
	Confidences       []float64        `json:"confidences"`
	AverageConfidence float64          `json:"average_confidence"`
	MedianConfidence  float64          `json:"median_confidence"`
	PageCount         int              `json:"page_count"`
	ElapsedMS         float64          `json:"elapsed_ms"`
	Detector          string           `json:"detector"`
	Recognizer        string           `json:"recognizer"`
	Backend           string           `json:"backend"`
	Blocks            []PageExport     `json:"blocks,omitempty"`
}

// LineTexts flattens the result's pages into the ordered line sequence the
// extraction heuristics operate on.
func (r *Result) LineTexts() []string {
	var lines []string
	for _, page := range r.Pages {
		for _, line := range page.Lines {
			lines = append(lines, line.Text)
		}
	}
	return lines
}

// buildResult filters the raw exports by minConfidence and assembles pages,
// concatenated text, and the retained confidence sequence. Words below the
// threshold are discarded; lines with no retained words are dropped; pages
// are kept even when all their lines were dropped.
func buildResult(exports []PageExport, minConfidence float64) *Result {
	var (
		pages       []RecognizedPage
		confidences []float64
		textLines   []string
	)

	for i, export := range exports {
		page := RecognizedPage{Index: i + 1}
		for _, block := range export.Blocks {
			for _, line := range block.Lines {
				var words []RecognizedWord
				var values []string
				for _, word := range line.Words {
					if word.Confidence < minConfidence {
						continue
					}
					words = append(words, RecognizedWord{Value: word.Value, Confidence: word.Confidence})
					values = append(values, word.Value)
					confidences = append(confidences, word.Confidence)
				}
				if len(words) == 0 {
					continue
				}
				text := strings.TrimSpace(strings.Join(values, " "))
				page.Lines = append(page.Lines, RecognizedLine{Text: text, Words: words})
				textLines = append(textLines, text)
			}
		}
		pages = append(pages, page)
	}

	return &Result{
		Text:              strings.Join(textLines, "\n"),
		Pages:             pages,
		Confidences:       confidences,
		AverageConfidence: mean(confidences),
		MedianConfidence:  median(confidences),
		PageCount:         len(pages),
	}
}

// mean returns the arithmetic mean, or 0.0 for an empty sequence.
func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// median returns the median, or 0.0 for an empty sequence.
func median(values []float64) float64 {
	if len(values) == 0 {
		return 0.0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// roundMillis rounds a millisecond measurement to two decimal places.
func roundMillis(ms float64) float64 {
	return math.Round(ms*100) / 100
}
