package recognition

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
)

// Azure implements Backend using the Azure Computer Vision printed-text OCR.
// The API does not expose per-word confidence scores, so every word reports
// confidence 1.0 and the min-confidence filter keeps all of them.
type Azure struct {
	client   *computervision.BaseClient
	language computervision.OcrLanguages
}

// NewAzure creates an Azure Computer Vision backend.
func NewAzure(endpoint, apiKey string) (*Azure, error) {
	if endpoint == "" || apiKey == "" {
		return nil, fmt.Errorf("azure: %w", ErrUnavailable)
	}

	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)

	return &Azure{
		client:   &client,
		language: computervision.OcrLanguages(computervision.En),
	}, nil
}

// Predict runs printed-text OCR on each page and maps regions/lines/words
// into page exports.
func (a *Azure) Predict(ctx context.Context, pages []image.Image) ([]PageExport, error) {
	exports := make([]PageExport, 0, len(pages))
	for _, page := range pages {
		var buf bytes.Buffer
		if err := png.Encode(&buf, page); err != nil {
			return nil, fmt.Errorf("encoding page: %w", err)
		}
		reader := io.NopCloser(bytes.NewReader(buf.Bytes()))

		result, err := a.client.RecognizePrintedTextInStream(ctx, true, reader, a.language)
		if err != nil {
			return nil, fmt.Errorf("azure ocr: %w", err)
		}

		exports = append(exports, exportFromAzureResult(result))
	}
	return exports, nil
}

// exportFromAzureResult flattens Azure regions into blocks of lines of words.
func exportFromAzureResult(result computervision.OcrResult) PageExport {
	var export PageExport
	if result.Regions == nil {
		return export
	}
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		var block Block
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			var words []Word
			for _, word := range *line.Words {
				if word.Text == nil || *word.Text == "" {
					continue
				}
				words = append(words, Word{Value: *word.Text, Confidence: 1.0})
			}
			if len(words) > 0 {
				block.Lines = append(block.Lines, Line{Words: words})
			}
		}
		if len(block.Lines) > 0 {
			export.Blocks = append(export.Blocks, block)
		}
	}
	return export
}

// Detector identifies the detection side of the model pairing.
func (a *Azure) Detector() string { return "azure_cv" }

// Recognizer identifies the recognition side of the model pairing.
func (a *Azure) Recognizer() string { return "azure_printed_v3" }

// Family names the backend implementation.
func (a *Azure) Family() string { return "azure" }

// Close closes the backend (no-op for the Azure SDK client).
func (a *Azure) Close() error { return nil }
