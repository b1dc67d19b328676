package recognition

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// transcribePrompt asks the model for a faithful line-by-line transcription.
// Parsing stays in the extraction engine; the model only reads.
const transcribePrompt = `Transcribe all text visible in this receipt image.

Rules:
- Output one line of plain text per line printed on the receipt, top to bottom.
- Preserve spacing between columns where possible.
- Do not summarize, translate, or add commentary.
- Do not use markdown code blocks.
- If the image contains no legible text, output nothing.`

// Gemini implements Backend using Google Gemini as a vision transcriber.
// It is the last-resort stage: the model returns plain text lines without
// scores, so each transcript line becomes one export line whose words carry
// confidence 1.0.
type Gemini struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

// NewGemini creates a new Gemini backend.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: %w", ErrUnavailable)
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client: client,
		model:  client.GenerativeModel(modelName),
		name:   modelName,
	}, nil
}

// Predict transcribes each page and returns one export per page.
func (g *Gemini) Predict(ctx context.Context, pages []image.Image) ([]PageExport, error) {
	exports := make([]PageExport, 0, len(pages))
	for _, page := range pages {
		var buf bytes.Buffer
		if err := png.Encode(&buf, page); err != nil {
			return nil, fmt.Errorf("encoding page: %w", err)
		}

		parts := []genai.Part{
			genai.ImageData("png", buf.Bytes()),
			genai.Text(transcribePrompt),
		}

		resp, err := g.model.GenerateContent(ctx, parts...)
		if err != nil {
			return nil, fmt.Errorf("generating content: %w", err)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return nil, fmt.Errorf("no response from gemini")
		}

		var responseText strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			if text, ok := part.(genai.Text); ok {
				responseText.WriteString(string(text))
			}
		}

		exports = append(exports, exportFromTranscript(responseText.String()))
	}
	return exports, nil
}

// exportFromTranscript turns a plain-text transcription into a single-block
// export, one line per non-empty transcript line.
func exportFromTranscript(text string) PageExport {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var block Block
	for _, raw := range strings.Split(text, "\n") {
		lineText := strings.TrimSpace(raw)
		if lineText == "" {
			continue
		}
		var words []Word
		for _, field := range strings.Fields(lineText) {
			words = append(words, Word{Value: field, Confidence: 1.0})
		}
		block.Lines = append(block.Lines, Line{Words: words})
	}

	var export PageExport
	if len(block.Lines) > 0 {
		export.Blocks = append(export.Blocks, block)
	}
	return export
}

// Detector identifies the detection side of the model pairing.
func (g *Gemini) Detector() string { return g.name }

// Recognizer identifies the recognition side of the model pairing.
func (g *Gemini) Recognizer() string { return g.name }

// Family names the backend implementation.
func (g *Gemini) Family() string { return "gemini" }

// Close closes the Gemini client.
func (g *Gemini) Close() error {
	return g.client.Close()
}
