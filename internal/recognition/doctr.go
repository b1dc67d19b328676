package recognition

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"net/http"
	"time"
)

// Default docTR model pairing served by the inference sidecar.
const (
	DefaultDetector   = "db_resnet50"
	DefaultRecognizer = "crnn_vgg16_bn"
)

// AlternateRecognizers are the heavier recognizer architectures tried, in
// order, when the default pairing yields too little text.
var AlternateRecognizers = []string{"satrn_base", "vitstr_base", "parseq"}

// DocTR implements Backend against a docTR inference HTTP service.
type DocTR struct {
	baseURL string
	det     string
	reco    string
	client  *http.Client
}

// NewDocTR creates a client for a docTR inference service.
func NewDocTR(baseURL, detArch, recoArch string) (*DocTR, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("doctr: %w", ErrUnavailable)
	}
	if detArch == "" {
		detArch = DefaultDetector
	}
	if recoArch == "" {
		recoArch = DefaultRecognizer
	}

	return &DocTR{
		baseURL: baseURL,
		det:     detArch,
		reco:    recoArch,
		client: &http.Client{
			Timeout: 120 * time.Second, // CPU inference on large pages is slow
		},
	}, nil
}

// WithRecognizer returns a client for the same service and detector but an
// alternate recognizer architecture. The HTTP client is shared.
func (d *DocTR) WithRecognizer(recoArch string) *DocTR {
	return &DocTR{
		baseURL: d.baseURL,
		det:     d.det,
		reco:    recoArch,
		client:  d.client,
	}
}

// doctrPredictRequest is the request body for the service's predict API.
type doctrPredictRequest struct {
	DetArch  string   `json:"det_arch"`
	RecoArch string   `json:"reco_arch"`
	Images   []string `json:"images"` // base64-encoded PNG pages
}

// doctrPredictResponse mirrors docTR's document export.
type doctrPredictResponse struct {
	Pages []PageExport `json:"pages"`
}

// Predict sends the pages to the inference service and returns its export.
func (d *DocTR) Predict(ctx context.Context, pages []image.Image) ([]PageExport, error) {
	encoded := make([]string, 0, len(pages))
	for _, page := range pages {
		var buf bytes.Buffer
		if err := png.Encode(&buf, page); err != nil {
			return nil, fmt.Errorf("encoding page: %w", err)
		}
		encoded = append(encoded, base64.StdEncoding.EncodeToString(buf.Bytes()))
	}

	reqBody := doctrPredictRequest{
		DetArch:  d.det,
		RecoArch: d.reco,
		Images:   encoded,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/predict", d.baseURL)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling doctr service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("doctr service error (status %d): %s", resp.StatusCode, string(body))
	}

	var predictResp doctrPredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&predictResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return predictResp.Pages, nil
}

// Detector returns the detection architecture name.
func (d *DocTR) Detector() string { return d.det }

// Recognizer returns the recognition architecture name.
func (d *DocTR) Recognizer() string { return d.reco }

// Family names the backend implementation.
func (d *DocTR) Family() string { return "pytorch" }

// Close closes the client (no-op for HTTP).
func (d *DocTR) Close() error { return nil }
