package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/zombor/receipt-ocr/internal/receipt"
	"github.com/zombor/receipt-ocr/internal/recognition"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("receiptocr")
	var (
		language      = fs.StringLong("language", "en", "Document language hint")
		minConfidence = fs.Float64Long("min-confidence", recognition.DefaultMinConfidence, "Minimum word confidence to retain (0-1)")
		pageLimit     = fs.IntLong("page-limit", 10, "Maximum PDF pages to process")
		returnText    = fs.BoolLong("return-text", "Include raw recognized text in output")
		returnBlocks  = fs.BoolLong("return-blocks", "Include raw layout blocks in output")
		output        = fs.StringLong("output", "", "Write JSON output to file instead of stdout")
		doctrURL      = fs.StringLong("doctr-url", "http://localhost:8090", "docTR recognition service base URL")
		azureEndpoint = fs.StringLong("azure-endpoint", "", "Azure Computer Vision endpoint (optional fallback)")
		azureKey      = fs.StringLong("azure-key", "", "Azure Computer Vision API key (or set AZURE_CV_KEY env var)")
		geminiKey     = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel   = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		logLevel      = fs.StringLong("log-level", "info", "Log level: debug, info, warn, error")
		showVersion   = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_OCR"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	configureLogging(*logLevel)

	files := fs.GetArgs()
	if len(files) == 0 {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintln(os.Stderr, "error: at least one file is required")
		os.Exit(1)
	}
	if *minConfidence < 0 || *minConfidence > 1 {
		fmt.Fprintln(os.Stderr, "error: --min-confidence must be between 0 and 1")
		os.Exit(1)
	}

	apiKey := *azureKey
	if apiKey == "" {
		apiKey = os.Getenv("AZURE_CV_KEY")
	}
	gemKey := *geminiKey
	if gemKey == "" {
		gemKey = os.Getenv("GEMINI_API_KEY")
	}

	orchestrator, err := recognition.NewFromConfig(recognition.Config{
		DocTRURL:      *doctrURL,
		AzureEndpoint: *azureEndpoint,
		AzureKey:      apiKey,
		GeminiAPIKey:  gemKey,
		GeminiModel:   *geminiModel,
	})
	if err != nil {
		slog.Error("Failed to initialize recognition backends", "error", err)
		os.Exit(1)
	}

	service := receipt.NewService(orchestrator)
	opts := receipt.Options{
		Language:      *language,
		MinConfidence: minConfidence,
		PageLimit:     *pageLimit,
		ReturnText:    *returnText,
		ReturnBlocks:  *returnBlocks,
	}

	ctx := context.Background()
	var payload any
	failed := false

	if len(files) == 1 {
		doc, err := service.ProcessFile(ctx, files[0], opts)
		if err != nil {
			slog.Error("Failed to process file", "file", files[0], "error", err)
			os.Exit(1)
		}
		payload = doc
	} else {
		batch, err := service.ProcessBatch(ctx, files, opts)
		if err != nil {
			slog.Error("Failed to process batch", "error", err)
			os.Exit(1)
		}
		slog.Info("Batch complete",
			"job_id", batch.JobID,
			"successful", batch.Summary.Successful,
			"failed", batch.Summary.Failed,
		)
		payload = batch
		failed = batch.Summary.Failed > 0
	}

	if err := writeJSON(payload, *output); err != nil {
		slog.Error("Failed to write output", "error", err)
		os.Exit(1)
	}
	if failed {
		os.Exit(1)
	}
}

func writeJSON(payload any, path string) error {
	out := os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func configureLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
