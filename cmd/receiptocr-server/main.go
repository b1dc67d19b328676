package main

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

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

	fs := ff.NewFlagSet("receiptocr-server")
	var (
		port          = fs.IntLong("port", 8080, "HTTP server port")
		host          = fs.StringLong("host", "", "HTTP server bind address")
		spoolPath     = fs.StringLong("spool", os.TempDir(), "Directory for staging uploads")
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

	apiKey := *azureKey
	if apiKey == "" {
		apiKey = os.Getenv("AZURE_CV_KEY")
	}
	gemKey := *geminiKey
	if gemKey == "" {
		gemKey = os.Getenv("GEMINI_API_KEY")
	}

	slog.Info("Initializing recognition backends...", "doctr_url", *doctrURL)
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

	slog.Info("Initializing spool...", "path", *spoolPath)
	spool, err := receipt.NewLocalSpool(*spoolPath)
	if err != nil {
		slog.Error("Failed to initialize spool", "error", err)
		os.Exit(1)
	}

	service := receipt.NewService(orchestrator)
	server := receipt.NewServer(service, spool)

	// Start server in goroutine
	addr := fmt.Sprintf("%s:%d", *host, *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost:%d", *port))

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
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
