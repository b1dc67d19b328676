package receipt

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/zombor/receipt-ocr/internal/recognition"
)

// maxFormSize bounds the multipart form. Phone photos of long receipts run
// several megabytes each.
const maxFormSize = int64(16 << 20) // 16MB

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// jsonError writes a JSON error body with CORS headers set
func jsonError(w http.ResponseWriter, message string, code int) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}

// handleHealth reports service liveness
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

// parseOptions reads processing parameters from the multipart form fields
func parseOptions(r *http.Request) (Options, error) {
	opts := Options{
		Language:   r.FormValue("language"),
		ReturnText: r.FormValue("return_text") == "true",
	}
	opts.ReturnBlocks = r.FormValue("return_blocks") == "true"

	if v := r.FormValue("min_confidence"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return opts, errors.New("min_confidence must be a number between 0 and 1")
		}
		opts.MinConfidence = &f
	}
	if v := r.FormValue("page_limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return opts, errors.New("page_limit must be a positive integer")
		}
		opts.PageLimit = n
	}
	return opts, nil
}

// spoolUpload stages one multipart file on disk and returns its path
func (s *Server) spoolUpload(header *multipart.FileHeader) (string, error) {
	f, err := header.Open()
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	return s.spool.Save(header.Filename, data)
}

// handleOCR processes a single uploaded file
func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		errorMsg := "Error parsing form"
		if err.Error() == "http: request body too large" {
			errorMsg = "File is too large. Maximum size is 16MB."
		}
		jsonError(w, errorMsg, http.StatusBadRequest)
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Error("Error getting file from form", "error", err)
		jsonError(w, "No file provided", http.StatusBadRequest)
		return
	}
	f.Close()

	opts, err := parseOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if !recognition.SupportedExtension(header.Filename) {
		jsonError(w, "Unsupported file type: "+header.Filename, http.StatusBadRequest)
		return
	}

	path, err := s.spoolUpload(header)
	if err != nil {
		slog.Error("Error staging upload", "filename", header.Filename, "error", err)
		jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
		return
	}
	defer s.spool.Remove(path)

	doc, err := s.service.ProcessFile(r.Context(), path, opts)
	if err != nil {
		slog.Error("Error processing upload", "filename", header.Filename, "error", err)
		if errors.Is(err, recognition.ErrUnsupportedType) {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// Report the client's filename, not the spool path
	doc.Receipt.SourceFilename = header.Filename
	doc.Upload.OriginalFilename = header.Filename

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// handleBatch processes multiple uploaded files in one request
func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormSize); err != nil {
		slog.Error("Error parsing multipart form", "error", err)
		jsonError(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = r.MultipartForm.File["files"]
	}
	if len(headers) == 0 {
		jsonError(w, "No files provided", http.StatusBadRequest)
		return
	}

	opts, err := parseOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	paths := make([]string, 0, len(headers))
	names := make(map[string]string, len(headers))
	for _, header := range headers {
		path, err := s.spoolUpload(header)
		if err != nil {
			slog.Error("Error staging upload", "filename", header.Filename, "error", err)
			jsonError(w, "Error reading file. Please try again.", http.StatusInternalServerError)
			for _, p := range paths {
				s.spool.Remove(p)
			}
			return
		}
		paths = append(paths, path)
		// Documents carry the spool basename, batch errors the full path
		names[path] = header.Filename
		names[filepath.Base(path)] = header.Filename
	}
	defer func() {
		for _, p := range paths {
			s.spool.Remove(p)
		}
	}()

	batch, err := s.service.ProcessBatch(r.Context(), paths, opts)
	if err != nil {
		slog.Error("Error processing batch", "error", err)
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Report the clients' filenames, not the spool paths
	for i := range batch.Results {
		name := names[batch.Results[i].Receipt.SourceFilename]
		if name == "" {
			continue
		}
		batch.Results[i].Receipt.SourceFilename = name
		batch.Results[i].Upload.OriginalFilename = name
	}
	for i := range batch.Errors {
		if name := names[batch.Errors[i].File]; name != "" {
			batch.Errors[i].File = name
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(batch); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}
