package receipt

import (
	"fmt"
	"os"
	"path/filepath"
)

// Spool defines the interface for staging uploaded files on disk so the
// recognition pipeline can read them by path.
type Spool interface {
	// Save stages an upload under its original filename and returns the
	// absolute path of the staged copy.
	Save(filename string, data []byte) (string, error)

	// Remove deletes a staged file.
	Remove(path string) error
}

// LocalSpool implements the Spool interface using a local directory.
type LocalSpool struct {
	basePath string
}

// NewLocalSpool creates a new LocalSpool instance rooted at basePath.
func NewLocalSpool(basePath string) (*LocalSpool, error) {
	// Create directory if it doesn't exist
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating spool directory: %w", err)
	}

	return &LocalSpool{
		basePath: basePath,
	}, nil
}

// Save writes an upload into the spool directory. The original extension is
// preserved so the pipeline can pick the right loader.
func (l *LocalSpool) Save(filename string, data []byte) (string, error) {
	base := filepath.Base(filename)
	if base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("invalid filename: %q", filename)
	}

	f, err := os.CreateTemp(l.basePath, "upload-*"+filepath.Ext(base))
	if err != nil {
		return "", fmt.Errorf("creating spool file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("writing spool file: %w", err)
	}
	return f.Name(), nil
}

// Remove deletes a staged file from the spool.
func (l *LocalSpool) Remove(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting spool file: %w", err)
	}
	return nil
}
