package recognition

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
	_ "golang.org/x/image/bmp"  // Register BMP decoder
	_ "golang.org/x/image/tiff" // Register TIFF decoder
)

// ErrUnsupportedType marks a file whose extension is outside the whitelist.
// It is an input error: fatal for the file, never recoverable by fallbacks.
var ErrUnsupportedType = errors.New("unsupported file type")

// maxPageSide bounds page dimensions before recognition; larger pages are
// downscaled to keep inference time predictable.
const maxPageSide = 2000

// pdfRenderDPI is the rasterization density for PDF pages.
const pdfRenderDPI = 200

// imageExtensions lists the directly decodable image types.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tiff": true,
	".bmp":  true,
	".heic": true,
	".heif": true,
}

// SupportedExtension reports whether the filename carries a processable
// extension.
func SupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".pdf" || imageExtensions[ext]
}

// LoadPages reads an image or PDF file and returns its pages as pre-scaled
// images, rendering at most pageLimit pages for multi-page documents.
func LoadPages(path string, pageLimit int) ([]image.Image, error) {
	if pageLimit < 1 {
		pageLimit = 1
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case ext == ".pdf":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading file: %w", err)
		}
		return pdfPages(data, pageLimit)
	case imageExtensions[ext]:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading file: %w", err)
		}
		img, err := decodeImage(data)
		if err != nil {
			return nil, err
		}
		return []image.Image{prescale(img)}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
	}
}

// pdfPages renders up to pageLimit PDF pages to images.
func pdfPages(pdfData []byte, pageLimit int) ([]image.Image, error) {
	doc, err := fitz.NewFromMemory(pdfData)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	count := doc.NumPage()
	if count > pageLimit {
		count = pageLimit
	}

	pages := make([]image.Image, 0, count)
	for i := 0; i < count; i++ {
		img, err := doc.ImageDPI(i, pdfRenderDPI)
		if err != nil {
			return nil, fmt.Errorf("rendering PDF page %d: %w", i+1, err)
		}
		pages = append(pages, prescale(img))
	}
	return pages, nil
}

// decodeImage decodes a single image, special-casing HEIC/HEIF which the
// standard image package does not handle.
func decodeImage(data []byte) (image.Image, error) {
	if isHEICFormat(data) {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// isHEICFormat checks the ftyp box brands HEIC/HEIF files start with.
func isHEICFormat(data []byte) bool {
	if len(data) < 12 {
		return false
	}
	if string(data[4:8]) != "ftyp" {
		return false
	}
	brand := string(data[8:12])
	return brand == "heic" || brand == "heif" || brand == "mif1" || brand == "msf1"
}

// prescale downscales pages whose long side exceeds maxPageSide.
func prescale(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxPageSide && h <= maxPageSide {
		return img
	}
	return imaging.Fit(img, maxPageSide, maxPageSide, imaging.Lanczos)
}
