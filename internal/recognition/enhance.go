package recognition

import (
	"image"

	"github.com/disintegration/imaging"
)

// upscaleBelow is the long-side threshold under which enhanced pages are
// lightly upscaled; small crops lose too much detail for recognition.
const upscaleBelow = 1200

// enhanceForOCR improves low-contrast or blurred pages before a retry pass:
// grayscale, contrast and brightness boost, sharpening, gamma correction, and
// a light upscale for small images.
func enhanceForOCR(img image.Image) image.Image {
	out := imaging.Grayscale(img)
	out = imaging.AdjustContrast(out, 30)
	out = imaging.Sharpen(out, 1.5)
	out = imaging.AdjustBrightness(out, 10)
	out = imaging.AdjustGamma(out, 1.2)

	bounds := out.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < upscaleBelow && h < upscaleBelow {
		out = imaging.Resize(out, w*3/2, 0, imaging.Lanczos)
	}
	return out
}

// enhanceAll applies enhanceForOCR to every page.
func enhanceAll(pages []image.Image) []image.Image {
	enhanced := make([]image.Image, len(pages))
	for i, p := range pages {
		enhanced[i] = enhanceForOCR(p)
	}
	return enhanced
}

// rotateAll rotates every page counter-clockwise by the given angle,
// which must be 90 or 270.
func rotateAll(pages []image.Image, angle int) []image.Image {
	rotated := make([]image.Image, len(pages))
	for i, p := range pages {
		if angle == 90 {
			rotated[i] = imaging.Rotate90(p)
		} else {
			rotated[i] = imaging.Rotate270(p)
		}
	}
	return rotated
}
