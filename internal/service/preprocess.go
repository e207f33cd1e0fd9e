package service

import (
	"image"
	"log"
	"math"

	"github.com/disintegration/imaging"
)

// maxImageDim is the bounding box images are capped to before upload.
// Smaller images are never upscaled.
const maxImageDim = 1024

// EnhanceImage normalizes a photo for analysis: RGB conversion, size cap,
// then lighting, contrast, saturation and sharpness corrections tuned for
// dim or blurry food photos. Enhancement failure is never fatal; the caller
// always gets at least the RGB size-capped image back.
func EnhanceImage(img image.Image) *image.NRGBA {
	base := normalizeSize(img)

	enhanced, ok := tryEnhance(base)
	if !ok {
		return base
	}
	return enhanced
}

// normalizeSize converts to RGB and downscales to the bounding box.
func normalizeSize(img image.Image) *image.NRGBA {
	bounds := img.Bounds()
	if bounds.Dx() > maxImageDim || bounds.Dy() > maxImageDim {
		return imaging.Fit(img, maxImageDim, maxImageDim, imaging.Lanczos)
	}
	return imaging.Clone(img)
}

func tryEnhance(base *image.NRGBA) (result *image.NRGBA, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Preprocessor] enhancement failed, using unenhanced image: %v", r)
			result, ok = nil, false
		}
	}()

	mean, stddev := lumaStats(base)

	img := base
	switch {
	case mean < 60:
		// Very dark photo: strong but bounded brightening to avoid
		// blowing out highlights.
		img = imaging.AdjustBrightness(img, 35)
	case mean < 90:
		img = imaging.AdjustBrightness(img, 15)
	}

	// Low measured contrast gets a proportionally stronger correction.
	contrastBoost := math.Min(25, math.Max(0, (55-stddev)*0.6))
	if contrastBoost > 0 {
		img = imaging.AdjustContrast(img, contrastBoost)
	}

	img = imaging.AdjustSaturation(img, 15)

	// Two-stage sharpen to counteract phone-camera blur.
	img = imaging.Sharpen(img, 0.8)
	img = imaging.Sharpen(img, 0.5)

	// Light blur plus resharpen smooths sensor noise without undoing the
	// sharpening gain.
	img = imaging.Blur(img, 0.4)
	img = imaging.Sharpen(img, 0.3)

	return img, true
}

// lumaStats returns the mean and standard deviation of pixel luminance,
// sampled on a grid to keep large images cheap.
func lumaStats(img *image.NRGBA) (mean, stddev float64) {
	bounds := img.Bounds()
	step := 4
	var sum, sumSq float64
	var n int

	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			i := img.PixOffset(x, y)
			r := float64(img.Pix[i])
			g := float64(img.Pix[i+1])
			b := float64(img.Pix[i+2])
			luma := 0.299*r + 0.587*g + 0.114*b
			sum += luma
			sumSq += luma * luma
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}

	mean = sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance > 0 {
		stddev = math.Sqrt(variance)
	}
	return mean, stddev
}
