package thumbnail

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"math"

	"thumbsync/internal/logging"

	// Image format decoders
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// MaxImageDimension is the largest width or height kept after decoding.
	// Larger sources are downscaled once before any size is rendered.
	MaxImageDimension = 4096

	// MaxImagePixels caps the decoded working image (~80MB in NRGBA).
	MaxImagePixels = 20_000_000

	// MaxSourcePixels is the largest original accepted for decoding
	// (~400MB in NRGBA). The header is checked before any pixel is decoded.
	MaxSourcePixels = 100_000_000
)

var (
	// ErrInvalidImage means the original could not be decoded or has no pixels.
	ErrInvalidImage = errors.New("invalid image")

	// ErrImageTooLarge means the original's header declares more than
	// MaxSourcePixels pixels.
	ErrImageTooLarge = errors.New("image too large")
)

// ImageDimensions holds image width and height
type ImageDimensions struct {
	Width  int
	Height int
}

// GetImageDimensions reads the header only.
func GetImageDimensions(data []byte) (*ImageDimensions, error) {
	config, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return &ImageDimensions{Width: config.Width, Height: config.Height}, nil
}

// decodeConstrained decodes data with EXIF orientation applied and
// downscales the result to fit MaxImageDimension and MaxImagePixels.
func decodeConstrained(data []byte, name string) (image.Image, error) {
	return decodeWithLimit(data, name, MaxSourcePixels)
}

func decodeWithLimit(data []byte, name string, maxSourcePixels int64) (image.Image, error) {
	dims, err := GetImageDimensions(data)
	if err != nil {
		logging.Debug("Could not read image header for %s: %v, decoding anyway", name, err)
	} else {
		if dims.Width <= 0 || dims.Height <= 0 {
			return nil, fmt.Errorf("%w: %s has zero dimensions", ErrInvalidImage, name)
		}
		pixels := int64(dims.Width) * int64(dims.Height)
		if pixels > maxSourcePixels {
			return nil, fmt.Errorf("%w: %s is %dx%d (%d pixels, limit %d)", ErrImageTooLarge, name, dims.Width, dims.Height, pixels, maxSourcePixels)
		}
		logging.Debug("Image %s dimensions: %dx%d (%d pixels)", name, dims.Width, dims.Height, pixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidImage, name, err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %s has zero dimensions", ErrInvalidImage, name)
	}

	targetWidth, targetHeight := constrain(width, height, MaxImageDimension, MaxImagePixels)
	if targetWidth == width && targetHeight == height {
		return img, nil
	}

	logging.Info("Constraining large image %s from %dx%d to %dx%d", name, width, height, targetWidth, targetHeight)
	return imaging.Resize(img, targetWidth, targetHeight, imaging.Lanczos), nil
}

// constrain scales (width, height) down, preserving aspect ratio, until
// both sides are within maxDimension and the area is within maxPixels.
func constrain(width, height, maxDimension, maxPixels int) (int, int) {
	targetWidth, targetHeight := width, height

	if width > maxDimension || height > maxDimension {
		if width > height {
			targetWidth = maxDimension
			targetHeight = height * maxDimension / width
		} else {
			targetHeight = maxDimension
			targetWidth = width * maxDimension / height
		}
	}

	if pixels := targetWidth * targetHeight; pixels > maxPixels {
		scale := math.Sqrt(float64(maxPixels) / float64(pixels))
		targetWidth = int(float64(targetWidth) * scale)
		targetHeight = int(float64(targetHeight) * scale)
	}

	return max(targetWidth, 1), max(targetHeight, 1)
}

// resizeToFit fits img inside width x height without upscaling. A zero
// bound leaves that axis unconstrained.
func resizeToFit(img image.Image, width, height int) image.Image {
	bounds := img.Bounds()
	if width <= 0 {
		width = bounds.Dx()
	}
	if height <= 0 {
		height = bounds.Dy()
	}
	return imaging.Fit(img, width, height, imaging.Lanczos)
}
