package artwork

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // GIF decoder
	"image/jpeg"
	_ "image/png" // PNG decoder
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // WebP decoder
)

// DefaultThumbSize is the bounding box for generated thumbnails, in pixels.
const DefaultThumbSize = 300

// jpegQuality for encoded thumbnails.
const jpegQuality = 85

// ErrUnsupportedImage reports payloads whose magic bytes match no
// supported image format.
var ErrUnsupportedImage = errors.New("unsupported image format")

// Thumbnailer scales embedded song images down to display size. The
// input and output are base64 data, so thumbnails travel inline with
// the song they belong to.
type Thumbnailer struct {
	maxSize int
}

// NewThumbnailer creates a thumbnailer with the given bounding box.
// Sizes below 1 fall back to DefaultThumbSize.
func NewThumbnailer(maxSize int) *Thumbnailer {
	if maxSize < 1 {
		maxSize = DefaultThumbSize
	}

	return &Thumbnailer{maxSize: maxSize}
}

// ThumbnailDataURL decodes a base64 image (with or without a data: URL
// prefix), scales it to fit the bounding box and returns it as a JPEG
// data URL.
func (t *Thumbnailer) ThumbnailDataURL(imageData string) (string, error) {
	raw, err := decodeBase64Image(imageData)
	if err != nil {
		return "", err
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to decode image: %w", err)
	}

	log.Debug().
		Str("format", format).
		Int("size", t.maxSize).
		Msg("Generating thumbnail")

	thumb := resize(img, t.maxSize)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, thumb, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("failed to encode thumbnail: %w", err)
	}

	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decodeBase64Image strips an optional data: URL prefix and decodes the
// base64 payload.
func decodeBase64Image(imageData string) ([]byte, error) {
	payload := imageData
	if strings.HasPrefix(payload, "data:") {
		idx := strings.Index(payload, ",")
		if idx < 0 {
			return nil, fmt.Errorf("malformed image data URL")
		}
		payload = payload[idx+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image data: %w", err)
	}

	if DetectMimeType(raw) == "application/octet-stream" {
		return nil, ErrUnsupportedImage
	}

	return raw, nil
}

// resize scales an image to fit within the given size while maintaining
// aspect ratio. Images already inside the box pass through unscaled.
func resize(src image.Image, maxSize int) image.Image {
	bounds := src.Bounds()
	srcW := bounds.Dx()
	srcH := bounds.Dy()

	if srcW <= maxSize && srcH <= maxSize {
		return src
	}

	var newW, newH int
	if srcW > srcH {
		newW = maxSize
		newH = int(float64(srcH) * float64(maxSize) / float64(srcW))
	} else {
		newH = maxSize
		newW = int(float64(srcW) * float64(maxSize) / float64(srcH))
	}

	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))

	// CatmullRom for quality; thumbnails are generated once per song.
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	return dst
}
