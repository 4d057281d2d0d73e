package evidence

import (
	"bytes"
	"image"
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder

	"stashkeeper/internal/models"
)

const (
	// MaxUploadBytes bounds raw screenshot uploads.
	MaxUploadBytes = 10 << 20
	// maxEdge bounds the stored image's longer edge.
	maxEdge = 2048
	// webpQuality balances legibility of text in screenshots against size.
	webpQuality = 82
)

// Normalize validates an uploaded screenshot and re-encodes it as WebP,
// downscaling anything larger than the max edge. Rejects non-image payloads
// with a validation error so the caller can surface it directly.
func Normalize(data []byte) ([]byte, string, error) {
	if len(data) == 0 {
		return nil, "", models.NewValidationError("evidence upload is empty")
	}
	if len(data) > MaxUploadBytes {
		return nil, "", models.NewValidationError("evidence upload exceeds the size limit")
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", models.NewValidationError("evidence must be a JPEG, PNG, or WebP image")
	}

	img = downscale(img)

	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, &webp.Options{Quality: webpQuality}); err != nil {
		return nil, "", models.NewInternalError(err)
	}
	return buf.Bytes(), "image/webp", nil
}

func downscale(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxEdge && h <= maxEdge {
		return img
	}

	scale := float64(maxEdge) / float64(w)
	if h > w {
		scale = float64(maxEdge) / float64(h)
	}
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(w)*scale), int(float64(h)*scale)))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, xdraw.Over, nil)
	return dst
}
