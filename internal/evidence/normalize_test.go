package evidence

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"testing"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stashkeeper/internal/models"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 10 {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestNormalizeReencodesAsWebP(t *testing.T) {
	out, contentType, err := Normalize(pngBytes(t, 640, 480))
	require.NoError(t, err)
	assert.Equal(t, "image/webp", contentType)

	decoded, err := webp.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 640, decoded.Bounds().Dx())
	assert.Equal(t, 480, decoded.Bounds().Dy())
}

func TestNormalizeDownscalesLargeImages(t *testing.T) {
	out, _, err := Normalize(pngBytes(t, 4096, 1024))
	require.NoError(t, err)

	decoded, err := webp.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 2048, decoded.Bounds().Dx())
	assert.Equal(t, 512, decoded.Bounds().Dy())
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	cases := map[string][]byte{
		"empty":     {},
		"non-image": []byte("just some text"),
		"oversize":  make([]byte, MaxUploadBytes+1),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := Normalize(data)
			var appErr *models.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, models.CodeValidation, appErr.Code)
		})
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ref, err := store.Put(context.Background(), []byte("payload"), "image/webp", "shot.webp")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "mem://"))

	data, ok := store.Get(ref)
	require.True(t, ok)
	assert.Equal(t, []byte("payload"), data)
}

func TestFilesystemStoreWritesFile(t *testing.T) {
	store, err := NewFilesystemStore(t.TempDir())
	require.NoError(t, err)

	ref, err := store.Put(context.Background(), []byte("payload"), "image/webp", "shot.webp")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(ref, "file://"))

	data, err := os.ReadFile(strings.TrimPrefix(ref, "file://"))
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
	assert.True(t, strings.HasSuffix(ref, ".webp"))
}
