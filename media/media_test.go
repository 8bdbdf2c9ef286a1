package media

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func decodedSize(t *testing.T, uri string) (int, int) {
	raw, err := Decode(uri)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	return cfg.Width, cfg.Height
}

func TestEncodeDownscales(t *testing.T) {
	uri, err := Encode(pngBytes(t, 1000, 400))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "data:image/jpeg;base64,"))

	w, h := decodedSize(t, uri)
	assert.Equal(t, 500, w)
	assert.Equal(t, 200, h)
}

func TestEncodeKeepsSmallImage(t *testing.T) {
	uri, err := Encode(pngBytes(t, 40, 30))
	require.NoError(t, err)
	w, h := decodedSize(t, uri)
	assert.Equal(t, 40, w)
	assert.Equal(t, 30, h)
}

func TestEncodeRejectsNonImage(t *testing.T) {
	_, err := Encode([]byte("hello, plain text"))
	assert.ErrorIs(t, err, ErrNotImage)
}

func TestEncodeFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(p, pngBytes(t, 600, 600), 0600))

	uri, err := EncodeFile(p)
	require.NoError(t, err)
	w, h := decodedSize(t, uri)
	assert.Equal(t, 500, w)
	assert.Equal(t, 500, h)

	_, err = EncodeFile(filepath.Join(dir, "missing.png"))
	assert.Error(t, err)
}

func TestEncodeAvatar(t *testing.T) {
	uri, err := EncodeAvatar(pngBytes(t, 1000, 400))
	require.NoError(t, err)
	w, h := decodedSize(t, uri)
	assert.Equal(t, 300, w)
	assert.Equal(t, 120, h)

	p := filepath.Join(t.TempDir(), "me.png")
	require.NoError(t, os.WriteFile(p, pngBytes(t, 400, 800), 0600))
	uri, err = EncodeAvatarFile(p)
	require.NoError(t, err)
	w, h = decodedSize(t, uri)
	assert.Equal(t, 150, w)
	assert.Equal(t, 300, h)
}

func TestDecodeInvalid(t *testing.T) {
	_, err := Decode("http://x/a.jpg")
	assert.Error(t, err)
}
