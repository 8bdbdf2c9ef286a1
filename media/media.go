// Package media turns picked image files into the inline data URIs carried by messages
// and profiles.
package media

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/golang/glog"
)

const (
	MaxWidth    = 500
	MaxHeight   = 500
	JPEGQuality = 50

	// AvatarMaxSize bounds both sides of a profile photo.
	AvatarMaxSize = 300

	// MaxInput bounds the raw file read from disk.
	MaxInput = 20 << 20

	dataURIPrefix = "data:image/jpeg;base64,"
)

var ErrNotImage = errors.New("not an image")

// Encode downscales the image to fit MaxWidth x MaxHeight and re-encodes it as a
// JPEG data URI. Images already small enough keep their size.
func Encode(data []byte) (string, error) {
	return encode(data, MaxWidth, MaxHeight)
}

// EncodeAvatar is Encode for profile photos, fit to AvatarMaxSize x AvatarMaxSize.
func EncodeAvatar(data []byte) (string, error) {
	return encode(data, AvatarMaxSize, AvatarMaxSize)
}

func encode(data []byte, maxWidth, maxHeight int) (string, error) {
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return "", fmt.Errorf("%w: %s", ErrNotImage, mime.String())
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("decode %s: %w", mime.String(), err)
	}

	b := img.Bounds()
	if b.Dx() > maxWidth || b.Dy() > maxHeight {
		img = imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return "", fmt.Errorf("encode jpeg: %w", err)
	}
	glog.V(5).Infof("media: %s %dx%d, %d bytes -> %d bytes jpeg",
		mime.String(), b.Dx(), b.Dy(), len(data), buf.Len())

	return dataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// EncodeFile reads path and calls Encode.
func EncodeFile(path string) (string, error) {
	return encodeFile(path, Encode)
}

// EncodeAvatarFile reads path and calls EncodeAvatar.
func EncodeAvatarFile(path string) (string, error) {
	return encodeFile(path, EncodeAvatar)
}

func encodeFile(path string, enc func([]byte) (string, error)) (string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if st.Size() > MaxInput {
		return "", fmt.Errorf("%s: file too large, %d bytes", path, st.Size())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	s, err := enc(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Decode returns the raw bytes of a data URI.
func Decode(uri string) ([]byte, error) {
	i := strings.Index(uri, ";base64,")
	if !strings.HasPrefix(uri, "data:") || i < 0 {
		return nil, errors.New("not a base64 data uri")
	}
	return base64.StdEncoding.DecodeString(uri[i+len(";base64,"):])
}
