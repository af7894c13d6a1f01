// Package imagecodec converts images between the formats the Horde accepts
// and the files written to disk.
package imagecodec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/webp"
)

// SourceQuality is the JPEG quality used for uploaded source images and masks.
const SourceQuality = 95

// EncodeSource decodes an image in any registered format (PNG, JPEG, GIF,
// WebP) and re-encodes it for upload. Opaque images become JPEG at the given
// quality. Images with transparency are kept as PNG so outpainting and
// inpainting areas survive.
func EncodeSource(data []byte, quality int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	buf := new(bytes.Buffer)
	if hasTransparency(img) {
		if err := png.Encode(buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return buf.Bytes(), nil
	}
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeSourceFile reads path and returns the upload encoding as base64 text.
func EncodeSourceFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	encoded, err := EncodeSource(data, SourceQuality)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(encoded), nil
}

// DecodeBase64 decodes inline image text as returned by the status endpoint.
// Data URL prefixes are tolerated.
func DecodeBase64(text string) ([]byte, error) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "data:") {
		if idx := strings.Index(trimmed, ","); idx >= 0 {
			trimmed = trimmed[idx+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}
	return data, nil
}

// Dimensions reports the width and height of an encoded image.
func Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, fmt.Errorf("decode image config: %w", err)
	}
	return cfg.Width, cfg.Height, nil
}

// WriteImage decodes data and writes it to path in the format implied by the
// file extension. Extensions without an encoder (for example .webp) receive
// the bytes unchanged once they are confirmed to be a decodable image.
func WriteImage(path string, data []byte) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}

	buf := new(bytes.Buffer)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		err = png.Encode(buf, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(buf, img, &jpeg.Options{Quality: SourceQuality})
	case ".gif":
		err = gif.Encode(buf, img, nil)
	default:
		buf = bytes.NewBuffer(data)
	}
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Ext(path), err)
	}
	return WriteFile(path, buf.Bytes())
}

// WriteFile writes raw bytes to path, creating parent directories.
func WriteFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}

func hasTransparency(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if _, _, _, a := img.At(x, y).RGBA(); a != 0xffff {
				return true
			}
		}
	}
	return false
}
