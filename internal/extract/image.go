package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageExtractor reports image dimensions as text and passes the bytes
// through as an inline payload. It does not OCR.
type ImageExtractor struct{}

func (ImageExtractor) Extract(_ context.Context, data []byte, mediaType string) (Result, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("decode image header: %w", err)
	}
	return Result{
		Text:      fmt.Sprintf("Image file: %dx%d", cfg.Width, cfg.Height),
		PageCount: intPtr(1),
		Image: &ImagePayload{
			Base64:   base64.StdEncoding.EncodeToString(data),
			MimeType: mediaType,
		},
	}, nil
}
