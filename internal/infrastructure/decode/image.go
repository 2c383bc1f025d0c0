package decode

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/carebridge/carechat/internal/core/domain"
)

// decodeImage parses a single raster image and re-encodes it to PNG so the
// OCR engine sees one uniform format regardless of what was uploaded.
func decodeImage(data []byte) ([]domain.Page, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %q image: %w", format, err)
	}

	encoded, err := encodePNG(img)
	if err != nil {
		return nil, err
	}

	return []domain.Page{{
		Image:       encoded,
		ImageFormat: "png",
	}}, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
