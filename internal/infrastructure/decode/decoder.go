package decode

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/carechat/internal/core/domain"
)

const (
	mimePDF  = "application/pdf"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// rasterMimes lists the image subtypes with a registered decoder. Anything
// else under image/ (svg, heic) is unsupported, not corrupt.
var rasterMimes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/tiff": true,
	"image/webp": true,
}

// Decoder normalizes uploaded files into ordered page sequences. Plain
// images become a single page, PDFs one page per PDF page, spreadsheets
// one page per sheet.
type Decoder struct{}

func NewDecoder() *Decoder {
	return &Decoder{}
}

func (d *Decoder) Decode(ctx context.Context, filename, mimeType string, data []byte) (*domain.Document, error) {
	const op = "decode.Decode"

	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrCorruptInput, op, fmt.Errorf("empty upload"))
	}

	mime := resolveMime(filename, mimeType, data)

	var (
		pages []domain.Page
		err   error
	)
	switch {
	case rasterMimes[mime]:
		pages, err = decodeImage(data)
	case mime == mimePDF:
		pages, err = decodePDF(ctx, data)
	case mime == mimeXLSX:
		pages, err = decodeWorkbook(data)
	default:
		return nil, domain.WrapError(domain.ErrUnsupportedFormat, op, fmt.Errorf("mime type %q", mime))
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrCorruptInput, op, err)
	}
	if len(pages) == 0 {
		return nil, domain.WrapError(domain.ErrCorruptInput, op, fmt.Errorf("no pages in %q payload", mime))
	}

	for i := range pages {
		pages[i].Index = i
	}

	return &domain.Document{
		ID:         uuid.NewString(),
		Filename:   filename,
		MimeType:   mime,
		Pages:      pages,
		UploadedAt: time.Now().UTC(),
	}, nil
}

// resolveMime trusts the declared type when it is specific, then falls back
// to content sniffing and the filename extension. Browsers routinely send
// application/octet-stream for drag-and-drop uploads.
func resolveMime(filename, declared string, data []byte) string {
	declared = strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}

	sniffed := http.DetectContentType(data)
	if i := strings.IndexByte(sniffed, ';'); i >= 0 {
		sniffed = strings.TrimSpace(sniffed[:i])
	}
	if sniffed != "application/octet-stream" && sniffed != "text/plain" {
		// DetectContentType reports xlsx containers as application/zip.
		if sniffed == "application/zip" && extMime(filename) == mimeXLSX {
			return mimeXLSX
		}
		return sniffed
	}

	if m := extMime(filename); m != "" {
		return m
	}
	return sniffed
}

func extMime(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".bmp":
		return "image/bmp"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return mimePDF
	case ".xlsx":
		return mimeXLSX
	default:
		return ""
	}
}
