package decode

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	ledongthuc "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/carebridge/carechat/internal/core/domain"
)

// decodePDF turns a PDF into one page per PDF page. Pages with a usable
// text layer carry that text directly; scanned pages carry their largest
// embedded image so the OCR engine can recognize them.
func decodePDF(ctx context.Context, data []byte) ([]domain.Page, error) {
	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	if pdfCtx.PageCount == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	texts := textLayer(data, pdfCtx.PageCount)

	pages := make([]domain.Page, pdfCtx.PageCount)
	needImages := false
	for pageNr := 1; pageNr <= pdfCtx.PageCount; pageNr++ {
		i := pageNr - 1
		if text := strings.TrimSpace(texts[i]); text != "" {
			pages[i] = domain.Page{Text: text, HasText: true}
			continue
		}
		if len(pdfcpu.ImageObjNrs(pdfCtx, pageNr)) > 0 {
			needImages = true
		}
	}
	if !needImages {
		return pages, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	images, err := api.ExtractImagesRaw(bytes.NewReader(data), nil, conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu extract images: %w", err)
	}
	for _, pageImages := range images {
		for _, img := range pageImages {
			i := img.PageNr - 1
			if i < 0 || i >= len(pages) || pages[i].HasText {
				continue
			}
			raw, err := io.ReadAll(img)
			if err != nil || len(raw) == 0 {
				continue
			}
			// Keep the largest image on the page; scanned PDFs usually hold
			// one full-page scan plus small decorations.
			if len(raw) > len(pages[i].Image) {
				pages[i].Image = raw
				pages[i].ImageFormat = img.FileType
			}
		}
	}

	return pages, nil
}

// textLayer reads the embedded text of every page. The result always has
// pageCount entries; pages the parser cannot handle stay empty and fall
// through to the image path.
func textLayer(data []byte, pageCount int) []string {
	texts := make([]string, pageCount)

	reader, err := ledongthuc.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return texts
	}

	n := reader.NumPage()
	if n > pageCount {
		n = pageCount
	}
	for pageNr := 1; pageNr <= n; pageNr++ {
		texts[pageNr-1] = pageText(reader, pageNr)
	}
	return texts
}

func pageText(reader *ledongthuc.Reader, pageNr int) (text string) {
	// The parser panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	page := reader.Page(pageNr)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}
