package domain

import "time"

// Page is one renderable unit of an uploaded document. A page either carries
// an encoded image payload that still needs OCR, or text that was already
// present in the source (PDF text layer, spreadsheet cells).
type Page struct {
	Index       int    `json:"index"`
	Image       []byte `json:"-"`
	ImageFormat string `json:"image_format,omitempty"`
	Text        string `json:"text,omitempty"`
	HasText     bool   `json:"has_text"`
}

// Document is an uploaded file normalized to an ordered page sequence.
// It lives only for the owning session.
type Document struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	MimeType   string    `json:"mime_type"`
	Pages      []Page    `json:"pages"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// PageText is the recognition output for a single page. Failed pages keep
// their slot with empty text so output stays page-aligned.
type PageText struct {
	PageIndex  int     `json:"page_index"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Failed     bool    `json:"failed"`
	Error      string  `json:"error,omitempty"`
}

// ExtractedText is the immutable per-document OCR result, computed at most
// once per session and cached until a new document replaces it.
type ExtractedText struct {
	DocumentID string     `json:"document_id"`
	Pages      []PageText `json:"pages"`
	Confidence float64    `json:"confidence"`
}

// Combined joins the per-page text blocks in page order, capped at maxChars
// runes. maxChars <= 0 means no cap.
func (e *ExtractedText) Combined(maxChars int) string {
	var out []rune
	for _, page := range e.Pages {
		if page.Text == "" {
			continue
		}
		if len(out) > 0 {
			out = append(out, ' ')
		}
		out = append(out, []rune(page.Text)...)
		if maxChars > 0 && len(out) >= maxChars {
			return string(out[:maxChars])
		}
	}
	return string(out)
}

// FailedPages lists the indexes of pages flagged by the extractor.
func (e *ExtractedText) FailedPages() []int {
	out := make([]int, 0)
	for _, page := range e.Pages {
		if page.Failed {
			out = append(out, page.PageIndex)
		}
	}
	return out
}
