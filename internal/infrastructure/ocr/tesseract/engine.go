package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/carebridge/carechat/internal/core/ports"
)

// Engine recognizes page images through a local Tesseract installation.
// Each call uses a fresh gosseract client: the client is not safe for
// concurrent use and the page workers run in parallel.
type Engine struct {
	language      string
	clientFactory func() *gosseract.Client
}

func NewEngine(language string) *Engine {
	if language == "" {
		language = "eng"
	}
	return &Engine{
		language:      language,
		clientFactory: gosseract.NewClient,
	}
}

func (e *Engine) Recognize(ctx context.Context, image []byte) (ports.OCRResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.OCRResult{}, err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(e.language); err != nil {
		return ports.OCRResult{}, fmt.Errorf("set language: %w", err)
	}
	if err := c.SetImageFromBytes(image); err != nil {
		return ports.OCRResult{}, fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return ports.OCRResult{}, fmt.Errorf("recognize text: %w", err)
	}

	return ports.OCRResult{
		Text:       strings.TrimSpace(text),
		Confidence: wordConfidence(c),
	}, nil
}

// wordConfidence averages per-word confidence, scaled to [0,1]. Zero means
// Tesseract reported no words, which the extractor treats as a blank page
// rather than a failure.
func wordConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence / 100.0
	}
	return sum / float64(len(boxes))
}
