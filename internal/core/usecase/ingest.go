package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/carebridge/carechat/internal/core/domain"
	"github.com/carebridge/carechat/internal/core/ports"
)

// ExtractLimits bounds the per-document extraction run.
type ExtractLimits struct {
	MinConfidence float64
	PageWorkers   int
	PageTimeout   time.Duration
}

// IngestUseCase attaches an upload to a session: decode to pages, recognize
// text page by page, persist the result. A page that cannot be recognized
// is flagged and left empty; the run only fails when no page yields text.
type IngestUseCase struct {
	sessions ports.SessionStore
	decoder  ports.DocumentDecoder
	engine   ports.OCREngine
	registry *Registry
	limits   ExtractLimits
	logger   *slog.Logger
}

func NewIngestUseCase(
	sessions ports.SessionStore,
	decoder ports.DocumentDecoder,
	engine ports.OCREngine,
	registry *Registry,
	limits ExtractLimits,
	logger *slog.Logger,
) *IngestUseCase {
	if limits.MinConfidence <= 0 {
		limits.MinConfidence = 0.40
	}
	if limits.PageWorkers <= 0 {
		limits.PageWorkers = 4
	}
	if limits.PageTimeout <= 0 {
		limits.PageTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestUseCase{
		sessions: sessions,
		decoder:  decoder,
		engine:   engine,
		registry: registry,
		limits:   limits,
		logger:   logger,
	}
}

func (uc *IngestUseCase) Attach(ctx context.Context, sessionID, filename, mimeType string, body io.Reader) (*domain.ExtractedText, error) {
	const op = "document attach"

	callCtx, release, err := uc.registry.Acquire(ctx, sessionID, op)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := uc.sessions.GetSession(callCtx, sessionID)
	if err != nil {
		return nil, err
	}
	previousState := session.State

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCorruptInput, op, fmt.Errorf("read upload: %w", err))
	}

	if err := uc.sessions.UpdateSession(callCtx, sessionID, domain.SessionIngesting, session.Email); err != nil {
		return nil, fmt.Errorf("mark ingesting: %w", err)
	}

	extracted, doc, err := uc.extract(callCtx, sessionID, filename, mimeType, data)
	if err != nil {
		uc.restoreState(sessionID, previousState, session.Email)
		return nil, err
	}

	if err := uc.sessions.SaveExtraction(callCtx, sessionID, doc, extracted); err != nil {
		uc.restoreState(sessionID, previousState, session.Email)
		return nil, fmt.Errorf("save extraction: %w", err)
	}

	uc.logger.Info("document extracted",
		"session_id", sessionID,
		"document_id", doc.ID,
		"pages", len(extracted.Pages),
		"failed_pages", len(extracted.FailedPages()),
		"confidence", extracted.Confidence,
	)
	return extracted, nil
}

func (uc *IngestUseCase) extract(ctx context.Context, sessionID, filename, mimeType string, data []byte) (*domain.ExtractedText, *domain.Document, error) {
	const op = "document extract"

	doc, err := uc.decoder.Decode(ctx, filename, mimeType, data)
	if err != nil {
		return nil, nil, err
	}

	pages := make([]domain.PageText, len(doc.Pages))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(uc.limits.PageWorkers)
	for i := range doc.Pages {
		page := &doc.Pages[i]
		group.Go(func() error {
			pages[page.Index] = uc.recognizePage(groupCtx, sessionID, page)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	usable := 0
	var confidenceSum float64
	for _, page := range pages {
		if page.Failed {
			continue
		}
		usable++
		confidenceSum += page.Confidence
	}
	if usable == 0 {
		return nil, nil, domain.WrapError(domain.ErrExtractionFailure, op, fmt.Errorf("no page produced text"))
	}

	// Page images are only needed for recognition; drop them before the
	// document is persisted.
	for i := range doc.Pages {
		doc.Pages[i].Image = nil
	}

	return &domain.ExtractedText{
		DocumentID: doc.ID,
		Pages:      pages,
		Confidence: confidenceSum / float64(usable),
	}, doc, nil
}

// recognizePage never returns an error: any page-level failure is recorded
// on the page itself so its siblings keep their results.
func (uc *IngestUseCase) recognizePage(ctx context.Context, sessionID string, page *domain.Page) domain.PageText {
	out := domain.PageText{PageIndex: page.Index}

	if page.HasText {
		out.Text = page.Text
		out.Confidence = 1
		return out
	}
	if len(page.Image) == 0 {
		out.Failed = true
		out.Error = "page has no renderable content"
		return out
	}

	pageCtx, cancel := context.WithTimeout(ctx, uc.limits.PageTimeout)
	defer cancel()

	result, err := uc.engine.Recognize(pageCtx, page.Image)
	if err != nil {
		uc.logger.Warn("page recognition failed",
			"session_id", sessionID,
			"page", page.Index,
			"error", err,
		)
		out.Failed = true
		out.Error = err.Error()
		return out
	}
	if result.Text != "" && result.Confidence > 0 && result.Confidence < uc.limits.MinConfidence {
		uc.logger.Warn("page recognition below confidence floor",
			"session_id", sessionID,
			"page", page.Index,
			"confidence", result.Confidence,
		)
		out.Failed = true
		out.Error = fmt.Sprintf("confidence %.2f below floor %.2f", result.Confidence, uc.limits.MinConfidence)
		return out
	}

	out.Text = result.Text
	out.Confidence = result.Confidence
	return out
}

// restoreState is best effort: the session must not stay stuck in
// ingesting after a failed run.
func (uc *IngestUseCase) restoreState(sessionID string, state domain.SessionState, email string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := uc.sessions.UpdateSession(ctx, sessionID, state, email); err != nil {
		uc.logger.Error("restore session state", "session_id", sessionID, "error", err)
	}
}
