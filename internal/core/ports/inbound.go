package ports

import (
	"context"
	"io"

	"github.com/carebridge/carechat/internal/core/domain"
)

// SessionManager is the inbound contract for session lifecycle.
type SessionManager interface {
	Create(ctx context.Context, email string) (*domain.Session, error)
	Get(ctx context.Context, id string) (*domain.Session, []domain.Turn, error)
	End(ctx context.Context, id string) error
}

// DocumentIngestor attaches an uploaded file to a session and runs the
// extraction pipeline.
type DocumentIngestor interface {
	Attach(ctx context.Context, sessionID, filename, mimeType string, body io.Reader) (*domain.ExtractedText, error)
}

// ChatService is the inbound contract for summarization and follow-up Q&A.
type ChatService interface {
	Summarize(ctx context.Context, sessionID, pastedText string) (*domain.ChatResult, error)
	Ask(ctx context.Context, sessionID, question string) (*domain.ChatResult, error)
}

// ReportNotifier renders and dispatches the session transcript.
type ReportNotifier interface {
	SendReport(ctx context.Context, sessionID, recipient string) error
	Deliver(ctx context.Context, job domain.ReportJob) error
}
