package ports

import (
	"context"

	"github.com/carebridge/carechat/internal/core/domain"
)

// DocumentDecoder normalizes an uploaded payload into an ordered page
// sequence. Implementations own mime sniffing and format support.
type DocumentDecoder interface {
	Decode(ctx context.Context, filename, mimeType string, data []byte) (*domain.Document, error)
}

// OCRResult is the recognition output for one page image.
type OCRResult struct {
	Text       string
	Confidence float64
}

// OCREngine recognizes text on a single encoded page image.
type OCREngine interface {
	Recognize(ctx context.Context, image []byte) (OCRResult, error)
}

// ChatModel is the hosted language-model contract: ordered messages in,
// assistant text out.
type ChatModel interface {
	Complete(ctx context.Context, messages []domain.ChatMessage) (string, error)
}

// MailSender dispatches one message through the configured mail transport.
type MailSender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// SessionStore persists session metadata.
type SessionStore interface {
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	UpdateSession(ctx context.Context, id string, state domain.SessionState, email string) error
	SaveExtraction(ctx context.Context, id string, doc *domain.Document, extracted *domain.ExtractedText) error
	DeleteSession(ctx context.Context, id string) error
}

// ConversationStore persists the append-only turn sequence of a session.
type ConversationStore interface {
	AppendTurn(ctx context.Context, turn *domain.Turn) error
	ListTurns(ctx context.Context, sessionID string) ([]domain.Turn, error)
	DeleteTurns(ctx context.Context, sessionID string) error
}

// ReportQueue hands transcript deliveries from closing sessions to the
// notification worker.
type ReportQueue interface {
	PublishReport(ctx context.Context, job domain.ReportJob) error
	SubscribeReports(ctx context.Context, handler func(context.Context, domain.ReportJob) error) error
}
