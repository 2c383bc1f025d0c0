package domain

import "time"

type SessionState string

const (
	SessionCreated    SessionState = "created"
	SessionIngesting  SessionState = "ingesting"
	SessionExtracted  SessionState = "extracted"
	SessionConversing SessionState = "conversing"
	SessionNotified   SessionState = "notified"
	SessionEnded      SessionState = "ended"
)

// Session is the unit of isolation: one user's documents, extracted text,
// conversation and mail destination. Sessions share nothing mutable with
// each other; process-wide configuration is read-only after startup.
type Session struct {
	ID        string         `json:"id"`
	State     SessionState   `json:"state"`
	Email     string         `json:"email,omitempty"`
	Document  *Document      `json:"document,omitempty"`
	Extracted *ExtractedText `json:"extracted,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// CanConverse reports whether the session accepts chat calls in its
// current state.
func (s *Session) CanConverse() bool {
	switch s.State {
	case SessionExtracted, SessionConversing, SessionNotified:
		return true
	case SessionCreated:
		// Pasted text without an upload is allowed (manual excerpt path).
		return true
	default:
		return false
	}
}

// ReportJob is the payload queued when a closing session still owes its
// transcript email.
type ReportJob struct {
	SessionID  string    `json:"session_id"`
	Recipient  string    `json:"recipient"`
	Transcript string    `json:"transcript"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}
