package domain

import "time"

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one committed message in a session's conversation. The sequence of
// turns is append-only; a turn is never edited or removed once committed.
// Pinned turns (system instruction, report context) survive context eviction.
type Turn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Seq       int       `json:"seq"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is the wire shape sent to the hosted model.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatResult carries the assistant reply plus the committed turns.
type ChatResult struct {
	UserTurn      *Turn `json:"user_turn,omitempty"`
	AssistantTurn *Turn `json:"assistant_turn"`
	EvictedTurns  int   `json:"evicted_turns,omitempty"`
}
