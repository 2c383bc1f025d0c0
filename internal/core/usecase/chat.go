package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/carechat/internal/core/domain"
	"github.com/carebridge/carechat/internal/core/ports"
)

// ChatLimits bounds what a single completion may carry upstream.
type ChatLimits struct {
	MaxContextChars  int
	MaxDocumentChars int
	CallTimeout      time.Duration
}

// ChatUseCase drives the summarize-then-refine conversation. Turns commit
// only after the model answered: a failed upstream call leaves the
// conversation exactly as it was.
type ChatUseCase struct {
	sessions ports.SessionStore
	turns    ports.ConversationStore
	model    ports.ChatModel
	registry *Registry
	limits   ChatLimits
	logger   *slog.Logger
}

func NewChatUseCase(
	sessions ports.SessionStore,
	turns ports.ConversationStore,
	model ports.ChatModel,
	registry *Registry,
	limits ChatLimits,
	logger *slog.Logger,
) *ChatUseCase {
	if limits.MaxContextChars <= 0 {
		limits.MaxContextChars = 12000
	}
	if limits.MaxDocumentChars <= 0 {
		limits.MaxDocumentChars = 3000
	}
	if limits.CallTimeout <= 0 {
		limits.CallTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatUseCase{
		sessions: sessions,
		turns:    turns,
		model:    model,
		registry: registry,
		limits:   limits,
		logger:   logger,
	}
}

// Summarize runs the opening call: the document text (pasted or extracted)
// goes up as a pinned user turn so later follow-ups keep it in context.
func (uc *ChatUseCase) Summarize(ctx context.Context, sessionID, pastedText string) (*domain.ChatResult, error) {
	const op = "chat summarize"

	callCtx, release, err := uc.registry.Acquire(ctx, sessionID, op)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := uc.sessions.GetSession(callCtx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.CanConverse() {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("session state %s does not accept chat", session.State))
	}

	source := strings.TrimSpace(pastedText)
	if source == "" && session.Extracted != nil {
		source = session.Extracted.Combined(uc.limits.MaxDocumentChars)
	}
	if source == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("no document text: upload a report or paste an excerpt"))
	}
	if runes := []rune(source); len(runes) > uc.limits.MaxDocumentChars {
		source = string(runes[:uc.limits.MaxDocumentChars])
	}

	committed, err := uc.turns.ListTurns(callCtx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}

	pending := make([]domain.Turn, 0, 2)
	if len(committed) == 0 {
		pending = append(pending, uc.newTurn(sessionID, len(committed), domain.RoleSystem, systemPrompt, true))
	}
	pending = append(pending, uc.newTurn(sessionID, len(committed)+len(pending), domain.RoleUser, source, true))

	return uc.complete(callCtx, op, session, committed, pending)
}

// Ask appends a follow-up question against the full committed history.
func (uc *ChatUseCase) Ask(ctx context.Context, sessionID, question string) (*domain.ChatResult, error) {
	const op = "chat ask"

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("empty question"))
	}

	callCtx, release, err := uc.registry.Acquire(ctx, sessionID, op)
	if err != nil {
		return nil, err
	}
	defer release()

	session, err := uc.sessions.GetSession(callCtx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.CanConverse() {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("session state %s does not accept chat", session.State))
	}

	committed, err := uc.turns.ListTurns(callCtx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}
	if len(committed) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("no conversation yet: request a summary first"))
	}

	pending := []domain.Turn{uc.newTurn(sessionID, len(committed), domain.RoleUser, question, false)}
	return uc.complete(callCtx, op, session, committed, pending)
}

// complete calls the model over committed+pending turns and, only on
// success, commits the pending turns followed by the assistant reply.
func (uc *ChatUseCase) complete(ctx context.Context, op string, session *domain.Session, committed, pending []domain.Turn) (*domain.ChatResult, error) {
	window := make([]domain.Turn, 0, len(committed)+len(pending))
	window = append(window, committed...)
	window = append(window, pending...)

	// The turn driving this call must reach the model; if it cannot fit the
	// budget even with all unpinned history evicted, the call is refused
	// rather than silently answered without it.
	newest := window[len(window)-1]
	if uc.limits.MaxContextChars > 0 && !newest.Pinned {
		pinnedCost := 0
		for _, turn := range window {
			if turn.Pinned {
				pinnedCost += len([]rune(turn.Content))
			}
		}
		if pinnedCost+len([]rune(newest.Content)) > uc.limits.MaxContextChars {
			return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("message exceeds the context budget"))
		}
	}

	messages, evicted := boundContext(window, uc.limits.MaxContextChars)

	modelCtx, cancel := context.WithTimeout(ctx, uc.limits.CallTimeout)
	defer cancel()

	started := time.Now()
	answer, err := uc.model.Complete(modelCtx, messages)
	if err != nil {
		uc.logger.Error("model completion failed",
			"session_id", session.ID,
			"operation", op,
			"duration", time.Since(started),
			"error", err,
		)
		return nil, err
	}

	assistant := uc.newTurn(session.ID, len(window), domain.RoleAssistant, answer, false)
	for i := range pending {
		if err := uc.turns.AppendTurn(ctx, &pending[i]); err != nil {
			return nil, fmt.Errorf("append turn: %w", err)
		}
	}
	if err := uc.turns.AppendTurn(ctx, &assistant); err != nil {
		return nil, fmt.Errorf("append assistant turn: %w", err)
	}

	if session.State != domain.SessionConversing {
		if err := uc.sessions.UpdateSession(ctx, session.ID, domain.SessionConversing, session.Email); err != nil {
			return nil, fmt.Errorf("mark conversing: %w", err)
		}
	}

	uc.logger.Info("model completion",
		"session_id", session.ID,
		"operation", op,
		"messages", len(messages),
		"evicted_turns", evicted,
		"duration", time.Since(started),
	)

	result := &domain.ChatResult{
		AssistantTurn: &assistant,
		EvictedTurns:  evicted,
	}
	for i := range pending {
		if pending[i].Role == domain.RoleUser {
			result.UserTurn = &pending[i]
		}
	}
	return result, nil
}

func (uc *ChatUseCase) newTurn(sessionID string, seq int, role domain.Role, content string, pinned bool) domain.Turn {
	return domain.Turn{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Seq:       seq,
		Role:      role,
		Content:   content,
		Pinned:    pinned,
		CreatedAt: time.Now().UTC(),
	}
}
