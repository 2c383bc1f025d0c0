package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge/carechat/internal/core/domain"
	"github.com/carebridge/carechat/internal/core/ports"
)

// SessionUseCase owns session lifecycle. Ending a session is destructive:
// turns and extracted text are removed and only the queued transcript job,
// if any, survives the session.
type SessionUseCase struct {
	sessions ports.SessionStore
	turns    ports.ConversationStore
	queue    ports.ReportQueue
	registry *Registry
	logger   *slog.Logger
}

func NewSessionUseCase(
	sessions ports.SessionStore,
	turns ports.ConversationStore,
	queue ports.ReportQueue,
	registry *Registry,
	logger *slog.Logger,
) *SessionUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionUseCase{
		sessions: sessions,
		turns:    turns,
		queue:    queue,
		registry: registry,
		logger:   logger,
	}
}

func (uc *SessionUseCase) Create(ctx context.Context, email string) (*domain.Session, error) {
	const op = "session create"

	email = strings.TrimSpace(email)
	if email != "" {
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("invalid email %q", email))
		}
	}

	now := time.Now().UTC()
	session := &domain.Session{
		ID:        uuid.NewString(),
		State:     domain.SessionCreated,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	uc.logger.Info("session created", "session_id", session.ID, "has_email", email != "")
	return session, nil
}

func (uc *SessionUseCase) Get(ctx context.Context, id string) (*domain.Session, []domain.Turn, error) {
	session, err := uc.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	turns, err := uc.turns.ListTurns(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list turns: %w", err)
	}
	return session, turns, nil
}

// End cancels any in-flight call, queues the transcript for delivery when
// the session holds an email address, then removes the session. Queue
// trouble never blocks teardown.
func (uc *SessionUseCase) End(ctx context.Context, id string) error {
	uc.registry.Cancel(id)

	session, err := uc.sessions.GetSession(ctx, id)
	if err != nil {
		return err
	}

	if uc.queue != nil && session.Email != "" && session.State != domain.SessionNotified {
		turns, err := uc.turns.ListTurns(ctx, id)
		if err != nil {
			return fmt.Errorf("list turns: %w", err)
		}
		transcript := RenderTranscript(turns)
		if transcript != "" {
			job := domain.ReportJob{
				SessionID:  id,
				Recipient:  session.Email,
				Transcript: transcript,
				EnqueuedAt: time.Now().UTC(),
			}
			if err := uc.queue.PublishReport(ctx, job); err != nil {
				uc.logger.Error("queue transcript on session end", "session_id", id, "error", err)
			}
		}
	}

	if err := uc.turns.DeleteTurns(ctx, id); err != nil {
		return fmt.Errorf("delete turns: %w", err)
	}
	if err := uc.sessions.DeleteSession(ctx, id); err != nil {
		return err
	}

	uc.logger.Info("session ended", "session_id", id)
	return nil
}
