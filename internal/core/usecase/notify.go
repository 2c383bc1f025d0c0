package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/carebridge/carechat/internal/core/domain"
	"github.com/carebridge/carechat/internal/core/ports"
)

// NotifyUseCase emails the session transcript. Delivery problems are
// reported to the caller but never touch the conversation itself.
type NotifyUseCase struct {
	sessions ports.SessionStore
	turns    ports.ConversationStore
	sender   ports.MailSender
	subject  string
	logger   *slog.Logger
}

func NewNotifyUseCase(
	sessions ports.SessionStore,
	turns ports.ConversationStore,
	sender ports.MailSender,
	subject string,
	logger *slog.Logger,
) *NotifyUseCase {
	if subject == "" {
		subject = "AI Health Summary & Dietary Advice"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NotifyUseCase{
		sessions: sessions,
		turns:    turns,
		sender:   sender,
		subject:  subject,
		logger:   logger,
	}
}

// SendReport emails the transcript synchronously and marks the session
// notified on success.
func (uc *NotifyUseCase) SendReport(ctx context.Context, sessionID, recipient string) error {
	const op = "send report"

	session, err := uc.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		recipient = session.Email
	}
	if recipient == "" {
		return domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("no recipient: session has no email"))
	}
	if _, err := mail.ParseAddress(recipient); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("invalid recipient %q", recipient))
	}

	turns, err := uc.turns.ListTurns(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("list turns: %w", err)
	}
	transcript := RenderTranscript(turns)
	if transcript == "" {
		return domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("nothing to send: conversation is empty"))
	}

	if err := uc.deliver(ctx, sessionID, recipient, transcript); err != nil {
		return err
	}

	// An explicit recipient is a one-off override; the session keeps its
	// own email destination.
	if err := uc.sessions.UpdateSession(ctx, sessionID, domain.SessionNotified, session.Email); err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	return nil
}

// Deliver sends a queued transcript job. Used by the notifier worker after
// the owning session is already gone.
func (uc *NotifyUseCase) Deliver(ctx context.Context, job domain.ReportJob) error {
	return uc.deliver(ctx, job.SessionID, job.Recipient, job.Transcript)
}

func (uc *NotifyUseCase) deliver(ctx context.Context, sessionID, recipient, transcript string) error {
	const op = "deliver report"

	if uc.sender == nil {
		return domain.WrapError(domain.ErrDeliveryFailure, op, fmt.Errorf("mail transport is not configured"))
	}

	started := time.Now()
	if err := uc.sender.Send(ctx, recipient, uc.subject, transcript); err != nil {
		uc.logger.Error("transcript delivery failed",
			"session_id", sessionID,
			"duration", time.Since(started),
			"error", err,
		)
		if domain.IsKind(err, domain.ErrDeliveryFailure) || domain.IsKind(err, domain.ErrInvalidInput) {
			return err
		}
		return domain.WrapError(domain.ErrDeliveryFailure, op, err)
	}

	uc.logger.Info("transcript delivered",
		"session_id", sessionID,
		"duration", time.Since(started),
	)
	return nil
}
