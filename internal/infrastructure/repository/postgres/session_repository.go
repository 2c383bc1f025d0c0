package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/carebridge/carechat/internal/core/domain"
)

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) CreateSession(ctx context.Context, session *domain.Session) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sessions (id, state, email, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5)
`, session.ID, string(session.State), session.Email, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	const op = "postgres.GetSession"

	row := r.db.QueryRowContext(ctx, `
SELECT id, state, email, document, extracted, created_at, updated_at
FROM sessions
WHERE id = $1
`, id)

	var (
		session      domain.Session
		state        string
		documentRaw  []byte
		extractedRaw []byte
	)
	err := row.Scan(&session.ID, &state, &session.Email, &documentRaw, &extractedRaw, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrSessionNotFound, op, fmt.Errorf("session %s", id))
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}
	session.State = domain.SessionState(state)

	if len(documentRaw) > 0 {
		var doc domain.Document
		if err := json.Unmarshal(documentRaw, &doc); err != nil {
			return nil, fmt.Errorf("unmarshal session document: %w", err)
		}
		session.Document = &doc
	}
	if len(extractedRaw) > 0 {
		var extracted domain.ExtractedText
		if err := json.Unmarshal(extractedRaw, &extracted); err != nil {
			return nil, fmt.Errorf("unmarshal session extraction: %w", err)
		}
		session.Extracted = &extracted
	}
	return &session, nil
}

func (r *SessionRepository) UpdateSession(ctx context.Context, id string, state domain.SessionState, email string) error {
	const op = "postgres.UpdateSession"

	res, err := r.db.ExecContext(ctx, `
UPDATE sessions
SET state = $2, email = $3, updated_at = $4
WHERE id = $1
`, id, string(state), email, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return requireRow(res, op, id)
}

func (r *SessionRepository) SaveExtraction(ctx context.Context, id string, doc *domain.Document, extracted *domain.ExtractedText) error {
	const op = "postgres.SaveExtraction"

	documentRaw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal session document: %w", err)
	}
	extractedRaw, err := json.Marshal(extracted)
	if err != nil {
		return fmt.Errorf("marshal session extraction: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE sessions
SET document = $2, extracted = $3, state = $4, updated_at = $5
WHERE id = $1
`, id, documentRaw, extractedRaw, string(domain.SessionExtracted), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save session extraction: %w", err)
	}
	return requireRow(res, op, id)
}

func (r *SessionRepository) DeleteSession(ctx context.Context, id string) error {
	const op = "postgres.DeleteSession"

	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return requireRow(res, op, id)
}

func requireRow(res sql.Result, op, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrSessionNotFound, op, fmt.Errorf("session %s", id))
	}
	return nil
}
