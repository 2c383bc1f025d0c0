package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/carebridge/carechat/internal/core/domain"
)

// ConversationRepository stores the append-only turn sequence. Turns are
// never updated or deleted individually; DeleteTurns only exists for
// whole-session teardown.
type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) AppendTurn(ctx context.Context, turn *domain.Turn) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO turns (id, session_id, seq, role, content, pinned, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, turn.ID, turn.SessionID, turn.Seq, string(turn.Role), turn.Content, turn.Pinned, turn.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

func (r *ConversationRepository) ListTurns(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, session_id, seq, role, content, pinned, created_at
FROM turns
WHERE session_id = $1
ORDER BY seq ASC
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		var (
			turn domain.Turn
			role string
		)
		if err := rows.Scan(&turn.ID, &turn.SessionID, &turn.Seq, &role, &turn.Content, &turn.Pinned, &turn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		turn.Role = domain.Role(role)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turns: %w", err)
	}
	return turns, nil
}

func (r *ConversationRepository) DeleteTurns(ctx context.Context, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM turns WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("delete turns: %w", err)
	}
	return nil
}
