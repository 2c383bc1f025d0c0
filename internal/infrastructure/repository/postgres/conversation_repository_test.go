package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/carebridge/carechat/internal/core/domain"
)

func TestAppendTurnInsertsCommittedTurn(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := NewConversationRepository(db)

	now := time.Now().UTC()
	mock.ExpectExec("INSERT INTO turns").
		WithArgs("t1", "s1", 3, string(domain.RoleUser), "How much protein?", false, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = repo.AppendTurn(context.Background(), &domain.Turn{
		ID:        "t1",
		SessionID: "s1",
		Seq:       3,
		Role:      domain.RoleUser,
		Content:   "How much protein?",
		CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("AppendTurn() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListTurnsPreservesSequenceOrder(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()
	repo := NewConversationRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "session_id", "seq", "role", "content", "pinned", "created_at"}).
		AddRow("t0", "s1", 0, string(domain.RoleSystem), "instruction", true, now).
		AddRow("t1", "s1", 1, string(domain.RoleUser), "summarize", false, now).
		AddRow("t2", "s1", 2, string(domain.RoleAssistant), "summary", false, now)
	mock.ExpectQuery("SELECT id, session_id, seq, role, content, pinned").
		WithArgs("s1").
		WillReturnRows(rows)

	turns, err := repo.ListTurns(context.Background(), "s1")
	if err != nil {
		t.Fatalf("ListTurns() error = %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	for i, turn := range turns {
		if turn.Seq != i {
			t.Fatalf("turn %d out of order: seq=%d", i, turn.Seq)
		}
	}
	if !turns[0].Pinned || turns[0].Role != domain.RoleSystem {
		t.Fatalf("pinned system turn lost: %+v", turns[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
