package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/carebridge/carechat/internal/core/domain"
)

func extractedSession() *domain.Session {
	return &domain.Session{
		ID:    "s1",
		State: domain.SessionExtracted,
		Extracted: &domain.ExtractedText{
			DocumentID: "d1",
			Pages: []domain.PageText{
				{PageIndex: 0, Text: "CBC panel: hemoglobin 13.5 g/dL", Confidence: 0.9},
			},
			Confidence: 0.9,
		},
	}
}

func newChatFixture(model *fakeModel, seed ...*domain.Session) (*ChatUseCase, *memSessionStore, *memTurnStore) {
	sessions := newMemSessionStore(seed...)
	turns := newMemTurnStore()
	uc := NewChatUseCase(sessions, turns, model, NewRegistry(), ChatLimits{
		MaxContextChars:  12000,
		MaxDocumentChars: 3000,
		CallTimeout:      time.Second,
	}, nil)
	return uc, sessions, turns
}

func TestSummarizeCommitsOrderedTurns(t *testing.T) {
	model := &fakeModel{answer: "Summary with dietary advice."}
	uc, sessions, turns := newChatFixture(model, extractedSession())

	result, err := uc.Summarize(context.Background(), "s1", "")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if result.AssistantTurn.Content != "Summary with dietary advice." {
		t.Fatalf("unexpected answer: %q", result.AssistantTurn.Content)
	}

	committed, _ := turns.ListTurns(context.Background(), "s1")
	if len(committed) != 3 {
		t.Fatalf("expected system+user+assistant, got %d turns", len(committed))
	}
	for i, turn := range committed {
		if turn.Seq != i {
			t.Fatalf("turn %d has seq %d", i, turn.Seq)
		}
	}
	if committed[0].Role != domain.RoleSystem || !committed[0].Pinned {
		t.Fatalf("first turn must be the pinned system instruction: %+v", committed[0])
	}
	if committed[1].Role != domain.RoleUser || !committed[1].Pinned {
		t.Fatalf("document turn must be pinned: %+v", committed[1])
	}
	if !strings.Contains(committed[1].Content, "hemoglobin 13.5") {
		t.Fatalf("document text missing from user turn: %q", committed[1].Content)
	}

	sent := model.lastMessages()
	if len(sent) != 2 || sent[0].Role != domain.RoleSystem || sent[1].Role != domain.RoleUser {
		t.Fatalf("unexpected model messages: %+v", sent)
	}

	if got := sessions.state("s1"); got != domain.SessionConversing {
		t.Fatalf("expected conversing state, got %s", got)
	}
}

func TestSummarizePrefersPastedText(t *testing.T) {
	model := &fakeModel{answer: "ok"}
	uc, _, _ := newChatFixture(model, extractedSession())

	_, err := uc.Summarize(context.Background(), "s1", "Pasted lab excerpt: ferritin 8 ng/mL")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	sent := model.lastMessages()
	if !strings.Contains(sent[1].Content, "ferritin 8") {
		t.Fatalf("pasted text not sent: %q", sent[1].Content)
	}
	if strings.Contains(sent[1].Content, "hemoglobin") {
		t.Fatalf("extracted text must be ignored when text is pasted: %q", sent[1].Content)
	}
}

func TestSummarizeWithoutAnySourceFails(t *testing.T) {
	uc, _, _ := newChatFixture(&fakeModel{answer: "ok"}, &domain.Session{ID: "s1", State: domain.SessionCreated})

	_, err := uc.Summarize(context.Background(), "s1", "   ")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestSummarizeCapsDocumentText(t *testing.T) {
	model := &fakeModel{answer: "ok"}
	uc, _, _ := newChatFixture(model, extractedSession())

	_, err := uc.Summarize(context.Background(), "s1", strings.Repeat("x", 5000))
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	sent := model.lastMessages()
	if got := len([]rune(sent[1].Content)); got != 3000 {
		t.Fatalf("expected document capped at 3000 chars, got %d", got)
	}
}

func TestAskAppendsToHistory(t *testing.T) {
	model := &fakeModel{answer: "Summary."}
	uc, _, turns := newChatFixture(model, extractedSession())

	if _, err := uc.Summarize(context.Background(), "s1", ""); err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	model.answer = "Aim for 80 g protein per day."

	result, err := uc.Ask(context.Background(), "s1", "How much protein should I eat?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if result.UserTurn == nil || result.UserTurn.Pinned {
		t.Fatalf("follow-up question must commit as an unpinned user turn: %+v", result.UserTurn)
	}

	committed, _ := turns.ListTurns(context.Background(), "s1")
	if len(committed) != 5 {
		t.Fatalf("expected 5 turns after follow-up, got %d", len(committed))
	}
	last := committed[len(committed)-1]
	if last.Role != domain.RoleAssistant || last.Content != "Aim for 80 g protein per day." {
		t.Fatalf("unexpected final turn: %+v", last)
	}

	sent := model.lastMessages()
	if len(sent) != 5 {
		t.Fatalf("full history must go upstream, got %d messages", len(sent))
	}
}

func TestAskBeforeSummaryFails(t *testing.T) {
	uc, _, _ := newChatFixture(&fakeModel{answer: "ok"}, extractedSession())

	_, err := uc.Ask(context.Background(), "s1", "question?")
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestUpstreamFailureLeavesConversationUntouched(t *testing.T) {
	model := &fakeModel{err: domain.WrapError(domain.ErrUpstreamUnavailable, "chat_completion", errors.New("overloaded"))}
	uc, sessions, turns := newChatFixture(model, extractedSession())

	_, err := uc.Summarize(context.Background(), "s1", "")
	if !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected upstream unavailable, got %v", err)
	}

	committed, _ := turns.ListTurns(context.Background(), "s1")
	if len(committed) != 0 {
		t.Fatalf("failed call must not commit turns, got %d", len(committed))
	}
	if got := sessions.state("s1"); got != domain.SessionExtracted {
		t.Fatalf("failed call must not advance state, got %s", got)
	}
}

func TestLongHistoryEvictsOldestUnpinnedTurns(t *testing.T) {
	model := &fakeModel{answer: "Summary."}
	sessions := newMemSessionStore(extractedSession())
	turns := newMemTurnStore()
	uc := NewChatUseCase(sessions, turns, model, NewRegistry(), ChatLimits{
		MaxContextChars:  600,
		MaxDocumentChars: 200,
		CallTimeout:      time.Second,
	}, nil)

	if _, err := uc.Summarize(context.Background(), "s1", "short lab excerpt"); err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}

	filler := strings.Repeat("q", 120)
	for i := 0; i < 5; i++ {
		model.answer = fmt.Sprintf("answer %d %s", i, strings.Repeat("a", 100))
		if _, err := uc.Ask(context.Background(), "s1", fmt.Sprintf("question %d %s", i, filler)); err != nil {
			t.Fatalf("Ask(%d) error = %v", i, err)
		}
	}

	result, err := uc.Ask(context.Background(), "s1", "final question")
	if err != nil {
		t.Fatalf("final Ask() error = %v", err)
	}
	if result.EvictedTurns == 0 {
		t.Fatal("expected old turns evicted from the context window")
	}

	sent := model.lastMessages()
	if sent[0].Role != domain.RoleSystem {
		t.Fatalf("pinned system turn must survive eviction, got %+v", sent[0])
	}
	foundDoc := false
	for _, msg := range sent {
		if strings.Contains(msg.Content, "short lab excerpt") {
			foundDoc = true
		}
	}
	if !foundDoc {
		t.Fatal("pinned document turn must survive eviction")
	}
	if sent[len(sent)-1].Content != "final question" {
		t.Fatalf("newest turn must always be sent, got %q", sent[len(sent)-1].Content)
	}

	// The committed record keeps everything regardless of eviction.
	committed, _ := turns.ListTurns(context.Background(), "s1")
	if len(committed) != 3+10+2 {
		t.Fatalf("append-only history lost turns: %d", len(committed))
	}
	for i, turn := range committed {
		if turn.Seq != i {
			t.Fatalf("turn %d has seq %d", i, turn.Seq)
		}
	}
}

func TestChatRejectsConcurrentCallOnSameSession(t *testing.T) {
	uc, _, _ := newChatFixture(&fakeModel{answer: "ok"}, extractedSession())

	_, release, err := uc.registry.Acquire(context.Background(), "s1", "test")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer release()

	_, err = uc.Summarize(context.Background(), "s1", "text")
	if !errors.Is(err, domain.ErrSessionBusy) {
		t.Fatalf("expected session busy, got %v", err)
	}
}

func TestEvictionDropsOldestFirstAsBlock(t *testing.T) {
	turns := []domain.Turn{
		{Seq: 0, Role: domain.RoleSystem, Content: "sys", Pinned: true},
		{Seq: 1, Role: domain.RoleUser, Content: strings.Repeat("o", 180)},
		{Seq: 2, Role: domain.RoleAssistant, Content: strings.Repeat("n", 40)},
	}

	messages, evicted := boundContext(turns, 200)
	if evicted != 1 {
		t.Fatalf("evicted = %d, want 1", evicted)
	}
	if len(messages) != 2 {
		t.Fatalf("kept %d messages, want 2", len(messages))
	}
	if messages[0].Content != "sys" || messages[1].Content != strings.Repeat("n", 40) {
		t.Fatalf("kept wrong messages: %+v", messages)
	}
}

func TestEvictionNeverKeepsOlderWhileDroppingNewer(t *testing.T) {
	turns := []domain.Turn{
		{Seq: 0, Role: domain.RoleSystem, Content: "sys", Pinned: true},
		{Seq: 1, Role: domain.RoleUser, Content: strings.Repeat("o", 50)},
		{Seq: 2, Role: domain.RoleAssistant, Content: strings.Repeat("n", 500)},
	}

	// The newest turn cannot fit the budget, so the whole unpinned history
	// goes with it; the small older turn must not be kept in its place.
	messages, evicted := boundContext(turns, 200)
	if evicted != 2 {
		t.Fatalf("evicted = %d, want 2", evicted)
	}
	if len(messages) != 1 || messages[0].Content != "sys" {
		t.Fatalf("kept wrong messages: %+v", messages)
	}
}

func TestOversizedQuestionIsRefusedNotEvicted(t *testing.T) {
	model := &fakeModel{answer: "Summary."}
	sessions := newMemSessionStore(extractedSession())
	turns := newMemTurnStore()
	uc := NewChatUseCase(sessions, turns, model, NewRegistry(), ChatLimits{
		MaxContextChars:  600,
		MaxDocumentChars: 200,
		CallTimeout:      time.Second,
	}, nil)

	if _, err := uc.Summarize(context.Background(), "s1", "short lab excerpt"); err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	calls := len(model.received)

	_, err := uc.Ask(context.Background(), "s1", strings.Repeat("q", 2000))
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for oversized question, got %v", err)
	}
	if len(model.received) != calls {
		t.Fatal("oversized question must not reach the model")
	}

	committed, _ := turns.ListTurns(context.Background(), "s1")
	if len(committed) != 3 {
		t.Fatalf("refused question must not commit turns, have %d", len(committed))
	}
}
