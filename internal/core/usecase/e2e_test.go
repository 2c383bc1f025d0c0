package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/carebridge/carechat/internal/core/domain"
	"github.com/carebridge/carechat/internal/core/ports"
)

// Full pipeline against in-memory ports: upload a one-page scan, summarize,
// ask a follow-up, send the transcript.
func TestPipelineUploadSummarizeAskReport(t *testing.T) {
	ctx := context.Background()

	sessions := newMemSessionStore()
	turns := newMemTurnStore()
	registry := NewRegistry()
	engine := &fakeOCR{results: map[int]ports.OCRResult{
		0: {Text: "Hemoglobin 10.1 g/dL, ferritin low.", Confidence: 0.95},
	}}
	decoder := &fakeDecoder{doc: &domain.Document{
		ID:       "doc-1",
		Filename: "labs.png",
		Pages:    []domain.Page{{Index: 0, Image: []byte{0}}},
	}}
	model := &fakeModel{answer: "Summary: mild anemia. Eat iron-rich foods."}
	mailer := &fakeMail{}

	sessionUC := NewSessionUseCase(sessions, turns, &fakeQueue{}, registry, nil)
	ingestUC := NewIngestUseCase(sessions, decoder, engine, registry, ExtractLimits{}, nil)
	chatUC := NewChatUseCase(sessions, turns, model, registry, ChatLimits{}, nil)
	notifyUC := NewNotifyUseCase(sessions, turns, mailer, "", nil)

	session, err := sessionUC.Create(ctx, "patient@example.com")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	extracted, err := ingestUC.Attach(ctx, session.ID, "labs.png", "image/png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("Attach() error = %v", err)
	}
	if len(extracted.Pages) != 1 || extracted.Pages[0].Text == "" {
		t.Fatalf("extracted = %+v", extracted)
	}

	summary, err := chatUC.Summarize(ctx, session.ID, "")
	if err != nil {
		t.Fatalf("Summarize() error = %v", err)
	}
	if !strings.Contains(summary.AssistantTurn.Content, "mild anemia") {
		t.Fatalf("summary = %q", summary.AssistantTurn.Content)
	}
	if !strings.Contains(model.lastMessages()[1].Content, "Hemoglobin 10.1") {
		t.Fatalf("document text missing from model context: %+v", model.lastMessages())
	}

	model.answer = "Lentils, spinach and red meat."
	followUp, err := chatUC.Ask(ctx, session.ID, "What should I eat?")
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if followUp.UserTurn == nil || followUp.AssistantTurn == nil {
		t.Fatalf("follow-up result = %+v", followUp)
	}

	committed, err := turns.ListTurns(ctx, session.ID)
	if err != nil {
		t.Fatalf("ListTurns() error = %v", err)
	}
	// pinned system + pinned document + assistant + user + assistant
	if len(committed) != 5 {
		t.Fatalf("committed %d turns, want 5", len(committed))
	}
	for i, turn := range committed {
		if turn.Seq != i {
			t.Fatalf("turn %d has seq %d", i, turn.Seq)
		}
	}

	if err := notifyUC.SendReport(ctx, session.ID, ""); err != nil {
		t.Fatalf("SendReport() error = %v", err)
	}
	if mailer.recipient != "patient@example.com" {
		t.Fatalf("recipient = %q", mailer.recipient)
	}
	wantOrder := []string{"mild anemia", "What should I eat?", "Lentils"}
	lastIdx := -1
	for _, fragment := range wantOrder {
		idx := strings.Index(mailer.body, fragment)
		if idx <= lastIdx {
			t.Fatalf("transcript order wrong, %q at %d (body %q)", fragment, idx, mailer.body)
		}
		lastIdx = idx
	}
	if strings.Contains(mailer.body, "Hemoglobin 10.1") {
		t.Fatalf("transcript leaks pinned document text: %q", mailer.body)
	}
	if sessions.state(session.ID) != domain.SessionNotified {
		t.Fatalf("state = %q, want notified", sessions.state(session.ID))
	}
}
