package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/carebridge/carechat/internal/core/domain"
	"github.com/carebridge/carechat/internal/core/ports"
)

type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func newMemSessionStore(seed ...*domain.Session) *memSessionStore {
	store := &memSessionStore{sessions: make(map[string]*domain.Session)}
	for _, s := range seed {
		copied := *s
		store.sessions[s.ID] = &copied
	}
	return store
}

func (s *memSessionStore) CreateSession(_ context.Context, session *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *session
	s.sessions[session.ID] = &copied
	return nil
}

func (s *memSessionStore) GetSession(_ context.Context, id string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrSessionNotFound, "fake get", fmt.Errorf("session %s", id))
	}
	copied := *session
	return &copied, nil
}

func (s *memSessionStore) UpdateSession(_ context.Context, id string, state domain.SessionState, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.WrapError(domain.ErrSessionNotFound, "fake update", fmt.Errorf("session %s", id))
	}
	session.State = state
	session.Email = email
	return nil
}

func (s *memSessionStore) SaveExtraction(_ context.Context, id string, doc *domain.Document, extracted *domain.ExtractedText) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return domain.WrapError(domain.ErrSessionNotFound, "fake save extraction", fmt.Errorf("session %s", id))
	}
	session.Document = doc
	session.Extracted = extracted
	session.State = domain.SessionExtracted
	return nil
}

func (s *memSessionStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return domain.WrapError(domain.ErrSessionNotFound, "fake delete", fmt.Errorf("session %s", id))
	}
	delete(s.sessions, id)
	return nil
}

func (s *memSessionStore) state(id string) domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[id]; ok {
		return session.State
	}
	return ""
}

type memTurnStore struct {
	mu    sync.Mutex
	turns map[string][]domain.Turn
}

func newMemTurnStore() *memTurnStore {
	return &memTurnStore{turns: make(map[string][]domain.Turn)}
}

func (s *memTurnStore) AppendTurn(_ context.Context, turn *domain.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[turn.SessionID] = append(s.turns[turn.SessionID], *turn)
	return nil
}

func (s *memTurnStore) ListTurns(_ context.Context, sessionID string) ([]domain.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := append([]domain.Turn(nil), s.turns[sessionID]...)
	sort.Slice(turns, func(i, j int) bool { return turns[i].Seq < turns[j].Seq })
	return turns, nil
}

func (s *memTurnStore) DeleteTurns(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, sessionID)
	return nil
}

type fakeDecoder struct {
	doc *domain.Document
	err error
}

func (d *fakeDecoder) Decode(context.Context, string, string, []byte) (*domain.Document, error) {
	if d.err != nil {
		return nil, d.err
	}
	doc := *d.doc
	doc.Pages = append([]domain.Page(nil), d.doc.Pages...)
	return &doc, nil
}

type fakeOCR struct {
	mu      sync.Mutex
	results map[int]ports.OCRResult
	errs    map[int]error
	calls   int
}

func (o *fakeOCR) Recognize(_ context.Context, image []byte) (ports.OCRResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	page := int(image[0])
	if err, ok := o.errs[page]; ok {
		return ports.OCRResult{}, err
	}
	return o.results[page], nil
}

type fakeModel struct {
	mu       sync.Mutex
	answer   string
	err      error
	received [][]domain.ChatMessage
}

func (m *fakeModel) Complete(_ context.Context, messages []domain.ChatMessage) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, append([]domain.ChatMessage(nil), messages...))
	if m.err != nil {
		return "", m.err
	}
	return m.answer, nil
}

func (m *fakeModel) lastMessages() []domain.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.received) == 0 {
		return nil
	}
	return m.received[len(m.received)-1]
}

type fakeMail struct {
	mu        sync.Mutex
	err       error
	recipient string
	subject   string
	body      string
	sends     int
}

func (m *fakeMail) Send(_ context.Context, recipient, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sends++
	if m.err != nil {
		return m.err
	}
	m.recipient, m.subject, m.body = recipient, subject, body
	return nil
}

type fakeQueue struct {
	mu        sync.Mutex
	published []domain.ReportJob
	err       error
}

func (q *fakeQueue) PublishReport(_ context.Context, job domain.ReportJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.published = append(q.published, job)
	return nil
}

func (q *fakeQueue) SubscribeReports(context.Context, func(context.Context, domain.ReportJob) error) error {
	return nil
}
