package proctor

import (
	"context"
	"errors"
	"sync"

	"github.com/proktor-id/proktor-backend/internal/model"
)

// fakeTicketStore is an in-memory TicketStore with injectable write failure.
type fakeTicketStore struct {
	mu          sync.Mutex
	tickets     map[string]*model.Ticket
	consumeErr  error
	consumed    map[string]model.TicketResult
	consumeHits int
}

func newFakeTicketStore(tickets ...*model.Ticket) *fakeTicketStore {
	s := &fakeTicketStore{
		tickets:  make(map[string]*model.Ticket),
		consumed: make(map[string]model.TicketResult),
	}
	for _, t := range tickets {
		s.tickets[t.Code] = t
	}
	return s
}

func (s *fakeTicketStore) GetByCode(_ context.Context, code string) (*model.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[code]
	if !ok {
		return nil, ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *fakeTicketStore) Activate(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[code]
	if !ok {
		return ErrTicketNotFound
	}
	if t.Status == model.TicketStatusIssued {
		t.Status = model.TicketStatusActive
	}
	return nil
}

func (s *fakeTicketStore) Consume(_ context.Context, code string, res model.TicketResult, violationCount int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumeHits++
	if s.consumeErr != nil {
		return false, s.consumeErr
	}
	t, ok := s.tickets[code]
	if !ok {
		return false, ErrTicketNotFound
	}
	if t.Status == model.TicketStatusConsumed {
		return false, nil
	}
	t.Status = model.TicketStatusConsumed
	t.ViolationCount = violationCount
	score := res.Score
	t.Score = &score
	reason := res.FinishReason
	t.FinishReason = &reason
	finished := res.FinishedAt
	t.FinishedAt = &finished
	s.consumed[code] = res
	return true, nil
}

func (s *fakeTicketStore) setConsumeErr(err error) {
	s.mu.Lock()
	s.consumeErr = err
	s.mu.Unlock()
}

func (s *fakeTicketStore) consumeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consumeHits
}

func (s *fakeTicketStore) terminal(code string) (model.TicketResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.consumed[code]
	return res, ok
}

type fakeConfigStore struct {
	configs map[string]*model.ExamConfiguration
}

func (s *fakeConfigStore) GetExamConfig(_ context.Context, id string) (*model.ExamConfiguration, error) {
	cfg, ok := s.configs[id]
	if !ok {
		return nil, ErrConfigMissing
	}
	return cfg, nil
}

type fakeQuestionStore struct {
	banks map[string][]model.Question
}

func (s *fakeQuestionStore) ListByBank(_ context.Context, bankID string) ([]model.Question, error) {
	qs, ok := s.banks[bankID]
	if !ok {
		return nil, ErrQuestionSourceMissing
	}
	return qs, nil
}

// fakeSink records violation telemetry and optionally fails every write.
type fakeSink struct {
	mu       sync.Mutex
	records  []model.Violation
	failWith error
}

func (s *fakeSink) Record(_ context.Context, _ string, v model.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	s.records = append(s.records, v)
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// fakePresenter counts suppression acquire/release pairs and fullscreen
// transitions.
type fakePresenter struct {
	mu            sync.Mutex
	acquired      int
	released      int
	fullscreenIn  int
	fullscreenOut int
	fullscreenErr error
}

func (p *fakePresenter) AcquireSuppression() {
	p.mu.Lock()
	p.acquired++
	p.mu.Unlock()
}

func (p *fakePresenter) ReleaseSuppression() {
	p.mu.Lock()
	p.released++
	p.mu.Unlock()
}

func (p *fakePresenter) EnterFullscreen() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fullscreenIn++
	return p.fullscreenErr
}

func (p *fakePresenter) ExitFullscreen() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fullscreenOut++
	return nil
}

func (p *fakePresenter) balanced() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquired == p.released
}

// brokenProbe fails a chosen subset of capabilities.
type brokenProbe struct {
	report     EnvReport
	hiddenErr  error
	ratioErr   error
	deltaErr   error
	focusErr   error
}

func (p *brokenProbe) IsHidden() (bool, error) {
	if p.hiddenErr != nil {
		return false, p.hiddenErr
	}
	return p.report.Hidden, nil
}

func (p *brokenProbe) ViewportToScreenRatio() (float64, error) {
	if p.ratioErr != nil {
		return 0, p.ratioErr
	}
	return p.report.ViewportRatio, nil
}

func (p *brokenProbe) WindowChromeDelta() (float64, float64, error) {
	if p.deltaErr != nil {
		return 0, 0, p.deltaErr
	}
	return p.report.ChromeDeltaX, p.report.ChromeDeltaY, nil
}

func (p *brokenProbe) ActiveElementIsTextInput() (bool, error) {
	if p.focusErr != nil {
		return false, p.focusErr
	}
	return p.report.TextInputFocused, nil
}

var errStoreDown = errors.New("store down")

// calmReport is an environment sample that trips no heuristic.
func calmReport() EnvReport {
	return EnvReport{
		Hidden:        false,
		ViewportRatio: 1.0,
		ChromeDeltaX:  0,
		ChromeDeltaY:  0,
	}
}

func singleChoice(id, correct string) model.Question {
	return model.Question{
		ID:            id,
		Prompt:        "Soal " + id,
		QuestionType:  model.QuestionTypeSingleChoice,
		CorrectAnswer: correct,
	}
}
