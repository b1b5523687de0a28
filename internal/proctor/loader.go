package proctor

import (
	"context"
	"fmt"
	"time"

	"github.com/proktor-id/proktor-backend/internal/model"
)

// TicketStore is the persistence contract for tickets. Implementations must
// map "row not found" to ErrTicketNotFound.
type TicketStore interface {
	GetByCode(ctx context.Context, code string) (*model.Ticket, error)

	// Activate moves an ISSUED ticket to ACTIVE. Guarded so the status never
	// moves backward; activating an already-ACTIVE ticket is a no-op.
	Activate(ctx context.Context, code string) error

	// Consume writes the terminal record in a single merge-update, guarded
	// against an already-CONSUMED ticket. Returns false when the guard
	// rejected the write (the attempt was already consumed).
	Consume(ctx context.Context, code string, res model.TicketResult, violationCount int) (bool, error)
}

// ConfigStore resolves exam configurations. Missing ids map to
// ErrConfigMissing.
type ConfigStore interface {
	GetExamConfig(ctx context.Context, id string) (*model.ExamConfiguration, error)
}

// QuestionStore resolves question banks. A missing bank maps to
// ErrQuestionSourceMissing; an existing but empty bank returns an empty
// slice.
type QuestionStore interface {
	ListByBank(ctx context.Context, bankID string) ([]model.Question, error)
}

// ViolationSink receives violation telemetry. Writes are best-effort: the
// session never blocks on, or fails because of, a sink error.
type ViolationSink interface {
	Record(ctx context.Context, ticketCode string, v model.Violation) error
}

// SessionContext is the immutable product of a successful load: the resolved
// ticket identity, its duration, and the ticket-seeded shuffle of the
// question set.
type SessionContext struct {
	TicketCode      string
	StudentName     string
	DurationSeconds int
	Questions       []model.Question
}

// QuestionByID looks a question up by id within the session's set.
func (sc *SessionContext) QuestionByID(id string) (*model.Question, bool) {
	for i := range sc.Questions {
		if sc.Questions[i].ID == id {
			return &sc.Questions[i], true
		}
	}
	return nil, false
}

// Loader resolves a ticket code into a SessionContext. It performs reads
// only; any failure aborts startup with no side effects.
type Loader struct {
	tickets   TicketStore
	configs   ConfigStore
	questions QuestionStore
	now       func() time.Time
}

// NewLoader creates a session loader over the given stores.
func NewLoader(tickets TicketStore, configs ConfigStore, questions QuestionStore) *Loader {
	return &Loader{
		tickets:   tickets,
		configs:   configs,
		questions: questions,
		now:       time.Now,
	}
}

// Load resolves, in order: ticket, exam configuration, question bank. The
// returned context carries the configured duration in seconds (default 30
// minutes) and a deterministic per-ticket shuffle of the questions.
func (l *Loader) Load(ctx context.Context, rawCode string) (*SessionContext, error) {
	code := model.NormalizeTicketCode(rawCode)
	if code == "" {
		return nil, ErrInvalidTicketCode
	}

	ticket, err := l.tickets.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("resolve ticket: %w", err)
	}

	if ticket.Status == model.TicketStatusConsumed {
		return nil, ErrTicketConsumed
	}
	now := l.now()
	if ticket.ValidFrom != nil && now.Before(*ticket.ValidFrom) {
		return nil, ErrTicketNotYetValid
	}
	if ticket.ValidUntil != nil && now.After(*ticket.ValidUntil) {
		return nil, ErrTicketExpired
	}

	cfg, err := l.configs.GetExamConfig(ctx, ticket.ExamConfigID)
	if err != nil {
		return nil, fmt.Errorf("resolve exam configuration: %w", err)
	}

	bankID := ticket.QuestionBankID
	if bankID == "" {
		bankID = cfg.QuestionBankID
	}
	if bankID == "" {
		return nil, ErrQuestionSourceMissing
	}

	questions, err := l.questions.ListByBank(ctx, bankID)
	if err != nil {
		return nil, fmt.Errorf("resolve question bank: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrEmptyQuestionSet
	}

	return &SessionContext{
		TicketCode:      code,
		StudentName:     ticket.StudentName,
		DurationSeconds: cfg.DurationSeconds(),
		Questions:       ShuffleQuestions(code, questions),
	}, nil
}
