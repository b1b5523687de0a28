package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proktor-id/proktor-backend/internal/model"
	"github.com/proktor-id/proktor-backend/internal/proctor"
)

// TicketRepository handles exam ticket data access. It implements
// proctor.TicketStore.
type TicketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository creates a new TicketRepository.
func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{pool: pool}
}

// GetByCode retrieves a ticket by its normalized code.
func (r *TicketRepository) GetByCode(ctx context.Context, code string) (*model.Ticket, error) {
	t := &model.Ticket{}
	err := r.pool.QueryRow(ctx,
		`SELECT code, status, exam_config_id, question_bank_id, student_name,
		        violation_count, answers, score, finish_reason,
		        created_at, finished_at, valid_from, valid_until
		 FROM tickets WHERE code = $1`, code,
	).Scan(&t.Code, &t.Status, &t.ExamConfigID, &t.QuestionBankID, &t.StudentName,
		&t.ViolationCount, &t.Answers, &t.Score, &t.FinishReason,
		&t.CreatedAt, &t.FinishedAt, &t.ValidFrom, &t.ValidUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, proctor.ErrTicketNotFound
		}
		return nil, err
	}
	return t, nil
}

// Activate moves an ISSUED ticket to ACTIVE. The status guard keeps the
// transition forward-only; re-activating an ACTIVE ticket (resume) is a
// no-op.
func (r *TicketRepository) Activate(ctx context.Context, code string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tickets SET status = $1 WHERE code = $2 AND status = $3`,
		model.TicketStatusActive, code, model.TicketStatusIssued)
	return err
}

// Consume writes the terminal record in one guarded merge-update. Returns
// false when the ticket was already consumed — the guard makes the terminal
// write happen at most once even across processes.
func (r *TicketRepository) Consume(ctx context.Context, code string, res model.TicketResult, violationCount int) (bool, error) {
	answers, err := json.Marshal(res.Answers)
	if err != nil {
		return false, fmt.Errorf("marshal answers: %w", err)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE tickets
		 SET status = $1, finished_at = $2, score = $3, answers = $4,
		     finish_reason = $5, violation_count = $6
		 WHERE code = $7 AND status <> $1`,
		model.TicketStatusConsumed, res.FinishedAt, res.Score, answers,
		res.FinishReason, violationCount, code)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Create inserts a new ticket. Used by the seeding tool; production tickets
// come from the exam-authoring side.
func (r *TicketRepository) Create(ctx context.Context, t *model.Ticket) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tickets (code, status, exam_config_id, question_bank_id,
		                      student_name, valid_from, valid_until)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.Code, t.Status, t.ExamConfigID, t.QuestionBankID,
		t.StudentName, t.ValidFrom, t.ValidUntil)
	return err
}
