package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proktor-id/proktor-backend/internal/model"
	"github.com/proktor-id/proktor-backend/internal/proctor"
)

// QuestionBankRepository handles question bank reads. It implements
// proctor.QuestionStore.
type QuestionBankRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionBankRepository creates a new QuestionBankRepository.
func NewQuestionBankRepository(pool *pgxpool.Pool) *QuestionBankRepository {
	return &QuestionBankRepository{pool: pool}
}

// ListByBank retrieves all questions of a bank in authored order. A missing
// bank maps to proctor.ErrQuestionSourceMissing; an existing bank with no
// questions returns an empty slice (the loader distinguishes the two).
func (r *QuestionBankRepository) ListByBank(ctx context.Context, bankID string) ([]model.Question, error) {
	var exists string
	err := r.pool.QueryRow(ctx,
		`SELECT id FROM question_banks WHERE id = $1`, bankID,
	).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, proctor.ErrQuestionSourceMissing
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, bank_id, prompt, question_type, options, correct_answer,
		        COALESCE(image_url, ''), order_num
		 FROM questions WHERE bank_id = $1
		 ORDER BY order_num`, bankID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.BankID, &q.Prompt, &q.QuestionType,
			&q.Options, &q.CorrectAnswer, &q.ImageURL, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
