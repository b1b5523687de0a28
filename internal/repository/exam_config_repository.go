package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proktor-id/proktor-backend/internal/model"
	"github.com/proktor-id/proktor-backend/internal/proctor"
)

// ExamConfigRepository handles exam configuration reads. It implements
// proctor.ConfigStore.
type ExamConfigRepository struct {
	pool *pgxpool.Pool
}

// NewExamConfigRepository creates a new ExamConfigRepository.
func NewExamConfigRepository(pool *pgxpool.Pool) *ExamConfigRepository {
	return &ExamConfigRepository{pool: pool}
}

// GetExamConfig retrieves an exam configuration by id.
func (r *ExamConfigRepository) GetExamConfig(ctx context.Context, id string) (*model.ExamConfiguration, error) {
	cfg := &model.ExamConfiguration{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, duration_minutes, question_bank_id, target_group, created_by, created_at
		 FROM exam_configs WHERE id = $1`, id,
	).Scan(&cfg.ID, &cfg.DurationMinutes, &cfg.QuestionBankID,
		&cfg.TargetGroup, &cfg.CreatedBy, &cfg.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, proctor.ErrConfigMissing
		}
		return nil, err
	}
	return cfg, nil
}
