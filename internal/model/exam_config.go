package model

import "time"

// DefaultDurationMinutes applies when a configuration omits its duration.
const DefaultDurationMinutes = 30

// ExamConfiguration describes how an attempt runs: how long, and which
// question bank feeds it. Authored by the teacher-facing side; read-only here.
type ExamConfiguration struct {
	ID              string    `json:"id"`
	DurationMinutes int       `json:"duration_minutes"`
	QuestionBankID  string    `json:"question_bank_id"`
	TargetGroup     string    `json:"target_group"`
	CreatedBy       string    `json:"created_by"`
	CreatedAt       time.Time `json:"created_at"`
}

// DurationSeconds returns the attempt duration in seconds, applying the
// default when the configuration carries no duration.
func (c *ExamConfiguration) DurationSeconds() int {
	minutes := c.DurationMinutes
	if minutes <= 0 {
		minutes = DefaultDurationMinutes
	}
	return minutes * 60
}
