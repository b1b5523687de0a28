package model

import (
	"encoding/json"
	"strings"
	"time"
)

// TicketStatus enumerates exam ticket states. Transitions are forward-only:
// ISSUED → ACTIVE → CONSUMED.
type TicketStatus string

const (
	TicketStatusIssued   TicketStatus = "ISSUED"
	TicketStatusActive   TicketStatus = "ACTIVE"
	TicketStatusConsumed TicketStatus = "CONSUMED"
)

// FinishReason is the persisted terminal reason for an exam attempt.
// The values are the exact strings read by the reporting frontend.
type FinishReason string

const (
	FinishReasonNormal       FinishReason = "Selesai Normal"
	FinishReasonTimeExpired  FinishReason = "Waktu Habis"
	FinishReasonDisqualified FinishReason = "Diskualifikasi Security"
)

// Ticket is the single-use credential binding a test-taker to one exam
// attempt. It is created by the exam-authoring side and mutated here only at
// the terminal transition.
type Ticket struct {
	Code           string          `json:"code"`
	Status         TicketStatus    `json:"status"`
	ExamConfigID   string          `json:"exam_config_id"`
	QuestionBankID string          `json:"question_bank_id"`
	StudentName    string          `json:"student_name"`
	ViolationCount int             `json:"violation_count"`
	Answers        json.RawMessage `json:"answers,omitempty"`
	Score          *int            `json:"score,omitempty"`
	FinishReason   *FinishReason   `json:"finish_reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	FinishedAt     *time.Time      `json:"finished_at,omitempty"`
	ValidFrom      *time.Time      `json:"valid_from,omitempty"`
	ValidUntil     *time.Time      `json:"valid_until,omitempty"`
}

// TicketResult is the terminal outcome written exactly once per ticket.
type TicketResult struct {
	Score        int               `json:"score"`
	Answers      map[string]string `json:"answers"`
	FinishReason FinishReason      `json:"finish_reason"`
	FinishedAt   time.Time         `json:"finished_at"`
}

// NormalizeTicketCode canonicalizes user-entered ticket codes.
func NormalizeTicketCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// StartSessionRequest is the payload supplied by the token-entry screen.
type StartSessionRequest struct {
	TicketCode  string `json:"ticket_code" binding:"required,min=4,max=20"`
	StudentName string `json:"student_name" binding:"omitempty,max=255"`
}
