package websocket

import (
	"time"

	"github.com/proktor-id/proktor-backend/internal/proctor"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionStart  Action = "start"
	ActionAnswer Action = "answer"
	ActionEnv    Action = "env"
	ActionEvent  Action = "event"
	ActionSubmit Action = "submit"
	ActionPing   Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// StartRequest moves the attempt from its countdown into the running exam.
type StartRequest struct {
	Action Action `json:"action"`
}

// AnswerRequest records a single answer.
type AnswerRequest struct {
	Action Action `json:"action"`
	QID    string `json:"q_id"`
	Answer string `json:"ans"`
}

// EnvRequest carries the client's periodic environment sample. The integrity
// monitor reads the most recent sample on every poll.
type EnvRequest struct {
	Action Action            `json:"action"`
	Report proctor.EnvReport `json:"report"`
}

// EventRequest reports a discrete integrity event (copy, paste, context menu,
// focus loss).
type EventRequest struct {
	Action Action `json:"action"`
	Kind   string `json:"kind"`
}

// SubmitRequest finishes and grades the attempt.
type SubmitRequest struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventPhase      Event = "phase"
	EventTick       Event = "tick"
	EventWarning    Event = "warning"
	EventBlocked    Event = "blocked"
	EventGraded     Event = "graded"
	EventPong       Event = "pong"
	EventError      Event = "error"
	EventLockdown   Event = "lockdown"
	EventFullscreen Event = "fullscreen"
)

// PhaseEvent announces a lifecycle phase transition.
type PhaseEvent struct {
	Event Event  `json:"event"`
	Phase string `json:"phase"`
}

// TickEvent carries the remaining time, sent once per countdown second.
type TickEvent struct {
	Event     Event `json:"event"`
	Remaining int   `json:"remaining"`
}

// WarningEvent is a non-terminal violation notice.
type WarningEvent struct {
	Event   Event  `json:"event"`
	Count   int    `json:"count"`
	Limit   int    `json:"limit"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// BlockedEvent announces a disqualification.
type BlockedEvent struct {
	Event  Event  `json:"event"`
	Reason string `json:"reason"`
}

// GradedEvent carries the final result of a finished attempt.
type GradedEvent struct {
	Event        Event     `json:"event"`
	Status       string    `json:"status"`
	Score        int       `json:"score"`
	FinishReason string    `json:"finish_reason"`
	FinishedAt   time.Time `json:"finished_at"`
}

// LockdownEvent instructs the client to engage or release its input
// restrictions (copy, paste, context menu interception).
type LockdownEvent struct {
	Event  Event `json:"event"`
	Engage bool  `json:"engage"`
}

// FullscreenEvent instructs the client to enter or leave fullscreen.
type FullscreenEvent struct {
	Event Event `json:"event"`
	Enter bool  `json:"enter"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
