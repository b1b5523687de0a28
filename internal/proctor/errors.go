package proctor

import "errors"

// Startup (loader) failures. Any of these aborts session creation with no
// side effects.
var (
	ErrInvalidTicketCode     = errors.New("ticket code is malformed or missing")
	ErrTicketNotFound        = errors.New("ticket not found")
	ErrTicketConsumed        = errors.New("ticket already consumed")
	ErrTicketNotYetValid     = errors.New("ticket is not valid yet")
	ErrTicketExpired         = errors.New("ticket validity window has passed")
	ErrConfigMissing         = errors.New("exam configuration missing")
	ErrQuestionSourceMissing = errors.New("question source missing")
	ErrEmptyQuestionSet      = errors.New("question set is empty")
)

// Runtime failures.
var (
	ErrNotInProgress     = errors.New("session is not in progress")
	ErrInvalidTransition = errors.New("invalid phase transition")
	ErrUnknownQuestion   = errors.New("answer references an unknown question id")
	ErrProbeNoSample     = errors.New("no environment sample reported yet")
)
