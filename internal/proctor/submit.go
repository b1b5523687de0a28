package proctor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/proktor-id/proktor-backend/internal/model"
)

// Reason classifies why an attempt terminated.
type Reason string

const (
	ReasonNormal       Reason = "normal"
	ReasonTimeExpired  Reason = "time-expired"
	ReasonDisqualified Reason = "disqualified"
)

// FinishReason maps a termination reason to its persisted string.
func (r Reason) FinishReason() model.FinishReason {
	switch r {
	case ReasonTimeExpired:
		return model.FinishReasonTimeExpired
	case ReasonDisqualified:
		return model.FinishReasonDisqualified
	default:
		return model.FinishReasonNormal
	}
}

// SubmissionCoordinator persists the terminal outcome of one session exactly
// once. A one-shot guard deduplicates racing submit paths (double-click,
// timer expiry racing a manual submit); after the first successful write all
// further invocations return the recorded result without touching storage.
//
// Failure handling differs by reason: normal and time-expired submissions
// release the guard on persistence failure so the caller can retry, while a
// disqualification proceeds regardless — the test-taker cannot recover from
// it, so the forced transition must not stall on a write outcome.
type SubmissionCoordinator struct {
	tickets TicketStore
	log     zerolog.Logger
	now     func() time.Time

	mu     sync.Mutex
	taken  bool
	result *model.TicketResult
}

// NewSubmissionCoordinator creates a coordinator bound to one session's
// ticket store.
func NewSubmissionCoordinator(tickets TicketStore, log zerolog.Logger) *SubmissionCoordinator {
	return &SubmissionCoordinator{
		tickets: tickets,
		log:     log.With().Str("component", "submission").Logger(),
		now:     time.Now,
	}
}

// Result returns the recorded terminal result, if any.
func (s *SubmissionCoordinator) Result() *model.TicketResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Submit scores the answer buffer and writes the terminal record. Scoring
// always runs, including for disqualifications.
func (s *SubmissionCoordinator) Submit(
	ctx context.Context,
	ticketCode string,
	questions []model.Question,
	answers map[string]string,
	violationCount int,
	reason Reason,
) (*model.TicketResult, error) {
	s.mu.Lock()
	if s.result != nil {
		res := s.result
		s.mu.Unlock()
		return res, nil
	}
	if s.taken {
		// A submission is already in flight; treat the duplicate as a no-op.
		s.mu.Unlock()
		return nil, nil
	}
	s.taken = true
	s.mu.Unlock()

	buf := make(map[string]string, len(answers))
	for k, v := range answers {
		buf[k] = v
	}

	res := model.TicketResult{
		Score:        Score(questions, buf),
		Answers:      buf,
		FinishReason: reason.FinishReason(),
		FinishedAt:   s.now().UTC(),
	}

	applied, err := s.tickets.Consume(ctx, ticketCode, res, violationCount)
	if err != nil {
		if reason == ReasonDisqualified {
			// The blocked transition must proceed; the write is lost.
			s.log.Error().Err(err).Str("ticket", ticketCode).
				Msg("terminal write failed during disqualification")
			s.mu.Lock()
			s.result = &res
			s.mu.Unlock()
			return &res, nil
		}
		// Recoverable: release the guard so a caller-driven retry can run.
		s.mu.Lock()
		s.taken = false
		s.mu.Unlock()
		return nil, fmt.Errorf("persist terminal result: %w", err)
	}
	if !applied {
		s.log.Warn().Str("ticket", ticketCode).
			Msg("ticket already consumed, terminal write skipped")
	}

	s.mu.Lock()
	s.result = &res
	s.mu.Unlock()
	return &res, nil
}
