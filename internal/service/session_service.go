package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/proktor-id/proktor-backend/internal/config"
	"github.com/proktor-id/proktor-backend/internal/model"
	"github.com/proktor-id/proktor-backend/internal/proctor"
	"github.com/proktor-id/proktor-backend/internal/registry"
	ws "github.com/proktor-id/proktor-backend/internal/websocket"
)

// ErrResultNotReady is returned when a result is requested for a ticket whose
// attempt has not finished.
var ErrResultNotReady = errors.New("attempt has not finished")

// StartSessionResponse is the payload handed to a student whose ticket
// resolved. Questions are the per-ticket shuffle with answer keys stripped.
type StartSessionResponse struct {
	SessionID       string                     `json:"session_id"`
	Token           string                     `json:"token"`
	StudentName     string                     `json:"student_name,omitempty"`
	Phase           string                     `json:"phase"`
	DurationSeconds int                        `json:"duration_seconds"`
	Remaining       int                        `json:"remaining"`
	Questions       []model.QuestionForStudent `json:"questions"`
	Resumed         bool                       `json:"resumed"`
	SavedAnswers    map[string]string          `json:"saved_answers,omitempty"`
}

// SessionService runs the proctored attempt lifecycle: it loads tickets into
// live sessions, wires machine notifications onto the session's event stream,
// and mirrors answers into Redis so a reload can restore them.
type SessionService struct {
	cfg     *config.Config
	loader  *proctor.Loader
	tickets proctor.TicketStore
	sink    proctor.ViolationSink
	reg     *registry.Registry
	rdb     *redis.Client
	tokens  *TokenService
	log     zerolog.Logger
}

// NewSessionService creates a new SessionService.
func NewSessionService(
	cfg *config.Config,
	loader *proctor.Loader,
	tickets proctor.TicketStore,
	sink proctor.ViolationSink,
	reg *registry.Registry,
	rdb *redis.Client,
	tokens *TokenService,
	log zerolog.Logger,
) *SessionService {
	return &SessionService{
		cfg:     cfg,
		loader:  loader,
		tickets: tickets,
		sink:    sink,
		reg:     reg,
		rdb:     rdb,
		tokens:  tokens,
		log:     log.With().Str("component", "session_service").Logger(),
	}
}

// StartSession resolves a ticket into a live session. A ticket that already
// has a live, non-terminal session in this process resumes it instead of
// starting over (the reload case); the loader rejects consumed tickets.
func (s *SessionService) StartSession(ctx context.Context, req model.StartSessionRequest) (*StartSessionResponse, error) {
	code := model.NormalizeTicketCode(req.TicketCode)

	if sess, ok := s.reg.GetByTicket(code); ok && !sess.Machine.Phase().Terminal() {
		return s.resume(sess)
	}

	sc, err := s.loader.Load(ctx, code)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.New().String()
	sess := &registry.Session{
		ID:         sessionID,
		TicketCode: sc.TicketCode,
		Probe:      proctor.NewReportedProbe(),
		Presenter:  proctor.NewPresenterRelay(),
	}

	submitter := proctor.NewSubmissionCoordinator(s.tickets, s.log)
	sess.Machine = proctor.NewMachine(sc, sess.Probe, sess.Presenter, submitter, s.sink, proctor.MachineOptions{
		Threshold:    s.cfg.DisqualifyThreshold,
		PollInterval: s.cfg.MonitorPollInterval,
		Hooks:        s.hooksFor(sess),
		Logger:       s.log,
	})

	s.reg.Add(sess)

	if err := s.tickets.Activate(ctx, sc.TicketCode); err != nil {
		// The consume guard is what actually protects the attempt; a failed
		// activation only degrades the admin's live view.
		s.log.Warn().Err(err).Str("ticket", sc.TicketCode).Msg("Failed to mark ticket ACTIVE")
	}

	if err := sess.Machine.EnterCountdown(); err != nil {
		s.reg.Remove(sessionID)
		return nil, fmt.Errorf("enter countdown: %w", err)
	}

	s.cacheSessionStart(ctx, sess)

	token, err := s.tokens.Generate(sessionID, sc.TicketCode)
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("session_id", sessionID).
		Str("ticket", sc.TicketCode).
		Int("questions", len(sc.Questions)).
		Msg("Session started")

	return &StartSessionResponse{
		SessionID:       sessionID,
		Token:           token,
		StudentName:     sc.StudentName,
		Phase:           string(sess.Machine.Phase()),
		DurationSeconds: sc.DurationSeconds,
		Remaining:       sess.Machine.Remaining(),
		Questions:       questionsForStudent(sc.Questions),
	}, nil
}

// resume re-issues a token for a live session and returns its current state,
// including the answers buffered so far.
func (s *SessionService) resume(sess *registry.Session) (*StartSessionResponse, error) {
	token, err := s.tokens.Generate(sess.ID, sess.TicketCode)
	if err != nil {
		return nil, err
	}

	sc := sess.Machine.Context()
	s.log.Info().Str("session_id", sess.ID).Str("ticket", sess.TicketCode).Msg("Session resumed")

	return &StartSessionResponse{
		SessionID:       sess.ID,
		Token:           token,
		StudentName:     sc.StudentName,
		Phase:           string(sess.Machine.Phase()),
		DurationSeconds: sc.DurationSeconds,
		Remaining:       sess.Machine.Remaining(),
		Questions:       questionsForStudent(sc.Questions),
		Resumed:         true,
		SavedAnswers:    sess.Machine.Answers(),
	}, nil
}

// Get looks a live session up by id.
func (s *SessionService) Get(sessionID string) (*registry.Session, bool) {
	return s.reg.Get(sessionID)
}

// Begin moves a session from its countdown into the running exam.
func (s *SessionService) Begin(sess *registry.Session) error {
	return sess.Machine.Start()
}

// Answer records one answer and mirrors it into the autosave cache.
func (s *SessionService) Answer(ctx context.Context, sess *registry.Session, questionID, value string) error {
	if err := sess.Machine.Answer(questionID, value); err != nil {
		return err
	}
	key := config.CacheKey.SessionAnswersKey(sess.ID)
	if err := s.rdb.HSet(ctx, key, questionID, value).Err(); err != nil {
		s.log.Warn().Err(err).Str("session_id", sess.ID).Msg("Failed to autosave answer")
	}
	return nil
}

// Submit finishes the attempt. A terminal session returns its recorded result.
func (s *SessionService) Submit(ctx context.Context, sess *registry.Session) (*model.TicketResult, error) {
	res, err := sess.Machine.Submit(ctx)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Result returns the persisted outcome of a consumed ticket.
func (s *SessionService) Result(ctx context.Context, rawCode string) (*model.TicketResult, error) {
	code := model.NormalizeTicketCode(rawCode)
	if code == "" {
		return nil, proctor.ErrInvalidTicketCode
	}

	ticket, err := s.tickets.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if ticket.Status != model.TicketStatusConsumed {
		return nil, ErrResultNotReady
	}

	res := &model.TicketResult{}
	if ticket.Score != nil {
		res.Score = *ticket.Score
	}
	if ticket.FinishReason != nil {
		res.FinishReason = *ticket.FinishReason
	}
	if ticket.FinishedAt != nil {
		res.FinishedAt = *ticket.FinishedAt
	}
	if len(ticket.Answers) > 0 {
		if err := json.Unmarshal(ticket.Answers, &res.Answers); err != nil {
			return nil, fmt.Errorf("decode stored answers: %w", err)
		}
	}
	return res, nil
}

// hooksFor wires machine notifications onto the session's event stream. The
// callbacks only publish; the stream pump owns delivery.
func (s *SessionService) hooksFor(sess *registry.Session) proctor.Hooks {
	limit := s.cfg.DisqualifyThreshold
	if limit <= 0 {
		limit = proctor.DefaultDisqualifyThreshold
	}

	return proctor.Hooks{
		OnPhase: func(p proctor.Phase) {
			sess.Publish(registry.Event{Type: string(ws.EventPhase), Data: ws.PhaseEvent{
				Event: ws.EventPhase,
				Phase: string(p),
			}})
		},
		OnTick: func(remaining int) {
			sess.Publish(registry.Event{Type: string(ws.EventTick), Data: ws.TickEvent{
				Event:     ws.EventTick,
				Remaining: remaining,
			}})
		},
		OnWarning: func(count int, v model.Violation) {
			sess.Publish(registry.Event{Type: string(ws.EventWarning), Data: ws.WarningEvent{
				Event:   ws.EventWarning,
				Count:   count,
				Limit:   limit,
				Type:    string(v.Type),
				Message: v.Message,
			}})
		},
		OnResult: func(res model.TicketResult, reason proctor.Reason) {
			if reason == proctor.ReasonDisqualified {
				sess.Publish(registry.Event{Type: string(ws.EventBlocked), Data: ws.BlockedEvent{
					Event:  ws.EventBlocked,
					Reason: string(res.FinishReason),
				}})
			}
			sess.Publish(registry.Event{Type: string(ws.EventGraded), Data: ws.GradedEvent{
				Event:        ws.EventGraded,
				Status:       "ok",
				Score:        res.Score,
				FinishReason: string(res.FinishReason),
				FinishedAt:   res.FinishedAt,
			}})
			go s.cleanup(sess)
		},
		OnSubmitError: func(reason proctor.Reason, err error) {
			sess.Publish(registry.Event{Type: string(ws.EventError), Data: ws.ErrorResponse{
				Event: ws.EventError,
				Error: "Gagal menyimpan hasil ujian. Coba lagi.",
			}})
		},
	}
}

// cacheSessionStart mirrors the session identity into Redis. Best-effort;
// the in-memory registry is the live source of truth.
func (s *SessionService) cacheSessionStart(ctx context.Context, sess *registry.Session) {
	expiry := time.Duration(sess.Machine.Context().DurationSeconds)*time.Second + time.Hour
	if err := s.rdb.Set(ctx, config.CacheKey.SessionStartKey(sess.ID), time.Now().Unix(), expiry).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache session start")
		return
	}
	_ = s.rdb.Set(ctx, config.CacheKey.TicketSessionKey(sess.TicketCode), sess.ID, expiry).Err()
}

// cleanup drops a finished session's live state and cache entries.
func (s *SessionService) cleanup(sess *registry.Session) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.reg.Remove(sess.ID)
	_ = s.rdb.Del(ctx,
		config.CacheKey.SessionAnswersKey(sess.ID),
		config.CacheKey.SessionStartKey(sess.ID),
		config.CacheKey.TicketSessionKey(sess.TicketCode),
	).Err()
}

func questionsForStudent(qs []model.Question) []model.QuestionForStudent {
	out := make([]model.QuestionForStudent, 0, len(qs))
	for i := range qs {
		out = append(out, qs[i].ForStudent())
	}
	return out
}
