package proctor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/proktor-id/proktor-backend/internal/model"
)

// Phase is the session's lifecycle state. BLOCKED and COMPLETED are
// terminal.
type Phase string

const (
	PhaseLoading    Phase = "LOADING"
	PhaseCountdown  Phase = "COUNTDOWN"
	PhaseInProgress Phase = "IN_PROGRESS"
	PhaseBlocked    Phase = "BLOCKED"
	PhaseCompleted  Phase = "COMPLETED"
)

// Terminal reports whether p admits no further transitions.
func (p Phase) Terminal() bool {
	return p == PhaseBlocked || p == PhaseCompleted
}

// DefaultDisqualifyThreshold is the violation count that forces termination.
const DefaultDisqualifyThreshold = 3

// Hooks receives machine notifications. Callbacks run synchronously on the
// transition path and must not re-enter the machine; implementations should
// hand the event off (e.g. push to a buffered channel) and return.
type Hooks struct {
	OnPhase       func(Phase)
	OnTick        func(remaining int)
	OnWarning     func(count int, v model.Violation)
	OnResult      func(res model.TicketResult, reason Reason)
	OnSubmitError func(reason Reason, err error)
}

// MachineOptions tunes a session machine.
type MachineOptions struct {
	// Threshold is the disqualification violation count; <= 0 uses
	// DefaultDisqualifyThreshold.
	Threshold int

	// PollInterval is the integrity monitor interval; <= 0 uses
	// DefaultPollInterval.
	PollInterval time.Duration

	// TickInterval is the countdown tick interval; <= 0 uses one second.
	TickInterval time.Duration

	// Manual suppresses the poll and tick goroutines; the caller drives the
	// clocks through Tick and Poll. Used by tests.
	Manual bool

	Hooks  Hooks
	Logger zerolog.Logger
}

// Machine orchestrates one proctored attempt: it owns the phase, the answer
// buffer, the violation tally, and the wiring between loader output, probe,
// timer, monitor and submission coordinator.
type Machine struct {
	sc        *SessionContext
	presenter Presenter
	submitter *SubmissionCoordinator
	sink      ViolationSink
	timer     *Timer
	monitor   *Monitor
	opts      MachineOptions
	threshold int
	hooks     Hooks
	log       zerolog.Logger

	mu             sync.Mutex
	phase          Phase
	answers        map[string]string
	violations     []model.Violation
	violationCount int
	// pendingReason preserves a failed timer-triggered submission so a
	// caller-driven retry keeps the original finish reason.
	pendingReason Reason
}

// NewMachine builds a machine in the Loading phase around a loaded session
// context.
func NewMachine(
	sc *SessionContext,
	probe EnvironmentProbe,
	presenter Presenter,
	submitter *SubmissionCoordinator,
	sink ViolationSink,
	opts MachineOptions,
) *Machine {
	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = DefaultDisqualifyThreshold
	}

	m := &Machine{
		sc:        sc,
		presenter: presenter,
		submitter: submitter,
		sink:      sink,
		opts:      opts,
		threshold: threshold,
		hooks:     opts.Hooks,
		log: opts.Logger.With().
			Str("component", "session_machine").
			Str("ticket", sc.TicketCode).
			Logger(),
		phase:   PhaseLoading,
		answers: make(map[string]string),
	}

	m.timer = NewTimer(sc.DurationSeconds, m.handleTick, m.handleExpiry)
	m.monitor = NewMonitor(probe, opts.PollInterval, m.handleViolation, opts.Logger)
	return m
}

// Context returns the immutable session context.
func (m *Machine) Context() *SessionContext { return m.sc }

// Phase returns the current lifecycle phase.
func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// Remaining returns the seconds left on the countdown.
func (m *Machine) Remaining() int { return m.timer.Remaining() }

// ViolationCount returns the monotonically non-decreasing violation tally.
func (m *Machine) ViolationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.violationCount
}

// Violations returns a copy of the session's violation log.
func (m *Machine) Violations() []model.Violation {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Violation, len(m.violations))
	copy(out, m.violations)
	return out
}

// Answers returns a copy of the answer buffer, for state resume on reload.
func (m *Machine) Answers() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.answers))
	for k, v := range m.answers {
		out[k] = v
	}
	return out
}

// Result returns the terminal result once the session has finished.
func (m *Machine) Result() *model.TicketResult { return m.submitter.Result() }

// EnterCountdown moves Loading → Countdown after successful resolution.
func (m *Machine) EnterCountdown() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseLoading {
		return ErrInvalidTransition
	}
	m.setPhaseLocked(PhaseCountdown)
	return nil
}

// Start moves Countdown → InProgress on the explicit user action: fullscreen
// is requested best-effort, presentation suppression is acquired, and the
// integrity monitor and countdown start.
func (m *Machine) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseCountdown {
		return ErrInvalidTransition
	}

	if err := m.presenter.EnterFullscreen(); err != nil {
		// Non-fatal; some clients refuse programmatic fullscreen.
		m.log.Debug().Err(err).Msg("fullscreen request failed")
	}
	m.presenter.AcquireSuppression()

	if m.opts.Manual {
		m.monitor.StartManual()
	} else {
		m.monitor.Start()
		tick := m.opts.TickInterval
		if tick <= 0 {
			tick = time.Second
		}
		m.timer.Start(tick)
	}

	m.setPhaseLocked(PhaseInProgress)
	m.log.Info().Int("duration_s", m.sc.DurationSeconds).Msg("attempt started")
	return nil
}

// Answer records one answer keyed by question id. Only valid while
// InProgress and only for ids present in the session's question set.
func (m *Machine) Answer(questionID, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseInProgress {
		return ErrNotInProgress
	}
	if _, ok := m.sc.QuestionByID(questionID); !ok {
		return ErrUnknownQuestion
	}
	m.answers[questionID] = value
	return nil
}

// Tick advances the countdown by one second. Production machines tick from
// an internal goroutine; tests call this directly.
func (m *Machine) Tick() { m.timer.Tick() }

// Poll runs one integrity evaluation pass. Production machines poll from an
// internal goroutine; tests call this directly.
func (m *Machine) Poll() { m.monitor.Poll() }

// HandleEvent forwards a discrete tamper event (copy, paste, context menu,
// blur) into the integrity monitor.
func (m *Machine) HandleEvent(kind EventKind) { m.monitor.HandleEvent(kind) }

// Submit performs the manual, user-confirmed submission. Once the machine
// has left InProgress the call is a no-op returning the recorded result.
func (m *Machine) Submit(ctx context.Context) (*model.TicketResult, error) {
	m.mu.Lock()
	if m.phase.Terminal() {
		m.mu.Unlock()
		return m.submitter.Result(), nil
	}
	if m.phase != PhaseInProgress {
		m.mu.Unlock()
		return nil, ErrNotInProgress
	}
	reason := ReasonNormal
	if m.pendingReason != "" {
		reason = m.pendingReason
	}
	m.mu.Unlock()

	return m.finish(ctx, reason)
}

// Close releases every held resource. Used on unmount paths (server
// shutdown) where no terminal transition happened; terminal phases have
// already torn down.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase.Terminal() {
		return
	}
	m.teardownLocked()
}

// ─── internal transitions ───────────────────────────────────────────

func (m *Machine) handleTick(remaining int) {
	if m.hooks.OnTick != nil {
		m.hooks.OnTick(remaining)
	}
}

// handleExpiry fires once when the countdown reaches zero.
func (m *Machine) handleExpiry() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := m.finish(ctx, ReasonTimeExpired); err != nil {
		m.log.Error().Err(err).Msg("time-expired submission failed, session stays resumable")
	}
}

// handleViolation is the monitor callback: count, log, warn, and disqualify
// at the threshold regardless of the telemetry write outcome.
func (m *Machine) handleViolation(v model.Violation) {
	m.mu.Lock()
	if m.phase != PhaseInProgress {
		m.mu.Unlock()
		return
	}
	m.violationCount++
	m.violations = append(m.violations, v)
	count := m.violationCount
	m.mu.Unlock()

	m.log.Warn().
		Str("type", string(v.Type)).
		Int("count", count).
		Msg("integrity violation")

	if m.sink != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := m.sink.Record(ctx, m.sc.TicketCode, v); err != nil {
			m.log.Error().Err(err).Msg("violation telemetry write failed")
		}
		cancel()
	}

	if count >= m.threshold {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = m.finish(ctx, ReasonDisqualified)
		return
	}

	if m.hooks.OnWarning != nil {
		m.hooks.OnWarning(count, v)
	}
}

// finish runs the terminal transition for the given reason. Exactly one
// terminal write happens per session; duplicate and racing callers fall
// through to no-ops here or in the coordinator's guard.
func (m *Machine) finish(ctx context.Context, reason Reason) (*model.TicketResult, error) {
	m.mu.Lock()
	if m.phase != PhaseInProgress {
		res := m.submitter.Result()
		m.mu.Unlock()
		return res, nil
	}

	answers := make(map[string]string, len(m.answers))
	for k, v := range m.answers {
		answers[k] = v
	}
	count := m.violationCount
	m.mu.Unlock()

	res, err := m.submitter.Submit(ctx, m.sc.TicketCode, m.sc.Questions, answers, count, reason)
	if err != nil {
		// Normal/time-expired persistence failure: stay InProgress so the
		// attempt is not silently lost; the caller retries.
		m.mu.Lock()
		if reason == ReasonTimeExpired {
			m.pendingReason = reason
		}
		m.mu.Unlock()
		if m.hooks.OnSubmitError != nil {
			m.hooks.OnSubmitError(reason, err)
		}
		return nil, err
	}
	if res == nil {
		// Another submission won the in-flight guard.
		return m.submitter.Result(), nil
	}

	m.mu.Lock()
	if m.phase != PhaseInProgress {
		m.mu.Unlock()
		return res, nil
	}
	m.teardownLocked()
	if reason == ReasonDisqualified {
		m.setPhaseLocked(PhaseBlocked)
	} else {
		m.setPhaseLocked(PhaseCompleted)
	}
	m.mu.Unlock()

	if reason == ReasonDisqualified {
		if err := m.presenter.ExitFullscreen(); err != nil {
			m.log.Debug().Err(err).Msg("fullscreen exit failed")
		}
	}
	if m.hooks.OnResult != nil {
		m.hooks.OnResult(*res, reason)
	}
	m.log.Info().
		Str("reason", string(reason)).
		Int("score", res.Score).
		Msg("attempt finished")
	return res, nil
}

// teardownLocked cancels the countdown, tears down the integrity monitor and
// releases the presentation suppression. Runs synchronously inside the
// terminal transition; must hold m.mu.
func (m *Machine) teardownLocked() {
	m.timer.Stop()
	m.monitor.Stop()
	m.presenter.ReleaseSuppression()
}

func (m *Machine) setPhaseLocked(p Phase) {
	m.phase = p
	if m.hooks.OnPhase != nil {
		m.hooks.OnPhase(p)
	}
}
