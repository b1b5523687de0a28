package proctor

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/proktor-id/proktor-backend/internal/model"
)

// Detection tunables. Defaults match the production frontend heuristics.
const (
	DefaultPollInterval = 800 * time.Millisecond

	// GeometryRatioThreshold flags viewport/screen height ratios below this
	// value as a split-screen anomaly.
	GeometryRatioThreshold = 0.80

	// ChromeDeltaThresholdPx flags (outer − inner) window deltas above this
	// value on either axis as an inspection-tool heuristic.
	ChromeDeltaThresholdPx = 160.0
)

// EventKind identifies a discrete tamper-relevant client event.
type EventKind string

const (
	EventCopy        EventKind = "copy"
	EventPaste       EventKind = "paste"
	EventContextMenu EventKind = "context_menu"
	EventBlur        EventKind = "blur"
)

// Monitor polls an EnvironmentProbe on a fixed interval and turns discrete
// client events into violations. It is active only while the session is in
// progress; Stop tears down the poll and silences further callbacks.
type Monitor struct {
	probe       EnvironmentProbe
	onViolation func(model.Violation)
	interval    time.Duration
	log         zerolog.Logger

	mu     sync.Mutex
	active bool
	stop   chan struct{}
}

// NewMonitor wires a monitor to a probe. interval <= 0 falls back to
// DefaultPollInterval. onViolation is invoked synchronously from Poll and
// HandleEvent.
func NewMonitor(probe EnvironmentProbe, interval time.Duration, onViolation func(model.Violation), log zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Monitor{
		probe:       probe,
		onViolation: onViolation,
		interval:    interval,
		log:         log.With().Str("component", "integrity_monitor").Logger(),
	}
}

// Start activates the monitor and spawns the production poll loop.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.active {
		m.mu.Unlock()
		return
	}
	m.active = true
	stop := make(chan struct{})
	m.stop = stop
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.Poll()
			}
		}
	}()
}

// StartManual activates the monitor without a poll goroutine. Tests drive
// evaluation through Poll directly.
func (m *Monitor) StartManual() {
	m.mu.Lock()
	m.active = true
	m.mu.Unlock()
}

// Stop deactivates the monitor and cancels the poll loop. Idempotent. No
// violation callback fires after Stop returns.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return
	}
	m.active = false
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
}

func (m *Monitor) isActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Poll runs one evaluation pass over the probe. Each heuristic fails
// independently: a probe capability error skips that heuristic only.
func (m *Monitor) Poll() {
	if !m.isActive() {
		return
	}

	if hidden, err := m.probe.IsHidden(); err != nil {
		m.log.Debug().Err(err).Msg("visibility probe unavailable")
	} else if hidden {
		m.emit(model.ViolationTabHidden, "Terdeteksi pindah tab / minimize!")
	}

	if ratio, err := m.probe.ViewportToScreenRatio(); err != nil {
		m.log.Debug().Err(err).Msg("geometry probe unavailable")
	} else if ratio < GeometryRatioThreshold {
		// An on-screen keyboard shrinks the viewport while a text input is
		// focused; suppress the heuristic to avoid false positives.
		typing, err := m.probe.ActiveElementIsTextInput()
		if err != nil {
			m.log.Debug().Err(err).Msg("focus probe unavailable")
			typing = false
		}
		if !typing {
			m.emit(model.ViolationGeometryAnomaly, "Dilarang split screen! Gunakan mode layar penuh.")
		}
	}

	if dx, dy, err := m.probe.WindowChromeDelta(); err != nil {
		m.log.Debug().Err(err).Msg("chrome delta probe unavailable")
	} else if dx > ChromeDeltaThresholdPx || dy > ChromeDeltaThresholdPx {
		m.emit(model.ViolationDevtools, "Terdeteksi Inspect Element/DevTools!")
	}
}

// HandleEvent converts one discrete client event into exactly one violation.
// Events arriving while the monitor is inactive are dropped.
func (m *Monitor) HandleEvent(kind EventKind) {
	if !m.isActive() {
		return
	}

	switch kind {
	case EventCopy:
		m.emit(model.ViolationClipboardCopy, "Copy dinonaktifkan.")
	case EventPaste:
		m.emit(model.ViolationClipboardPaste, "Paste dinonaktifkan.")
	case EventContextMenu:
		m.emit(model.ViolationContextMenu, "Klik kanan dinonaktifkan.")
	case EventBlur:
		m.emit(model.ViolationFocusLoss, "Fokus hilang dari ujian.")
	default:
		m.log.Warn().Str("kind", string(kind)).Msg("unknown integrity event")
	}
}

func (m *Monitor) emit(t model.ViolationType, msg string) {
	m.onViolation(model.Violation{
		Type:       t,
		Message:    msg,
		RecordedAt: time.Now(),
	})
}
