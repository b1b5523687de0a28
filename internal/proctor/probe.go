package proctor

import "sync"

// EnvironmentProbe exposes the tamper-relevant environment signals the
// integrity monitor evaluates. Implementations decide where the signals come
// from (a live client report stream in production, a canned fake in tests);
// the detection logic never touches host globals directly.
//
// A capability the host cannot supply returns an error; the monitor skips
// that heuristic for the tick and keeps running.
type EnvironmentProbe interface {
	IsHidden() (bool, error)
	ViewportToScreenRatio() (float64, error)
	WindowChromeDelta() (dx, dy float64, err error)
	ActiveElementIsTextInput() (bool, error)
}

// EnvReport is one environment sample as reported by the client over the
// exam stream.
type EnvReport struct {
	Hidden           bool    `json:"hidden"`
	ViewportRatio    float64 `json:"viewport_ratio"`
	ChromeDeltaX     float64 `json:"chrome_delta_x"`
	ChromeDeltaY     float64 `json:"chrome_delta_y"`
	TextInputFocused bool    `json:"text_input_focused"`
}

// ReportedProbe is an EnvironmentProbe backed by the most recent client
// report. Until the first report arrives every capability returns
// ErrProbeNoSample, which the monitor treats as "heuristic unavailable".
type ReportedProbe struct {
	mu   sync.RWMutex
	last *EnvReport
}

// NewReportedProbe creates an empty probe awaiting its first report.
func NewReportedProbe() *ReportedProbe {
	return &ReportedProbe{}
}

// Update replaces the current sample.
func (p *ReportedProbe) Update(r EnvReport) {
	p.mu.Lock()
	p.last = &r
	p.mu.Unlock()
}

func (p *ReportedProbe) sample() (*EnvReport, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.last == nil {
		return nil, ErrProbeNoSample
	}
	return p.last, nil
}

func (p *ReportedProbe) IsHidden() (bool, error) {
	s, err := p.sample()
	if err != nil {
		return false, err
	}
	return s.Hidden, nil
}

func (p *ReportedProbe) ViewportToScreenRatio() (float64, error) {
	s, err := p.sample()
	if err != nil {
		return 0, err
	}
	return s.ViewportRatio, nil
}

func (p *ReportedProbe) WindowChromeDelta() (dx, dy float64, err error) {
	s, err := p.sample()
	if err != nil {
		return 0, 0, err
	}
	return s.ChromeDeltaX, s.ChromeDeltaY, nil
}

func (p *ReportedProbe) ActiveElementIsTextInput() (bool, error) {
	s, err := p.sample()
	if err != nil {
		return false, err
	}
	return s.TextInputFocused, nil
}
