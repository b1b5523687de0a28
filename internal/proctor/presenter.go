package proctor

import "sync"

// Presenter carries the presentation-layer side effects of an attempt:
// suppression of text selection / printing while in progress, and
// best-effort fullscreen. None of this is a security boundary — the engine
// only guarantees the suppression resource is released on every exit path.
type Presenter interface {
	AcquireSuppression()
	ReleaseSuppression()
	EnterFullscreen() error
	ExitFullscreen() error
}

// PresenterRelay forwards presenter calls to whichever transport is
// currently attached. The session engine outlives any single WebSocket
// connection, so the relay remembers the desired suppression state and
// replays it when a new connection attaches (reload mid-attempt).
type PresenterRelay struct {
	mu         sync.Mutex
	target     Presenter
	suppressed bool
	fullscreen bool
}

// NewPresenterRelay creates a relay with no transport attached.
func NewPresenterRelay() *PresenterRelay {
	return &PresenterRelay{}
}

// Attach binds a transport and replays the current presentation state so a
// reconnecting client re-enters lockdown immediately.
func (r *PresenterRelay) Attach(p Presenter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = p
	if p == nil {
		return
	}
	if r.suppressed {
		p.AcquireSuppression()
	}
	if r.fullscreen {
		_ = p.EnterFullscreen()
	}
}

// Detach drops the current transport. State is kept for the next Attach.
func (r *PresenterRelay) Detach() {
	r.mu.Lock()
	r.target = nil
	r.mu.Unlock()
}

func (r *PresenterRelay) AcquireSuppression() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suppressed = true
	if r.target != nil {
		r.target.AcquireSuppression()
	}
}

func (r *PresenterRelay) ReleaseSuppression() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.suppressed = false
	if r.target != nil {
		r.target.ReleaseSuppression()
	}
}

func (r *PresenterRelay) EnterFullscreen() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fullscreen = true
	if r.target != nil {
		return r.target.EnterFullscreen()
	}
	return nil
}

func (r *PresenterRelay) ExitFullscreen() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fullscreen = false
	if r.target != nil {
		return r.target.ExitFullscreen()
	}
	return nil
}
