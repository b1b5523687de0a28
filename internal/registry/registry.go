// Package registry keeps the live proctored sessions in memory. The
// persisted ticket record stays the source of truth for "has this attempt
// been consumed"; the registry only tracks attempts currently running in
// this process so a reload can resume them.
package registry

import (
	"sync"

	"github.com/proktor-id/proktor-backend/internal/proctor"
)

// Event is a server-to-client notification queued for the attached stream.
type Event struct {
	Type string      `json:"event"`
	Data interface{} `json:"data,omitempty"`
}

// Session is one live attempt: its machine, its report-fed probe, and the
// presenter relay the transport attaches to.
type Session struct {
	ID         string
	TicketCode string
	Machine    *proctor.Machine
	Probe      *proctor.ReportedProbe
	Presenter  *proctor.PresenterRelay

	mu     sync.Mutex
	events chan Event
}

// Publish queues an event for the attached stream. Non-blocking: when no
// consumer keeps up the oldest event is dropped — the stream protocol is
// state-carrying, so a reconnecting client resyncs from a snapshot anyway.
func (s *Session) Publish(evt Event) {
	s.mu.Lock()
	ch := s.events
	s.mu.Unlock()
	if ch == nil {
		return
	}
	for {
		select {
		case ch <- evt:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}

// Events returns the session's event stream.
func (s *Session) Events() <-chan Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events
}

// Registry is the in-memory index of live sessions, by session id and by
// ticket code.
type Registry struct {
	mu       sync.RWMutex
	byID     map[string]*Session
	byTicket map[string]*Session
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byID:     make(map[string]*Session),
		byTicket: make(map[string]*Session),
	}
}

// Add registers a new live session.
func (r *Registry) Add(s *Session) {
	s.mu.Lock()
	if s.events == nil {
		s.events = make(chan Event, 64)
	}
	s.mu.Unlock()

	r.mu.Lock()
	r.byID[s.ID] = s
	r.byTicket[s.TicketCode] = s
	r.mu.Unlock()
}

// Get looks a session up by id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// GetByTicket looks a session up by ticket code, for resume-on-reload.
func (r *Registry) GetByTicket(code string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byTicket[code]
	return s, ok
}

// Remove drops a session from the index.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	delete(r.byTicket, s.TicketCode)
}

// CloseAll tears down every live session. Used on server shutdown so no
// presentation suppression or timer leaks past the process.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		sessions = append(sessions, s)
	}
	r.byID = make(map[string]*Session)
	r.byTicket = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Machine.Close()
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
