package registry

import (
	"testing"
)

func TestRegistryAddGetRemove(t *testing.T) {
	r := New()
	s := &Session{ID: "sess-1", TicketCode: "ABC123"}
	r.Add(s)

	if got, ok := r.Get("sess-1"); !ok || got != s {
		t.Fatal("session not found by id")
	}
	if got, ok := r.GetByTicket("ABC123"); !ok || got != s {
		t.Fatal("session not found by ticket")
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", r.Len())
	}

	r.Remove("sess-1")
	if _, ok := r.Get("sess-1"); ok {
		t.Fatal("session survived removal")
	}
	if _, ok := r.GetByTicket("ABC123"); ok {
		t.Fatal("ticket index survived removal")
	}
}

func TestRegistryRemoveUnknownIsNoop(t *testing.T) {
	r := New()
	r.Remove("missing")
}

func TestSessionPublishDropsOldestWhenFull(t *testing.T) {
	r := New()
	s := &Session{ID: "sess-1", TicketCode: "ABC123"}
	r.Add(s)

	for i := 0; i < 100; i++ {
		s.Publish(Event{Type: "tick", Data: i})
	}

	// The channel holds the most recent events; none of the publishes may
	// have blocked.
	var last int
	for {
		select {
		case evt := <-s.Events():
			last = evt.Data.(int)
			continue
		default:
		}
		break
	}
	if last != 99 {
		t.Fatalf("expected newest event retained, got %d", last)
	}
}
