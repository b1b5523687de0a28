package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/proktor-id/proktor-backend/internal/config"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestViolationWorkerDiscardsMalformedJSON(t *testing.T) {
	mr, rdb := newTestRedis(t)
	w := NewViolationWorker(nil, rdb, zerolog.Nop())

	mr.Lpush(config.WorkerKey.PersistViolationsQueue, "{not json")
	mr.Lpush(config.WorkerKey.PersistViolationsQueue, "also not json")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	// Give the worker a moment to drain the queue, then stop it. The buffer
	// stays empty so shutdown never touches the database.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}

	if n := mr.Exists(config.WorkerKey.PersistViolationsQueue); n {
		t.Fatal("malformed entries should be discarded, not requeued")
	}
}

func TestViolationWorkerRequeuePreservesPayloads(t *testing.T) {
	_, rdb := newTestRedis(t)
	w := NewViolationWorker(nil, rdb, zerolog.Nop())

	items := []*ViolationPayload{
		{TicketCode: "ABC123", Type: "tab-hidden", Message: "Terdeteksi pindah tab / minimize!", RecordedAt: 1700000000000},
		{TicketCode: "ABC123", Type: "clipboard-copy", Message: "Copy dinonaktifkan.", RecordedAt: 1700000000800},
	}
	w.requeue(context.Background(), items)

	raw, err := rdb.LRange(context.Background(), config.WorkerKey.PersistViolationsQueue, 0, -1).Result()
	if err != nil {
		t.Fatalf("lrange: %v", err)
	}
	if len(raw) != 2 {
		t.Fatalf("expected 2 requeued items, got %d", len(raw))
	}
	for i, data := range raw {
		var p ViolationPayload
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			t.Fatalf("requeued item %d is not valid JSON: %v", i, err)
		}
		if p != *items[i] {
			t.Fatalf("item %d mismatch: got %+v want %+v", i, p, *items[i])
		}
	}
}
