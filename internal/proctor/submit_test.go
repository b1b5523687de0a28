package proctor

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/proktor-id/proktor-backend/internal/model"
)

func submitFixture() (*SubmissionCoordinator, *fakeTicketStore, []model.Question) {
	tickets := newFakeTicketStore(&model.Ticket{
		Code: "ABC123", Status: model.TicketStatusActive,
		ExamConfigID: "cfg-1", QuestionBankID: "bank-1",
	})
	questions := []model.Question{singleChoice("q1", "A"), singleChoice("q2", "B")}
	return NewSubmissionCoordinator(tickets, zerolog.Nop()), tickets, questions
}

func TestSubmitWritesTerminalRecordOnce(t *testing.T) {
	coord, tickets, questions := submitFixture()
	answers := map[string]string{"q1": "A", "q2": "C"}

	res, err := coord.Submit(context.Background(), "ABC123", questions, answers, 0, ReasonNormal)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if res.Score != 50 {
		t.Fatalf("expected score 50, got %d", res.Score)
	}
	if res.FinishReason != model.FinishReasonNormal {
		t.Fatalf("expected %q, got %q", model.FinishReasonNormal, res.FinishReason)
	}

	stored, ok := tickets.terminal("ABC123")
	if !ok {
		t.Fatal("terminal record not persisted")
	}
	if stored.Answers["q1"] != "A" || stored.Answers["q2"] != "C" {
		t.Fatalf("answers not persisted: %+v", stored.Answers)
	}
	if tickets.tickets["ABC123"].Status != model.TicketStatusConsumed {
		t.Fatalf("ticket not consumed: %s", tickets.tickets["ABC123"].Status)
	}

	// Second invocation is a no-op returning the recorded result.
	again, err := coord.Submit(context.Background(), "ABC123", questions, answers, 0, ReasonNormal)
	if err != nil {
		t.Fatalf("repeat submit errored: %v", err)
	}
	if again != res {
		t.Fatal("repeat submit did not return the recorded result")
	}
	if tickets.consumeCount() != 1 {
		t.Fatalf("expected exactly one store write, got %d", tickets.consumeCount())
	}
}

func TestSubmitDoubleClickRace(t *testing.T) {
	coord, tickets, questions := submitFixture()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = coord.Submit(context.Background(), "ABC123", questions, nil, 0, ReasonNormal)
		}()
	}
	wg.Wait()

	if tickets.consumeCount() != 1 {
		t.Fatalf("expected exactly one terminal write, got %d", tickets.consumeCount())
	}
}

func TestSubmitNormalFailureIsRetryable(t *testing.T) {
	coord, tickets, questions := submitFixture()
	tickets.setConsumeErr(errStoreDown)

	if _, err := coord.Submit(context.Background(), "ABC123", questions, nil, 0, ReasonNormal); err == nil {
		t.Fatal("expected persistence error")
	}
	if _, ok := tickets.terminal("ABC123"); ok {
		t.Fatal("no terminal record expected after failed write")
	}

	// The guard released: a retry succeeds.
	tickets.setConsumeErr(nil)
	res, err := coord.Submit(context.Background(), "ABC123", questions, nil, 0, ReasonNormal)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if res == nil {
		t.Fatal("retry returned no result")
	}
}

func TestSubmitDisqualifiedProceedsDespiteFailure(t *testing.T) {
	coord, tickets, questions := submitFixture()
	tickets.setConsumeErr(errStoreDown)

	res, err := coord.Submit(context.Background(), "ABC123", questions, nil, 3, ReasonDisqualified)
	if err != nil {
		t.Fatalf("disqualification must not surface the write error, got %v", err)
	}
	if res == nil || res.FinishReason != model.FinishReasonDisqualified {
		t.Fatalf("expected disqualified result, got %+v", res)
	}

	// Guard stays closed: no retry storm after a disqualification.
	again, err := coord.Submit(context.Background(), "ABC123", questions, nil, 3, ReasonDisqualified)
	if err != nil || again == nil {
		t.Fatalf("expected recorded result, got %v / %v", again, err)
	}
	if tickets.consumeCount() != 1 {
		t.Fatalf("expected one write attempt, got %d", tickets.consumeCount())
	}
}

func TestSubmitScoresDisqualifiedAttempts(t *testing.T) {
	coord, _, questions := submitFixture()

	res, err := coord.Submit(context.Background(), "ABC123", questions,
		map[string]string{"q1": "A", "q2": "B"}, 3, ReasonDisqualified)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if res.Score != 100 {
		t.Fatalf("scoring must run for disqualifications, got %d", res.Score)
	}
}
