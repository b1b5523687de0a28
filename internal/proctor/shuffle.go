package proctor

import (
	"hash/fnv"
	"math/rand"

	"github.com/proktor-id/proktor-backend/internal/model"
)

// ShuffleQuestions returns a shuffled copy of qs, seeded from the ticket
// code. The same ticket always produces the same order, so a reload
// mid-attempt re-presents identical question numbering. Answers are keyed by
// question id, never by position, so ordering is presentation-only anyway.
func ShuffleQuestions(ticketCode string, qs []model.Question) []model.Question {
	out := make([]model.Question, len(qs))
	copy(out, qs)

	h := fnv.New64a()
	h.Write([]byte(ticketCode))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}
