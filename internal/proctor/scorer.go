package proctor

import (
	"math"

	"github.com/proktor-id/proktor-backend/internal/model"
)

// Score tallies exact matches between submitted answers and the canonical
// answer of every question, returning round(100*correct/total). An empty
// question set scores 0.
//
// Free-text questions go through the same exact-match comparison as
// single-choice ones. Manual correction of free-text responses happens in the
// grading frontend after the fact; the automatic score recorded here treats
// them like any other question.
func Score(questions []model.Question, answers map[string]string) int {
	total := len(questions)
	if total == 0 {
		return 0
	}

	correct := 0
	for _, q := range questions {
		if q.CorrectAnswer == "" {
			continue
		}
		if answers[q.ID] == q.CorrectAnswer {
			correct++
		}
	}

	return int(math.Round(float64(correct) / float64(total) * 100))
}
