package model

import "encoding/json"

// QuestionType distinguishes auto-gradable single-choice questions from
// free-text ones.
type QuestionType string

const (
	QuestionTypeSingleChoice QuestionType = "SINGLE_CHOICE"
	QuestionTypeFreeText     QuestionType = "FREE_TEXT"
)

// Question is a single exam question. Prompt may carry LaTeX math markup;
// rendering is the client's concern.
type Question struct {
	ID            string          `json:"id"`
	BankID        string          `json:"bank_id"`
	Prompt        string          `json:"prompt"`
	QuestionType  QuestionType    `json:"question_type"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer string          `json:"correct_answer"`
	ImageURL      string          `json:"image_url,omitempty"`
	OrderNum      int             `json:"order_num"`
}

// QuestionForStudent is a question stripped of its correct answer, as
// delivered to the test-taker.
type QuestionForStudent struct {
	ID           string          `json:"id"`
	Prompt       string          `json:"prompt"`
	QuestionType QuestionType    `json:"question_type"`
	Options      json.RawMessage `json:"options"`
	ImageURL     string          `json:"image_url,omitempty"`
}

// ForStudent strips the grading key from a question.
func (q Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{
		ID:           q.ID,
		Prompt:       q.Prompt,
		QuestionType: q.QuestionType,
		Options:      q.Options,
		ImageURL:     q.ImageURL,
	}
}

// QuestionBank is an ordered collection of questions referenced by exam
// configurations.
type QuestionBank struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
