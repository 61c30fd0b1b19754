package model

import (
	"fmt"
)

// QuestionKind enumerates question variants. Wire values match the backend
// enum. Code and File are reserved: the runner loads them but refuses to
// record answers against them.
type QuestionKind int

const (
	KindChoice QuestionKind = iota
	KindFreeText
	KindCode
	KindFile
)

func (k QuestionKind) String() string {
	switch k {
	case KindChoice:
		return "CHOICE"
	case KindFreeText:
		return "FREE_TEXT"
	case KindCode:
		return "CODE"
	case KindFile:
		return "FILE"
	default:
		return "UNKNOWN"
	}
}

// Implemented reports whether the runner can record answers for this kind.
func (k QuestionKind) Implemented() bool {
	return k == KindChoice || k == KindFreeText
}

// Difficulty enumerates question difficulty levels.
type Difficulty int

const (
	DifficultyEasy Difficulty = iota
	DifficultyMedium
	DifficultyHard
)

// Question is a single assessment question. Immutable for the duration of
// an attempt.
type Question struct {
	ID            int          `json:"questionId" validate:"required"`
	AssessmentID  int          `json:"assessmentId"`
	Text          string       `json:"questionText" validate:"required"`
	Kind          QuestionKind `json:"questionType"`
	Options       []string     `json:"options,omitempty"`
	Difficulty    Difficulty   `json:"difficultyLevel"`
	MaxMarks      float64      `json:"maxMarks" validate:"min=0"`
	ReferenceFile *string      `json:"referenceFilePath,omitempty"`
}

// Validate enforces the per-kind invariants at the collaborator boundary.
func (q *Question) Validate() error {
	switch q.Kind {
	case KindChoice:
		if len(q.Options) < 2 {
			return fmt.Errorf("question %d: choice question needs at least 2 options, got %d", q.ID, len(q.Options))
		}
	case KindFreeText, KindCode, KindFile:
		// No option list expected.
	default:
		return fmt.Errorf("question %d: unknown question kind %d", q.ID, q.Kind)
	}
	return nil
}

// OptionLetter returns the display letter for an option index (A, B, C, ...).
func OptionLetter(index int) string {
	return string(rune('A' + index))
}
