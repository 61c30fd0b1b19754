package model

import (
	"time"
)

// Submission is one persisted answer, keyed by (attempt, question).
// The backend upserts on that pair, so repeated saves for the same
// question coalesce server-side as well.
type Submission struct {
	AttemptID  int     `json:"userAssessmentId" validate:"required"`
	QuestionID int     `json:"questionId" validate:"required"`
	AnswerText *string `json:"answerText,omitempty"`
	AnswerFile *string `json:"answerFilePath,omitempty"`

	// Server-assigned on creation.
	SubmissionID *int       `json:"submissionId,omitempty"`
	SubmittedAt  *time.Time `json:"submittedAt,omitempty"`

	// Populated only after evaluation.
	IsCorrect     *bool    `json:"isCorrect,omitempty"`
	MarksObtained *float64 `json:"marksObtained,omitempty"`
}

// Answer returns the text value, empty when unset.
func (s *Submission) Answer() string {
	if s.AnswerText == nil {
		return ""
	}
	return *s.AnswerText
}

// NewSubmission builds an answer payload for the upsert endpoint.
func NewSubmission(attemptID, questionID int, answer string) Submission {
	return Submission{
		AttemptID:  attemptID,
		QuestionID: questionID,
		AnswerText: &answer,
	}
}
