package model

import (
	"time"
)

// AttemptStatus enumerates attempt lifecycle states. Wire values match the
// backend enum and only ever advance; the client never regresses one locally.
type AttemptStatus int

const (
	StatusNotStarted AttemptStatus = iota
	StatusInProgress
	StatusSubmitted
	StatusEvaluated
	StatusCompleted
)

func (s AttemptStatus) String() string {
	switch s {
	case StatusNotStarted:
		return "NOT_STARTED"
	case StatusInProgress:
		return "IN_PROGRESS"
	case StatusSubmitted:
		return "SUBMITTED"
	case StatusEvaluated:
		return "EVALUATED"
	case StatusCompleted:
		return "COMPLETED"
	default:
		return "UNKNOWN"
	}
}

// Attempt represents one candidate's scheduled instance of an assessment
// (the backend's "user assessment").
type Attempt struct {
	ID              int           `json:"userAssessmentId" validate:"required"`
	UserID          int           `json:"userId"`
	UserName        string        `json:"userName"`
	AssessmentID    int           `json:"assessmentId" validate:"required"`
	AssessmentTitle string        `json:"assessmentTitle"`
	DurationMinutes int           `json:"durationMinutes" validate:"required,min=1,max=480"`
	Status          AttemptStatus `json:"status" validate:"min=0,max=4"`
	ScheduledAt     time.Time     `json:"scheduledAt"`
	StartedAt       *time.Time    `json:"startedAt,omitempty"`
	SubmittedAt     *time.Time    `json:"submittedAt,omitempty"`

	// Populated only after evaluation.
	TotalMarksObtained *float64 `json:"totalMarksObtained,omitempty"`
	Percentage         *float64 `json:"percentage,omitempty"`
	Passed             *bool    `json:"passed,omitempty"`
	Feedback           *string  `json:"feedback,omitempty"`
}

// CanEnter reports whether the attempt may still be taken.
func (a *Attempt) CanEnter() bool {
	return a.Status < StatusSubmitted
}

// Duration returns the total allotted time.
func (a *Attempt) Duration() time.Duration {
	return time.Duration(a.DurationMinutes) * time.Minute
}
