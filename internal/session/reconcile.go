package session

import (
	"github.com/assesshub/attempt-runner/internal/model"
)

// AnswerState tracks per-question progress as the candidate sees it.
type AnswerState string

const (
	AnswerUnanswered AnswerState = "unanswered"
	AnswerAnswered   AnswerState = "answered"
	AnswerFlagged    AnswerState = "flagged"
)

// ReconcileResult is the merged starting state for a (re)initializing
// session.
type ReconcileResult struct {
	Answers          map[int]string
	States           map[int]AnswerState
	RemainingSeconds int
	QuestionIndex    int
}

// Reconcile merges the three answer sources into one authoritative map.
// Precedence is fixed: server-confirmed answers win per question, a fresh
// snapshot fills the gaps, everything else defaults. The caller passes
// snap == nil when no usable snapshot exists; staleness is the store's
// concern, not this function's.
func Reconcile(questions []model.Question, server []model.Submission, snap *model.Snapshot, durationMinutes int) ReconcileResult {
	known := make(map[int]bool, len(questions))
	states := make(map[int]AnswerState, len(questions))
	for i := range questions {
		known[questions[i].ID] = true
		states[questions[i].ID] = AnswerUnanswered
	}

	answers := make(map[int]string, len(questions))

	// 1. Server-confirmed answers are ground truth for anything they cover.
	for i := range server {
		sub := &server[i]
		if !known[sub.QuestionID] {
			continue
		}
		if v := sub.Answer(); v != "" {
			answers[sub.QuestionID] = v
			states[sub.QuestionID] = AnswerAnswered
		}
	}

	total := durationMinutes * 60
	res := ReconcileResult{
		Answers:          answers,
		States:           states,
		RemainingSeconds: total,
		QuestionIndex:    0,
	}
	if snap == nil {
		return res
	}

	// 2. Snapshot fills gaps the server does not cover.
	for qid, v := range snap.Answers {
		if v == "" || !known[qid] {
			continue
		}
		if _, covered := answers[qid]; covered {
			continue
		}
		answers[qid] = v
		states[qid] = AnswerAnswered
	}

	// 3. Resume the clock, clamped to the legal range.
	rem := snap.RemainingSeconds
	if rem < 0 {
		rem = 0
	}
	if rem > total {
		rem = total
	}
	res.RemainingSeconds = rem

	// 4. Restore position when still in range.
	if snap.QuestionIndex >= 0 && snap.QuestionIndex < len(questions) {
		res.QuestionIndex = snap.QuestionIndex
	}

	return res
}
