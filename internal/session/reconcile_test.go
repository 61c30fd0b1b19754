package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/assesshub/attempt-runner/internal/model"
)

func strPtr(s string) *string { return &s }

func twoQuestions() []model.Question {
	return []model.Question{
		{ID: 1, AssessmentID: 10, Text: "Pick one", Kind: model.KindChoice, Options: []string{"A", "B"}},
		{ID: 2, AssessmentID: 10, Text: "Explain", Kind: model.KindFreeText},
	}
}

func TestReconcileServerWinsSnapshotFillsGaps(t *testing.T) {
	server := []model.Submission{
		{AttemptID: 5, QuestionID: 1, AnswerText: strPtr("A")},
	}
	snap := &model.Snapshot{
		RemainingSeconds: 900,
		QuestionIndex:    1,
		Answers:          map[int]string{1: "B", 2: "C"},
		SavedAt:          time.Now(),
	}

	res := Reconcile(twoQuestions(), server, snap, 30)

	assert.Equal(t, map[int]string{1: "A", 2: "C"}, res.Answers)
	assert.Equal(t, AnswerAnswered, res.States[1])
	assert.Equal(t, AnswerAnswered, res.States[2])
	assert.Equal(t, 900, res.RemainingSeconds)
	assert.Equal(t, 1, res.QuestionIndex)
}

func TestReconcileNoSnapshotDefaults(t *testing.T) {
	res := Reconcile(twoQuestions(), nil, nil, 30)

	assert.Empty(t, res.Answers)
	assert.Equal(t, AnswerUnanswered, res.States[1])
	assert.Equal(t, AnswerUnanswered, res.States[2])
	assert.Equal(t, 30*60, res.RemainingSeconds)
	assert.Equal(t, 0, res.QuestionIndex)
}

func TestReconcileEmptyValuesIgnored(t *testing.T) {
	server := []model.Submission{
		{AttemptID: 5, QuestionID: 1, AnswerText: strPtr("")},
		{AttemptID: 5, QuestionID: 2, AnswerText: nil},
	}
	snap := &model.Snapshot{
		RemainingSeconds: 100,
		Answers:          map[int]string{2: ""},
		SavedAt:          time.Now(),
	}

	res := Reconcile(twoQuestions(), server, snap, 30)

	assert.Empty(t, res.Answers)
	assert.Equal(t, AnswerUnanswered, res.States[1])
	assert.Equal(t, AnswerUnanswered, res.States[2])
}

func TestReconcileUnknownQuestionsDropped(t *testing.T) {
	server := []model.Submission{
		{AttemptID: 5, QuestionID: 99, AnswerText: strPtr("ghost")},
	}
	snap := &model.Snapshot{
		RemainingSeconds: 100,
		Answers:          map[int]string{42: "ghost"},
		SavedAt:          time.Now(),
	}

	res := Reconcile(twoQuestions(), server, snap, 30)

	assert.Empty(t, res.Answers)
}

func TestReconcileClampsRemaining(t *testing.T) {
	over := &model.Snapshot{RemainingSeconds: 999999, SavedAt: time.Now()}
	res := Reconcile(twoQuestions(), nil, over, 30)
	assert.Equal(t, 30*60, res.RemainingSeconds)

	under := &model.Snapshot{RemainingSeconds: -5, SavedAt: time.Now()}
	res = Reconcile(twoQuestions(), nil, under, 30)
	assert.Equal(t, 0, res.RemainingSeconds)
}

func TestReconcileClampsIndex(t *testing.T) {
	snap := &model.Snapshot{RemainingSeconds: 60, QuestionIndex: 7, SavedAt: time.Now()}
	res := Reconcile(twoQuestions(), nil, snap, 30)
	assert.Equal(t, 0, res.QuestionIndex)

	snap.QuestionIndex = -1
	res = Reconcile(twoQuestions(), nil, snap, 30)
	assert.Equal(t, 0, res.QuestionIndex)
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "00:00", FormatTime(0))
	assert.Equal(t, "00:59", FormatTime(59))
	assert.Equal(t, "29:59", FormatTime(29*60+59))
	assert.Equal(t, "01:00:01", FormatTime(3601))
	assert.Equal(t, "00:00", FormatTime(-3))
}
