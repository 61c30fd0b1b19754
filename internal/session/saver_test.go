package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assesshub/attempt-runner/internal/model"
)

// blockingBackend wraps fakeBackend and gates the first UpsertSubmission
// so a test can pile up edits while a flush is stuck in flight. entered
// counts every call as it starts, including the gated one.
type blockingBackend struct {
	*fakeBackend
	gate    chan struct{}
	once    sync.Once
	entered atomic.Int32
}

func (b *blockingBackend) UpsertSubmission(ctx context.Context, sub model.Submission) (*model.Submission, error) {
	b.entered.Add(1)
	var first bool
	b.once.Do(func() { first = true })
	if first {
		<-b.gate
	}
	return b.fakeBackend.UpsertSubmission(ctx, sub)
}

func collectEvents(buf int) (func(Event), <-chan Event) {
	ch := make(chan Event, buf)
	return func(ev Event) {
		select {
		case ch <- ev:
		default:
		}
	}, ch
}

func TestSaverPersistsEnqueuedAnswer(t *testing.T) {
	backend := newFakeBackend()
	emit, events := collectEvents(16)
	w := newSaver(backend, 5, zerolog.Nop(), emit)
	defer w.close()

	w.enqueue(1, "A")

	require.Eventually(t, func() bool {
		return backend.upsertedAnswers()[1] == "A"
	}, 2*time.Second, 5*time.Millisecond)

	select {
	case ev := <-events:
		assert.Equal(t, EventSaved, ev.Kind)
		assert.Equal(t, 1, ev.QuestionID)
	case <-time.After(time.Second):
		t.Fatal("no saved event")
	}
}

func TestSaverCoalescesToLatestValue(t *testing.T) {
	fake := newFakeBackend()
	backend := &blockingBackend{fakeBackend: fake, gate: make(chan struct{})}
	emit, _ := collectEvents(16)
	w := newSaver(backend, 5, zerolog.Nop(), emit)
	defer w.close()

	// First enqueue sticks in flight on the gate; edits queued behind it
	// collapse to the newest value per question.
	w.enqueue(1, "draft 1")
	require.Eventually(t, func() bool { return w.busy() }, time.Second, time.Millisecond)

	w.enqueue(1, "draft 2")
	w.enqueue(1, "final")
	w.enqueue(2, "other")
	close(backend.gate)

	require.Eventually(t, func() bool {
		got := fake.upsertedAnswers()
		return got[1] == "final" && got[2] == "other"
	}, 2*time.Second, 5*time.Millisecond)

	fake.mu.Lock()
	var q1Writes int
	for _, sub := range fake.upserts {
		if sub.QuestionID == 1 {
			q1Writes++
		}
	}
	fake.mu.Unlock()
	assert.LessOrEqual(t, q1Writes, 2, "intermediate drafts should coalesce")
}

func TestSaverDrainsOnClose(t *testing.T) {
	fake := newFakeBackend()
	backend := &blockingBackend{fakeBackend: fake, gate: make(chan struct{})}
	emit, _ := collectEvents(16)
	w := newSaver(backend, 5, zerolog.Nop(), emit)

	w.enqueue(1, "A")
	require.Eventually(t, func() bool { return w.busy() }, time.Second, time.Millisecond)
	w.enqueue(2, "B")

	done := make(chan struct{})
	go func() {
		w.close()
		close(done)
	}()
	close(backend.gate)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not drain")
	}

	got := fake.upsertedAnswers()
	assert.Equal(t, "A", got[1])
	assert.Equal(t, "B", got[2])
}

func TestSaverCloseIsIdempotent(t *testing.T) {
	backend := newFakeBackend()
	emit, _ := collectEvents(4)
	w := newSaver(backend, 5, zerolog.Nop(), emit)

	w.close()
	w.close()
}

func TestSaverEmitsFailureEvent(t *testing.T) {
	backend := &failingUpsertBackend{fakeBackend: newFakeBackend()}
	emit, events := collectEvents(16)
	w := newSaver(backend, 5, zerolog.Nop(), emit)
	defer w.close()

	w.enqueue(1, "A")

	select {
	case ev := <-events:
		assert.Equal(t, EventSaveFailed, ev.Kind)
		assert.Equal(t, 1, ev.QuestionID)
	case <-time.After(time.Second):
		t.Fatal("no failure event")
	}
	assert.False(t, w.busy())
}

type failingUpsertBackend struct {
	*fakeBackend
}

func (b *failingUpsertBackend) UpsertSubmission(ctx context.Context, sub model.Submission) (*model.Submission, error) {
	return nil, context.DeadlineExceeded
}
