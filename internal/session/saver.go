package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/assesshub/attempt-runner/internal/model"
)

// saver is the persistence worker: it pushes answers to the backend off
// the session's control flow. Edits for the same question coalesce to the
// latest value, so a slow network never queues stale writes.
type saver struct {
	backend   Backend
	attemptID int
	log       zerolog.Logger
	emit      func(Event)

	mu       sync.Mutex
	pending  map[int]string
	inFlight bool

	kick      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newSaver(backend Backend, attemptID int, log zerolog.Logger, emit func(Event)) *saver {
	w := &saver{
		backend:   backend,
		attemptID: attemptID,
		log:       log.With().Str("component", "saver").Logger(),
		emit:      emit,
		pending:   make(map[int]string),
		kick:      make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// enqueue records the latest answer for a question and wakes the worker.
// Never blocks.
func (w *saver) enqueue(questionID int, answer string) {
	w.mu.Lock()
	w.pending[questionID] = answer
	w.mu.Unlock()

	select {
	case w.kick <- struct{}{}:
	default:
	}
}

// busy reports whether a flush is pending or in flight.
func (w *saver) busy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.inFlight || len(w.pending) > 0
}

func (w *saver) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case <-w.kick:
			w.flushPending()
		}
	}
}

func (w *saver) flushPending() {
	for {
		qid, answer, ok := w.take()
		if !ok {
			return
		}
		w.persist(qid, answer)
	}
}

// take pops one pending entry and marks the worker in flight.
func (w *saver) take() (int, string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for qid, answer := range w.pending {
		delete(w.pending, qid)
		w.inFlight = true
		return qid, answer, true
	}
	w.inFlight = false
	return 0, "", false
}

func (w *saver) persist(questionID int, answer string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	sub := model.NewSubmission(w.attemptID, questionID, answer)
	_, err := w.backend.UpsertSubmission(ctx, sub)

	w.mu.Lock()
	w.inFlight = false
	w.mu.Unlock()

	if err != nil {
		w.log.Warn().Err(err).
			Int("attempt_id", w.attemptID).
			Int("question_id", questionID).
			Msg("Answer persist failed")
		w.emit(Event{Kind: EventSaveFailed, QuestionID: questionID, Message: "Failed to save answer. It will be retried on your next edit."})
		return
	}

	w.log.Debug().
		Int("attempt_id", w.attemptID).
		Int("question_id", questionID).
		Msg("Answer persisted")
	w.emit(Event{Kind: EventSaved, QuestionID: questionID})
}

// close stops the worker and drains whatever is still queued, best-effort.
// Called on every exit from the active state so the last edit gets one
// final attempt at reaching the server.
func (w *saver) close() {
	w.closeOnce.Do(func() {
		close(w.done)
		w.wg.Wait()

		drained := 0
		for {
			qid, answer, ok := w.take()
			if !ok {
				break
			}
			w.persist(qid, answer)
			drained++
		}
		if drained > 0 {
			w.log.Info().Int("count", drained).Msg("Drained pending answers")
		}
	})
}
