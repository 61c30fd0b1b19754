package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/assesshub/attempt-runner/internal/api"
	"github.com/assesshub/attempt-runner/internal/model"
	"github.com/assesshub/attempt-runner/internal/snapshot"
)

// Backend is the slice of the platform API the session consumes.
// *api.Client satisfies it.
type Backend interface {
	Attempt(ctx context.Context, attemptID int) (*model.Attempt, error)
	StartAttempt(ctx context.Context, attemptID int) error
	Questions(ctx context.Context, assessmentID int) ([]model.Question, error)
	SubmissionsByAttempt(ctx context.Context, attemptID int) ([]model.Submission, error)
	UpsertSubmission(ctx context.Context, sub model.Submission) (*model.Submission, error)
	SubmitAttempt(ctx context.Context, attemptID int) error
}

// State is the attempt lifecycle as perceived locally.
type State string

const (
	StateLoading        State = "LOADING"
	StateInitializing   State = "INITIALIZING"
	StateActive         State = "ACTIVE"
	StateSubmitting     State = "SUBMITTING"
	StateAutoSubmitting State = "AUTO_SUBMITTING"
	StateDone           State = "DONE"
	StateClosed         State = "CLOSED"    // torn down without submitting
	StateBlocked        State = "BLOCKED"   // fatal load/start failure
	StateReadOnly       State = "READ_ONLY" // status forbids re-entry
)

var (
	// ErrNotActive is returned by candidate operations outside ACTIVE.
	ErrNotActive = errors.New("session is not active")
	// ErrUnsupportedKind is returned when recording an answer against a
	// reserved question kind.
	ErrUnsupportedKind = errors.New("question kind not supported")
	// ErrIndexOutOfRange is returned for navigation beyond the question set.
	ErrIndexOutOfRange = errors.New("question index out of range")
)

// Options tunes the scheduler. Zero values take the production defaults;
// tests shrink the intervals.
type Options struct {
	Tick                 time.Duration // countdown cadence, default 1s
	AutosaveEvery        time.Duration // remote flush cadence, default 120s
	SnapshotEverySeconds int           // local snapshot cadence along the countdown, default 30
	TokenExpiry          time.Time     // optional: warn when the token lapses before time is up
}

func (o *Options) defaults() {
	if o.Tick <= 0 {
		o.Tick = time.Second
	}
	if o.AutosaveEvery <= 0 {
		o.AutosaveEvery = 2 * time.Minute
	}
	if o.SnapshotEverySeconds <= 0 {
		o.SnapshotEverySeconds = 30
	}
}

// Session is the single authority over one attempt's lifecycle on the
// candidate's device. All shared state is serialized through one mutex:
// timer callbacks and candidate operations interleave exactly like the
// single logical UI thread they model.
type Session struct {
	backend Backend
	store   snapshot.Store
	log     zerolog.Logger
	opts    Options
	runID   string

	mu            sync.Mutex
	state         State
	attempt       *model.Attempt
	questions     []model.Question
	answers       map[int]string
	states        map[int]AnswerState
	index         int
	remaining     int
	active        bool
	submitting    bool
	autoSubmitted bool
	closed        bool

	saver    *saver
	stopc    chan struct{}
	stopOnce sync.Once
	events   chan Event
}

// New creates a Session. Start must be called before any other operation.
func New(backend Backend, store snapshot.Store, log zerolog.Logger, opts Options) *Session {
	opts.defaults()
	runID := uuid.New().String()
	return &Session{
		backend: backend,
		store:   store,
		log:     log.With().Str("component", "session").Str("run_id", runID).Logger(),
		opts:    opts,
		runID:   runID,
		state:   StateLoading,
		stopc:   make(chan struct{}),
		events:  make(chan Event, 64),
	}
}

// Events returns the host-facing notification stream. Sends never block;
// a full buffer drops events.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Start drives Loading → Initializing → Active: fetch the attempt, start
// it if needed, load questions and confirmed answers, reconcile with the
// local snapshot, and launch the scheduler. A returned error means the
// session is Blocked or ReadOnly and the host must leave.
func (s *Session) Start(ctx context.Context, attemptID int) error {
	s.setState(StateLoading)

	attempt, err := s.backend.Attempt(ctx, attemptID)
	if err != nil {
		s.block(StateBlocked, err)
		return fmt.Errorf("load attempt %d: %w", attemptID, err)
	}

	if !attempt.CanEnter() {
		err := &api.Error{Code: api.ErrAlreadySubmitted, Op: "load attempt"}
		s.block(StateReadOnly, err)
		return fmt.Errorf("load attempt %d: %w", attemptID, err)
	}

	if attempt.Status == model.StatusNotStarted {
		if err := s.backend.StartAttempt(ctx, attemptID); err != nil {
			s.block(StateBlocked, err)
			return fmt.Errorf("start attempt %d: %w", attemptID, err)
		}
		attempt.Status = model.StatusInProgress
		s.log.Info().Int("attempt_id", attemptID).Msg("Attempt started")
	}

	s.setState(StateInitializing)

	questions, err := s.backend.Questions(ctx, attempt.AssessmentID)
	if err != nil {
		s.block(StateBlocked, err)
		return fmt.Errorf("load questions for assessment %d: %w", attempt.AssessmentID, err)
	}
	if len(questions) == 0 {
		err := &api.Error{Code: api.ErrNotFound, Op: "get questions", Detail: "assessment has no questions"}
		s.block(StateBlocked, err)
		return fmt.Errorf("load questions for assessment %d: %w", attempt.AssessmentID, err)
	}

	// Degraded path: confirmed answers are an overlay, not a prerequisite.
	subs, err := s.backend.SubmissionsByAttempt(ctx, attemptID)
	if err != nil {
		s.log.Warn().Err(err).Int("attempt_id", attemptID).Msg("Could not load prior submissions, proceeding without")
		s.emit(Event{Kind: EventWarning, Message: "Previously saved answers could not be loaded."})
		subs = nil
	}

	snap, err := s.store.Read(ctx, attemptID)
	if err != nil {
		s.log.Warn().Err(err).Int("attempt_id", attemptID).Msg("Snapshot read failed, proceeding without")
		snap = nil
	}

	res := Reconcile(questions, subs, snap, attempt.DurationMinutes)

	s.mu.Lock()
	s.attempt = attempt
	s.questions = questions
	s.answers = res.Answers
	s.states = res.States
	s.index = res.QuestionIndex
	s.remaining = res.RemainingSeconds
	s.active = true
	s.saver = newSaver(s.backend, attemptID, s.log, s.emit)
	s.mu.Unlock()

	s.warnOnTokenExpiry(res.RemainingSeconds)
	s.setState(StateActive)
	s.log.Info().
		Int("attempt_id", attemptID).
		Int("questions", len(questions)).
		Int("remaining_seconds", res.RemainingSeconds).
		Bool("resumed", snap != nil).
		Msg("Session active")

	go s.loop()
	return nil
}

func (s *Session) warnOnTokenExpiry(remaining int) {
	if s.opts.TokenExpiry.IsZero() {
		return
	}
	timeLeft := time.Duration(remaining) * time.Second
	if time.Until(s.opts.TokenExpiry) < timeLeft {
		s.log.Warn().Time("token_expiry", s.opts.TokenExpiry).Msg("Token expires before the attempt's time is up")
		s.emit(Event{Kind: EventWarning, Message: "Your sign-in expires before the timer runs out. Answers saved after that may be rejected."})
	}
}

// loop runs the two independent periodic timers. It exits when stopc
// closes, which happens exactly once per session.
func (s *Session) loop() {
	tick := time.NewTicker(s.opts.Tick)
	autosave := time.NewTicker(s.opts.AutosaveEvery)
	defer tick.Stop()
	defer autosave.Stop()

	for {
		select {
		case <-s.stopc:
			return
		case <-tick.C:
			s.onTick()
		case <-autosave.C:
			s.onAutosave()
		}
	}
}

// onTick advances the countdown: decrement floored at 0, periodic local
// snapshot, and the exactly-once auto-submit trigger at 0.
func (s *Session) onTick() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	if s.remaining > 0 {
		s.remaining--
	}
	rem := s.remaining
	attemptID := s.attempt.ID

	var snap *model.Snapshot
	if rem%s.opts.SnapshotEverySeconds == 0 {
		snap = s.snapshotLocked()
	}

	submitNow := false
	if rem == 0 && !s.autoSubmitted && !s.submitting {
		s.autoSubmitted = true
		submitNow = true
	}
	s.mu.Unlock()

	s.emit(Event{Kind: EventTick, Remaining: rem})
	if snap != nil {
		s.writeSnapshot(attemptID, snap)
	}
	if submitNow {
		go func() { _ = s.submit(context.Background(), true) }()
	}
}

// onAutosave flushes the current answer to the backend unless a flush is
// already in flight. Never touches the countdown.
func (s *Session) onAutosave() {
	s.mu.Lock()
	if !s.active || s.submitting {
		s.mu.Unlock()
		return
	}
	if s.saver.busy() {
		s.mu.Unlock()
		return
	}
	q := s.questions[s.index]
	if !q.Kind.Implemented() {
		s.mu.Unlock()
		return
	}
	answer := s.answers[q.ID]
	s.mu.Unlock()

	s.saver.enqueue(q.ID, answer)
}

// RecordAnswer stores the current question's answer. The local write
// (memory + snapshot) always succeeds; server persistence is enqueued
// and best-effort.
func (s *Session) RecordAnswer(value string) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return ErrNotActive
	}
	q := s.questions[s.index]
	if !q.Kind.Implemented() {
		s.mu.Unlock()
		s.emit(Event{Kind: EventWarning, QuestionID: q.ID, Message: fmt.Sprintf("%s questions cannot be answered in this client.", q.Kind)})
		return ErrUnsupportedKind
	}

	s.answers[q.ID] = value
	if s.states[q.ID] != AnswerFlagged {
		if strings.TrimSpace(value) != "" {
			s.states[q.ID] = AnswerAnswered
		} else {
			s.states[q.ID] = AnswerUnanswered
		}
	}
	snap := s.snapshotLocked()
	attemptID := s.attempt.ID
	s.mu.Unlock()

	s.writeSnapshot(attemptID, snap)
	s.saver.enqueue(q.ID, value)
	return nil
}

// Change moves by delta questions (negative for back). The outgoing
// answer is flushed before the index mutates; a remote failure surfaces
// as a warning and never blocks navigation. Out-of-range moves are
// ignored, matching edge-of-set behavior.
func (s *Session) Change(delta int) error {
	s.mu.Lock()
	target := s.index + delta
	if target < 0 || target >= len(s.questions) {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	return s.GoTo(target)
}

// GoTo jumps to a question by index, flushing the outgoing answer first.
func (s *Session) GoTo(index int) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return ErrNotActive
	}
	if index < 0 || index >= len(s.questions) {
		s.mu.Unlock()
		return ErrIndexOutOfRange
	}
	if index == s.index {
		s.mu.Unlock()
		return nil
	}

	// Flush the outgoing answer before the index mutates.
	out := s.questions[s.index]
	outAnswer, hasAnswer := s.answers[out.ID]
	s.index = index
	snap := s.snapshotLocked()
	attemptID := s.attempt.ID
	s.mu.Unlock()

	if hasAnswer && out.Kind.Implemented() {
		s.saver.enqueue(out.ID, outAnswer)
	}
	s.writeSnapshot(attemptID, snap)
	return nil
}

// ToggleFlag marks or unmarks the current question for review.
func (s *Session) ToggleFlag() error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return ErrNotActive
	}
	q := s.questions[s.index]
	if s.states[q.ID] == AnswerFlagged {
		if strings.TrimSpace(s.answers[q.ID]) != "" {
			s.states[q.ID] = AnswerAnswered
		} else {
			s.states[q.ID] = AnswerUnanswered
		}
	} else {
		s.states[q.ID] = AnswerFlagged
	}
	snap := s.snapshotLocked()
	attemptID := s.attempt.ID
	s.mu.Unlock()

	s.writeSnapshot(attemptID, snap)
	return nil
}

// Submit performs the manual terminal transition. The host is expected
// to have confirmed with the candidate (see Summarize). Idempotent: a
// second call while one is underway is a no-op.
func (s *Session) Submit(ctx context.Context) error {
	return s.submit(ctx, false)
}

func (s *Session) submit(ctx context.Context, isTimeout bool) error {
	s.mu.Lock()
	if !s.active || s.submitting {
		s.mu.Unlock()
		return nil
	}
	s.submitting = true
	q := s.questions[s.index]
	answer, hasAnswer := s.answers[q.ID]
	snap := s.snapshotLocked()
	attemptID := s.attempt.ID
	s.mu.Unlock()

	if isTimeout {
		s.setState(StateAutoSubmitting)
	} else {
		s.setState(StateSubmitting)
	}

	// Final flush: attempted before the remote submit, not awaited. The
	// saver drains on close, so the last edit still gets its attempt even
	// when the submit wins the race.
	s.writeSnapshot(attemptID, snap)
	if hasAnswer && q.Kind.Implemented() {
		s.saver.enqueue(q.ID, answer)
	}

	callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	err := s.backend.SubmitAttempt(callCtx, attemptID)
	if err != nil && api.CodeOf(err) == api.ErrAlreadySubmitted {
		// A retry after a lost acknowledgment: the terminal state already
		// holds server-side.
		err = nil
	}
	if err != nil {
		s.log.Error().Err(err).Int("attempt_id", attemptID).Bool("timeout", isTimeout).Msg("Submit failed, staying active")
		s.mu.Lock()
		s.submitting = false
		s.autoSubmitted = false // re-arm so a zero clock retries next tick
		s.mu.Unlock()
		s.setState(StateActive)
		s.emit(Event{Kind: EventWarning, Message: "Submission failed. Please try again."})
		return fmt.Errorf("submit attempt %d: %w", attemptID, err)
	}

	s.mu.Lock()
	s.active = false
	s.attempt.Status = model.StatusSubmitted
	s.mu.Unlock()
	s.stopTimers()
	s.saver.close()

	clearCtx, clearCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer clearCancel()
	if err := s.store.Clear(clearCtx, attemptID); err != nil {
		s.log.Warn().Err(err).Int("attempt_id", attemptID).Msg("Snapshot clear failed")
	}

	s.setState(StateDone)
	s.emit(Event{Kind: EventSubmitted, Message: "Assessment submitted."})
	s.log.Info().Int("attempt_id", attemptID).Bool("timeout", isTimeout).Msg("Attempt submitted")
	return nil
}

// Close tears the session down: timers cancelled, one last snapshot
// write, one last best-effort answer flush. Safe to call at any point
// and more than once; the page-unload analog.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	wasActive := s.active
	s.active = false

	var snap *model.Snapshot
	var attemptID, qid int
	var answer string
	var flush bool
	if wasActive {
		snap = s.snapshotLocked()
		attemptID = s.attempt.ID
		q := s.questions[s.index]
		answer, flush = s.answers[q.ID]
		flush = flush && q.Kind.Implemented()
		qid = q.ID
	}
	s.mu.Unlock()

	s.stopTimers()

	if wasActive {
		s.writeSnapshot(attemptID, snap)
		if flush {
			s.saver.enqueue(qid, answer)
		}
	}
	if s.saver != nil {
		s.saver.close()
	}
	// Terminal states reached before the teardown (Done, Blocked,
	// ReadOnly) stay visible; an interrupted active session reports Closed.
	if wasActive {
		s.setState(StateClosed)
	}
	s.log.Info().Msg("Session closed")
	return nil
}

func (s *Session) stopTimers() {
	s.stopOnce.Do(func() { close(s.stopc) })
}

// snapshotLocked builds the recovery snapshot. Caller holds s.mu.
func (s *Session) snapshotLocked() *model.Snapshot {
	answers := make(map[int]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	return &model.Snapshot{
		RemainingSeconds: s.remaining,
		QuestionIndex:    s.index,
		Answers:          answers,
		SavedAt:          time.Now(),
	}
}

// writeSnapshot is best-effort: a cache failure degrades to "no recovery
// aid" and never reaches the control flow.
func (s *Session) writeSnapshot(attemptID int, snap *model.Snapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.store.Write(ctx, attemptID, snap); err != nil {
		s.log.Warn().Err(err).Int("attempt_id", attemptID).Msg("Snapshot write failed")
	}
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	rem := s.remaining
	s.mu.Unlock()

	if prev != st {
		s.log.Info().Str("from", string(prev)).Str("to", string(st)).Msg("State transition")
		s.emit(Event{Kind: EventState, State: st, Remaining: rem})
	}
}

func (s *Session) block(st State, err error) {
	s.setState(st)
	s.log.Error().Err(err).Str("state", string(st)).Msg("Session blocked")
}

func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Remaining returns the remaining seconds.
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Current returns the current question and its position.
func (s *Session) Current() (model.Question, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.questions[s.index], s.index
}

// CurrentAnswer returns the in-memory answer for the current question.
func (s *Session) CurrentAnswer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.answers[s.questions[s.index].ID]
}

// Questions returns the question set.
func (s *Session) Questions() []model.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Question, len(s.questions))
	copy(out, s.questions)
	return out
}

// AnswerStateOf returns the progress state for a question.
func (s *Session) AnswerStateOf(questionID int) AnswerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[questionID]
}

// Summarize returns the pre-submit overview.
func (s *Session) Summarize() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := Summary{Total: len(s.questions), Remaining: s.remaining}
	for _, st := range s.states {
		switch st {
		case AnswerAnswered:
			sum.Answered++
		case AnswerFlagged:
			sum.Flagged++
		}
	}
	sum.Unanswered = sum.Total - sum.Answered - sum.Flagged
	return sum
}
