package session

// EventKind enumerates what the session reports to its host.
type EventKind string

const (
	EventState      EventKind = "STATE"       // state machine transition
	EventTick       EventKind = "TICK"        // countdown advanced
	EventSaved      EventKind = "SAVED"       // answer reached the server
	EventSaveFailed EventKind = "SAVE_FAILED" // answer persist failed (non-blocking)
	EventWarning    EventKind = "WARNING"     // transient, non-blocking notice
	EventSubmitted  EventKind = "SUBMITTED"   // terminal transition confirmed
)

// Event is a host-facing notification. Delivery is best-effort: a slow
// host drops events rather than stalling the countdown.
type Event struct {
	Kind       EventKind
	State      State
	Remaining  int
	QuestionID int
	Message    string
}

// Summary is the pre-submit overview shown in the confirmation prompt.
type Summary struct {
	Total      int
	Answered   int
	Flagged    int
	Unanswered int
	Remaining  int
}
