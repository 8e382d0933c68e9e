package syncer

// Kind is the issue notification that triggered a sync.
type Kind string

const (
	Opened    Kind = "opened"
	Labeled   Kind = "labeled"
	Unlabeled Kind = "unlabeled"
	Edited    Kind = "edited"
)

// State is where an issue stands relative to the calendar. It is
// recomputed from the calendar on every notification.
type State int

const (
	// NoMatch: the title carries no usable date.
	NoMatch State = iota
	// Unsynced: valid date, no event represents the issue.
	Unsynced
	// Synced: an event for the issue exists at the title's date.
	Synced
	// Stale: an event for the issue exists at the date of the previous
	// title, and the date has since changed. Only reachable on Edited.
	Stale
	// Missing: no event at the previous or the current date although the
	// issue was already dated before the edit. Another edit may have moved
	// it already. Only reachable on Edited.
	Missing
)

func (s State) String() string {
	switch s {
	case NoMatch:
		return "no-match"
	case Unsynced:
		return "unsynced"
	case Synced:
		return "synced"
	case Stale:
		return "stale"
	case Missing:
		return "missing"
	}
	return "unknown"
}

type Action int

const (
	None Action = iota
	Create
	Update
	Delete
)

func (a Action) String() string {
	switch a {
	case None:
		return "none"
	case Create:
		return "create"
	case Update:
		return "update"
	case Delete:
		return "delete"
	}
	return "unknown"
}

// transitions is the complete state machine. Missing entries mean None.
var transitions = map[Kind]map[State]Action{
	Opened: {
		Unsynced: Create,
	},
	Labeled: {
		Unsynced: Create,
	},
	Unlabeled: {
		Synced: Delete,
	},
	// Edited creates only when the title just became dated. A rename that
	// keeps the date leaves the event summary as it is.
	Edited: {
		Unsynced: Create,
		Stale:    Update,
	},
}

// Decide returns the action for an issue in state s after a notification
// of kind k. Gating (required label) is applied before a state is computed.
func Decide(k Kind, s State) Action {
	return transitions[k][s]
}
