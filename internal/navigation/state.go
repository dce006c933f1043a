package navigation

// State is the fetch lifecycle of a controller.
type State int

const (
	// Idle means no fetch has run, or the last one was cancelled.
	Idle State = iota
	// Fetching means a session is streaming records for its scope.
	Fetching
	// Ready means the last session ran to completion.
	Ready
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// ChangeKind says which part of the controller state changed.
type ChangeKind int

const (
	ChangePath ChangeKind = iota
	ChangeState
	ChangeRecords
	ChangeHierarchy
	ChangeView
)

func (k ChangeKind) String() string {
	switch k {
	case ChangePath:
		return "path"
	case ChangeState:
		return "state"
	case ChangeRecords:
		return "records"
	case ChangeHierarchy:
		return "hierarchy"
	case ChangeView:
		return "view"
	default:
		return "unknown"
	}
}

// Change notifies observers that state was updated. Read the new values
// through the controller getters.
type Change struct {
	Kind ChangeKind
	Path string
}
