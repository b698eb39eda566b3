package orchestrator

// State is a step of the per-episode capture machine.
type State int

const (
	StateNavigateSub State = iota
	StateCaptureSub
	StatePersistSub
	StateToggleDub
	StateCaptureDub
	StatePersistDub
	StateDone
)

func (s State) String() string {
	switch s {
	case StateNavigateSub:
		return "NAVIGATE_SUB"
	case StateCaptureSub:
		return "CAPTURE_SUB"
	case StatePersistSub:
		return "PERSIST_SUB"
	case StateToggleDub:
		return "TOGGLE_DUB"
	case StateCaptureDub:
		return "CAPTURE_DUB"
	case StatePersistDub:
		return "PERSIST_DUB"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Status is the terminal outcome of one variant of an episode.
type Status string

const (
	StatusCaptured       Status = "captured"
	StatusExisting       Status = "existing"
	StatusNoManifest     Status = "no-manifest"
	StatusFetchFailed    Status = "fetch-failed"
	StatusNoSegments     Status = "no-segments"
	StatusDubUnavailable Status = "dub-unavailable"
	StatusWriteFailed    Status = "write-failed"
	StatusNotAttempted   Status = "not-attempted"
)

// HasManifest reports whether the variant ends with a manifest on disk.
func (s Status) HasManifest() bool {
	return s == StatusCaptured || s == StatusExisting
}
