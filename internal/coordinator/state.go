package coordinator

// State is the phase of the current build cycle.
type State int32

const (
	StateIdle State = iota
	StateBuilding
	StateSucceeded
	StateNotifying
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuilding:
		return "building"
	case StateSucceeded:
		return "succeeded"
	case StateNotifying:
		return "notifying"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
