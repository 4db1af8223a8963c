package controller

// State is the controller's position in the per-target fetch loop.
type State int

const (
	StateFetching State = iota
	StateClassifying
	StateRetrySameEgress
	StateRotateEgress
	StateSuccess
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateFetching:
		return "FETCHING"
	case StateClassifying:
		return "CLASSIFYING"
	case StateRetrySameEgress:
		return "RETRY_SAME_EGRESS"
	case StateRotateEgress:
		return "ROTATE_EGRESS"
	case StateSuccess:
		return "SUCCESS"
	case StateAbandoned:
		return "ABANDONED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the state ends the current target's processing.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateAbandoned
}
