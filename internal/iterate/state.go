package iterate

// State identifies a phase of the feedback loop.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateAnalyzing
	StateClassifying
	StateFixing
	StateBuilding
	StateSettling
	StatePerfect
	StateImproved
	StateManual
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateAnalyzing:
		return "analyzing"
	case StateClassifying:
		return "classifying"
	case StateFixing:
		return "fixing"
	case StateBuilding:
		return "building"
	case StateSettling:
		return "settling"
	case StatePerfect:
		return "perfect"
	case StateImproved:
		return "improved"
	case StateManual:
		return "manual"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether the state ends an iteration.
func (s State) Terminal() bool {
	switch s {
	case StatePerfect, StateImproved, StateManual, StateFailed:
		return true
	}
	return false
}
