package guidance

// StateKind enumerates the guidance states exposed to the UI and voice layers
type StateKind int

const (
	StateNoFace StateKind = iota
	StateNeedsAdjustment
	StateGood
	StatePerfect
	StateCountdown
)

// String returns the wire name of the state kind
func (k StateKind) String() string {
	switch k {
	case StateNoFace:
		return "no_face"
	case StateNeedsAdjustment:
		return "needs_adjustment"
	case StateGood:
		return "good"
	case StatePerfect:
		return "perfect"
	case StateCountdown:
		return "countdown"
	default:
		return "unknown"
	}
}

// State is one committed guidance state. Message is set for
// needs-adjustment states, Remaining for countdown states.
type State struct {
	Kind      StateKind `json:"kind"`
	Message   string    `json:"message,omitempty"`
	Remaining int       `json:"remaining,omitempty"`
}

// Equal reports whether two states are indistinguishable to observers
func (s State) Equal(o State) bool {
	return s.Kind == o.Kind && s.Message == o.Message && s.Remaining == o.Remaining
}
