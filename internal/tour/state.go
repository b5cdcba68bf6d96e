package tour

import "bilancio/internal/core"

// State is the machine's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateActive
	StateWaitingForEvent
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateWaitingForEvent:
		return "waiting_for_event"
	default:
		return "idle"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a read-only view of the machine used by renderers.
type Snapshot struct {
	State      State            `json:"state"`
	TourID     string           `json:"tourId,omitempty"`
	TourName   string           `json:"tourName,omitempty"`
	StepIndex  int              `json:"stepIndex"`
	StepCount  int              `json:"stepCount"`
	Step       *core.TourStep   `json:"step,omitempty"`
	WaitingFor string           `json:"waitingFor,omitempty"`
	Content    core.StepContent `json:"content"`
}

// Active reports whether a tour is running.
func (s Snapshot) Active() bool {
	return s.State != StateIdle
}

// IsFirst reports whether the current step is the first one.
func (s Snapshot) IsFirst() bool {
	return s.StepIndex == 0
}

// IsLast reports whether the current step is the last one.
func (s Snapshot) IsLast() bool {
	return s.StepCount > 0 && s.StepIndex == s.StepCount-1
}

// ProgressPercent is the share of steps reached, counting the current one.
func (s Snapshot) ProgressPercent() int {
	if s.StepCount == 0 {
		return 0
	}
	return (s.StepIndex + 1) * 100 / s.StepCount
}
