package core

const (
	EventStarted    LifecycleType = "started"
	EventStepViewed LifecycleType = "step_viewed"
	EventCompleted  LifecycleType = "completed"
	EventSkipped    LifecycleType = "skipped"
	EventDismissed  LifecycleType = "dismissed"
)

type LifecycleType string

// LifecycleEvent is the analytics notification for a tour transition.
// StepID and StepIndex are only set for step_viewed and skipped.
type LifecycleEvent struct {
	Type      LifecycleType `json:"type"`
	TourID    string        `json:"tourId"`
	StepID    string        `json:"stepId,omitempty"`
	StepIndex *int          `json:"stepIndex,omitempty"`
}

// AtStep returns a copy of e carrying step information.
func (e LifecycleEvent) AtStep(stepID string, index int) LifecycleEvent {
	e.StepID = stepID
	e.StepIndex = &index
	return e
}
