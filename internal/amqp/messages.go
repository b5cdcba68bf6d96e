package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/core"
)

var ErrInvalidMessage = errors.New("invalid lifecycle message")

// LifecycleMessage carries one tour lifecycle notification to the worker.
// ID is unique per notification so consumers can drop redeliveries.
type LifecycleMessage struct {
	ID         string             `json:"id"`
	User       string             `json:"user"`
	Type       core.LifecycleType `json:"type"`
	TourID     string             `json:"tourId"`
	StepID     string             `json:"stepId,omitempty"`
	StepIndex  *int               `json:"stepIndex,omitempty"`
	OccurredAt time.Time          `json:"occurredAt"`
}

// NewLifecycleMessage wraps a lifecycle event for user.
func NewLifecycleMessage(user string, e core.LifecycleEvent) *LifecycleMessage {
	return &LifecycleMessage{
		ID:         uuid.NewString(),
		User:       user,
		Type:       e.Type,
		TourID:     e.TourID,
		StepID:     e.StepID,
		StepIndex:  e.StepIndex,
		OccurredAt: time.Now().UTC(),
	}
}

func (m *LifecycleMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LifecycleMessageFromJSON decodes and checks a message body.
func LifecycleMessageFromJSON(data []byte) (*LifecycleMessage, error) {
	var msg LifecycleMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.TourID == "" || msg.Type == "" {
		return nil, ErrInvalidMessage
	}
	return &msg, nil
}
