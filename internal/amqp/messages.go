package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// EventType names what changed in a user's data.
type EventType string

const (
	RecordCreated EventType = "record.created"
	RecordDeleted EventType = "record.deleted"
	GoalChanged   EventType = "goal.changed"
	DataReset     EventType = "data.reset"
)

var ErrInvalidEvent = errors.New("invalid change event")

// ChangeEvent is a lightweight notification that a user's snapshot changed.
// It carries identifiers only; consumers read the full entity from storage.
type ChangeEvent struct {
	Type      EventType `json:"type"`
	OwnerID   string    `json:"owner_id"`
	EntityID  string    `json:"entity_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewChangeEvent(t EventType, ownerID, entityID string) *ChangeEvent {
	return &ChangeEvent{
		Type:      t,
		OwnerID:   ownerID,
		EntityID:  entityID,
		Timestamp: time.Now(),
	}
}

func ParseEventType(s string) (EventType, error) {
	switch t := EventType(strings.TrimSpace(s)); t {
	case RecordCreated, RecordDeleted, GoalChanged, DataReset:
		return t, nil
	}
	return "", fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, s)
}

func (m *ChangeEvent) Validate() error {
	if _, err := ParseEventType(string(m.Type)); err != nil {
		return err
	}
	if strings.TrimSpace(m.OwnerID) == "" {
		return fmt.Errorf("%w: missing owner", ErrInvalidEvent)
	}
	if m.Type != DataReset && strings.TrimSpace(m.EntityID) == "" {
		return fmt.Errorf("%w: %s without entity id", ErrInvalidEvent, m.Type)
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *ChangeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeEventFromJSON decodes and validates a message body.
func ChangeEventFromJSON(data []byte) (*ChangeEvent, error) {
	var msg ChangeEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
