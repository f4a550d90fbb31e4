package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/turtacn/clusterkeys/pkg/constants"
)

// KeyEvent represents a single key lifecycle audit event.
type KeyEvent struct {
	EventID   uuid.UUID              `json:"event_id"`
	EventType constants.KeyEventType `json:"event_type"`
	Purpose   string                 `json:"purpose"`
	KeyID     int64                  `json:"key_id,omitempty"`
	ExpiresAt LogicalTime            `json:"expires_at"`
	NodeID    string                 `json:"node_id,omitempty"`
	Result    string                 `json:"result"` // "success" or "failure"
	Message   string                 `json:"message,omitempty"`
	Metadata  json.RawMessage        `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewKeyEvent creates a new audit event.
func NewKeyEvent(eventType constants.KeyEventType, purpose, result, message string) *KeyEvent {
	return &KeyEvent{
		EventID:   uuid.New(),
		EventType: eventType,
		Purpose:   purpose,
		Result:    result,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// WithKey records which key the event concerns.
func (e *KeyEvent) WithKey(keyID int64, expiresAt LogicalTime) *KeyEvent {
	e.KeyID = keyID
	e.ExpiresAt = expiresAt
	return e
}

// WithNode sets the node that emitted the event.
func (e *KeyEvent) WithNode(nodeID string) *KeyEvent {
	e.NodeID = nodeID
	return e
}

// WithMetadata sets JSON metadata for the event.
func (e *KeyEvent) WithMetadata(data interface{}) *KeyEvent {
	jsonData, err := json.Marshal(data)
	if err == nil {
		e.Metadata = jsonData
	}
	return e
}

//Personal.AI order the ending
