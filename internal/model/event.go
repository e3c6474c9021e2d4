// internal/model/event.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of a loop event
type EventType string

const (
	EventLoopStarted       EventType = "LOOP_STARTED"
	EventLoopStopped       EventType = "LOOP_STOPPED"
	EventSimulationSignal  EventType = "SIMULATION_SIGNAL"
	EventDeviceConnected   EventType = "DEVICE_CONNECTED"
	EventDeviceUnavailable EventType = "DEVICE_UNAVAILABLE"
)

// LoopEvent is published to telemetry subscribers
type LoopEvent struct {
	ID        uuid.UUID              `json:"id"`
	EventType EventType              `json:"event_type"`
	SessionID *uuid.UUID             `json:"session_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Severity  string                 `json:"severity"` // INFO, WARNING, ERROR
}

// NewLoopEvent stamps a new event
func NewLoopEvent(eventType EventType, severity string, data map[string]interface{}) *LoopEvent {
	return &LoopEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Data:      data,
		Timestamp: time.Now(),
		Severity:  severity,
	}
}
