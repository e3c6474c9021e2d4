// internal/model/session.go
package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus represents the lifecycle of a haptic session
type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "RUNNING"
	SessionStatusCompleted SessionStatus = "COMPLETED"
	SessionStatusFailed    SessionStatus = "FAILED"
)

// HapticSession is one Start..Stop run of the control loop
type HapticSession struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	ToolPort       string        `json:"tool_port" db:"tool_port"`
	ToolIdentity   string        `json:"tool_identity" db:"tool_identity"`
	ToolID         int           `json:"tool_id" db:"tool_id"`
	IBoxLinked     bool          `json:"ibox_linked" db:"ibox_linked"`
	Status         SessionStatus `json:"status" db:"status"`
	StartedAt      time.Time     `json:"started_at" db:"started_at"`
	EndedAt        *time.Time    `json:"ended_at,omitempty" db:"ended_at"`
	PollCycles     int64         `json:"poll_cycles" db:"poll_cycles"`
	ForceCycles    int64         `json:"force_cycles" db:"force_cycles"`
	CopyCycles     int64         `json:"copy_cycles" db:"copy_cycles"`
	AvgFrequencyHz float64       `json:"avg_frequency_hz" db:"avg_frequency_hz"`
	ToolFailures   int64         `json:"tool_failures" db:"tool_failures"`
	IBoxFailures   int64         `json:"ibox_failures" db:"ibox_failures"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
}

// Duration returns the elapsed session time, up to now for a running session
func (s *HapticSession) Duration() time.Duration {
	if s.EndedAt == nil {
		return time.Since(s.StartedAt)
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// IsActive reports whether the loop is still running for this session
func (s *HapticSession) IsActive() bool {
	return s.Status == SessionStatusRunning
}
