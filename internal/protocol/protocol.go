// internal/protocol/protocol.go
package protocol

import (
	"context"
	"time"
)

// Transport is a byte-level, synchronous link to one device
type Transport interface {
	// Connection lifecycle
	Open(ctx context.Context) error
	Close() error
	IsOpen() bool

	// Write sends the whole buffer or fails.
	Write(ctx context.Context, data []byte) error

	// Read performs one read into buf. With flush set, queued input is
	// discarded instead and zero is returned. Callers must not assume a
	// minimum amount of data per call.
	Read(buf []byte, flush bool) (int, error)

	PortName() string
	GetProtocolType() ConnectionType
}

// ProtocolStats provides command-level statistics
type ProtocolStats struct {
	CommandCount      uint64    `json:"command_count"`
	TimeoutCount      uint64    `json:"timeout_count"`
	WriteFailureCount uint64    `json:"write_failure_count"`
	MalformedCount    uint64    `json:"malformed_count"`
	LastPollCount     int64     `json:"last_poll_count"`
	LastActivity      time.Time `json:"last_activity"`
	IsConnected       bool      `json:"is_connected"`
}
