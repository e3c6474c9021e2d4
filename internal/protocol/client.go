// internal/protocol/client.go
package protocol

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	// IncomingDataLen is the capacity of one response buffer
	IncomingDataLen = 512
	// DefaultMaxPollCount bounds the wait for a response line
	DefaultMaxPollCount = 10000
)

var (
	// ErrNotConnected is returned for every command on a closed transport
	ErrNotConnected = errors.New("device not connected")
	// ErrWriteFailed is returned when the transport rejects a frame
	ErrWriteFailed = errors.New("failed to send command")
	// ErrNoResponse is matched by TimeoutError
	ErrNoResponse = errors.New("no message returned")
)

// TimeoutError reports a response wait that reached the poll cap
type TimeoutError struct {
	Command    string
	Iterations int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no message returned for command %q, reached security loop limit: %d", e.Command, e.Iterations)
}

// Is makes errors.Is(err, ErrNoResponse) hold
func (e *TimeoutError) Is(target error) bool {
	return target == ErrNoResponse
}

// Client frames commands and waits for their replies over a Transport
type Client struct {
	transport    Transport
	logger       *zap.Logger
	maxPollCount int

	mu    sync.Mutex
	buf   [IncomingDataLen]byte
	chunk [IncomingDataLen]byte

	warnedOffline atomic.Bool
	commands      atomic.Uint64
	timeouts      atomic.Uint64
	writeFailures atomic.Uint64
	malformed     atomic.Uint64
	lastPollCount atomic.Int64
	lastActivity  atomic.Time
}

// NewClient creates a command client. maxPollCount <= 0 selects the default.
func NewClient(transport Transport, maxPollCount int, logger *zap.Logger) *Client {
	if maxPollCount <= 0 {
		maxPollCount = DefaultMaxPollCount
	}
	return &Client{
		transport:    transport,
		maxPollCount: maxPollCount,
		logger:       logger,
	}
}

// IsConnected reports whether the underlying transport is open
func (c *Client) IsConnected() bool {
	return c.transport != nil && c.transport.IsOpen()
}

// MaxPollCount returns the configured poll cap
func (c *Client) MaxPollCount() int {
	return c.maxPollCount
}

// SendCommand writes one frame. When wantResponse is set it polls the
// transport until a newline-terminated reply arrives or the poll cap is
// reached. The returned slice is a copy owned by the caller.
func (c *Client) SendCommand(ctx context.Context, commandID int, args string, wantResponse bool) ([]byte, error) {
	if !c.IsConnected() {
		if c.warnedOffline.CompareAndSwap(false, true) {
			c.logger.Warn("Device not connected, commands are skipped",
				zap.Int("command_id", commandID),
			)
		}
		return nil, ErrNotConnected
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.commands.Inc()
	frame := EncodeFrame(commandID, args)

	if err := c.transport.Write(ctx, frame); err != nil {
		c.writeFailures.Inc()
		payload := TrimResponse(frame)
		c.logger.Error("Error failed to send command",
			zap.String("command", payload),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w %q: %v", ErrWriteFailed, payload, err)
	}
	c.lastActivity.Store(time.Now())

	if !wantResponse {
		return nil, nil
	}

	return c.awaitResponse(ctx, frame)
}

func (c *Client) awaitResponse(ctx context.Context, frame []byte) ([]byte, error) {
	filled := 0
	iterations := 0
	for iterations < c.maxPollCount {
		iterations++

		if err := ctx.Err(); err != nil {
			c.lastPollCount.Store(int64(iterations))
			return nil, err
		}

		n, err := c.transport.Read(c.chunk[:], false)
		if err != nil {
			c.lastPollCount.Store(int64(iterations))
			return nil, fmt.Errorf("command %q: %w", TrimResponse(frame), err)
		}
		if n <= 0 {
			continue
		}

		n = copy(c.buf[filled:], c.chunk[:n])
		filled += n
		if bytes.IndexByte(c.buf[:filled], '\n') >= 0 {
			c.lastPollCount.Store(int64(iterations))
			out := make([]byte, filled)
			copy(out, c.buf[:filled])
			return out, nil
		}
		if filled == len(c.buf) {
			c.malformed.Inc()
			c.lastPollCount.Store(int64(iterations))
			return nil, fmt.Errorf("%w: reply to %q overflows %d bytes without a newline",
				ErrMalformedResponse, TrimResponse(frame), IncomingDataLen)
		}
	}

	c.timeouts.Inc()
	c.lastPollCount.Store(int64(iterations))
	terr := &TimeoutError{Command: TrimResponse(frame), Iterations: iterations}
	c.logger.Error("Error getData no message returned", zap.Error(terr))
	return nil, terr
}

// Stats returns a snapshot of the command counters
func (c *Client) Stats() ProtocolStats {
	return ProtocolStats{
		CommandCount:      c.commands.Load(),
		TimeoutCount:      c.timeouts.Load(),
		WriteFailureCount: c.writeFailures.Load(),
		MalformedCount:    c.malformed.Load(),
		LastPollCount:     c.lastPollCount.Load(),
		LastActivity:      c.lastActivity.Load(),
		IsConnected:       c.IsConnected(),
	}
}

// NoteMalformed counts a reply the caller could not decode
func (c *Client) NoteMalformed() {
	c.malformed.Inc()
}
