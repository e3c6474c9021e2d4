// internal/driver/base.go
package driver

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"haptic-service/internal/protocol"
	"haptic-service/internal/utils"
)

// Sentinels returned when a command cannot be completed
const (
	UnknownIdentity = "Unknown"
	failedCode      = -1
)

// Options tune a driver
type Options struct {
	// MaxPollCount bounds the wait for every reply. Zero selects the default.
	MaxPollCount int
}

// BaseDriver owns one transport and implements the housekeeping
// commands common to both firmwares
type BaseDriver struct {
	transport protocol.Transport
	client    *protocol.Client
	logger    *utils.DeviceLogger
	commands  commandSet

	// ctx is cancelled by Close and aborts any reply wait in progress
	ctx    context.Context
	cancel context.CancelFunc

	failures atomic.Uint64
}

func newBaseDriver(transport protocol.Transport, kind string, commands commandSet, opts Options, logger *zap.Logger) *BaseDriver {
	deviceLogger := utils.NewDeviceLogger(logger, transport.PortName(), kind)
	ctx, cancel := context.WithCancel(context.Background())

	return &BaseDriver{
		transport: transport,
		client:    protocol.NewClient(transport, opts.MaxPollCount, deviceLogger.Logger),
		logger:    deviceLogger,
		commands:  commands,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Connect opens the transport. A failure leaves the driver usable in the
// disconnected state where every command returns its sentinel.
func (d *BaseDriver) Connect(ctx context.Context) error {
	if err := d.transport.Open(ctx); err != nil {
		d.logger.LogConnection("connect", false, err)
		d.logger.Error("Device not connected", zap.String("port", d.transport.PortName()))
		return fmt.Errorf("failed to connect %s: %w", d.transport.PortName(), err)
	}
	d.logger.LogConnection("connect", true, nil)
	return nil
}

// Close aborts pending waits and releases the transport
func (d *BaseDriver) Close() error {
	d.cancel()
	if !d.transport.IsOpen() {
		return nil
	}
	err := d.transport.Close()
	d.logger.LogConnection("disconnect", err == nil, err)
	return err
}

// IsConnected reports whether the transport is open
func (d *BaseDriver) IsConnected() bool {
	return d.client.IsConnected()
}

// PortName returns the port the driver talks to
func (d *BaseDriver) PortName() string {
	return d.transport.PortName()
}

// Stats returns the protocol counters of this driver
func (d *BaseDriver) Stats() protocol.ProtocolStats {
	return d.client.Stats()
}

// Failures counts commands that did not complete
func (d *BaseDriver) Failures() uint64 {
	return d.failures.Load()
}

// ResetDevice sends the reset command and returns the firmware's answer, or -1
func (d *BaseDriver) ResetDevice(mode int) int {
	reply, ok := d.query(d.commands.reset, protocol.FormatInts(int64(mode)))
	if !ok {
		return failedCode
	}
	return d.decodeInt(d.commands.reset, reply)
}

// GetIdentity returns the identity string, or "Unknown"
func (d *BaseDriver) GetIdentity() string {
	reply, ok := d.query(d.commands.identity, "")
	if !ok {
		return UnknownIdentity
	}
	return protocol.TrimResponse(reply)
}

// GetToolID returns the id of the mounted tool, or -1
func (d *BaseDriver) GetToolID() int {
	reply, ok := d.query(d.commands.toolID, "")
	if !ok {
		return failedCode
	}
	return d.decodeInt(d.commands.toolID, reply)
}

// GetDeviceStatus returns the firmware status code, or -1
func (d *BaseDriver) GetDeviceStatus() int {
	reply, ok := d.query(d.commands.status, "")
	if !ok {
		return failedCode
	}
	return d.decodeInt(d.commands.status, reply)
}

// Update discards unsolicited bytes left on the link
func (d *BaseDriver) Update() {
	if !d.IsConnected() {
		return
	}
	var scratch [protocol.IncomingDataLen]byte
	if _, err := d.transport.Read(scratch[:], true); err != nil {
		d.logger.Debug("Failed to flush input", zap.Error(err))
	}
}

// query sends a command and waits for its reply
func (d *BaseDriver) query(id CommandID, args string) ([]byte, bool) {
	reply, err := d.client.SendCommand(d.ctx, int(id), args, true)
	if err != nil {
		d.noteFailure(err)
		return nil, false
	}
	return reply, true
}

// send writes a command that has no reply
func (d *BaseDriver) send(id CommandID, args string) bool {
	if _, err := d.client.SendCommand(d.ctx, int(id), args, false); err != nil {
		d.noteFailure(err)
		return false
	}
	return true
}

// queryScaled reads count fields divided by divisor. A failure yields zeros.
func (d *BaseDriver) queryScaled(id CommandID, count int, divisor float64) ([]float32, bool) {
	reply, ok := d.query(id, "")
	if !ok {
		return make([]float32, count), false
	}
	values, err := protocol.DecodeScaled(reply, count, divisor)
	if err != nil {
		d.malformed(id, err)
		return make([]float32, count), false
	}
	return values, true
}

func (d *BaseDriver) decodeInt(id CommandID, reply []byte) int {
	v, err := protocol.DecodeInt(reply)
	if err != nil {
		d.malformed(id, err)
		return failedCode
	}
	return v
}

func (d *BaseDriver) malformed(id CommandID, err error) {
	d.client.NoteMalformed()
	d.failures.Inc()
	d.logger.LogCommandFailure(d.commands.name(id), err)
}

// noteFailure counts a failed command. The client has already logged it,
// and the disconnected case warns once.
func (d *BaseDriver) noteFailure(err error) {
	if errors.Is(err, protocol.ErrNotConnected) {
		return
	}
	d.failures.Inc()
}
