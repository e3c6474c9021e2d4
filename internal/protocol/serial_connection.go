// internal/protocol/serial_connection.go
package protocol

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

// PortOpener opens an OS serial port
type PortOpener func(name string, mode *serial.Mode) (serial.Port, error)

// SerialConnection implements Transport for serial connections
type SerialConnection struct {
	config *SerialConfig
	port   serial.Port
	open   PortOpener
	sleep  func(time.Duration)
	logger *zap.Logger
	mutex  sync.RWMutex
	isOpen bool
}

// NewSerialConnection creates a new serial connection
func NewSerialConnection(config *SerialConfig, logger *zap.Logger) *SerialConnection {
	return &SerialConnection{
		config: config,
		open:   serial.Open,
		sleep:  time.Sleep,
		logger: logger.With(
			zap.String("protocol", "serial"),
			zap.String("port", config.Port),
		),
	}
}

// WithPortOpener replaces the OS port opener
func (sc *SerialConnection) WithPortOpener(open PortOpener) *SerialConnection {
	sc.open = open
	return sc
}

// Open opens the serial port, asserts DTR so the firmware resets, purges
// both buffers and waits for the settle delay.
func (sc *SerialConnection) Open(ctx context.Context) error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if sc.isOpen {
		return nil
	}

	sc.logger.Info("Opening serial port",
		zap.Int("baud_rate", sc.config.BaudRate),
	)

	mode := &serial.Mode{
		BaudRate: sc.config.BaudRate,
		DataBits: sc.config.DataBits,
		StopBits: stopBits(sc.config.StopBits),
		Parity:   parity(sc.config.Parity),
	}

	port, err := sc.open(sc.config.Port, mode)
	if err != nil {
		var portErr *serial.PortError
		if errors.As(err, &portErr) && portErr.Code() == serial.PortNotFound {
			sc.logger.Error("Handle was not attached, port not available", zap.Error(err))
		} else {
			sc.logger.Error("Failed to open serial port", zap.Error(err))
		}
		return fmt.Errorf("failed to open serial port %s: %w", sc.config.Port, err)
	}

	// Release the handle on every failure path below.
	ok := false
	defer func() {
		if !ok {
			port.Close()
		}
	}()

	if err := port.SetReadTimeout(sc.config.ReadTimeout); err != nil {
		return fmt.Errorf("failed to set read timeout: %w", err)
	}
	if err := port.SetDTR(true); err != nil {
		sc.logger.Warn("Could not assert DTR", zap.Error(err))
	}
	if err := port.ResetInputBuffer(); err != nil {
		return fmt.Errorf("failed to purge input buffer: %w", err)
	}
	if err := port.ResetOutputBuffer(); err != nil {
		return fmt.Errorf("failed to purge output buffer: %w", err)
	}

	if sc.config.SettleDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		sc.sleep(sc.config.SettleDelay)
	}

	ok = true
	sc.port = port
	sc.isOpen = true

	sc.logger.Info("Serial port opened successfully")
	return nil
}

// Close closes the serial connection
func (sc *SerialConnection) Close() error {
	sc.mutex.Lock()
	defer sc.mutex.Unlock()

	if !sc.isOpen || sc.port == nil {
		return nil
	}

	err := sc.port.Close()
	sc.port = nil
	sc.isOpen = false
	if err != nil {
		sc.logger.Error("Failed to close serial port", zap.Error(err))
		return fmt.Errorf("failed to close serial port: %w", err)
	}

	sc.logger.Info("Serial port closed successfully")
	return nil
}

// IsOpen returns whether the connection is open
func (sc *SerialConnection) IsOpen() bool {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()
	return sc.isOpen && sc.port != nil
}

// Write writes data to the serial port
func (sc *SerialConnection) Write(ctx context.Context, data []byte) error {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()

	if !sc.isOpen || sc.port == nil {
		return fmt.Errorf("serial port not open")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	n, err := sc.port.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write to serial port: %w", err)
	}
	if n != len(data) {
		return fmt.Errorf("incomplete write: wrote %d of %d bytes", n, len(data))
	}

	return nil
}

// Read reads whatever the driver has queued, bounded by the read timeout
func (sc *SerialConnection) Read(buf []byte, flush bool) (int, error) {
	sc.mutex.RLock()
	defer sc.mutex.RUnlock()

	if !sc.isOpen || sc.port == nil {
		return 0, fmt.Errorf("serial port not open")
	}

	if flush {
		if err := sc.port.ResetInputBuffer(); err != nil {
			return 0, fmt.Errorf("failed to flush serial port: %w", err)
		}
		return 0, nil
	}

	n, err := sc.port.Read(buf)
	if err != nil {
		return n, fmt.Errorf("failed to read from serial port: %w", err)
	}
	return n, nil
}

// PortName returns the configured port
func (sc *SerialConnection) PortName() string {
	return sc.config.Port
}

// GetProtocolType returns the protocol type
func (sc *SerialConnection) GetProtocolType() ConnectionType {
	return ConnectionTypeSerial
}

func stopBits(n int) serial.StopBits {
	if n == 2 {
		return serial.TwoStopBits
	}
	return serial.OneStopBit
}

func parity(p string) serial.Parity {
	switch p {
	case "odd":
		return serial.OddParity
	case "even":
		return serial.EvenParity
	default:
		return serial.NoParity
	}
}
