// internal/emulator/port.go
package emulator

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"haptic-service/internal/protocol"
)

// Port implements protocol.Transport on top of a Firmware
type Port struct {
	name     string
	firmware *Firmware
	mutex    sync.RWMutex
	isOpen   bool
}

var _ protocol.Transport = (*Port)(nil)

// NewPort creates a port wired to fw. A nil firmware behaves like an
// absent device and fails to open.
func NewPort(name string, fw *Firmware) *Port {
	return &Port{name: name, firmware: fw}
}

// Open connects to the firmware
func (p *Port) Open(ctx context.Context) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if p.firmware == nil {
		return fmt.Errorf("emulated port %s not available", p.name)
	}
	p.isOpen = true
	return nil
}

// Close disconnects from the firmware
func (p *Port) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.isOpen = false
	return nil
}

// IsOpen returns whether the port is open
func (p *Port) IsOpen() bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.isOpen
}

// Write delivers bytes to the firmware
func (p *Port) Write(ctx context.Context, data []byte) error {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if !p.isOpen {
		return fmt.Errorf("emulated port %s not open", p.name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.firmware.receive(data)
}

// Read returns queued reply bytes
func (p *Port) Read(buf []byte, flush bool) (int, error) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if !p.isOpen {
		return 0, fmt.Errorf("emulated port %s not open", p.name)
	}
	return p.firmware.read(buf, flush), nil
}

// PortName returns the port name
func (p *Port) PortName() string {
	return p.name
}

// GetProtocolType returns the protocol type
func (p *Port) GetProtocolType() protocol.ConnectionType {
	return protocol.ConnectionTypeEmulated
}

// Bench holds the emulated devices attached to named ports
type Bench struct {
	mu      sync.RWMutex
	devices map[string]*Firmware
}

// NewBench creates an empty bench
func NewBench() *Bench {
	return &Bench{devices: make(map[string]*Firmware)}
}

// Attach plugs a firmware into a port
func (b *Bench) Attach(port string, fw *Firmware) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices[port] = fw
}

// Device returns the firmware on a port, or nil
func (b *Bench) Device(port string) *Firmware {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.devices[port]
}

// Ports lists the attached ports
func (b *Bench) Ports() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ports := make([]string, 0, len(b.devices))
	for port := range b.devices {
		ports = append(ports, port)
	}
	return ports
}

// Register installs the bench as the emulated transport of registry
func Register(registry *protocol.Registry, bench *Bench) {
	registry.Register(protocol.ConnectionTypeEmulated, func(config *protocol.SerialConfig, logger *zap.Logger) (protocol.Transport, error) {
		if config.Port == "" {
			return nil, fmt.Errorf("emulated port is required")
		}
		logger.Info("Creating emulated transport", zap.String("port", config.Port))
		return NewPort(config.Port, bench.Device(config.Port)), nil
	})
}
