// internal/discovery/serial/scanner.go
package serial

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"

	"haptic-service/internal/discovery"
	"haptic-service/internal/driver"
	"haptic-service/internal/protocol"
)

// PortLister enumerates the OS serial ports
type PortLister func() ([]*enumerator.PortDetails, error)

// IdentityProbe asks the firmware on a port for its identity
type IdentityProbe func(ctx context.Context, port string) (string, error)

// Config for the serial scanner
type Config struct {
	// Probe enables the identity query on every free port
	Probe        bool
	ProbeTimeout time.Duration
	// InUse lists ports held by the running loop; they are never probed
	InUse []string
}

// Scanner implements serial port device scanning
type Scanner struct {
	logger *zap.Logger
	config *Config
	list   PortLister
	probe  IdentityProbe
}

// NewScanner creates a new serial scanner. probe may be nil when
// config.Probe is off.
func NewScanner(logger *zap.Logger, config *Config, probe IdentityProbe) *Scanner {
	if config == nil {
		config = &Config{}
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 5 * time.Second
	}
	return &Scanner{
		logger: logger.With(zap.String("scanner", "serial")),
		config: config,
		list:   enumerator.GetDetailedPortsList,
		probe:  probe,
	}
}

// WithLister replaces the OS port enumeration
func (s *Scanner) WithLister(list PortLister) *Scanner {
	s.list = list
	return s
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() string {
	return "serial"
}

// IsAvailable reports whether ports can be enumerated
func (s *Scanner) IsAvailable() bool {
	return s.list != nil
}

// Scan lists the serial ports and, when enabled, probes their identity
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredDevice, error) {
	ports, err := s.list()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports: %w", err)
	}

	discovered := make([]*discovery.DiscoveredDevice, 0, len(ports))
	for _, port := range ports {
		select {
		case <-ctx.Done():
			return discovered, ctx.Err()
		default:
		}

		device := &discovery.DiscoveredDevice{
			ConnectionType: protocol.ConnectionTypeSerial,
			Port:           port.Name,
			Kind:           discovery.KindUnknown,
			IsUSB:          port.IsUSB,
			VID:            port.VID,
			PID:            port.PID,
			SerialNumber:   port.SerialNumber,
			Product:        port.Product,
			InUse:          s.inUse(port.Name),
		}

		if s.config.Probe && s.probe != nil && !device.InUse {
			s.identify(ctx, device)
		}
		discovered = append(discovered, device)
	}

	s.logger.Info("Serial scan completed", zap.Int("ports_found", len(discovered)))
	return discovered, nil
}

func (s *Scanner) identify(ctx context.Context, device *discovery.DiscoveredDevice) {
	probeCtx, cancel := context.WithTimeout(ctx, s.config.ProbeTimeout)
	defer cancel()

	identity, err := s.probe(probeCtx, device.Port)
	if err != nil {
		s.logger.Debug("Port probe failed", zap.String("port", device.Port), zap.Error(err))
		return
	}
	device.Identity = identity
	device.Kind = discovery.ClassifyIdentity(identity)
}

func (s *Scanner) inUse(port string) bool {
	for _, p := range s.config.InUse {
		if strings.EqualFold(p, port) || strings.EqualFold(strings.TrimPrefix(p, `//./`), port) {
			return true
		}
	}
	return false
}

// DriverProbe opens a port with the firmware link settings and reads the
// identity string through the command protocol
func DriverProbe(registry *protocol.Registry, maxPollCount int, logger *zap.Logger) IdentityProbe {
	return func(ctx context.Context, port string) (string, error) {
		transport, err := registry.CreateTransport(protocol.ConnectionTypeSerial, protocol.DefaultSerialConfig(port))
		if err != nil {
			return "", err
		}

		d := driver.NewToolDriver(transport, driver.Options{MaxPollCount: maxPollCount}, logger)
		if err := d.Connect(ctx); err != nil {
			return "", err
		}
		defer d.Close()

		identity := d.GetIdentity()
		if identity == driver.UnknownIdentity {
			return "", fmt.Errorf("no identity reply on %s", port)
		}
		return identity, nil
	}
}
