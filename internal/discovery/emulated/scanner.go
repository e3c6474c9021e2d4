// internal/discovery/emulated/scanner.go
package emulated

import (
	"context"
	"sort"

	"haptic-service/internal/discovery"
	"haptic-service/internal/emulator"
	"haptic-service/internal/protocol"
)

// Scanner reports the ports of an emulator bench
type Scanner struct {
	bench *emulator.Bench
}

// NewScanner creates a scanner over bench. A nil bench is never available.
func NewScanner(bench *emulator.Bench) *Scanner {
	return &Scanner{bench: bench}
}

// GetScannerType returns scanner type
func (s *Scanner) GetScannerType() string {
	return "emulated"
}

// IsAvailable reports whether a bench is attached
func (s *Scanner) IsAvailable() bool {
	return s.bench != nil
}

// Scan lists the emulated devices
func (s *Scanner) Scan(ctx context.Context) ([]*discovery.DiscoveredDevice, error) {
	ports := s.bench.Ports()
	sort.Strings(ports)

	devices := make([]*discovery.DiscoveredDevice, 0, len(ports))
	for _, port := range ports {
		fw := s.bench.Device(port)
		if fw == nil {
			continue
		}
		kind := discovery.KindTool
		if fw.Kind() == emulator.KindIBox {
			kind = discovery.KindIBox
		}
		devices = append(devices, &discovery.DiscoveredDevice{
			ConnectionType: protocol.ConnectionTypeEmulated,
			Port:           port,
			Kind:           kind,
			Identity:       fw.Identity(),
		})
	}
	return devices, nil
}
