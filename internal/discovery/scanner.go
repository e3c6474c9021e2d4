// internal/discovery/scanner.go
package discovery

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"haptic-service/internal/protocol"
)

// DeviceKind classifies a discovered port
type DeviceKind string

const (
	KindTool    DeviceKind = "tool"
	KindIBox    DeviceKind = "ibox"
	KindUnknown DeviceKind = "unknown"
)

// DeviceScanner finds candidate haptic device ports
type DeviceScanner interface {
	Scan(ctx context.Context) ([]*DiscoveredDevice, error)
	GetScannerType() string
	IsAvailable() bool
}

// DiscoveredDevice represents a discovered port
type DiscoveredDevice struct {
	ConnectionType protocol.ConnectionType `json:"connection_type"`
	Port           string                  `json:"port"`
	Kind           DeviceKind              `json:"kind"`
	Identity       string                  `json:"identity,omitempty"`
	IsUSB          bool                    `json:"is_usb"`
	VID            string                  `json:"vid,omitempty"`
	PID            string                  `json:"pid,omitempty"`
	SerialNumber   string                  `json:"serial_number,omitempty"`
	Product        string                  `json:"product,omitempty"`
	InUse          bool                    `json:"in_use"`
}

// ClassifyIdentity maps a firmware identity string to a device kind
func ClassifyIdentity(identity string) DeviceKind {
	id := strings.ToLower(identity)
	switch {
	case id == "" || id == "unknown":
		return KindUnknown
	case strings.Contains(id, "ibox"):
		return KindIBox
	case strings.Contains(id, "hapticavatar"), strings.Contains(id, "tool"):
		return KindTool
	default:
		return KindUnknown
	}
}

// ScannerManager runs every registered scanner
type ScannerManager struct {
	mu       sync.RWMutex
	scanners map[string]DeviceScanner
	logger   *zap.Logger
}

// NewScannerManager creates a new scanner manager
func NewScannerManager(logger *zap.Logger) *ScannerManager {
	return &ScannerManager{
		scanners: make(map[string]DeviceScanner),
		logger:   logger,
	}
}

// RegisterScanner registers a device scanner
func (sm *ScannerManager) RegisterScanner(scanner DeviceScanner) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	scannerType := scanner.GetScannerType()
	sm.scanners[scannerType] = scanner
	sm.logger.Info("Scanner registered", zap.String("type", scannerType))
}

// ScanAll scans with every available scanner. A failing scanner is logged
// and skipped. Results are sorted by port.
func (sm *ScannerManager) ScanAll(ctx context.Context) ([]*DiscoveredDevice, error) {
	allDevices := []*DiscoveredDevice{}

	for _, scannerType := range sm.types() {
		sm.mu.RLock()
		scanner := sm.scanners[scannerType]
		sm.mu.RUnlock()

		if !scanner.IsAvailable() {
			sm.logger.Debug("Scanner not available, skipping", zap.String("type", scannerType))
			continue
		}

		devices, err := scanner.Scan(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return allDevices, ctx.Err()
			}
			sm.logger.Error("Scanner failed", zap.String("type", scannerType), zap.Error(err))
			continue
		}

		allDevices = append(allDevices, devices...)
		sm.logger.Info("Scanner completed",
			zap.String("type", scannerType),
			zap.Int("devices_found", len(devices)),
		)
	}

	sort.Slice(allDevices, func(i, j int) bool {
		return allDevices[i].Port < allDevices[j].Port
	})
	return allDevices, nil
}

// ScanByType scans with one scanner
func (sm *ScannerManager) ScanByType(ctx context.Context, scannerType string) ([]*DiscoveredDevice, error) {
	sm.mu.RLock()
	scanner, exists := sm.scanners[scannerType]
	sm.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("scanner type not found: %s", scannerType)
	}
	if !scanner.IsAvailable() {
		return nil, fmt.Errorf("scanner not available: %s", scannerType)
	}

	return scanner.Scan(ctx)
}

// GetAvailableScanners returns the available scanner types, sorted
func (sm *ScannerManager) GetAvailableScanners() []string {
	available := []string{}
	for _, scannerType := range sm.types() {
		sm.mu.RLock()
		ok := sm.scanners[scannerType].IsAvailable()
		sm.mu.RUnlock()
		if ok {
			available = append(available, scannerType)
		}
	}
	return available
}

func (sm *ScannerManager) types() []string {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	types := make([]string, 0, len(sm.scanners))
	for scannerType := range sm.scanners {
		types = append(types, scannerType)
	}
	sort.Strings(types)
	return types
}
