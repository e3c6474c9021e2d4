// internal/service/devices.go
package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"haptic-service/internal/config"
	"haptic-service/internal/driver"
	"haptic-service/internal/emulator"
	"haptic-service/internal/protocol"
)

// DeviceInfo describes one link without touching the wire
type DeviceInfo struct {
	Kind      string                 `json:"kind"`
	Port      string                 `json:"port"`
	Transport string                 `json:"transport"`
	Identity  string                 `json:"identity"`
	Connected bool                   `json:"connected"`
	Failures  uint64                 `json:"failures"`
	Stats     protocol.ProtocolStats `json:"stats"`
}

// NewEmulatorBench attaches emulated firmware to every device configured
// with the emulated transport and registers the bench with registry.
// It returns nil when no device is emulated.
func NewEmulatorBench(cfg *config.Config, registry *protocol.Registry) *emulator.Bench {
	toolEmulated := cfg.Device.Transport == string(protocol.ConnectionTypeEmulated)
	iboxEmulated := cfg.IBox.Enabled && cfg.IBox.Transport == string(protocol.ConnectionTypeEmulated)
	if !toolEmulated && !iboxEmulated {
		return nil
	}

	bench := emulator.NewBench()
	if toolEmulated {
		bench.Attach(cfg.Device.PortName, emulator.NewTool(emulator.WithToolID(1), emulator.WithMotion(emulator.SweepMotion())))
	}
	if iboxEmulated {
		bench.Attach(cfg.IBox.PortName, emulator.NewIBox(emulator.WithMotion(emulator.GripMotion())))
	}
	emulator.Register(registry, bench)
	return bench
}

func serialConfig(port string, c *config.SerialPortConfig) *protocol.SerialConfig {
	sc := protocol.DefaultSerialConfig(port)
	if c.BaudRate > 0 {
		sc.BaudRate = c.BaudRate
	}
	if c.DataBits > 0 {
		sc.DataBits = c.DataBits
	}
	if c.StopBits > 0 {
		sc.StopBits = c.StopBits
	}
	if c.Parity != "" {
		sc.Parity = c.Parity
	}
	if c.ReadTimeout > 0 {
		sc.ReadTimeout = c.ReadTimeout
	}
	sc.SettleDelay = c.SettleDelay
	return sc
}

// openTool creates and connects the primary tool driver. A connection
// failure is returned alongside a usable, disconnected driver.
func openTool(ctx context.Context, registry *protocol.Registry, cfg *config.Config, logger *zap.Logger) (*driver.ToolDriver, error) {
	transport, err := registry.CreateTransport(
		protocol.ConnectionType(cfg.Device.Transport),
		serialConfig(cfg.Device.PortName, &cfg.Device.Serial),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool transport: %w", err)
	}

	tool := driver.NewToolDriver(transport, driver.Options{MaxPollCount: cfg.Device.Serial.MaxPollCount}, logger)
	if err := tool.Connect(ctx); err != nil {
		return tool, err
	}

	band := cfg.Device.DeadBandPWM
	tool.SetDeadBandPWMWidth(band[0], band[1], band[2], band[3])
	return tool, nil
}

// openIBox creates and connects the IBox driver and pushes the loop gains
func openIBox(ctx context.Context, registry *protocol.Registry, cfg *config.Config, logger *zap.Logger) (*driver.IBoxDriver, error) {
	transport, err := registry.CreateTransport(
		protocol.ConnectionType(cfg.IBox.Transport),
		serialConfig(cfg.IBox.PortName, &cfg.IBox.Serial),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ibox transport: %w", err)
	}

	ibox := driver.NewIBoxDriver(transport, driver.Options{MaxPollCount: cfg.IBox.Serial.MaxPollCount}, logger)
	if err := ibox.Connect(ctx); err != nil {
		return ibox, err
	}

	ibox.InitLoopGains(float32(cfg.IBox.LoopGainP), float32(cfg.IBox.LoopGainD))
	return ibox, nil
}
