// internal/driver/ibox.go
package driver

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"haptic-service/internal/protocol"
	"haptic-service/pkg/haptic"
)

// IBoxDriver drives the auxiliary handle controller
type IBoxDriver struct {
	*BaseDriver
}

var _ haptic.IBoxDevice = (*IBoxDriver)(nil)

// NewIBoxDriver creates an IBox driver over an unopened transport
func NewIBoxDriver(transport protocol.Transport, opts Options, logger *zap.Logger) *IBoxDriver {
	return &IBoxDriver{
		BaseDriver: newBaseDriver(transport, "ibox", iboxCommands, opts, logger),
	}
}

// GetOpeningValues returns the handle opening of every tool slot
func (d *IBoxDriver) GetOpeningValues() [IBoxNumTools]float32 {
	values, _ := d.queryScaled(IBoxGetOpeningValues, IBoxNumTools, protocol.WireScale)
	return [IBoxNumTools]float32(values)
}

// GetJawOpeningAngle returns the opening value of the tool's slot.
// Unknown tool ids read as closed.
func (d *IBoxDriver) GetJawOpeningAngle(toolID int) float32 {
	if toolID < 0 || toolID >= IBoxNumTools {
		return 0
	}
	return d.GetOpeningValues()[toolID]
}

// SetHandleForce sends the handle force on the first channel of an
// all-forces frame. The IBox firmware only drives channel 0 from this
// frame, so toolID is accepted for the device contract and not used to
// pick a channel.
func (d *IBoxDriver) SetHandleForce(toolID int, force float32) {
	frame := [IBoxNumChannels]int64{protocol.ScaleToWire(force)}
	d.send(IBoxSetAllForces, protocol.FormatInts(frame[:]...))
}

// SetHandleForces sends the difference between the upper and lower jaw forces
func (d *IBoxDriver) SetHandleForces(upperJawForce, lowerJawForce float32) {
	d.SetHandleForce(0, upperJawForce-lowerJawForce)
}

// SetLoopGain configures the PD gains of one channel
func (d *IBoxDriver) SetLoopGain(channel int, gainP, gainD float32) {
	args := strconv.Itoa(channel) + " " + formatGain(gainP) + " " + formatGain(gainD)
	d.logger.Debug("Setting loop gain", zap.String("args", args))
	d.send(IBoxSetLoopGain, args)
}

// InitLoopGains applies the same gains to every channel
func (d *IBoxDriver) InitLoopGains(gainP, gainD float32) {
	for channel := 0; channel < IBoxNumChannels; channel++ {
		d.SetLoopGain(channel, gainP, gainD)
	}
}

func formatGain(v float32) string {
	if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
		return "0"
	}
	return decimal.NewFromFloat32(v).String()
}
