// internal/controller/adapter.go
package controller

import (
	"go.uber.org/zap"

	"haptic-service/pkg/haptic"
)

// jawPercent converts the opening value to a fraction of the max angle
const jawPercent = 0.01

// Adapter is the simulation-facing side of a Controller
type Adapter struct {
	ctrl            *Controller
	maxOpeningAngle float64
	scale           float64
	logger          *zap.Logger
}

// NewAdapter creates an adapter for ctrl
func NewAdapter(ctrl *Controller, maxOpeningAngle float64, logger *zap.Logger) *Adapter {
	return &Adapter{
		ctrl:            ctrl,
		maxOpeningAngle: maxOpeningAngle,
		scale:           1,
		logger:          logger.With(zap.String("component", "simulation-adapter")),
	}
}

// MapArticulations converts one telemetry record into articulation coordinates
func MapArticulations(data haptic.DeviceData, maxOpeningAngle float64) haptic.Articulations {
	opening := float64(data.JawOpening) * maxOpeningAngle * jawPercent
	return haptic.Articulations{
		float64(data.Angle(haptic.DofYaw)),
		-float64(data.Angle(haptic.DofPitch)),
		float64(data.Angle(haptic.DofRot)),
		float64(data.Angle(haptic.DofZ)),
		opening,
		-opening,
	}
}

// WithScale sets the factor applied to the translation coordinate
func (a *Adapter) WithScale(scale float64) *Adapter {
	if scale > 0 {
		a.scale = scale
	}
	return a
}

// Articulations maps the latest snapshot without publishing it
func (a *Adapter) Articulations() haptic.Articulations {
	data, _ := a.ctrl.Snapshot()
	return a.mapScaled(data)
}

func (a *Adapter) mapScaled(data haptic.DeviceData) haptic.Articulations {
	articulations := MapArticulations(data, a.maxOpeningAngle)
	articulations[3] *= a.scale
	return articulations
}

// UpdatePosition maps the latest snapshot and publishes it as the
// articulation state seen by force feedback
func (a *Adapter) UpdatePosition() haptic.Articulations {
	data, ok := a.ctrl.Snapshot()
	if ok {
		a.ctrl.debug.Store(data)
	}
	articulations := a.mapScaled(data)
	a.ctrl.SetArticulations(articulations)
	return articulations
}

// HandleSignal applies a lifecycle signal from the simulation
func (a *Adapter) HandleSignal(signal haptic.Signal) {
	switch signal {
	case haptic.SignalSimulationStarted:
		a.ctrl.SetSimulationStarted(true)
		a.UpdatePosition()
	case haptic.SignalSimulationEnded:
		a.ctrl.SetSimulationStarted(false)
		a.logger.Info("Simulation ended, releasing force")
	case haptic.SignalCollisionDetected:
		a.ctrl.NoteCollision()
	default:
		a.logger.Warn("Ignoring unknown simulation signal", zap.Stringer("signal", signal))
	}
}
