// pkg/haptic/interfaces.go
package haptic

// ToolDevice is the primary tool as seen by the control loop.
// Failures are absorbed by the implementation and surface as zero values.
type ToolDevice interface {
	IsConnected() bool

	// Telemetry
	GetAnglesAndLength() [4]float32
	GetToolID() int

	// Actuation
	SetMotorForceAndTorques(values [4]float32)
	ReleaseForce()

	// Housekeeping
	Update()
	PrintStatus() Status
	Failures() uint64
}

// IBoxDevice is the auxiliary handle controller
type IBoxDevice interface {
	IsConnected() bool
	GetJawOpeningAngle(toolID int) float32
	// SetHandleForce drives the handle motor. The firmware frame only
	// carries channel 0, so toolID does not select a channel.
	SetHandleForce(toolID int, force float32)
	Update()
	Failures() uint64
}

// ForceFeedback maps articulation state to joint forces
type ForceFeedback interface {
	ComputeForce(articulations Articulations) Forces
}

// ForceFeedbackFunc adapts a function to ForceFeedback
type ForceFeedbackFunc func(articulations Articulations) Forces

// ComputeForce calls f
func (f ForceFeedbackFunc) ComputeForce(articulations Articulations) Forces {
	return f(articulations)
}
