// pkg/haptic/types.go
package haptic

import (
	"errors"
	"fmt"
	"strings"
)

// Dof indexes the angle/length vector in device order
type Dof int

const (
	DofRot Dof = iota
	DofPitch
	DofZ
	DofYaw
)

// NumArticulations is the number of coordinates exposed to the simulation
const NumArticulations = 6

// DeviceData is one telemetry record produced by the polling loop
type DeviceData struct {
	AnglesAndLength [4]float32 `json:"angles_and_length"`
	MotorValues     [4]float32 `json:"motor_values"`
	CollisionForces [3]float32 `json:"collision_forces"`
	ToolID          int        `json:"tool_id"`
	JawOpening      float32    `json:"jaw_opening"`
}

// Angle returns one component of the angle/length vector
func (d DeviceData) Angle(dof Dof) float32 {
	return d.AnglesAndLength[dof]
}

// Articulations are the simulation coordinates:
// yaw, -pitch, rot, z, jaw up, jaw down
type Articulations [NumArticulations]float64

// Forces are the joint forces computed for a set of articulations,
// indexed like Articulations
type Forces [NumArticulations]float64

// Status is the diagnostic dump of a tool device
type Status struct {
	Code           int        `json:"code"`
	LastPWM        [4]float32 `json:"last_pwm"`
	MotorScaling   [4]float32 `json:"motor_scaling"`
	CollisionForce [3]float32 `json:"collision_force"`
}

// ErrUnknownSignal is returned by ParseSignal for unrecognised names
var ErrUnknownSignal = errors.New("unknown simulation signal")

// Signal is a lifecycle notification from the host simulation
type Signal int

const (
	SignalSimulationStarted Signal = iota + 1
	SignalSimulationEnded
	SignalCollisionDetected
)

var signalNames = map[Signal]string{
	SignalSimulationStarted: "started",
	SignalSimulationEnded:   "ended",
	SignalCollisionDetected: "collision",
}

func (s Signal) String() string {
	if name, ok := signalNames[s]; ok {
		return name
	}
	return fmt.Sprintf("signal(%d)", int(s))
}

// ParseSignal accepts the names used on the HTTP surface
func ParseSignal(name string) (Signal, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for s, n := range signalNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSignal, name)
}
