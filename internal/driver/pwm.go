// internal/driver/pwm.go
package driver

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Empirical torque/force to PWM gains of the tool motors
const (
	RotPWMGain   = -17.56
	PitchPWMGain = 2.34
	ZPWMGain     = -82.93
	YawPWMGain   = 3.41

	MaxPWM = 1000
)

// Device frame axes used to project a Cartesian force onto the motors
var (
	toolDir  = mgl64.Vec3{0, 1, 0}
	yawDir   = mgl64.Vec3{0, 0, 1}
	pitchDir = mgl64.Vec3{-1, 0, 0}
)

// torqueLever converts a lateral force into a pivot torque
const torqueLever = 10

// ManualPWM converts motor torques and the insertion force into clamped
// PWM values ordered rot, pitch, z, yaw.
func ManualPWM(rotTorque, pitchTorque, zForce, yawTorque float32) [4]int64 {
	return [4]int64{
		clampPWM(RotPWMGain * float64(rotTorque)),
		clampPWM(PitchPWMGain * float64(pitchTorque)),
		clampPWM(ZPWMGain * float64(zForce)),
		clampPWM(YawPWMGain * float64(yawTorque)),
	}
}

// clampPWM truncates toward zero and limits to ±MaxPWM. NaN maps to 0.
func clampPWM(v float64) int64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v >= MaxPWM:
		return MaxPWM
	case v <= -MaxPWM:
		return -MaxPWM
	}
	return int64(v)
}

// ProjectForce splits a Cartesian force into rot, pitch, z and yaw
// components in the device frame. The tool cannot be driven in rotation
// from a point force so the first component is always zero.
func ProjectForce(force mgl64.Vec3) [4]float32 {
	return [4]float32{
		0,
		float32(pitchDir.Dot(force) * torqueLever),
		float32(toolDir.Dot(force)),
		float32(yawDir.Dot(force) * torqueLever),
	}
}

// TipForceArgs remaps a Cartesian tip force into the firmware's axis
// order x, z, -y with a ×100 scale and an empty rotation torque.
func TipForceArgs(force mgl64.Vec3) [4]int64 {
	return [4]int64{
		truncate(force.X() * 100),
		truncate(force.Z() * 100),
		-truncate(force.Y() * 100),
		0,
	}
}

func truncate(v float64) int64 {
	if math.IsNaN(v) {
		return 0
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	if v < math.MinInt32 {
		return math.MinInt32
	}
	return int64(v)
}
