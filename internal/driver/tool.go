// internal/driver/tool.go
package driver

import (
	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"haptic-service/internal/protocol"
	"haptic-service/pkg/haptic"
)

// ToolDriver drives the primary haptic tool
type ToolDriver struct {
	*BaseDriver

	// lastCommanded mirrors the motor values of the last actuation command
	lastCommanded atomic.Pointer[[4]float32]
}

var _ haptic.ToolDevice = (*ToolDriver)(nil)

// NewToolDriver creates a tool driver over an unopened transport
func NewToolDriver(transport protocol.Transport, opts Options, logger *zap.Logger) *ToolDriver {
	d := &ToolDriver{
		BaseDriver: newBaseDriver(transport, "tool", toolCommands, opts, logger),
	}
	d.lastCommanded.Store(&[4]float32{})
	return d
}

// GetAnglesAndLength returns rot, pitch, z and yaw
func (d *ToolDriver) GetAnglesAndLength() [4]float32 {
	values, _ := d.queryScaled(ToolGetAnglesAndLength, 4, protocol.WireScale)
	return [4]float32(values)
}

// GetJawTorque returns the torque measured on the jaw
func (d *ToolDriver) GetJawTorque() float32 {
	values, _ := d.queryScaled(ToolGetJawTorque, 1, protocol.WireScale)
	return values[0]
}

// GetJawOpeningAngle reads the jaw opening. The firmware answers this on
// the set-opening opcode when called without arguments.
func (d *ToolDriver) GetJawOpeningAngle() float32 {
	values, _ := d.queryScaled(ToolSetJawOpeningAngle, 1, protocol.WireScale)
	return values[0]
}

// GetLastPWM returns the PWM values last applied by the firmware
func (d *ToolDriver) GetLastPWM() [4]float32 {
	values, _ := d.queryScaled(ToolGetLastPWM, 4, protocol.Unscaled)
	return [4]float32(values)
}

// GetMotorScalingValues returns the motor scaling factors
func (d *ToolDriver) GetMotorScalingValues() [4]float32 {
	values, _ := d.queryScaled(ToolGetMotorScalingValues, 4, protocol.WireScale)
	return [4]float32(values)
}

// GetLastCollisionForce returns the last collision force seen by the firmware
func (d *ToolDriver) GetLastCollisionForce() [3]float32 {
	values, _ := d.queryScaled(ToolGetLastCollisionForce, 3, protocol.WireScale)
	return [3]float32(values)
}

// SetMotorForceAndTorques sends rot torque, pitch torque, z force and yaw
// torque, each ×10000 and truncated
func (d *ToolDriver) SetMotorForceAndTorques(values [4]float32) {
	d.remember(values)
	d.send(ToolSetMotorForceAndTorques, protocol.FormatScaled(values[:]...))
}

// SetTipForceAndRotTorque sends a Cartesian tip force and a rotation torque
func (d *ToolDriver) SetTipForceAndRotTorque(force [3]float32, rotTorque float32) {
	d.send(ToolSetTipForceAndRotTorque, protocol.FormatScaled(force[0], force[1], force[2], rotTorque))
}

// SetManualPWM converts torques and force to PWM and sends them
func (d *ToolDriver) SetManualPWM(rotTorque, pitchTorque, zForce, yawTorque float32) {
	pwm := ManualPWM(rotTorque, pitchTorque, zForce, yawTorque)
	d.remember([4]float32{float32(pwm[0]), float32(pwm[1]), float32(pwm[2]), float32(pwm[3])})
	d.send(ToolSetManualPWM, protocol.FormatInts(pwm[:]...))
}

// SetManualForceAndTorques sends the four motor values through the
// force/torque command
func (d *ToolDriver) SetManualForceAndTorques(rotTorque, pitchTorque, zForce, yawTorque float32) {
	d.SetMotorForceAndTorques([4]float32{rotTorque, pitchTorque, zForce, yawTorque})
}

// SetManualForceVector projects a Cartesian force on the motor axes
func (d *ToolDriver) SetManualForceVector(force mgl64.Vec3, useManualPWM bool) {
	v := ProjectForce(force)
	if useManualPWM {
		d.SetManualPWM(v[0], v[1], v[2], v[3])
		return
	}
	d.SetManualForceAndTorques(v[0], v[1], v[2], v[3])
}

// SetTipForceVector sends a Cartesian force through the tip command
func (d *ToolDriver) SetTipForceVector(force mgl64.Vec3) {
	args := TipForceArgs(force)
	d.send(ToolSetTipForceAndRotTorque, protocol.FormatInts(args[:]...))
}

// SetDeadBandPWMWidth configures the per-motor PWM dead band
func (d *ToolDriver) SetDeadBandPWMWidth(rot, pitch, z, yaw int) {
	d.send(ToolSetDeadBandPWMWidth, protocol.FormatInts(int64(rot), int64(pitch), int64(z), int64(yaw)))
}

// ReleaseForce zeroes every motor
func (d *ToolDriver) ReleaseForce() {
	d.remember([4]float32{})
	d.send(ToolSetManualPWM, "0 0 0 0")
}

// LastCommanded returns the motor values of the last actuation command
func (d *ToolDriver) LastCommanded() [4]float32 {
	return *d.lastCommanded.Load()
}

// PrintStatus collects and logs the diagnostic registers
func (d *ToolDriver) PrintStatus() haptic.Status {
	status := haptic.Status{
		Code:           d.GetDeviceStatus(),
		LastPWM:        d.GetLastPWM(),
		MotorScaling:   d.GetMotorScalingValues(),
		CollisionForce: d.GetLastCollisionForce(),
	}

	d.logger.Info("Device status",
		zap.Int("status", status.Code),
		zap.Float32s("last_pwm", status.LastPWM[:]),
		zap.Float32s("motor_scaling", status.MotorScaling[:]),
		zap.Float32s("collision_force", status.CollisionForce[:]),
		zap.Uint64("failures", d.Failures()),
	)
	return status
}

func (d *ToolDriver) remember(values [4]float32) {
	d.lastCommanded.Store(&values)
}
