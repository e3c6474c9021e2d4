// internal/emulator/motion.go
package emulator

import (
	"math"
	"time"
)

// SweepMotion moves every axis along a slow sinusoid around a neutral pose
func SweepMotion() Motion {
	return func(elapsed time.Duration) [4]float32 {
		t := elapsed.Seconds()
		return [4]float32{
			float32(30 * math.Sin(0.5*t)),
			float32(10 * math.Sin(0.3*t)),
			float32(50 + 20*math.Sin(0.2*t)),
			float32(10 * math.Cos(0.3*t)),
		}
	}
}

// GripMotion opens and closes every IBox slot between 0 and 1
func GripMotion() Motion {
	return func(elapsed time.Duration) [4]float32 {
		v := float32(0.5 + 0.5*math.Sin(elapsed.Seconds()))
		return [4]float32{v, v, v, v}
	}
}
