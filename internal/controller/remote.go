// internal/controller/remote.go
package controller

import (
	"time"

	"go.uber.org/atomic"

	"haptic-service/pkg/haptic"
)

type remoteSample struct {
	forces haptic.Forces
	at     time.Time
}

// RemoteForceFeedback serves the forces last pushed by a remote
// simulation host. Samples older than maxAge read as zero force.
type RemoteForceFeedback struct {
	latest atomic.Pointer[remoteSample]
	maxAge time.Duration
	now    func() time.Time
}

var _ haptic.ForceFeedback = (*RemoteForceFeedback)(nil)

// NewRemoteForceFeedback creates an empty cell. maxAge <= 0 never expires samples.
func NewRemoteForceFeedback(maxAge time.Duration) *RemoteForceFeedback {
	return &RemoteForceFeedback{maxAge: maxAge, now: time.Now}
}

// Push stores a new sample
func (r *RemoteForceFeedback) Push(forces haptic.Forces) {
	r.latest.Store(&remoteSample{forces: forces, at: r.now()})
}

// Clear drops the current sample
func (r *RemoteForceFeedback) Clear() {
	r.latest.Store(nil)
}

// ComputeForce returns the latest fresh sample. The articulations are
// already known to the remote host.
func (r *RemoteForceFeedback) ComputeForce(_ haptic.Articulations) haptic.Forces {
	sample := r.latest.Load()
	if sample == nil {
		return haptic.Forces{}
	}
	if r.maxAge > 0 && r.now().Sub(sample.at) > r.maxAge {
		return haptic.Forces{}
	}
	return sample.forces
}

// ScaleForceFeedback multiplies every force of ff by scale. A scale of 1
// returns ff unchanged.
func ScaleForceFeedback(ff haptic.ForceFeedback, scale float64) haptic.ForceFeedback {
	if ff == nil || scale == 1 {
		return ff
	}
	return haptic.ForceFeedbackFunc(func(a haptic.Articulations) haptic.Forces {
		forces := ff.ComputeForce(a)
		for i := range forces {
			forces[i] *= scale
		}
		return forces
	})
}
