// internal/controller/snapshot.go
package controller

import (
	"go.uber.org/atomic"

	"haptic-service/pkg/haptic"
)

// SnapshotCell publishes complete DeviceData records from one writer to
// any number of readers. A stored record is never modified again, so a
// reader sees either the previous record or the new one in full.
type SnapshotCell struct {
	record  atomic.Pointer[haptic.DeviceData]
	version atomic.Uint64
}

// Store publishes a copy of data
func (c *SnapshotCell) Store(data haptic.DeviceData) {
	c.record.Store(&data)
	c.version.Inc()
}

// CopyFrom republishes the latest record of src without copying it
func (c *SnapshotCell) CopyFrom(src *SnapshotCell) {
	if p := src.record.Load(); p != nil && p != c.record.Load() {
		c.record.Store(p)
		c.version.Inc()
	}
}

// Load returns the latest record. ok is false until the first Store.
func (c *SnapshotCell) Load() (data haptic.DeviceData, ok bool) {
	p := c.record.Load()
	if p == nil {
		return haptic.DeviceData{}, false
	}
	return *p, true
}

// Version counts publications
func (c *SnapshotCell) Version() uint64 {
	return c.version.Load()
}
