// internal/controller/controller.go
package controller

import (
	"math"
	"runtime"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"

	"haptic-service/internal/config"
	"haptic-service/internal/utils"
	"haptic-service/pkg/haptic"
)

// Options tune the control loop
type Options struct {
	PollPeriod time.Duration
	CopyPeriod time.Duration
	Pacing     string

	// Cadences counted in force cycles
	FrequencyLogEvery uint64
	StatusDumpEvery   uint64

	// Lever model converting the jaw force differential into a handle force
	JawArmLength    float64
	JawOffsetAngle  float64
	HandleForceGain float64

	// LockOSThread pins each loop goroutine to its own OS thread
	LockOSThread bool
}

// DefaultOptions returns the loop settings of the device firmware
func DefaultOptions() Options {
	return Options{
		PollPeriod:        time.Millisecond,
		CopyPeriod:        500 * time.Microsecond,
		Pacing:            PacingBusy,
		FrequencyLogEvery: 1000,
		StatusDumpEvery:   30000,
		JawArmLength:      25,
		JawOffsetAngle:    0.38,
		HandleForceGain:   3,
		LockOSThread:      true,
	}
}

// OptionsFromConfig builds loop options from the loop configuration section
func OptionsFromConfig(cfg *config.LoopConfig) Options {
	opts := DefaultOptions()
	opts.PollPeriod = cfg.PollPeriod
	opts.CopyPeriod = cfg.CopyPeriod
	opts.Pacing = cfg.Pacing
	opts.LockOSThread = cfg.LockOSThread
	opts.FrequencyLogEvery = uint64(cfg.FrequencyLogEvery)
	opts.StatusDumpEvery = uint64(cfg.StatusDumpEvery)
	opts.JawArmLength = cfg.JawArmLength
	opts.JawOffsetAngle = cfg.JawOffsetAngle
	opts.HandleForceGain = cfg.HandleForceGain
	return opts
}

// LoopStats describes the loop for diagnostics
type LoopStats struct {
	State             string    `json:"state"`
	Cycles            uint64    `json:"cycles"`
	ForceCycles       uint64    `json:"force_cycles"`
	CopyCycles        uint64    `json:"copy_cycles"`
	AverageHz         float64   `json:"average_hz"`
	LastHz            float64   `json:"last_hz"`
	ToolFailures      uint64    `json:"tool_failures"`
	IBoxFailures      uint64    `json:"ibox_failures"`
	Collisions        uint64    `json:"collisions"`
	SimulationStarted bool      `json:"simulation_started"`
	IBoxLinked        bool      `json:"ibox_linked"`
	ForceFeedback     bool      `json:"force_feedback"`
	StartedAt         time.Time `json:"started_at,omitempty"`
	StoppedAt         time.Time `json:"stopped_at,omitempty"`
}

type feedbackRef struct {
	ff haptic.ForceFeedback
}

// Controller runs the polling/force loop and the copy loop of one tool
type Controller struct {
	tool   haptic.ToolDevice
	ibox   haptic.IBoxDevice
	opts   Options
	pacer  Pacer
	logger *utils.LoopLogger

	// mu serializes Start, Stop and LinkIBox
	mu    sync.Mutex
	wg    sync.WaitGroup
	state atomic.Int32

	terminate         atomic.Bool
	simulationStarted atomic.Bool
	feedback          atomic.Pointer[feedbackRef]
	articulations     atomic.Pointer[haptic.Articulations]

	// polled holds the last completed poll cycle, simu the copy loop's
	// output and debug the record last consumed by the simulation
	polled SnapshotCell
	simu   SnapshotCell
	debug  SnapshotCell

	cycles      atomic.Uint64
	forceCycles atomic.Uint64
	copyCycles  atomic.Uint64
	collisions  atomic.Uint64
	lastHz      atomic.Float64
	startedAt   atomic.Time
	stoppedAt   atomic.Time
}

// New creates an idle controller for tool
func New(tool haptic.ToolDevice, opts Options, logger *zap.Logger) (*Controller, error) {
	if tool == nil {
		return nil, ErrNoTool
	}
	pacer, err := NewPacer(opts.Pacing)
	if err != nil {
		return nil, err
	}
	if opts.FrequencyLogEvery == 0 {
		opts.FrequencyLogEvery = DefaultOptions().FrequencyLogEvery
	}
	if opts.StatusDumpEvery == 0 {
		opts.StatusDumpEvery = DefaultOptions().StatusDumpEvery
	}

	return &Controller{
		tool:   tool,
		opts:   opts,
		pacer:  pacer,
		logger: utils.NewLoopLogger(logger, "haptic"),
	}, nil
}

// LinkIBox attaches the auxiliary handle controller. It must be called
// while the loop is not running.
func (c *Controller) LinkIBox(ibox haptic.IBoxDevice) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if state := c.State(); state != StateIdle && state != StateStopped {
		return ErrAlreadyRunning
	}
	c.ibox = ibox
	return nil
}

// SetForceFeedback installs the force computation. nil disables force feedback.
func (c *Controller) SetForceFeedback(ff haptic.ForceFeedback) {
	if ff == nil {
		c.feedback.Store(nil)
		return
	}
	c.feedback.Store(&feedbackRef{ff: ff})
}

// SetSimulationStarted raises or lowers the simulation-started signal
func (c *Controller) SetSimulationStarted(started bool) {
	c.simulationStarted.Store(started)
}

// SimulationStarted reports the simulation-started signal
func (c *Controller) SimulationStarted() bool {
	return c.simulationStarted.Load()
}

// SetArticulations publishes the articulation state used by force feedback
func (c *Controller) SetArticulations(a haptic.Articulations) {
	c.articulations.Store(&a)
}

// Articulations returns the articulation state last published
func (c *Controller) Articulations() haptic.Articulations {
	if p := c.articulations.Load(); p != nil {
		return *p
	}
	return haptic.Articulations{}
}

// NoteCollision counts a collision reported by the simulation
func (c *Controller) NoteCollision() {
	c.collisions.Inc()
}

// State returns the lifecycle state
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Start launches both loops
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	from := c.State()
	if from != StateIdle && from != StateStopped {
		return ErrAlreadyRunning
	}

	c.terminate.Store(false)
	c.cycles.Store(0)
	c.forceCycles.Store(0)
	c.copyCycles.Store(0)
	c.startedAt.Store(time.Now())
	c.stoppedAt.Store(time.Time{})
	c.setState(from, StateRunning)

	c.wg.Add(2)
	go c.pollLoop()
	go c.copyLoop()
	return nil
}

// Stop raises the termination flag and waits for both loops to exit.
// The device is left with zero force.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.State() != StateRunning {
		return ErrNotRunning
	}

	c.setState(StateRunning, StateTerminating)
	c.terminate.Store(true)
	c.wg.Wait()
	c.stoppedAt.Store(time.Now())
	c.setState(StateTerminating, StateStopped)
	return nil
}

// Snapshot returns the record last published by the copy loop
func (c *Controller) Snapshot() (haptic.DeviceData, bool) {
	return c.simu.Load()
}

// SnapshotVersion counts copy loop publications
func (c *Controller) SnapshotVersion() uint64 {
	return c.simu.Version()
}

// DebugSnapshot returns the record last consumed by the simulation
func (c *Controller) DebugSnapshot() (haptic.DeviceData, bool) {
	return c.debug.Load()
}

// LoopStats returns the loop counters
func (c *Controller) LoopStats() LoopStats {
	stats := LoopStats{
		State:             c.State().String(),
		Cycles:            c.cycles.Load(),
		ForceCycles:       c.forceCycles.Load(),
		CopyCycles:        c.copyCycles.Load(),
		LastHz:            c.lastHz.Load(),
		ToolFailures:      c.tool.Failures(),
		Collisions:        c.collisions.Load(),
		SimulationStarted: c.simulationStarted.Load(),
		ForceFeedback:     c.feedback.Load() != nil,
		StartedAt:         c.startedAt.Load(),
		StoppedAt:         c.stoppedAt.Load(),
	}

	c.mu.Lock()
	ibox := c.ibox
	c.mu.Unlock()
	if ibox != nil {
		stats.IBoxLinked = true
		stats.IBoxFailures = ibox.Failures()
	}

	if !stats.StartedAt.IsZero() {
		end := stats.StoppedAt
		if end.IsZero() {
			end = time.Now()
		}
		if elapsed := end.Sub(stats.StartedAt).Seconds(); elapsed > 0 {
			stats.AverageHz = float64(stats.Cycles) / elapsed
		}
	}
	return stats
}

func (c *Controller) setState(from, to State) {
	c.state.Store(int32(to))
	c.logger.LogLifecycle(from.String(), to.String())
}

func (c *Controller) forceFeedback() haptic.ForceFeedback {
	if ref := c.feedback.Load(); ref != nil {
		return ref.ff
	}
	return nil
}

// pollLoop reads the devices and drives the motors once per poll period
func (c *Controller) pollLoop() {
	defer c.wg.Done()
	if c.opts.LockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	var data haptic.DeviceData
	window := frequencyWindow{start: time.Now(), cycles: c.cycles.Load()}

	for !c.terminate.Load() {
		start := time.Now()
		c.pollCycle(&data, &window)
		c.pacer.Wait(start, c.opts.PollPeriod)
	}

	c.tool.ReleaseForce()
	c.logger.Logger().Info("Haptic poll loop exited")
}

func (c *Controller) pollCycle(data *haptic.DeviceData, window *frequencyWindow) {
	data.AnglesAndLength = c.tool.GetAnglesAndLength()
	data.ToolID = c.tool.GetToolID()

	if c.ibox != nil {
		data.JawOpening = c.ibox.GetJawOpeningAngle(data.ToolID)
	}

	ff := c.forceFeedback()
	if c.simulationStarted.Load() && ff != nil {
		forces := ff.ComputeForce(c.Articulations())

		motor := MotorCommand(forces)
		c.tool.SetMotorForceAndTorques(motor)
		data.MotorValues = motor

		if c.ibox != nil {
			c.ibox.SetHandleForce(data.ToolID, c.HandleForce(forces, data.JawOpening))
		}

		n := c.forceCycles.Inc()
		if n%c.opts.FrequencyLogEvery == 0 {
			hz := window.measure(c.cycles.Load() + 1)
			c.lastHz.Store(hz)
			c.logger.LogFrequency(hz, n)
		}
		if n%c.opts.StatusDumpEvery == 0 {
			data.CollisionForces = c.tool.PrintStatus().CollisionForce
		}
	} else {
		c.tool.ReleaseForce()
		data.MotorValues = [4]float32{}
	}

	c.tool.Update()
	if c.ibox != nil {
		c.ibox.Update()
	}

	c.polled.Store(*data)
	c.cycles.Inc()
}

// copyLoop republishes the last completed poll cycle once per copy period
func (c *Controller) copyLoop() {
	defer c.wg.Done()
	if c.opts.LockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	for !c.terminate.Load() {
		start := time.Now()
		c.simu.CopyFrom(&c.polled)
		c.copyCycles.Inc()
		c.pacer.Wait(start, c.opts.CopyPeriod)
	}
	c.simu.CopyFrom(&c.polled)
}

// MotorCommand remaps joint forces to the device axes:
// rot = -f[2], pitch = f[1], z = f[3], yaw = -f[0]
func MotorCommand(f haptic.Forces) [4]float32 {
	return [4]float32{
		float32(-f[2]),
		float32(f[1]),
		float32(f[3]),
		float32(-f[0]),
	}
}

// HandleForce converts the jaw force differential into a handle force
// through the lever arm at the current opening. A degenerate arm yields 0.
func (c *Controller) HandleForce(f haptic.Forces, jawOpening float32) float32 {
	arm := c.opts.JawArmLength * math.Sin(c.opts.JawOffsetAngle+float64(jawOpening))
	if math.Abs(arm) < 1e-9 {
		return 0
	}
	return float32((f[4] - f[5]) / arm * c.opts.HandleForceGain)
}

// frequencyWindow measures the average loop rate between two logs
type frequencyWindow struct {
	start  time.Time
	cycles uint64
}

func (w *frequencyWindow) measure(totalCycles uint64) float64 {
	now := time.Now()
	elapsed := now.Sub(w.start).Seconds()
	count := totalCycles - w.cycles
	w.start = now
	w.cycles = totalCycles
	if elapsed <= 0 {
		return 0
	}
	return float64(count) / elapsed
}
