// internal/emulator/firmware.go
package emulator

import (
	"bytes"
	"strconv"
	"strings"
	"sync"
	"time"

	"haptic-service/internal/driver"
	"haptic-service/internal/protocol"
)

// Kind selects which firmware is emulated
type Kind string

const (
	KindTool Kind = "tool"
	KindIBox Kind = "ibox"
)

const defaultLogLimit = 4096

// Command is one frame received by the firmware
type Command struct {
	ID   driver.CommandID
	Args string
	At   time.Time
}

// Frame renders the command the way it was written on the wire
func (c Command) Frame() string {
	return strconv.Itoa(int(c.ID)) + " " + c.Args
}

// Motion produces the pose of a tool, or the opening values of an IBox,
// at a given time since power-up
type Motion func(elapsed time.Duration) [4]float32

// Firmware is an in-memory model of the device firmware. It parses frames,
// records them and queues replies the way the real board does.
type Firmware struct {
	kind     Kind
	identity string
	started  time.Time

	mu       sync.Mutex
	inbox    []byte
	pending  []byte
	log      []Command
	logLimit int
	counts   map[driver.CommandID]uint64

	// link behaviour
	silent     bool
	chunkSize  int
	latency    int
	waitReads  int
	writeError error

	// tool registers
	pose        [4]float32
	motion      Motion
	toolID      int
	tagged      bool
	seq         int64
	status      int
	jawTorque   float32
	jawOpening  float32
	lastPWM     [4]int64
	motorValues [4]int64
	tipValues   [4]int64
	scaling     [4]float32
	collision   [3]float32
	deadBand    [4]int64

	// ibox registers
	openings [driver.IBoxNumTools]float32
	forces   [driver.IBoxNumChannels]int64
	gains    [driver.IBoxNumChannels]string
}

// Option configures a Firmware
type Option func(*Firmware)

// WithIdentity sets the identity string
func WithIdentity(identity string) Option {
	return func(f *Firmware) { f.identity = identity }
}

// WithToolID sets the id reported for the mounted tool
func WithToolID(id int) Option {
	return func(f *Firmware) { f.toolID = id }
}

// WithPose sets a fixed tool pose, or fixed IBox opening values
func WithPose(values [4]float32) Option {
	return func(f *Firmware) {
		f.pose = values
		f.openings = values
	}
}

// WithMotion makes the pose follow a function of time
func WithMotion(m Motion) Option {
	return func(f *Firmware) { f.motion = m }
}

// WithTaggedTelemetry makes every angles reply carry an increasing
// sequence number in all four fields and every tool id reply echo the
// number of the last angles reply
func WithTaggedTelemetry() Option {
	return func(f *Firmware) { f.tagged = true }
}

// WithChunkSize limits how many bytes a single read returns
func WithChunkSize(n int) Option {
	return func(f *Firmware) { f.chunkSize = n }
}

// WithLatency delays every reply by n empty reads
func WithLatency(n int) Option {
	return func(f *Firmware) { f.latency = n }
}

// WithLogLimit bounds the command log
func WithLogLimit(n int) Option {
	return func(f *Firmware) { f.logLimit = n }
}

// NewTool creates a primary tool firmware
func NewTool(opts ...Option) *Firmware {
	return newFirmware(KindTool, "HapticAvatar Tool EMU", opts)
}

// NewIBox creates an IBox firmware
func NewIBox(opts ...Option) *Firmware {
	return newFirmware(KindIBox, "HapticAvatar IBox EMU", opts)
}

func newFirmware(kind Kind, identity string, opts []Option) *Firmware {
	f := &Firmware{
		kind:     kind,
		identity: identity,
		started:  time.Now(),
		logLimit: defaultLogLimit,
		counts:   make(map[driver.CommandID]uint64),
		scaling:  [4]float32{1, 1, 1, 1},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Kind returns the emulated firmware
func (f *Firmware) Kind() Kind {
	return f.kind
}

// Identity returns the string answered to the identity command
func (f *Firmware) Identity() string {
	return f.identity
}

// SetSilent stops or resumes replies
func (f *Firmware) SetSilent(silent bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.silent = silent
}

// SetWriteError makes every write fail with err until cleared with nil
func (f *Firmware) SetWriteError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeError = err
}

// SetPose replaces the fixed pose
func (f *Firmware) SetPose(values [4]float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pose = values
	f.openings = values
}

// SetCollisionForce sets the collision force register
func (f *Firmware) SetCollisionForce(force [3]float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collision = force
}

// Commands returns the retained command log, oldest first
func (f *Firmware) Commands() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Command, len(f.log))
	copy(out, f.log)
	return out
}

// LastCommand returns the most recent command
func (f *Firmware) LastCommand() (Command, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.log) == 0 {
		return Command{}, false
	}
	return f.log[len(f.log)-1], true
}

// Count returns how many times an opcode was received
func (f *Firmware) Count(id driver.CommandID) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[id]
}

// MotorValues returns the raw arguments of the last force/torque command
func (f *Firmware) MotorValues() [4]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.motorValues
}

// LastPWM returns the PWM register
func (f *Firmware) LastPWM() [4]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPWM
}

// HandleForces returns the raw IBox force channels
func (f *Firmware) HandleForces() [driver.IBoxNumChannels]int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forces
}

// LoopGains returns the gain arguments received per IBox channel
func (f *Firmware) LoopGains() [driver.IBoxNumChannels]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gains
}

// receive accepts bytes written by the host and handles complete frames
func (f *Firmware) receive(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writeError != nil {
		return f.writeError
	}

	f.inbox = append(f.inbox, data...)
	for {
		i := bytes.IndexByte(f.inbox, '\n')
		if i < 0 {
			return nil
		}
		line := string(f.inbox[:i])
		f.inbox = f.inbox[i+1:]
		f.handle(line)
	}
}

// read hands queued reply bytes to the host
func (f *Firmware) read(buf []byte, flush bool) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	if flush {
		f.pending = f.pending[:0]
		return 0
	}
	if len(f.pending) == 0 {
		return 0
	}
	if f.waitReads > 0 {
		f.waitReads--
		return 0
	}

	n := len(f.pending)
	if f.chunkSize > 0 && n > f.chunkSize {
		n = f.chunkSize
	}
	n = copy(buf, f.pending[:n])
	f.pending = f.pending[n:]
	return n
}

func (f *Firmware) handle(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return
	}
	args := fields[1:]

	cmd := Command{ID: driver.CommandID(id), Args: strings.Join(args, " "), At: time.Now()}
	f.record(cmd)

	var reply string
	var ok bool
	if f.kind == KindIBox {
		reply, ok = f.handleIBox(cmd.ID, args)
	} else {
		reply, ok = f.handleTool(cmd.ID, args)
	}
	if !ok || f.silent {
		return
	}
	f.pending = append(f.pending, reply...)
	f.pending = append(f.pending, " \n"...)
	f.waitReads = f.latency
}

func (f *Firmware) record(cmd Command) {
	f.counts[cmd.ID]++
	if len(f.log) >= f.logLimit {
		keep := f.logLimit / 2
		f.log = append(f.log[:0], f.log[len(f.log)-keep:]...)
	}
	f.log = append(f.log, cmd)
}

// handleCommon serves the housekeeping opcodes shared by both firmwares
func (f *Firmware) handleCommon(id driver.CommandID, args []string) (string, bool) {
	switch id {
	case driver.ToolGetIdentity:
		return f.identity, true
	case driver.ToolGetStatus:
		return strconv.Itoa(f.status), true
	case driver.ToolReset:
		f.lastPWM = [4]int64{}
		f.motorValues = [4]int64{}
		f.forces = [driver.IBoxNumChannels]int64{}
		mode := 0
		if len(args) > 0 {
			mode, _ = strconv.Atoi(args[0])
		}
		return strconv.Itoa(mode), true
	case driver.ToolGetToolID:
		if f.tagged {
			return strconv.FormatInt(f.seq, 10), true
		}
		return strconv.Itoa(f.toolID), true
	}
	return "", false
}

func (f *Firmware) handleTool(id driver.CommandID, args []string) (string, bool) {
	switch id {
	case driver.ToolGetAnglesAndLength:
		if f.tagged {
			f.seq++
			tag := float32(f.seq)
			return protocol.FormatScaled(tag, tag, tag, tag), true
		}
		pose := f.currentPose()
		return protocol.FormatScaled(pose[:]...), true
	case driver.ToolGetJawTorque:
		return protocol.FormatScaled(f.jawTorque), true
	case driver.ToolSetJawOpeningAngle:
		if len(args) == 0 {
			return protocol.FormatScaled(f.jawOpening), true
		}
		if v, err := strconv.ParseInt(args[0], 10, 64); err == nil {
			f.jawOpening = float32(v) / protocol.WireScale
		}
		return "", false
	case driver.ToolGetLastPWM:
		return protocol.FormatInts(f.lastPWM[:]...), true
	case driver.ToolGetMotorScalingValues:
		return protocol.FormatScaled(f.scaling[:]...), true
	case driver.ToolGetLastCollisionForce:
		return protocol.FormatScaled(f.collision[:]...), true
	case driver.ToolSetMotorForceAndTorques:
		parseInts(args, f.motorValues[:])
		return "", false
	case driver.ToolSetTipForceAndRotTorque:
		parseInts(args, f.tipValues[:])
		return "", false
	case driver.ToolSetManualPWM:
		parseInts(args, f.lastPWM[:])
		return "", false
	case driver.ToolSetDeadBandPWMWidth:
		parseInts(args, f.deadBand[:])
		return "", false
	}
	return f.handleCommon(id, args)
}

func (f *Firmware) handleIBox(id driver.CommandID, args []string) (string, bool) {
	switch id {
	case driver.IBoxGetOpeningValues:
		openings := f.openings
		if f.motion != nil {
			openings = f.motion(time.Since(f.started))
		}
		return protocol.FormatScaled(openings[:]...), true
	case driver.IBoxSetAllForces:
		parseInts(args, f.forces[:])
		return "", false
	case driver.IBoxSetLoopGain:
		if len(args) == 3 {
			if ch, err := strconv.Atoi(args[0]); err == nil && ch >= 0 && ch < driver.IBoxNumChannels {
				f.gains[ch] = args[1] + " " + args[2]
			}
		}
		return "", false
	}
	return f.handleCommon(id, args)
}

func (f *Firmware) currentPose() [4]float32 {
	if f.motion != nil {
		return f.motion(time.Since(f.started))
	}
	return f.pose
}

func parseInts(args []string, into []int64) {
	for i := range into {
		into[i] = 0
		if i < len(args) {
			into[i], _ = strconv.ParseInt(args[i], 10, 64)
		}
	}
}
