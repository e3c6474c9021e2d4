// internal/service/session_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"haptic-service/internal/config"
	"haptic-service/internal/controller"
	"haptic-service/internal/driver"
	"haptic-service/internal/model"
	"haptic-service/internal/protocol"
	"haptic-service/internal/repository"
	"haptic-service/internal/utils"
	"haptic-service/pkg/haptic"
)

var (
	// ErrNotOpened is returned before Open has built the controller
	ErrNotOpened = errors.New("haptic devices not opened")
	// ErrSessionActive is returned when a session is already running
	ErrSessionActive = errors.New("a haptic session is already running")
	// ErrNoActiveSession is returned when no session is running
	ErrNoActiveSession = errors.New("no haptic session is running")
)

// Telemetry is one published record with its simulation mapping
type Telemetry struct {
	Version       uint64               `json:"version"`
	Valid         bool                 `json:"valid"`
	Data          haptic.DeviceData    `json:"data"`
	Articulations haptic.Articulations `json:"articulations"`
	Timestamp     time.Time            `json:"timestamp"`
}

// SessionService owns the haptic devices and runs the control loop as
// recorded sessions
type SessionService struct {
	config   *config.Config
	registry *protocol.Registry
	repo     repository.SessionRepository
	events   *EventBus
	logger   *utils.ServiceLogger

	mu           sync.Mutex
	tool         *driver.ToolDriver
	ibox         *driver.IBoxDriver
	toolIdentity string
	iboxIdentity string
	ctrl         *controller.Controller
	adapter      *controller.Adapter
	remote       *controller.RemoteForceFeedback
	current      *model.HapticSession
}

// NewSessionService creates a new session service instance
func NewSessionService(
	cfg *config.Config,
	registry *protocol.Registry,
	repo repository.SessionRepository,
	events *EventBus,
	logger *zap.Logger,
) *SessionService {
	return &SessionService{
		config:   cfg,
		registry: registry,
		repo:     repo,
		events:   events,
		logger:   utils.NewServiceLogger(logger, "session-service"),
	}
}

// Open connects the tool and the optional IBox and builds the controller.
// A device that fails to connect is kept in the disconnected state so the
// loop still runs and reports zero data.
func (s *SessionService) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctrl != nil {
		return nil
	}

	tool, err := openTool(ctx, s.registry, s.config, s.logger.Logger)
	if tool == nil {
		return err
	}
	if err != nil {
		s.logger.Warn("Tool unavailable, loop will run disconnected", zap.Error(err))
		s.publish(model.EventDeviceUnavailable, "WARNING", map[string]interface{}{
			"kind": "tool", "port": tool.PortName(), "error": err.Error(),
		})
	} else {
		s.toolIdentity = tool.GetIdentity()
		s.publish(model.EventDeviceConnected, "INFO", map[string]interface{}{
			"kind": "tool", "port": tool.PortName(), "identity": s.toolIdentity,
		})
	}

	ctrl, err := controller.New(tool, controller.OptionsFromConfig(&s.config.Loop), s.logger.Logger)
	if err != nil {
		tool.Close()
		return fmt.Errorf("failed to create controller: %w", err)
	}

	if s.config.IBox.Enabled {
		ibox, err := openIBox(ctx, s.registry, s.config, s.logger.Logger)
		switch {
		case ibox == nil:
			s.logger.Error("IBox transport unavailable", zap.Error(err))
		case err != nil:
			s.logger.Warn("IBox unavailable, handle force disabled", zap.Error(err))
			ibox.Close()
		default:
			s.iboxIdentity = ibox.GetIdentity()
			if err := ctrl.LinkIBox(ibox); err != nil {
				ibox.Close()
				tool.Close()
				return fmt.Errorf("failed to link ibox: %w", err)
			}
			s.ibox = ibox
			s.publish(model.EventDeviceConnected, "INFO", map[string]interface{}{
				"kind": "ibox", "port": ibox.PortName(), "identity": s.iboxIdentity,
			})
		}
	}

	remote := controller.NewRemoteForceFeedback(s.config.Loop.ForceTimeout)
	ctrl.SetForceFeedback(controller.ScaleForceFeedback(remote, s.config.Device.ForceScale))

	s.tool = tool
	s.ctrl = ctrl
	s.remote = remote
	s.adapter = controller.NewAdapter(ctrl, s.config.Device.MaxOpeningAngle, s.logger.Logger).
		WithScale(s.config.Device.Scale)

	s.logger.Info("Haptic devices opened",
		zap.String("tool_port", tool.PortName()),
		zap.String("tool_identity", s.toolIdentity),
		zap.Bool("ibox_linked", s.ibox != nil),
	)
	return nil
}

// StartSession starts the control loop and records a new session
func (s *SessionService) StartSession(ctx context.Context) (*model.HapticSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctrl == nil {
		return nil, ErrNotOpened
	}
	if s.current != nil {
		return nil, ErrSessionActive
	}

	if err := s.ctrl.Start(); err != nil {
		if errors.Is(err, controller.ErrAlreadyRunning) {
			return nil, ErrSessionActive
		}
		return nil, fmt.Errorf("failed to start loop: %w", err)
	}

	session := &model.HapticSession{
		ID:           uuid.New(),
		ToolPort:     s.tool.PortName(),
		ToolIdentity: s.toolIdentity,
		IBoxLinked:   s.ibox != nil,
		Status:       model.SessionStatusRunning,
		StartedAt:    time.Now(),
	}
	if err := s.repo.Create(ctx, session); err != nil {
		s.logger.Error("Failed to record session start", zap.Error(err))
	}
	s.current = session

	s.logger.Info("Haptic session started", zap.String("session_id", session.ID.String()))
	s.publishSession(model.EventLoopStarted, session)

	out := *session
	return &out, nil
}

// StopSession stops the control loop, leaving the device with zero force,
// and stores the session counters
func (s *SessionService) StopSession(ctx context.Context) (*model.HapticSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.stopLocked(ctx)
}

func (s *SessionService) stopLocked(ctx context.Context) (*model.HapticSession, error) {
	if s.ctrl == nil {
		return nil, ErrNotOpened
	}
	if s.current == nil {
		return nil, ErrNoActiveSession
	}

	status := model.SessionStatusCompleted
	if err := s.ctrl.Stop(); err != nil {
		s.logger.Error("Loop stop failed", zap.Error(err))
		status = model.SessionStatusFailed
	}
	s.remote.Clear()

	session := s.current
	s.current = nil

	stats := s.ctrl.LoopStats()
	ended := time.Now()
	if !stats.StoppedAt.IsZero() {
		ended = stats.StoppedAt
	}
	session.Status = status
	session.EndedAt = &ended
	session.PollCycles = int64(stats.Cycles)
	session.ForceCycles = int64(stats.ForceCycles)
	session.CopyCycles = int64(stats.CopyCycles)
	session.AvgFrequencyHz = stats.AverageHz
	session.ToolFailures = int64(stats.ToolFailures)
	session.IBoxFailures = int64(stats.IBoxFailures)
	if data, ok := s.ctrl.Snapshot(); ok {
		session.ToolID = data.ToolID
	}

	if err := s.repo.Finish(ctx, session); err != nil {
		s.logger.Error("Failed to record session end", zap.Error(err))
	}

	s.logger.Info("Haptic session stopped",
		zap.String("session_id", session.ID.String()),
		zap.Uint64("cycles", stats.Cycles),
		zap.Float64("average_hz", stats.AverageHz),
	)
	s.publishSession(model.EventLoopStopped, session)

	out := *session
	return &out, nil
}

// Close stops a running session and releases both devices
func (s *SessionService) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		if _, err := s.stopLocked(ctx); err != nil {
			s.logger.Error("Failed to stop session on close", zap.Error(err))
		}
	}

	var errs []error
	if s.tool != nil {
		errs = append(errs, s.tool.Close())
	}
	if s.ibox != nil {
		errs = append(errs, s.ibox.Close())
	}
	return errors.Join(errs...)
}

// CurrentSession returns the running session, or nil
func (s *SessionService) CurrentSession() *model.HapticSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil {
		return nil
	}
	out := *s.current
	return &out
}

// GetSession returns a recorded session
func (s *SessionService) GetSession(ctx context.Context, id uuid.UUID) (*model.HapticSession, error) {
	if current := s.CurrentSession(); current != nil && current.ID == id {
		return current, nil
	}
	return s.repo.GetByID(ctx, id)
}

// ListSessions returns recorded sessions, newest first
func (s *SessionService) ListSessions(ctx context.Context, filter *repository.SessionFilter) ([]*model.HapticSession, int, error) {
	return s.repo.List(ctx, filter)
}

// PurgeSessions removes finished sessions older than keep
func (s *SessionService) PurgeSessions(ctx context.Context, keep time.Duration) (int64, error) {
	return s.repo.DeleteOlderThan(ctx, time.Now().Add(-keep))
}

// Telemetry returns the record last published by the copy loop
func (s *SessionService) Telemetry() (Telemetry, error) {
	ctrl, adapter := s.loop()
	if ctrl == nil {
		return Telemetry{}, ErrNotOpened
	}

	data, ok := ctrl.Snapshot()
	return Telemetry{
		Version:       ctrl.SnapshotVersion(),
		Valid:         ok,
		Data:          data,
		Articulations: adapter.Articulations(),
		Timestamp:     time.Now(),
	}, nil
}

// UpdatePosition publishes the latest articulations to force feedback
func (s *SessionService) UpdatePosition() (haptic.Articulations, error) {
	_, adapter := s.loop()
	if adapter == nil {
		return haptic.Articulations{}, ErrNotOpened
	}
	return adapter.UpdatePosition(), nil
}

// Signal applies a simulation lifecycle signal by name
func (s *SessionService) Signal(name string) (haptic.Signal, error) {
	signal, err := haptic.ParseSignal(name)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	adapter, remote := s.adapter, s.remote
	s.mu.Unlock()

	if adapter == nil {
		return 0, ErrNotOpened
	}
	adapter.HandleSignal(signal)
	if signal == haptic.SignalSimulationEnded {
		remote.Clear()
	}

	s.publish(model.EventSimulationSignal, "INFO", map[string]interface{}{"signal": signal.String()})
	return signal, nil
}

// PushForces feeds forces computed by the remote simulation host
func (s *SessionService) PushForces(forces haptic.Forces) error {
	s.mu.Lock()
	remote := s.remote
	s.mu.Unlock()

	if remote == nil {
		return ErrNotOpened
	}
	remote.Push(forces)
	return nil
}

// LoopStats returns the loop counters
func (s *SessionService) LoopStats() (controller.LoopStats, error) {
	ctrl, _ := s.loop()
	if ctrl == nil {
		return controller.LoopStats{}, ErrNotOpened
	}
	return ctrl.LoopStats(), nil
}

// Devices describes the tool and IBox links
func (s *SessionService) Devices() []DeviceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	devices := []DeviceInfo{}
	if s.tool != nil {
		devices = append(devices, DeviceInfo{
			Kind:      "tool",
			Port:      s.tool.PortName(),
			Transport: s.config.Device.Transport,
			Identity:  s.toolIdentity,
			Connected: s.tool.IsConnected(),
			Failures:  s.tool.Failures(),
			Stats:     s.tool.Stats(),
		})
	}
	if s.ibox != nil {
		devices = append(devices, DeviceInfo{
			Kind:      "ibox",
			Port:      s.ibox.PortName(),
			Transport: s.config.IBox.Transport,
			Identity:  s.iboxIdentity,
			Connected: s.ibox.IsConnected(),
			Failures:  s.ibox.Failures(),
			Stats:     s.ibox.Stats(),
		})
	}
	return devices
}

// Events returns the bus loop events are published on
func (s *SessionService) Events() *EventBus {
	return s.events
}

func (s *SessionService) loop() (*controller.Controller, *controller.Adapter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl, s.adapter
}

func (s *SessionService) publishSession(eventType model.EventType, session *model.HapticSession) {
	event := model.NewLoopEvent(eventType, "INFO", map[string]interface{}{
		"status":   session.Status,
		"tool_id":  session.ToolID,
		"duration": session.Duration().String(),
	})
	id := session.ID
	event.SessionID = &id
	s.events.Publish(event)
}

func (s *SessionService) publish(eventType model.EventType, severity string, data map[string]interface{}) {
	s.events.Publish(model.NewLoopEvent(eventType, severity, data))
}
