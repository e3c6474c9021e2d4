package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"

	"haptic-service/internal/config"
	"haptic-service/internal/driver"
	"haptic-service/internal/model"
	"haptic-service/internal/protocol"
	"haptic-service/internal/repository"
	"haptic-service/internal/service"
	"haptic-service/pkg/haptic"
)

func testConfig() *config.Config {
	serial := config.SerialPortConfig{MaxPollCount: 100}
	return &config.Config{
		Device: config.DeviceConfig{
			PortName:        "EMU-TOOL",
			Transport:       "emulated",
			Scale:           1,
			ForceScale:      1,
			MaxOpeningAngle: 60,
			DeadBandPWM:     [4]int{100, 0, 0, 0},
			Serial:          serial,
		},
		IBox: config.IBoxConfig{
			Enabled:   true,
			PortName:  "EMU-IBOX",
			Transport: "emulated",
			LoopGainP: 2.5,
			Serial:    serial,
		},
		Loop: config.LoopConfig{
			PollPeriod:        200 * time.Microsecond,
			CopyPeriod:        100 * time.Microsecond,
			Pacing:            "sleep",
			FrequencyLogEvery: 1000,
			StatusDumpEvery:   30000,
			JawArmLength:      25,
			JawOffsetAngle:    0.38,
			HandleForceGain:   3,
			ForceTimeout:      time.Second,
		},
	}
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func TestSessionService(t *testing.T) {
	ctx := context.Background()

	Convey("Given a service over emulated devices", t, func() {
		cfg := testConfig()
		registry := protocol.NewRegistry(zap.NewNop())
		bench := service.NewEmulatorBench(cfg, registry)
		So(bench, ShouldNotBeNil)

		events := service.NewEventBus(zap.NewNop())
		go events.Start()
		defer events.Close()
		sub, cancel := events.Subscribe()
		defer cancel()

		repo := repository.NewMemoryRepository(10, zap.NewNop())
		svc := service.NewSessionService(cfg, registry, repo, events, zap.NewNop())

		Convey("nothing runs before the devices are opened", func() {
			_, err := svc.StartSession(ctx)
			So(err, ShouldEqual, service.ErrNotOpened)
			_, err = svc.Telemetry()
			So(err, ShouldEqual, service.ErrNotOpened)
			So(svc.PushForces(haptic.Forces{}), ShouldEqual, service.ErrNotOpened)
		})

		So(svc.Open(ctx), ShouldBeNil)
		defer svc.Close(ctx)
		toolFw := bench.Device("EMU-TOOL")
		iboxFw := bench.Device("EMU-IBOX")

		Convey("opening configures both devices", func() {
			devices := svc.Devices()
			So(len(devices), ShouldEqual, 2)
			So(devices[0].Kind, ShouldEqual, "tool")
			So(devices[0].Identity, ShouldEqual, "HapticAvatar Tool EMU")
			So(devices[0].Connected, ShouldBeTrue)
			So(devices[1].Identity, ShouldEqual, "HapticAvatar IBox EMU")

			So(toolFw.Count(driver.ToolSetDeadBandPWMWidth), ShouldEqual, uint64(1))
			So(iboxFw.Count(driver.IBoxSetLoopGain), ShouldEqual, uint64(driver.IBoxNumChannels))
			So(iboxFw.LoopGains()[0], ShouldEqual, "2.5 0")

			var event *model.LoopEvent
			So(waitFor(func() bool {
				select {
				case event = <-sub:
					return true
				default:
					return false
				}
			}), ShouldBeTrue)
			So(event.EventType, ShouldEqual, model.EventDeviceConnected)
		})

		Convey("a session runs the loop and is recorded when stopped", func() {
			session, err := svc.StartSession(ctx)
			So(err, ShouldBeNil)
			So(session.Status, ShouldEqual, model.SessionStatusRunning)
			So(session.IBoxLinked, ShouldBeTrue)
			_, err = svc.StartSession(ctx)
			So(err, ShouldEqual, service.ErrSessionActive)

			So(waitFor(func() bool {
				tel, err := svc.Telemetry()
				return err == nil && tel.Valid && tel.Data.ToolID == 1
			}), ShouldBeTrue)

			_, err = svc.Signal("started")
			So(err, ShouldBeNil)
			So(svc.PushForces(haptic.Forces{1, 2, 3, 4, 0, 0}), ShouldBeNil)
			So(waitFor(func() bool {
				return toolFw.MotorValues() == [4]int64{-30000, 20000, 40000, -10000}
			}), ShouldBeTrue)

			stats, err := svc.LoopStats()
			So(err, ShouldBeNil)
			So(stats.SimulationStarted, ShouldBeTrue)

			stopped, err := svc.StopSession(ctx)
			So(err, ShouldBeNil)
			So(stopped.ID, ShouldEqual, session.ID)
			So(stopped.Status, ShouldEqual, model.SessionStatusCompleted)
			So(stopped.PollCycles, ShouldBeGreaterThan, 0)
			So(stopped.ToolID, ShouldEqual, 1)
			So(stopped.EndedAt, ShouldNotBeNil)

			last, _ := toolFw.LastCommand()
			So(last.ID, ShouldEqual, driver.ToolSetManualPWM)
			So(last.Args, ShouldEqual, "0 0 0 0")

			stored, err := svc.GetSession(ctx, session.ID)
			So(err, ShouldBeNil)
			So(stored.PollCycles, ShouldEqual, stopped.PollCycles)

			list, total, err := svc.ListSessions(ctx, &repository.SessionFilter{})
			So(err, ShouldBeNil)
			So(total, ShouldEqual, 1)
			So(list[0].ID, ShouldEqual, session.ID)

			_, err = svc.StopSession(ctx)
			So(err, ShouldEqual, service.ErrNoActiveSession)
			So(svc.CurrentSession(), ShouldBeNil)
		})

		Convey("unknown signals are rejected", func() {
			_, err := svc.Signal("paused")
			So(err, ShouldNotBeNil)
		})

		Convey("closing stops a running session", func() {
			_, err := svc.StartSession(ctx)
			So(err, ShouldBeNil)
			So(svc.Close(ctx), ShouldBeNil)
			So(svc.CurrentSession(), ShouldBeNil)

			running := model.SessionStatusRunning
			_, total, _ := svc.ListSessions(ctx, &repository.SessionFilter{Status: &running})
			So(total, ShouldEqual, 0)
		})
	})

	Convey("A missing tool leaves the service running disconnected", t, func() {
		cfg := testConfig()
		cfg.IBox.Enabled = false
		registry := protocol.NewRegistry(zap.NewNop())
		service.NewEmulatorBench(cfg, registry)
		cfg.Device.PortName = "EMU-NOWHERE"

		events := service.NewEventBus(zap.NewNop())
		svc := service.NewSessionService(cfg, registry, repository.NewMemoryRepository(10, zap.NewNop()), events, zap.NewNop())
		So(svc.Open(ctx), ShouldBeNil)
		defer svc.Close(ctx)

		devices := svc.Devices()
		So(len(devices), ShouldEqual, 1)
		So(devices[0].Connected, ShouldBeFalse)

		_, err := svc.StartSession(ctx)
		So(err, ShouldBeNil)
		stopped, err := svc.StopSession(ctx)
		So(err, ShouldBeNil)
		So(stopped.ToolFailures, ShouldEqual, 0)
	})

	Convey("Without emulated devices no bench is registered", t, func() {
		cfg := testConfig()
		cfg.Device.Transport = "serial"
		cfg.IBox.Enabled = false
		registry := protocol.NewRegistry(zap.NewNop())
		So(service.NewEmulatorBench(cfg, registry), ShouldBeNil)
		So(len(registry.ListTransports()), ShouldEqual, 1)
	})

	Convey("Session lookups fall through to the repository", t, func() {
		repo := repository.NewMemoryRepository(10, zap.NewNop())
		svc := service.NewSessionService(testConfig(), protocol.NewRegistry(zap.NewNop()), repo, service.NewEventBus(zap.NewNop()), zap.NewNop())
		_, err := svc.GetSession(ctx, uuid.New())
		So(errors.Is(err, repository.ErrSessionNotFound), ShouldBeTrue)
	})
}
