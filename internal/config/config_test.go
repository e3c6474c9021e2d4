package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoad(t *testing.T) {
	Convey("Given no config file", t, func() {
		dir := t.TempDir()
		cfg, err := Load(dir)

		Convey("defaults apply", func() {
			So(err, ShouldBeNil)
			So(cfg.Loop.PollPeriod, ShouldEqual, time.Millisecond)
			So(cfg.Loop.CopyPeriod, ShouldEqual, 500*time.Microsecond)
			So(cfg.Loop.Pacing, ShouldEqual, "busy")
			So(cfg.Loop.LockOSThread, ShouldBeTrue)
			So(cfg.Device.Serial.BaudRate, ShouldEqual, 9600)
			So(cfg.Device.Serial.MaxPollCount, ShouldEqual, 10000)
			So(cfg.Device.MaxOpeningAngle, ShouldEqual, 60.0)
			So(cfg.Device.DeadBandPWM, ShouldResemble, [4]int{100, 0, 0, 0})
			So(cfg.IBox.LoopGainP, ShouldEqual, 2.5)
			So(cfg.IBox.Enabled, ShouldBeFalse)
			So(cfg.Loop.ForceTimeout, ShouldEqual, 100*time.Millisecond)
			So(cfg.Database.Enabled, ShouldBeFalse)
			So(cfg.Database.SessionRetention, ShouldEqual, 720*time.Hour)
			So(cfg.Database.MemoryLimit, ShouldEqual, 1000)
			So(cfg.GetDatabaseDSN(), ShouldEqual,
				"host=localhost port=5432 user=postgres password=postgres dbname=haptic_service sslmode=disable")
			So(cfg.Security.AllowedOrigins, ShouldResemble, []string{"http://localhost:3000"})
		})
	})

	Convey("Given a config file", t, func() {
		dir := t.TempDir()
		body := []byte("device:\n  transport: emulated\n  port_name: \"\"\nloop:\n  pacing: sleep\n  lock_os_thread: false\n  poll_period: 2ms\n")
		So(os.WriteFile(filepath.Join(dir, "config.yaml"), body, 0o644), ShouldBeNil)

		cfg, err := Load(dir)
		So(err, ShouldBeNil)
		So(cfg.Device.Transport, ShouldEqual, "emulated")
		So(cfg.Loop.Pacing, ShouldEqual, "sleep")
		So(cfg.Loop.LockOSThread, ShouldBeFalse)
		So(cfg.Loop.PollPeriod, ShouldEqual, 2*time.Millisecond)
	})

	Convey("Given an invalid pacing strategy", t, func() {
		dir := t.TempDir()
		body := []byte("loop:\n  pacing: yield\n")
		So(os.WriteFile(filepath.Join(dir, "config.yaml"), body, 0o644), ShouldBeNil)

		_, err := Load(dir)
		So(err, ShouldNotBeNil)
		So(err.Error(), ShouldContainSubstring, "loop.pacing")
	})

	Convey("Environment overrides the file", t, func() {
		t.Setenv("HAPTIC_SERVICE_DEVICE_PORT_NAME", "/dev/ttyACM1")
		cfg, err := Load(t.TempDir())
		So(err, ShouldBeNil)
		So(cfg.Device.PortName, ShouldEqual, "/dev/ttyACM1")
	})
}
