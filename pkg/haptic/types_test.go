package haptic

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSignals(t *testing.T) {
	Convey("Signal names round trip", t, func() {
		for _, s := range []Signal{SignalSimulationStarted, SignalSimulationEnded, SignalCollisionDetected} {
			parsed, err := ParseSignal(s.String())
			So(err, ShouldBeNil)
			So(parsed, ShouldEqual, s)
		}
	})

	Convey("Parsing ignores case and padding", t, func() {
		s, err := ParseSignal(" Started ")
		So(err, ShouldBeNil)
		So(s, ShouldEqual, SignalSimulationStarted)
	})

	Convey("Unknown names are rejected", t, func() {
		_, err := ParseSignal("paused")
		So(err, ShouldNotBeNil)
		So(Signal(42).String(), ShouldEqual, "signal(42)")
	})

	Convey("DeviceData exposes angles by Dof", t, func() {
		d := DeviceData{AnglesAndLength: [4]float32{1, 2, 3, 4}}
		So(d.Angle(DofRot), ShouldEqual, float32(1))
		So(d.Angle(DofYaw), ShouldEqual, float32(4))
	})
}
