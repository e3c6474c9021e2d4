package emulator

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"

	"haptic-service/internal/driver"
	"haptic-service/internal/protocol"
)

func readAll(p *Port) string {
	buf := make([]byte, protocol.IncomingDataLen)
	out := ""
	for i := 0; i < 100; i++ {
		n, _ := p.Read(buf, false)
		out += string(buf[:n])
	}
	return out
}

func TestFirmware(t *testing.T) {
	ctx := context.Background()

	Convey("Given an emulated tool on an open port", t, func() {
		fw := NewTool(WithPose([4]float32{15, -3, 2, 50}), WithToolID(2))
		port := NewPort("EMU0", fw)
		So(port.Open(ctx), ShouldBeNil)

		Convey("angles are replied ×10000 on one line", func() {
			So(port.Write(ctx, protocol.EncodeFrame(int(driver.ToolGetAnglesAndLength), "")), ShouldBeNil)
			So(readAll(port), ShouldEqual, "150000 -30000 20000 500000 \n")
		})

		Convey("write-only commands update registers without a reply", func() {
			So(port.Write(ctx, protocol.EncodeFrame(int(driver.ToolSetManualPWM), "-17 2 -82 3")), ShouldBeNil)
			So(readAll(port), ShouldEqual, "")
			So(fw.LastPWM(), ShouldResemble, [4]int64{-17, 2, -82, 3})

			So(port.Write(ctx, protocol.EncodeFrame(int(driver.ToolGetLastPWM), "")), ShouldBeNil)
			So(readAll(port), ShouldEqual, "-17 2 -82 3 \n")
		})

		Convey("every frame is logged and counted", func() {
			port.Write(ctx, protocol.EncodeFrame(int(driver.ToolGetToolID), ""))
			port.Write(ctx, protocol.EncodeFrame(int(driver.ToolSetManualPWM), "0 0 0 0"))

			last, ok := fw.LastCommand()
			So(ok, ShouldBeTrue)
			So(last.Frame(), ShouldEqual, "35 0 0 0 0")
			So(fw.Count(driver.ToolGetToolID), ShouldEqual, uint64(1))
			So(len(fw.Commands()), ShouldEqual, 2)
		})

		Convey("frames split across writes are reassembled", func() {
			port.Write(ctx, []byte("3 "))
			So(fw.Count(driver.ToolGetToolID), ShouldEqual, uint64(0))
			port.Write(ctx, []byte(" \n"))
			So(readAll(port), ShouldEqual, "2 \n")
		})

		Convey("a flush drops the queued reply", func() {
			port.Write(ctx, protocol.EncodeFrame(int(driver.ToolGetStatus), ""))
			n, err := port.Read(make([]byte, 16), true)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
			So(readAll(port), ShouldEqual, "")
		})

		Convey("a silent firmware never replies", func() {
			fw.SetSilent(true)
			port.Write(ctx, protocol.EncodeFrame(int(driver.ToolGetIdentity), ""))
			So(readAll(port), ShouldEqual, "")
		})

		Convey("write errors are surfaced", func() {
			boom := errors.New("boom")
			fw.SetWriteError(boom)
			So(port.Write(ctx, []byte("1  \n")), ShouldEqual, boom)
		})
	})

	Convey("Chunking and latency shape the reads", t, func() {
		fw := NewTool(WithChunkSize(3), WithLatency(2), WithToolID(12345))
		port := NewPort("EMU1", fw)
		port.Open(ctx)
		port.Write(ctx, protocol.EncodeFrame(int(driver.ToolGetToolID), ""))

		buf := make([]byte, 16)
		n, _ := port.Read(buf, false)
		So(n, ShouldEqual, 0)
		n, _ = port.Read(buf, false)
		So(n, ShouldEqual, 0)
		n, _ = port.Read(buf, false)
		So(string(buf[:n]), ShouldEqual, "123")
		So(readAll(port), ShouldEqual, "45 \n")
	})

	Convey("Tagged telemetry ties the tool id to the last angles reply", t, func() {
		fw := NewTool(WithTaggedTelemetry())
		port := NewPort("EMU2", fw)
		port.Open(ctx)

		for i := 0; i < 3; i++ {
			port.Write(ctx, protocol.EncodeFrame(int(driver.ToolGetAnglesAndLength), ""))
			readAll(port)
		}
		port.Write(ctx, protocol.EncodeFrame(int(driver.ToolGetToolID), ""))
		So(readAll(port), ShouldEqual, "3 \n")
	})

	Convey("The log keeps the most recent commands", t, func() {
		fw := NewTool(WithLogLimit(4))
		port := NewPort("EMU3", fw)
		port.Open(ctx)
		for i := 0; i < 10; i++ {
			port.Write(ctx, protocol.EncodeFrame(int(driver.ToolSetDeadBandPWMWidth), protocol.FormatInts(int64(i), 0, 0, 0)))
		}
		cmds := fw.Commands()
		So(len(cmds), ShouldBeLessThanOrEqualTo, 4)
		So(cmds[len(cmds)-1].Args, ShouldEqual, "9 0 0 0")
		So(fw.Count(driver.ToolSetDeadBandPWMWidth), ShouldEqual, uint64(10))
	})

	Convey("An IBox records gains and forces", t, func() {
		fw := NewIBox(WithPose([4]float32{0.1, 0.2, 0.3, 0.4}))
		port := NewPort("EMU4", fw)
		port.Open(ctx)

		port.Write(ctx, protocol.EncodeFrame(int(driver.IBoxSetLoopGain), "4 2.5 0"))
		port.Write(ctx, protocol.EncodeFrame(int(driver.IBoxSetAllForces), "15000 0 0 0 0 0"))
		So(fw.LoopGains()[4], ShouldEqual, "2.5 0")
		So(fw.HandleForces()[0], ShouldEqual, int64(15000))

		port.Write(ctx, protocol.EncodeFrame(int(driver.IBoxGetOpeningValues), ""))
		So(readAll(port), ShouldEqual, "1000 2000 3000 4000 \n")
	})
}

func TestBench(t *testing.T) {
	Convey("Given a registry with the bench registered", t, func() {
		bench := NewBench()
		tool := NewTool()
		bench.Attach("COM3", tool)

		registry := protocol.NewRegistry(zap.NewNop())
		Register(registry, bench)

		Convey("attached ports open", func() {
			transport, err := registry.CreateTransport(protocol.ConnectionTypeEmulated, protocol.DefaultSerialConfig("COM3"))
			So(err, ShouldBeNil)
			So(transport.Open(context.Background()), ShouldBeNil)
			So(transport.GetProtocolType(), ShouldEqual, protocol.ConnectionTypeEmulated)
			So(bench.Device("COM3"), ShouldEqual, tool)
		})

		Convey("unattached ports fail to open like absent hardware", func() {
			transport, err := registry.CreateTransport(protocol.ConnectionTypeEmulated, protocol.DefaultSerialConfig("COM9"))
			So(err, ShouldBeNil)
			So(transport.Open(context.Background()), ShouldNotBeNil)
			So(transport.IsOpen(), ShouldBeFalse)
		})

		Convey("both transports are listed", func() {
			So(len(registry.ListTransports()), ShouldEqual, 2)
			So(bench.Ports(), ShouldResemble, []string{"COM3"})
		})
	})
}
