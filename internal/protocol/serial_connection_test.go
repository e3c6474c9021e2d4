package protocol

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

type fakePort struct {
	dtr          bool
	inputResets  int
	outputResets int
	readTimeout  time.Duration
	closed       bool
	pending      []byte
	written      []byte
}

func (p *fakePort) SetMode(mode *serial.Mode) error { return nil }
func (p *fakePort) Read(b []byte) (int, error) {
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}
func (p *fakePort) Write(b []byte) (int, error) {
	p.written = append(p.written, b...)
	return len(b), nil
}
func (p *fakePort) Drain() error { return nil }
func (p *fakePort) ResetInputBuffer() error {
	p.inputResets++
	p.pending = nil
	return nil
}
func (p *fakePort) ResetOutputBuffer() error { p.outputResets++; return nil }
func (p *fakePort) SetDTR(dtr bool) error    { p.dtr = dtr; return nil }
func (p *fakePort) SetRTS(rts bool) error    { return nil }
func (p *fakePort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return &serial.ModemStatusBits{}, nil
}
func (p *fakePort) SetReadTimeout(t time.Duration) error { p.readTimeout = t; return nil }
func (p *fakePort) Close() error                         { p.closed = true; return nil }
func (p *fakePort) Break(time.Duration) error            { return nil }

func TestSerialConnection(t *testing.T) {
	ctx := context.Background()

	Convey("Given a serial connection over a fake port", t, func() {
		port := &fakePort{}
		var gotMode *serial.Mode
		var slept time.Duration

		cfg := DefaultSerialConfig("/dev/ttyHAPTIC")
		conn := NewSerialConnection(cfg, zap.NewNop()).WithPortOpener(
			func(name string, mode *serial.Mode) (serial.Port, error) {
				gotMode = mode
				return port, nil
			})
		conn.sleep = func(d time.Duration) { slept = d }

		So(conn.Open(ctx), ShouldBeNil)

		Convey("the link is 9600 8N1 with DTR asserted and buffers purged", func() {
			So(gotMode.BaudRate, ShouldEqual, 9600)
			So(gotMode.DataBits, ShouldEqual, 8)
			So(gotMode.StopBits, ShouldEqual, serial.OneStopBit)
			So(gotMode.Parity, ShouldEqual, serial.NoParity)
			So(port.dtr, ShouldBeTrue)
			So(port.inputResets, ShouldEqual, 1)
			So(port.outputResets, ShouldEqual, 1)
			So(port.readTimeout, ShouldEqual, time.Millisecond)
			So(slept, ShouldEqual, 2*time.Second)
			So(conn.IsOpen(), ShouldBeTrue)
		})

		Convey("flush discards queued bytes", func() {
			port.pending = []byte("stale\n")
			buf := make([]byte, 16)
			n, err := conn.Read(buf, true)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 0)
			So(port.pending, ShouldBeEmpty)
		})

		Convey("write and read pass through", func() {
			So(conn.Write(ctx, []byte("3  \n")), ShouldBeNil)
			So(string(port.written), ShouldEqual, "3  \n")

			port.pending = []byte("7\n")
			buf := make([]byte, 16)
			n, err := conn.Read(buf, false)
			So(err, ShouldBeNil)
			So(string(buf[:n]), ShouldEqual, "7\n")
		})

		Convey("close releases the handle once", func() {
			So(conn.Close(), ShouldBeNil)
			So(port.closed, ShouldBeTrue)
			So(conn.IsOpen(), ShouldBeFalse)
			So(conn.Close(), ShouldBeNil)

			_, err := conn.Read(make([]byte, 4), false)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("A port that cannot be opened leaves the connection closed", t, func() {
		conn := NewSerialConnection(DefaultSerialConfig("COM99"), zap.NewNop()).WithPortOpener(
			func(name string, mode *serial.Mode) (serial.Port, error) {
				return nil, errors.New("no such port")
			})
		So(conn.Open(ctx), ShouldNotBeNil)
		So(conn.IsOpen(), ShouldBeFalse)
	})
}
