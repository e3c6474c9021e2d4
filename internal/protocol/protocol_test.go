package protocol

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"go.uber.org/zap"
)

// scriptedTransport replays queued replies, one chunk per Read
type scriptedTransport struct {
	open     bool
	writeErr error
	writes   []string
	replies  [][]byte
	reads    int
	flushes  int
}

func (s *scriptedTransport) Open(ctx context.Context) error { s.open = true; return nil }
func (s *scriptedTransport) Close() error                   { s.open = false; return nil }
func (s *scriptedTransport) IsOpen() bool                   { return s.open }
func (s *scriptedTransport) PortName() string               { return "scripted" }
func (s *scriptedTransport) GetProtocolType() ConnectionType {
	return ConnectionTypeEmulated
}

func (s *scriptedTransport) Write(ctx context.Context, data []byte) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.writes = append(s.writes, string(data))
	return nil
}

func (s *scriptedTransport) Read(buf []byte, flush bool) (int, error) {
	if flush {
		s.flushes++
		s.replies = nil
		return 0, nil
	}
	s.reads++
	if len(s.replies) == 0 {
		return 0, nil
	}
	next := s.replies[0]
	s.replies = s.replies[1:]
	return copy(buf, next), nil
}

func TestFrameCodec(t *testing.T) {
	Convey("EncodeFrame", t, func() {
		So(string(EncodeFrame(35, "0 0 0 0")), ShouldEqual, "35 0 0 0 0 \n")
		So(string(EncodeFrame(7, "")), ShouldEqual, "7  \n")
	})

	Convey("Motor values are truncated after scaling by 10000", t, func() {
		So(FormatScaled(1.2345, -0.001, 0.0, 99.9999), ShouldEqual, "12345 -10 0 999999")
		So(ScaleToWire(-1.99999), ShouldEqual, int64(-19999))
		So(ScaleToWire(0.00009), ShouldEqual, int64(0))
		So(ToFixed(1.239, TipScale), ShouldEqual, int64(123))
	})

	Convey("Non-finite values never reach the decimal encoder", t, func() {
		So(ScaleToWire(float32(math.NaN())), ShouldEqual, int64(0))
		So(ScaleToWire(float32(math.Inf(1))), ShouldEqual, int64(math.MaxInt32))
		So(ScaleToWire(float32(math.Inf(-1))), ShouldEqual, int64(math.MinInt32))
	})

	Convey("Finite values past the int32 range saturate instead of wrapping", t, func() {
		So(ScaleToWire(1e15), ShouldEqual, int64(math.MaxInt32))
		So(ScaleToWire(1e20), ShouldEqual, int64(math.MaxInt32))
		So(ScaleToWire(-1e20), ShouldEqual, int64(math.MinInt32))
		So(ScaleToWire(3e5), ShouldEqual, int64(math.MaxInt32))
		So(ScaleToWire(-3e5), ShouldEqual, int64(math.MinInt32))
		So(ScaleToWire(2e5), ShouldEqual, int64(2000000000))
	})

	Convey("Angles and length reply decodes with the 0.0001 scale", t, func() {
		got, err := DecodeScaled([]byte("150000 -30000 20000 500000 \n"), 4, WireScale)
		So(err, ShouldBeNil)
		So(got, ShouldResemble, []float32{15.0, -3.0, 2.0, 50.0})
	})

	Convey("Fields may be spread over several records", t, func() {
		got, err := DecodeScaled([]byte("1 2\n3\n"), 3, Unscaled)
		So(err, ShouldBeNil)
		So(got, ShouldResemble, []float32{1, 2, 3})
	})

	Convey("Short or garbled replies are malformed", t, func() {
		_, err := DecodeScaled([]byte("1 2\n"), 4, WireScale)
		So(errors.Is(err, ErrMalformedResponse), ShouldBeTrue)

		_, err = DecodeScaled([]byte("1 x 3 4\n"), 4, WireScale)
		So(errors.Is(err, ErrMalformedResponse), ShouldBeTrue)

		_, err = DecodeInt(nil)
		So(errors.Is(err, ErrMalformedResponse), ShouldBeTrue)
	})

	Convey("Non-integer numerals are malformed", t, func() {
		for _, reply := range []string{
			"nan inf 0 0\n",
			"0 -Inf 0 0\n",
			"1.5 0 0 0\n",
			"0x10 0 0 0\n",
			"1_000 0 0 0\n",
		} {
			_, err := DecodeScaled([]byte(reply), 4, WireScale)
			So(errors.Is(err, ErrMalformedResponse), ShouldBeTrue)
		}
	})

	Convey("TrimResponse never reads before the buffer start", t, func() {
		So(TrimResponse(nil), ShouldEqual, "")
		So(TrimResponse([]byte("\n")), ShouldEqual, "")
		So(TrimResponse([]byte("  \n \n")), ShouldEqual, "")
		So(TrimResponse([]byte("HapticAvatar v2 \r\n")), ShouldEqual, "HapticAvatar v2")
	})

	Convey("decode(encode(x)) is x truncated to four decimals", t, func() {
		rng := rand.New(rand.NewSource(7))
		for i := 0; i < 2000; i++ {
			x := float32((rng.Float64() - 0.5) * 200)
			wire := ScaleToWire(x)
			back, err := DecodeScaled([]byte(FormatInts(wire)+"\n"), 1, WireScale)
			So(err, ShouldBeNil)
			So(math.Abs(float64(back[0]-x)), ShouldBeLessThan, 1.0/WireScale+1e-5)
			So(math.Abs(float64(back[0])), ShouldBeLessThanOrEqualTo, math.Abs(float64(x))+1e-5)
		}
	})
}

func TestClient(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	Convey("Given a connected client", t, func() {
		tr := &scriptedTransport{open: true}
		client := NewClient(tr, 0, logger)

		Convey("a reply split over several reads is assembled", func() {
			tr.replies = [][]byte{[]byte("12 3"), nil, []byte("4 \n")}
			reply, err := client.SendCommand(ctx, 3, "", true)
			So(err, ShouldBeNil)
			So(string(reply), ShouldEqual, "12 34 \n")
			So(tr.writes, ShouldResemble, []string{"3  \n"})
			So(client.Stats().LastPollCount, ShouldEqual, int64(3))
		})

		Convey("a silent device reaches exactly the poll cap", func() {
			tr.replies = [][]byte{[]byte("no newline here")}
			_, err := client.SendCommand(ctx, 10, "", true)
			So(errors.Is(err, ErrNoResponse), ShouldBeTrue)

			var terr *TimeoutError
			So(errors.As(err, &terr), ShouldBeTrue)
			So(terr.Iterations, ShouldEqual, DefaultMaxPollCount)
			So(tr.reads, ShouldEqual, DefaultMaxPollCount)
			So(client.Stats().TimeoutCount, ShouldEqual, uint64(1))
		})

		Convey("write-only commands never read", func() {
			reply, err := client.SendCommand(ctx, 35, "0 0 0 0", false)
			So(err, ShouldBeNil)
			So(reply, ShouldBeNil)
			So(tr.reads, ShouldEqual, 0)
		})

		Convey("a rejected write is reported with its payload", func() {
			tr.writeErr = errors.New("port gone")
			_, err := client.SendCommand(ctx, 30, "1 2 3 4", false)
			So(errors.Is(err, ErrWriteFailed), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "30 1 2 3 4")
			So(client.Stats().WriteFailureCount, ShouldEqual, uint64(1))
		})

		Convey("a reply without newline that fills the buffer is malformed", func() {
			big := make([]byte, IncomingDataLen)
			for i := range big {
				big[i] = '1'
			}
			tr.replies = [][]byte{big}
			_, err := client.SendCommand(ctx, 10, "", true)
			So(errors.Is(err, ErrMalformedResponse), ShouldBeTrue)
		})

		Convey("a cancelled context stops the wait", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := client.SendCommand(cctx, 10, "", true)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a small poll cap", t, func() {
		tr := &scriptedTransport{open: true}
		client := NewClient(tr, 25, logger)
		_, err := client.SendCommand(ctx, 10, "", true)
		var terr *TimeoutError
		So(errors.As(err, &terr), ShouldBeTrue)
		So(terr.Iterations, ShouldEqual, 25)
		So(tr.reads, ShouldEqual, 25)
	})

	Convey("Given a disconnected transport", t, func() {
		tr := &scriptedTransport{open: false}
		client := NewClient(tr, 0, logger)
		_, err := client.SendCommand(ctx, 10, "", true)
		So(errors.Is(err, ErrNotConnected), ShouldBeTrue)
		So(tr.writes, ShouldBeEmpty)
		So(tr.reads, ShouldEqual, 0)
	})
}
