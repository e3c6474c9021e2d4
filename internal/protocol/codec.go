// internal/protocol/codec.go
package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Fixed-point factors agreed with the firmware. Values travel as integers
// pre-multiplied by WireScale and are divided back on reception.
const (
	WireScale  = 10000
	TipScale   = 100
	Unscaled   = 1
	frameEnd   = '\n'
	argJoinSep = " "
)

var (
	wireMax = decimal.NewFromInt(math.MaxInt32)
	wireMin = decimal.NewFromInt(math.MinInt32)

	// ErrMalformedResponse is returned when a reply does not hold the expected fields
	ErrMalformedResponse = errors.New("malformed response")
)

// EncodeFrame serializes "<id> <args> \n"
func EncodeFrame(commandID int, args string) []byte {
	frame := make([]byte, 0, len(args)+8)
	frame = strconv.AppendInt(frame, int64(commandID), 10)
	frame = append(frame, ' ')
	frame = append(frame, args...)
	frame = append(frame, ' ', frameEnd)
	return frame
}

// ToFixed multiplies v by factor and truncates toward zero. The product is
// computed on the shortest decimal form of v so 99.9999 encodes as 999999.
// NaN encodes as 0. Infinities and products outside the int32 range the
// firmware parses saturate to its bounds.
func ToFixed(v float32, factor int64) int64 {
	switch {
	case math.IsNaN(float64(v)):
		return 0
	case math.IsInf(float64(v), 1):
		return math.MaxInt32
	case math.IsInf(float64(v), -1):
		return math.MinInt32
	}
	product := decimal.NewFromFloat32(v).Mul(decimal.NewFromInt(factor)).Truncate(0)
	switch {
	case product.GreaterThan(wireMax):
		return math.MaxInt32
	case product.LessThan(wireMin):
		return math.MinInt32
	}
	return product.IntPart()
}

// ScaleToWire is ToFixed with the standard ×10000 factor
func ScaleToWire(v float32) int64 {
	return ToFixed(v, WireScale)
}

// FormatInts joins integers with single spaces
func FormatInts(values ...int64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatInt(v, 10)
	}
	return strings.Join(parts, argJoinSep)
}

// FormatScaled encodes each value with ScaleToWire and joins them
func FormatScaled(values ...float32) string {
	ints := make([]int64, len(values))
	for i, v := range values {
		ints[i] = ScaleToWire(v)
	}
	return FormatInts(ints...)
}

// DecodeScaled reads count integer fields left to right and divides each
// by divisor. Fields may span several newline-terminated records. Anything
// but a plain decimal integer (nan, inf, 1.5, 0x10, 1_000) is malformed.
func DecodeScaled(buf []byte, count int, divisor float64) ([]float32, error) {
	fields := bytes.Fields(buf)
	if len(fields) < count {
		return nil, fmt.Errorf("%w: want %d fields, got %d", ErrMalformedResponse, count, len(fields))
	}

	out := make([]float32, count)
	for i := 0; i < count; i++ {
		v, err := strconv.ParseInt(string(fields[i]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: field %d %q", ErrMalformedResponse, i, fields[i])
		}
		out[i] = float32(float64(v) / divisor)
	}
	return out, nil
}

// DecodeInt reads the first numeric field as an integer
func DecodeInt(buf []byte) (int, error) {
	fields := bytes.Fields(buf)
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: empty reply", ErrMalformedResponse)
	}
	v, err := strconv.Atoi(string(fields[0]))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedResponse, fields[0])
	}
	return v, nil
}

// TrimResponse drops trailing newlines, carriage returns, spaces and NULs.
// An empty buffer yields an empty string.
func TrimResponse(buf []byte) string {
	end := len(buf)
	for end > 0 {
		switch buf[end-1] {
		case '\n', '\r', ' ', 0:
			end--
			continue
		}
		break
	}
	return string(buf[:end])
}
