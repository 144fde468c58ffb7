// Package wire encodes sparse impulse responses as flat float32 frames for
// delivery to a single playback node.
//
// Frame layout, little-endian IEEE-754 float32:
//
//	[id, minTime, time_0, gain_0, time_1, gain_1, ..., time_N, gain_N]
//
// id identifies the emission (emitter event or path) the response belongs
// to; minTime is the earliest arrival over every receiver of that emission,
// so all nodes share one time origin. An empty response is a two-value frame.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-reflect/measure/ir"
)

// Errors returned by Decode.
var (
	ErrShortFrame = errors.New("wire: frame shorter than its header")
	ErrFrameAlign = errors.New("wire: frame length is not a whole number of taps")
)

const (
	valueSize  = 4
	headerLen  = 2
	headerSize = headerLen * valueSize
)

// Frame is the decoded content of one wire frame.
type Frame struct {
	ID      float64
	MinTime float64

	// Times are the arrival times as sent, not yet shifted by MinTime.
	Times []float64
	Gains []float64
}

// Len returns the encoded size of f in bytes.
func (f Frame) Len() int {
	return headerSize + 2*valueSize*len(f.Times)
}

// Encode serializes one receiver's response. Times are sent as computed;
// the receiver subtracts minTime when decoding.
func Encode(id, minTime float64, r ir.ImpulseResponse) []byte {
	buf := make([]byte, headerSize+2*valueSize*r.Len())
	putFloat(buf[0:], id)
	putFloat(buf[valueSize:], minTime)

	off := headerSize
	for i, t := range r.Times {
		putFloat(buf[off:], t)
		putFloat(buf[off+valueSize:], r.Gains[i])
		off += 2 * valueSize
	}
	return buf
}

// Decode parses a frame without applying the minTime shift.
func Decode(data []byte) (Frame, error) {
	if len(data) < headerSize {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(data))
	}
	if (len(data)-headerSize)%(2*valueSize) != 0 {
		return Frame{}, fmt.Errorf("%w: %d bytes", ErrFrameAlign, len(data))
	}

	n := (len(data) - headerSize) / (2 * valueSize)
	f := Frame{
		ID:      getFloat(data[0:]),
		MinTime: getFloat(data[valueSize:]),
		Times:   make([]float64, n),
		Gains:   make([]float64, n),
	}

	off := headerSize
	for i := range n {
		f.Times[i] = getFloat(data[off:])
		f.Gains[i] = getFloat(data[off+valueSize:])
		off += 2 * valueSize
	}
	return f, nil
}

// IR returns the response relative to the shared time origin:
// times shifted by -MinTime and Duration set to the latest shifted time.
func (f Frame) IR() ir.ImpulseResponse {
	r := ir.ImpulseResponse{
		Times: make([]float64, len(f.Times)),
		Gains: make([]float64, len(f.Gains)),
	}
	copy(r.Gains, f.Gains)
	for i, t := range f.Times {
		r.Times[i] = t - f.MinTime
		if i == 0 || r.Times[i] > r.Duration {
			r.Duration = r.Times[i]
		}
	}
	return r
}

// DecodeIR is Decode followed by Frame.IR.
func DecodeIR(data []byte) (float64, ir.ImpulseResponse, error) {
	f, err := Decode(data)
	if err != nil {
		return 0, ir.ImpulseResponse{}, err
	}
	return f.ID, f.IR(), nil
}

func putFloat(b []byte, v float64) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
}

func getFloat(b []byte) float64 {
	return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
}
