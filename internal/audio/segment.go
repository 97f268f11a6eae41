// Package audio holds synthesized sample buffers and writes them to disk.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/dgallion1/narrator/internal/fault"
)

// Segment is mono float audio in [-1, 1] at SampleRate samples per second.
type Segment struct {
	Samples    []float32
	SampleRate int
}

// Duration is the playback length of the segment.
func (s Segment) Duration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(s.Samples)) * time.Second / time.Duration(s.SampleRate)
}

// Concat joins segments in order. All segments must share sampleRate.
func Concat(sampleRate int, segments ...Segment) (Segment, error) {
	if sampleRate <= 0 {
		return Segment{}, fault.Input("sample_rate", fmt.Sprintf("must be positive, got %d", sampleRate))
	}
	total := 0
	for i, seg := range segments {
		if seg.SampleRate != sampleRate {
			return Segment{}, fault.Input("sample_rate",
				fmt.Sprintf("segment %d has rate %d, want %d", i, seg.SampleRate, sampleRate))
		}
		total += len(seg.Samples)
	}
	out := Segment{Samples: make([]float32, 0, total), SampleRate: sampleRate}
	for _, seg := range segments {
		out.Samples = append(out.Samples, seg.Samples...)
	}
	return out, nil
}

// DecodePCM16LE converts signed 16-bit little-endian mono PCM to float samples.
// A trailing odd byte is ignored.
func DecodePCM16LE(raw []byte) []float32 {
	n := len(raw) / 2
	out := make([]float32, n)
	for i := range n {
		v := int16(binary.LittleEndian.Uint16(raw[2*i:]))
		out[i] = float32(v) / 32768
	}
	return out
}

// EncodePCM16LE converts float samples to signed 16-bit little-endian PCM,
// clipping values outside [-1, 1].
func EncodePCM16LE(samples []float32) []byte {
	out := make([]byte, 2*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(toInt16(v)))
	}
	return out
}

func toInt16(v float32) int16 {
	switch {
	case v >= 1:
		return math.MaxInt16
	case v <= -1:
		return math.MinInt16
	}
	return int16(math.Round(float64(v) * 32767))
}
