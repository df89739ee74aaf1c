// Package audio holds the codec independent parts of playback: PCM framing,
// inline gain and the packet buffer between encoder and sender.
package audio

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	SampleRate = 48000
	Channels   = 2
	// FrameSamples is the number of samples per channel in one 20ms frame.
	FrameSamples = 960
	// FrameBytes is one frame of interleaved s16le PCM.
	FrameBytes    = FrameSamples * Channels * 2
	FrameDuration = 20 * time.Millisecond
)

// ApplyGain scales interleaved s16le samples in place, clipping at the
// int16 range. A gain of 1 leaves pcm untouched.
func ApplyGain(pcm []byte, gain float64) {
	if gain == 1 {
		return
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i:])))
		v := math.Round(s * gain)
		v = max(math.MinInt16, min(math.MaxInt16, v))
		binary.LittleEndian.PutUint16(pcm[i:], uint16(int16(v)))
	}
}

// FramesToDuration converts a count of 20ms frames into playback time.
func FramesToDuration(frames int64) time.Duration {
	return time.Duration(frames) * FrameDuration
}
