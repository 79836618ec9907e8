package mixer

import (
	"encoding/binary"
	"sync"
)

const (
	channels      = 2
	bytesPerFrame = channels * 2

	// maxAheadSeconds bounds how far past the playhead a contribution may
	// land; anything further is dropped rather than buffered forever. Sized
	// to hold the engines' full 20 s delay ceiling.
	maxAheadSeconds = 25
)

// Buffer is an additive spatial mix buffer. Contributions of 16-bit stereo
// PCM land at absolute frame offsets on the buffer's sample clock and are
// summed; Drain pops mixed frames from the playhead with saturation.
//
// Buffer is safe for concurrent submission and draining.
type Buffer struct {
	mu         sync.Mutex
	sampleRate int
	start      int64   // absolute frame index of acc[0]
	acc        []int32 // interleaved stereo accumulators
}

// NewBuffer creates an empty mix buffer for the given sample rate.
func NewBuffer(sampleRate int) *Buffer {
	return &Buffer{sampleRate: sampleRate}
}

// SampleTime returns the current playhead position in frames.
func (b *Buffer) SampleTime() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.start
}

// AddSpatialAudioToBuffer mixes a contribution anchored at the given frame
// index. Portions that fall behind the playhead or beyond the lookahead
// window are dropped.
func (b *Buffer) AddSpatialAudioToBuffer(sampleTime int64, samples []byte, sampleCount int) {
	frames := sampleCount / channels
	if frames*bytesPerFrame > len(samples) {
		frames = len(samples) / bytesPerFrame
	}
	if frames == 0 {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	maxAhead := int64(maxAheadSeconds * b.sampleRate)
	from := sampleTime
	if from < b.start {
		from = b.start
	}
	to := sampleTime + int64(frames)
	if to > b.start+maxAhead {
		to = b.start + maxAhead
	}
	if from >= to {
		return
	}
	if need := int((to - b.start) * channels); need > len(b.acc) {
		grown := make([]int32, need)
		copy(grown, b.acc)
		b.acc = grown
	}
	for f := from; f < to; f++ {
		src := (f - sampleTime) * bytesPerFrame
		dst := (f - b.start) * channels
		b.acc[dst] += int32(int16(binary.LittleEndian.Uint16(samples[src:])))
		b.acc[dst+1] += int32(int16(binary.LittleEndian.Uint16(samples[src+2:])))
	}
}

// Drain pops the next frames of mixed audio as 16-bit stereo PCM, advancing
// the playhead. Unwritten regions come out as silence; accumulated sums are
// saturated to the 16-bit range.
func (b *Buffer) Drain(frames int) []byte {
	out := make([]byte, frames*bytesPerFrame)

	b.mu.Lock()
	defer b.mu.Unlock()

	avail := len(b.acc) / channels
	for f := 0; f < frames && f < avail; f++ {
		binary.LittleEndian.PutUint16(out[f*bytesPerFrame:], uint16(clamp16(b.acc[f*channels])))
		binary.LittleEndian.PutUint16(out[f*bytesPerFrame+2:], uint16(clamp16(b.acc[f*channels+1])))
	}
	consumed := frames
	if consumed > avail {
		consumed = avail
	}
	b.acc = b.acc[:copy(b.acc, b.acc[consumed*channels:])]
	b.start += int64(frames)
	return out
}

// Read implements io.Reader, draining whole frames as 16-bit stereo PCM for
// an audio backend. Short tails that do not fit a frame are left unread.
func (b *Buffer) Read(p []byte) (int, error) {
	frames := len(p) / bytesPerFrame
	if frames == 0 {
		return 0, nil
	}
	copy(p, b.Drain(frames))
	return frames * bytesPerFrame, nil
}

func clamp16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
