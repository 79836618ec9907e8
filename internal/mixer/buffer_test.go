package mixer

import (
	"encoding/binary"
	"testing"
)

func frame(l, r int16) []byte {
	out := make([]byte, 4)
	binary.LittleEndian.PutUint16(out, uint16(l))
	binary.LittleEndian.PutUint16(out[2:], uint16(r))
	return out
}

func drained(b *Buffer, frames int) []int16 {
	raw := b.Drain(frames)
	out := make([]int16, len(raw)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return out
}

func TestBufferMixesAtAnchor(t *testing.T) {
	b := NewBuffer(48000)
	b.AddSpatialAudioToBuffer(2, frame(100, -200), 2)

	got := drained(b, 4)
	want := []int16{0, 0, 0, 0, 100, -200, 0, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("frame sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestBufferSumsOverlappingContributions(t *testing.T) {
	b := NewBuffer(48000)
	b.AddSpatialAudioToBuffer(0, frame(1000, 0), 2)
	b.AddSpatialAudioToBuffer(0, frame(500, -250), 2)

	got := drained(b, 1)
	if got[0] != 1500 || got[1] != -250 {
		t.Errorf("mixed frame = %v, want [1500 -250]", got)
	}
}

func TestBufferSaturatesOnDrain(t *testing.T) {
	b := NewBuffer(48000)
	b.AddSpatialAudioToBuffer(0, frame(30000, -30000), 2)
	b.AddSpatialAudioToBuffer(0, frame(30000, -30000), 2)

	got := drained(b, 1)
	if got[0] != 32767 || got[1] != -32768 {
		t.Errorf("saturated frame = %v, want [32767 -32768]", got)
	}
}

func TestBufferDropsLateAudio(t *testing.T) {
	b := NewBuffer(48000)
	b.Drain(10) // playhead at frame 10
	b.AddSpatialAudioToBuffer(8, append(frame(111, 111), frame(222, 222)...), 4)

	// Both frames land behind the playhead (8 and 9 < 10): nothing survives.
	got := drained(b, 2)
	for i, s := range got {
		if s != 0 {
			t.Errorf("late audio leaked at %d: %d", i, s)
		}
	}
}

func TestBufferPartialLateOverlap(t *testing.T) {
	b := NewBuffer(48000)
	b.Drain(1) // playhead at frame 1
	b.AddSpatialAudioToBuffer(0, append(frame(111, 111), frame(222, 222)...), 4)

	got := drained(b, 1)
	if got[0] != 222 || got[1] != 222 {
		t.Errorf("overlap frame = %v, want the in-window half [222 222]", got)
	}
}

func TestBufferDropsBeyondLookahead(t *testing.T) {
	b := NewBuffer(10) // tiny rate keeps the window small
	far := int64(maxAheadSeconds*10 + 5)
	b.AddSpatialAudioToBuffer(far, frame(123, 123), 2)
	if n := len(b.acc); n > maxAheadSeconds*10*channels {
		t.Errorf("buffer grew past the lookahead window: %d accumulators", n)
	}
}

func TestBufferReadDrainsWholeFrames(t *testing.T) {
	b := NewBuffer(48000)
	b.AddSpatialAudioToBuffer(0, frame(42, 24), 2)

	p := make([]byte, 6) // one whole frame plus a partial
	n, err := b.Read(p)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != 4 {
		t.Fatalf("read %d bytes, want one whole frame (4)", n)
	}
	if got := int16(binary.LittleEndian.Uint16(p)); got != 42 {
		t.Errorf("read left sample = %d, want 42", got)
	}
	if b.SampleTime() != 1 {
		t.Errorf("playhead = %d, want 1", b.SampleTime())
	}
}
