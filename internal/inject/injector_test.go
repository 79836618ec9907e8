package inject

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/claudioshg/hifi/internal/acoustic"
	"github.com/claudioshg/hifi/internal/geom"
	"github.com/claudioshg/hifi/internal/trace"
)

// captureSink records every submission in order.
type captureSink struct {
	times   []int64
	buffers [][]byte
	counts  []int
}

func (s *captureSink) AddSpatialAudioToBuffer(sampleTime int64, samples []byte, sampleCount int) {
	s.times = append(s.times, sampleTime)
	s.buffers = append(s.buffers, samples)
	s.counts = append(s.counts, sampleCount)
}

func pcmBytes(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func samplesOf(buf []byte) []int16 {
	out := make([]int16, len(buf)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}
	return out
}

func stereoParams() acoustic.Parameters {
	p := acoustic.DefaultParameters()
	p.PreDelayMs = 0
	p.StereoSource = true
	p.WithDiffusion = true
	return p
}

func TestInjectPointAtListener(t *testing.T) {
	in := New(acoustic.NewModel(stereoParams()), 48000)
	sink := &captureSink{}

	points := []trace.AudiblePoint{{
		Location:    geom.Vec3{},
		DelayMs:     100,
		Attenuation: 0.5,
	}}
	input := pcmBytes(1000, 2000, 3000, 4000)
	stats, err := in.InjectPoints(points, geom.Vec3{}, geom.Vec3{}, input, 0, sink)
	if err != nil {
		t.Fatalf("inject: %v", err)
	}
	if len(sink.buffers) != 2 {
		t.Fatalf("submissions = %d, want left+right", len(sink.buffers))
	}

	left := samplesOf(sink.buffers[0])
	right := samplesOf(sink.buffers[1])
	wantLeft := []int16{500, 0, 1500, 0}
	wantRight := []int16{0, 1000, 0, 2000}
	for i := range wantLeft {
		if left[i] != wantLeft[i] {
			t.Errorf("left[%d] = %d, want %d", i, left[i], wantLeft[i])
		}
		if right[i] != wantRight[i] {
			t.Errorf("right[%d] = %d, want %d", i, right[i], wantRight[i])
		}
	}
	// 100 ms at 48 kHz.
	if sink.times[0] != 4800 || sink.times[1] != 4800 {
		t.Errorf("delays = %v, want both 4800", sink.times)
	}
	if sink.counts[0] != 4 {
		t.Errorf("sample count = %d, want 4", sink.counts[0])
	}
	if stats.Contributions != 2 {
		t.Errorf("stat contributions = %d, want 2 (one per ear)", stats.Contributions)
	}
	if math.Abs(stats.AvgDelayMs-100) > 1e-9 {
		t.Errorf("avg delay = %v, want 100", stats.AvgDelayMs)
	}
}

func TestInjectMonoDuplicatesLeftChannel(t *testing.T) {
	p := stereoParams()
	p.StereoSource = false
	in := New(acoustic.NewModel(p), 48000)
	sink := &captureSink{}

	points := []trace.AudiblePoint{{Location: geom.Vec3{}, Attenuation: 1}}
	input := pcmBytes(1000, -32000, 2000, -32000)
	if _, err := in.InjectPoints(points, geom.Vec3{}, geom.Vec3{}, input, 0, sink); err != nil {
		t.Fatalf("inject: %v", err)
	}
	right := samplesOf(sink.buffers[1])
	// The right ear receives the left channel, not the stereo right.
	if right[1] != 1000 || right[3] != 2000 {
		t.Errorf("mono right ear = %v, want left-channel values", right)
	}
}

func TestInjectEarIsolation(t *testing.T) {
	in := New(acoustic.NewModel(stereoParams()), 48000)
	sink := &captureSink{}

	points := []trace.AudiblePoint{{
		Location:    geom.Vec3{X: 3},
		DelayMs:     10,
		Attenuation: 0.9,
	}}
	input := pcmBytes(1000, 2000, -3000, 4000, 5000, -6000)
	if _, err := in.InjectPoints(points, geom.Vec3{X: -0.1}, geom.Vec3{X: 0.1}, input, 100, sink); err != nil {
		t.Fatalf("inject: %v", err)
	}
	left := samplesOf(sink.buffers[0])
	right := samplesOf(sink.buffers[1])
	for i := 1; i < len(left); i += 2 {
		if left[i] != 0 {
			t.Errorf("left buffer leaked into right channel at %d: %d", i, left[i])
		}
	}
	for i := 0; i < len(right); i += 2 {
		if right[i] != 0 {
			t.Errorf("right buffer leaked into left channel at %d: %d", i, right[i])
		}
	}
}

func TestInjectSilenceStaysSilent(t *testing.T) {
	in := New(acoustic.NewModel(stereoParams()), 48000)
	sink := &captureSink{}
	points := []trace.AudiblePoint{{Location: geom.Vec3{X: 2}, Attenuation: 0.8}}
	input := pcmBytes(0, 0, 0, 0, 0, 0, 0, 0)
	if _, err := in.InjectPoints(points, geom.Vec3{}, geom.Vec3{}, input, 0, sink); err != nil {
		t.Fatalf("inject: %v", err)
	}
	for _, buf := range sink.buffers {
		for i, s := range samplesOf(buf) {
			if s != 0 {
				t.Fatalf("silence produced non-zero sample %d at %d", s, i)
			}
		}
	}
}

func TestInjectRejectsMalformedBatch(t *testing.T) {
	in := New(acoustic.NewModel(stereoParams()), 48000)
	sink := &captureSink{}
	points := []trace.AudiblePoint{{Attenuation: 1}}

	if _, err := in.InjectPoints(points, geom.Vec3{}, geom.Vec3{}, make([]byte, 6), 0, sink); err != ErrMalformedBatch {
		t.Errorf("odd frame count: err = %v, want ErrMalformedBatch", err)
	}
	if _, err := in.InjectChains(nil, geom.Vec3{}, geom.Vec3{}, make([]byte, 3), 0, sink); err != ErrMalformedBatch {
		t.Errorf("partial sample: err = %v, want ErrMalformedBatch", err)
	}
	if len(sink.buffers) != 0 {
		t.Error("malformed batch must not be partially mixed")
	}
}

func TestInjectSeparateEarsSplitDelay(t *testing.T) {
	in := New(acoustic.NewModel(stereoParams()), 48000)
	sink := &captureSink{}

	// Point 10 m right of center; ears offset along X by 0.1 m.
	points := []trace.AudiblePoint{{
		Location:     geom.Vec3{X: 10},
		DelayMs:      0,
		Attenuation:  1,
		PathDistance: 10,
	}}
	if _, err := in.InjectPoints(points, geom.Vec3{X: -0.1}, geom.Vec3{X: 0.1}, pcmBytes(100, 100), 1000, sink); err != nil {
		t.Fatalf("inject: %v", err)
	}
	// Left ear is 10.1 m away, right ear 9.9 m: 3 ms/m.
	wantLeft := int64(1000 + math.Round(10.1*3*48))
	wantRight := int64(1000 + math.Round(9.9*3*48))
	if sink.times[0] != wantLeft {
		t.Errorf("left anchor = %d, want %d", sink.times[0], wantLeft)
	}
	if sink.times[1] != wantRight {
		t.Errorf("right anchor = %d, want %d", sink.times[1], wantRight)
	}
	if sink.times[0] <= sink.times[1] {
		t.Error("farther ear should be delayed more")
	}
}

func TestInjectChainsUsesBounceAttenuation(t *testing.T) {
	p := stereoParams()
	p.WithDiffusion = false
	p.AbsorptionRatio = 0.125
	p.DiffusionRatio = 0.125
	m := acoustic.NewModel(p)
	in := New(m, 48000)
	sink := &captureSink{}

	chains := []trace.Chain{{
		Direction: geom.Vec3{X: 1},
		Points: []trace.ChainPoint{
			{Location: geom.Vec3{X: 5}, PathDistance: 5, Bounce: 1},
			{Location: geom.Vec3{X: 5, Y: 5}, PathDistance: 12, Bounce: 2},
		},
	}}
	input := pcmBytes(10000, 10000)
	stats, err := in.InjectChains(chains, geom.Vec3{}, geom.Vec3{}, input, 0, sink)
	if err != nil {
		t.Fatalf("inject: %v", err)
	}
	if len(sink.buffers) != 4 {
		t.Fatalf("submissions = %d, want 2 per chain point", len(sink.buffers))
	}

	// First point: 5 m out, 5 m back, one bounce.
	total := 10.0
	wantAtten := m.DistanceAttenuation(total) * m.BounceAttenuation(1)
	got := samplesOf(sink.buffers[0])[0]
	want := int16(10000 * wantAtten)
	if got != want {
		t.Errorf("first-bounce left sample = %d, want %d", got, want)
	}
	// Second point decays by an extra surface term and distance.
	secondTotal := 12 + math.Sqrt(50.0)
	secondAtten := m.DistanceAttenuation(secondTotal) * m.BounceAttenuation(2)
	if secondAtten >= wantAtten {
		t.Errorf("bounce attenuation should decay: %v >= %v", secondAtten, wantAtten)
	}
	if stats.Contributions != 4 {
		t.Errorf("contributions = %d, want 4", stats.Contributions)
	}
	if math.Abs(stats.MaxAttenuation-wantAtten) > 1e-12 {
		t.Errorf("max attenuation = %v, want %v", stats.MaxAttenuation, wantAtten)
	}
	// Chain-engine delay folds the 20 ms pre-delay in when configured.
	p.PreDelayMs = 20
	in2 := New(acoustic.NewModel(p), 48000)
	sink2 := &captureSink{}
	if _, err := in2.InjectChains(chains, geom.Vec3{}, geom.Vec3{}, input, 0, sink2); err != nil {
		t.Fatalf("inject with pre-delay: %v", err)
	}
	wantAnchor := int64(math.Round((total*3 + 20) * 48))
	if sink2.times[0] != wantAnchor {
		t.Errorf("pre-delayed anchor = %d, want %d", sink2.times[0], wantAnchor)
	}
}
