package inject

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/claudioshg/hifi/internal/acoustic"
	"github.com/claudioshg/hifi/internal/geom"
	"github.com/claudioshg/hifi/internal/trace"
)

// ErrMalformedBatch is returned when an inbound batch is not a whole number
// of 16-bit stereo frames. Nothing is mixed from a malformed batch.
var ErrMalformedBatch = errors.New("inject: batch is not a whole number of stereo frames")

const (
	channels       = 2
	bytesPerSample = 2
	bytesPerFrame  = channels * bytesPerSample
)

// Sink accepts delayed stereo PCM contributions. The anchor is a frame
// index on the sink's own sample clock; the sink aligns and mixes.
type Sink interface {
	AddSpatialAudioToBuffer(sampleTime int64, samples []byte, sampleCount int)
}

// BatchStats aggregates the per-ear contributions of one injected batch.
type BatchStats struct {
	Contributions  int
	MinDelayMs     float64
	MaxDelayMs     float64
	AvgDelayMs     float64
	MinAttenuation float64
	MaxAttenuation float64
	AvgAttenuation float64
}

func (s *BatchStats) observe(delayMs, attenuation float64) {
	if s.Contributions == 0 {
		s.MinDelayMs, s.MaxDelayMs = delayMs, delayMs
		s.MinAttenuation, s.MaxAttenuation = attenuation, attenuation
	} else {
		s.MinDelayMs = math.Min(s.MinDelayMs, delayMs)
		s.MaxDelayMs = math.Max(s.MaxDelayMs, delayMs)
		s.MinAttenuation = math.Min(s.MinAttenuation, attenuation)
		s.MaxAttenuation = math.Max(s.MaxAttenuation, attenuation)
	}
	// Averages are finalized in finish.
	s.AvgDelayMs += delayMs
	s.AvgAttenuation += attenuation
	s.Contributions++
}

func (s *BatchStats) finish() {
	if s.Contributions > 0 {
		s.AvgDelayMs /= float64(s.Contributions)
		s.AvgAttenuation /= float64(s.Contributions)
	}
}

// Injector turns audible contributions plus an inbound batch into delayed,
// attenuated per-ear submissions.
type Injector struct {
	m          acoustic.Model
	sampleRate int
}

// New builds an injector for the given model and sink sample rate.
func New(m acoustic.Model, sampleRate int) Injector {
	return Injector{m: m, sampleRate: sampleRate}
}

// InjectPoints mixes one batch against a diffusion-engine audible point set.
// Each point contributes one left-ear and one right-ear submission.
func (in Injector) InjectPoints(points []trace.AudiblePoint, leftEar, rightEar geom.Vec3, pcm []byte, sampleTime int64, sink Sink) (BatchStats, error) {
	var stats BatchStats
	if len(pcm)%bytesPerFrame != 0 {
		return stats, ErrMalformedBatch
	}
	for _, p := range points {
		leftDist := geom.Dist(p.Location, leftEar)
		rightDist := geom.Dist(p.Location, rightEar)
		in.submit(contribution{
			leftDelayMs:  in.m.DelayFromDistance(leftDist) + p.DelayMs,
			rightDelayMs: in.m.DelayFromDistance(rightDist) + p.DelayMs,
			leftAtten:    p.Attenuation * in.m.DistanceAttenuation(leftDist+p.PathDistance),
			rightAtten:   p.Attenuation * in.m.DistanceAttenuation(rightDist+p.PathDistance),
		}, pcm, sampleTime, sink, &stats)
	}
	stats.finish()
	return stats, nil
}

// InjectChains mixes one batch against chain-engine reflection sequences.
// Per-ear distances accumulate the chain segments plus the final hop from
// the reflection point to each ear; per-bounce attenuation applies the
// surface term once per bounce.
func (in Injector) InjectChains(chains []trace.Chain, leftEar, rightEar geom.Vec3, pcm []byte, sampleTime int64, sink Sink) (BatchStats, error) {
	var stats BatchStats
	if len(pcm)%bytesPerFrame != 0 {
		return stats, ErrMalformedBatch
	}
	for i := range chains {
		for _, pt := range chains[i].Points {
			leftTotal := pt.PathDistance + geom.Dist(pt.Location, leftEar)
			rightTotal := pt.PathDistance + geom.Dist(pt.Location, rightEar)
			bounce := in.m.BounceAttenuation(pt.Bounce)
			in.submit(contribution{
				leftDelayMs:  in.m.DelayFromDistance(leftTotal),
				rightDelayMs: in.m.DelayFromDistance(rightTotal),
				leftAtten:    in.m.DistanceAttenuation(leftTotal) * bounce,
				rightAtten:   in.m.DistanceAttenuation(rightTotal) * bounce,
			}, pcm, sampleTime, sink, &stats)
		}
	}
	stats.finish()
	return stats, nil
}

type contribution struct {
	leftDelayMs  float64
	rightDelayMs float64
	leftAtten    float64
	rightAtten   float64
}

func (in Injector) submit(c contribution, pcm []byte, sampleTime int64, sink Sink, stats *BatchStats) {
	left, right := in.earBuffers(pcm, c.leftAtten, c.rightAtten)
	sampleCount := len(pcm) / bytesPerSample
	leftDelay := int64(math.Round(c.leftDelayMs * float64(in.sampleRate) / 1000))
	rightDelay := int64(math.Round(c.rightDelayMs * float64(in.sampleRate) / 1000))
	sink.AddSpatialAudioToBuffer(sampleTime+leftDelay, left, sampleCount)
	sink.AddSpatialAudioToBuffer(sampleTime+rightDelay, right, sampleCount)
	stats.observe(c.leftDelayMs, c.leftAtten)
	stats.observe(c.rightDelayMs, c.rightAtten)
}

// earBuffers builds the isolated per-ear stereo buffers: the left
// contribution fills only left-channel slots, the right contribution only
// right-channel slots. Samples are scaled in floating point and stored back
// as 16-bit.
func (in Injector) earBuffers(pcm []byte, leftAtten, rightAtten float64) (left, right []byte) {
	left = make([]byte, len(pcm))
	right = make([]byte, len(pcm))
	stereo := in.m.Params().StereoSource
	for off := 0; off+bytesPerFrame <= len(pcm); off += bytesPerFrame {
		l := int16(binary.LittleEndian.Uint16(pcm[off:]))
		r := l
		if stereo {
			r = int16(binary.LittleEndian.Uint16(pcm[off+2:]))
		}
		binary.LittleEndian.PutUint16(left[off:], uint16(int16(float64(l)*leftAtten)))
		binary.LittleEndian.PutUint16(right[off+2:], uint16(int16(float64(r)*rightAtten)))
	}
	return left, right
}
