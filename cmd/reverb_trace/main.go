package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/claudioshg/hifi"
)

func main() {
	var (
		roomWidth     = flag.Float64("room-width", 10, "room width in meters")
		roomHeight    = flag.Float64("room-height", 4, "room height in meters")
		roomDepth     = flag.Float64("room-depth", 8, "room depth in meters")
		diffusion     = flag.Bool("diffusion", true, "use the diffusion engine instead of single-bounce chains")
		fanout        = flag.Int("fanout", 5, "scattered children per bounce")
		absorption    = flag.Float64("absorption", 0.125, "surface absorption ratio")
		diffuseRatio  = flag.Float64("diffusion-ratio", 0.125, "surface diffusion ratio")
		preDelay      = flag.Float64("pre-delay", 20, "pre-reflection delay in ms")
		msPerMeter    = flag.Float64("ms-per-meter", 3, "propagation delay per meter")
		distanceScale = flag.Float64("distance-scale", 2, "distance attenuation multiplier")
		jitter        = flag.Bool("jitter", true, "perturb surface normals")
		seed          = flag.Int64("seed", 1, "trace RNG seed")
		sampleRate    = flag.Int("sample-rate", 48000, "sink sample rate")
		wavPath       = flag.String("wav", "", "write the impulse response of the room to a WAV file")
		wavSeconds    = flag.Float64("wav-seconds", 2, "length of the WAV impulse response")
	)
	flag.Parse()

	params := hifi.DefaultParameters()
	params.WithDiffusion = *diffusion
	params.DiffusionFanout = *fanout
	params.AbsorptionRatio = *absorption
	params.DiffusionRatio = *diffuseRatio
	params.PreDelayMs = *preDelay
	params.MsPerMeter = *msPerMeter
	params.DistanceScale = *distanceScale
	params.JitterNormals = *jitter
	params.StereoSource = true
	if err := params.Validate(); err != nil {
		log.Fatal(err)
	}

	room := hifi.NewBoxRoom(hifi.Vec3{}, *roomWidth, *roomHeight, *roomDepth)
	pose := &hifi.FixedPose{
		Orient:     hifi.IdentityQuat,
		HeadOrient: hifi.IdentityQuat,
		LeftEar:    hifi.Vec3{X: -0.1},
		RightEar:   hifi.Vec3{X: 0.1},
	}

	r, err := hifi.New(room, pose, discardSink{}, *sampleRate,
		hifi.WithParameters(params), hifi.WithRandSeed(*seed))
	if err != nil {
		log.Fatal(err)
	}
	r.Render()
	// One batch drives the chain-engine delay/attenuation spreads.
	if err := r.AddSamples(impulse(*sampleRate/10), 0); err != nil {
		log.Fatal(err)
	}
	printStats(r.Stats(), params)

	if *wavPath != "" {
		pcm, err := hifi.RenderReverb(room, pose, params, impulse(16), *sampleRate, *wavSeconds)
		if err != nil {
			log.Fatal(err)
		}
		if err := os.WriteFile(*wavPath, hifi.EncodeWAVInt16LE(pcm, *sampleRate, 2), 0o644); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("wrote %s (%.1f s impulse response)\n", *wavPath, *wavSeconds)
	}
}

// impulse is a single full-scale click followed by silence.
func impulse(frames int) []byte {
	out := make([]byte, frames*4)
	binary.LittleEndian.PutUint16(out, uint16(int16(math.MaxInt16)))
	binary.LittleEndian.PutUint16(out[2:], uint16(int16(math.MaxInt16)))
	return out
}

type discardSink struct{}

func (discardSink) AddSpatialAudioToBuffer(sampleTime int64, samples []byte, sampleCount int) {}

func printStats(s hifi.Stats, params hifi.Parameters) {
	engine := "chain"
	if params.WithDiffusion {
		engine = "diffusion"
	}
	fmt.Printf("engine:          %s\n", engine)
	fmt.Printf("paths:           %d (%d scattered)\n", s.TotalPaths, s.DiffusionPaths)
	fmt.Printf("reflections:     %d\n", s.Reflections)
	fmt.Printf("audible points:  %d\n", s.AudiblePoints)
	fmt.Printf("delay spread:    %.2f .. %.2f ms (avg %.2f)\n", s.MinDelayMs, s.MaxDelayMs, s.AvgDelayMs)
	fmt.Printf("attenuation:     %.4f .. %.4f (avg %.4f)\n", s.MinAttenuation, s.MaxAttenuation, s.AvgAttenuation)
	if s.CappedPaths > 0 {
		fmt.Printf("warning: %d paths dropped by the runaway-trace ceiling\n", s.CappedPaths)
	}
}
