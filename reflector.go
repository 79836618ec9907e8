package hifi

import (
	"errors"
	"math"
	"math/rand"
	"sync"

	"github.com/claudioshg/hifi/internal/acoustic"
	"github.com/claudioshg/hifi/internal/geom"
	"github.com/claudioshg/hifi/internal/inject"
	"github.com/claudioshg/hifi/internal/trace"
)

// Staleness thresholds: a new trace is only worth the work once the pose
// moves beyond these.
const (
	positionEpsilon   = 0.01 // meters
	orientationMinDot = 0.9999
)

type Option func(*reflectorConfig)

type reflectorConfig struct {
	params Parameters
	seed   int64
	seeded bool
}

// WithParameters overrides the default acoustic parameters.
func WithParameters(p Parameters) Option {
	return func(cfg *reflectorConfig) {
		cfg.params = p
	}
}

// WithRandSeed fixes the trace RNG seed, making jitter and scatter
// directions reproducible.
func WithRandSeed(seed int64) Option {
	return func(cfg *reflectorConfig) {
		cfg.seed = seed
		cfg.seeded = true
	}
}

// Reflector coordinates tracing and injection: it caches the last traced
// pose, retraces when the listener moves meaningfully, and mixes inbound
// audio batches against the current trace.
//
// Render runs on the renderer tick; AddSamples may be called from a
// separate audio-ingest thread.
type Reflector struct {
	mu     sync.Mutex
	oracle RayHitOracle
	pose   ListenerPose
	sink   SpatialMixSink

	params     Parameters
	sampleRate int
	rng        *rand.Rand

	result            *trace.Result
	lastOrigin        Vec3
	lastOrientation   Quat
	lastLeftEar       Vec3
	lastRightEar      Vec3
	lastWithDiffusion bool
	stats             Stats
}

// New builds a reflector over the given environment, pose source, and mix
// sink. The sample rate is the sink's, used to convert delays to frames.
func New(oracle RayHitOracle, pose ListenerPose, sink SpatialMixSink, sampleRate int, opts ...Option) (*Reflector, error) {
	if oracle == nil {
		return nil, errors.New("hifi: nil ray-hit oracle")
	}
	if pose == nil {
		return nil, errors.New("hifi: nil listener pose")
	}
	if sink == nil {
		return nil, errors.New("hifi: nil mix sink")
	}
	if sampleRate <= 0 {
		return nil, errors.New("hifi: sample rate must be positive")
	}
	cfg := reflectorConfig{params: DefaultParameters()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.params.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewSource(1))
	if cfg.seeded {
		rng = rand.New(rand.NewSource(cfg.seed))
	}
	return &Reflector{
		oracle:     oracle,
		pose:       pose,
		sink:       sink,
		params:     cfg.params,
		sampleRate: sampleRate,
		rng:        rng,
	}, nil
}

// Parameters returns the active parameter set.
func (r *Reflector) Parameters() Parameters {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.params
}

// SetParameters replaces the active parameter set. Invalid sets are
// rejected and the old parameters stay in force. The next Render retraces.
func (r *Reflector) SetParameters(p Parameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.params = p
	r.result = nil
	return nil
}

// Render pulls the current pose and retraces the environment if the cached
// trace has gone stale. It reports whether a new trace ran.
func (r *Reflector) Render() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	origin := r.pose.Position()
	orientation := r.pose.Orientation()
	if r.params.HeadOriented {
		orientation = r.pose.HeadOrientation()
	}
	leftEar, rightEar := r.earPositions(origin)

	if !r.stale(origin, orientation, leftEar, rightEar) {
		return false
	}

	m := acoustic.NewModel(r.params)
	dirs := geom.SeedDirections(orientation)
	if r.params.WithDiffusion {
		r.result = trace.TraceDiffusion(r.oracle, origin, dirs, m, r.rng)
	} else {
		r.result = trace.TraceChains(r.oracle, origin, dirs, m, r.rng)
	}

	r.lastOrigin = origin
	r.lastOrientation = orientation
	r.lastLeftEar = leftEar
	r.lastRightEar = rightEar
	r.lastWithDiffusion = r.params.WithDiffusion
	r.recomputeTraceStats()
	return true
}

func (r *Reflector) stale(origin Vec3, orientation Quat, leftEar, rightEar Vec3) bool {
	if r.result == nil {
		return true
	}
	if r.params.WithDiffusion != r.lastWithDiffusion {
		return true
	}
	if geom.Dist(origin, r.lastOrigin) > positionEpsilon {
		return true
	}
	if math.Abs(orientation.Dot(r.lastOrientation)) < orientationMinDot {
		return true
	}
	if geom.Dist(leftEar, r.lastLeftEar) > positionEpsilon ||
		geom.Dist(rightEar, r.lastRightEar) > positionEpsilon {
		return true
	}
	return false
}

func (r *Reflector) earPositions(origin Vec3) (left, right Vec3) {
	if r.params.SeparateEars {
		return r.pose.LeftEarPosition(), r.pose.RightEarPosition()
	}
	return origin, origin
}

// AddSamples mixes one inbound batch of 16-bit stereo-interleaved PCM
// against the current trace, submitting per-ear delayed contributions to
// the sink. With no trace yet there is nothing audible and the batch
// degrades to silence.
func (r *Reflector) AddSamples(pcm []byte, sampleTime int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(pcm)%4 != 0 {
		return inject.ErrMalformedBatch
	}
	if r.result == nil {
		return nil
	}

	in := inject.New(acoustic.NewModel(r.params), r.sampleRate)
	leftEar, rightEar := r.earPositions(r.lastOrigin)

	var batch inject.BatchStats
	var err error
	if r.lastWithDiffusion {
		batch, err = in.InjectPoints(r.result.AudiblePoints, leftEar, rightEar, pcm, sampleTime, r.sink)
	} else {
		batch, err = in.InjectChains(r.result.Chains, leftEar, rightEar, pcm, sampleTime, r.sink)
	}
	if err != nil {
		return err
	}

	r.stats.Batches++
	if !r.lastWithDiffusion {
		// Chain-engine delay and attenuation spreads depend on the ears,
		// so they are recomputed from each batch.
		r.stats.MinDelayMs = batch.MinDelayMs
		r.stats.MaxDelayMs = batch.MaxDelayMs
		r.stats.AvgDelayMs = batch.AvgDelayMs
		r.stats.MinAttenuation = batch.MinAttenuation
		r.stats.MaxAttenuation = batch.MaxAttenuation
		r.stats.AvgAttenuation = batch.AvgAttenuation
	}
	return nil
}

// recomputeTraceStats refreshes the aggregate statistics from the stored
// trace. Callers hold r.mu.
func (r *Reflector) recomputeTraceStats() {
	prev := r.stats
	r.stats = Stats{Batches: prev.Batches}
	res := r.result
	if res == nil {
		return
	}
	r.stats.TotalPaths = len(res.Paths)
	if len(res.Chains) > 0 {
		r.stats.TotalPaths = len(res.Chains)
	}
	r.stats.DiffusionPaths = res.DiffusionPaths
	r.stats.Reflections = res.Reflections()
	r.stats.AudiblePoints = len(res.AudiblePoints)
	r.stats.CappedPaths = res.CappedPaths

	if r.lastWithDiffusion {
		for i, ap := range res.AudiblePoints {
			if i == 0 {
				r.stats.MinDelayMs, r.stats.MaxDelayMs = ap.DelayMs, ap.DelayMs
				r.stats.MinAttenuation, r.stats.MaxAttenuation = ap.Attenuation, ap.Attenuation
			} else {
				r.stats.MinDelayMs = math.Min(r.stats.MinDelayMs, ap.DelayMs)
				r.stats.MaxDelayMs = math.Max(r.stats.MaxDelayMs, ap.DelayMs)
				r.stats.MinAttenuation = math.Min(r.stats.MinAttenuation, ap.Attenuation)
				r.stats.MaxAttenuation = math.Max(r.stats.MaxAttenuation, ap.Attenuation)
			}
			r.stats.AvgDelayMs += ap.DelayMs
			r.stats.AvgAttenuation += ap.Attenuation
		}
		if n := len(res.AudiblePoints); n > 0 {
			r.stats.AvgDelayMs /= float64(n)
			r.stats.AvgAttenuation /= float64(n)
		}
	} else {
		// Chain-engine spreads arrive with the next batch.
		r.stats.MinDelayMs = prev.MinDelayMs
		r.stats.MaxDelayMs = prev.MaxDelayMs
		r.stats.AvgDelayMs = prev.AvgDelayMs
		r.stats.MinAttenuation = prev.MinAttenuation
		r.stats.MaxAttenuation = prev.MaxAttenuation
		r.stats.AvgAttenuation = prev.AvgAttenuation
	}
}

// Stats returns a snapshot of the aggregate statistics.
func (r *Reflector) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// AudiblePoints returns a copy of the current audible-point set (diffusion
// engine only; empty under the chain engine).
func (r *Reflector) AudiblePoints() []AudiblePoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result == nil {
		return nil
	}
	out := make([]AudiblePoint, len(r.result.AudiblePoints))
	copy(out, r.result.AudiblePoints)
	return out
}

// Paths returns the traced reflection polylines for visualization: each
// starts at its seed (or scatter) origin and runs through the reflection
// points in bounce order.
func (r *Reflector) Paths() []PathPolyline {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result == nil {
		return nil
	}

	var out []PathPolyline
	for i, c := range r.result.Chains {
		if len(c.Points) == 0 {
			continue
		}
		line := PathPolyline{Seed: i, Points: []Vec3{r.result.Listener}}
		for _, pt := range c.Points {
			line.Points = append(line.Points, pt.Location)
		}
		out = append(out, line)
	}
	for i, p := range r.result.Paths {
		if len(p.Reflections) == 0 {
			continue
		}
		line := PathPolyline{Seed: i, Points: []Vec3{p.SeedOrigin}}
		if p.SeedOrigin != r.result.Listener {
			line.Seed = -1
			line.Child = true
		}
		line.Points = append(line.Points, p.Reflections...)
		out = append(out, line)
	}
	return out
}
