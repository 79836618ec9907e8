package trace

import (
	"math/rand"

	"github.com/claudioshg/hifi/internal/acoustic"
	"github.com/claudioshg/hifi/internal/geom"
)

// MaxActivePaths caps the total number of paths one trace may carry. The
// fanout can otherwise grow geometrically under near-lossless parameters;
// paths refused by the cap are counted in Result.CappedPaths.
const MaxActivePaths = 10000

// TraceDiffusion runs the diffusion engine: every tick advances each live
// path by one bounce, spawning scattered children at each hit. The trace
// ends when no live paths remain.
func TraceDiffusion(oracle Oracle, listener geom.Vec3, dirs [geom.SeedCount]geom.Vec3, m acoustic.Model, rng *rand.Rand) *Result {
	res := &Result{Listener: listener}

	paths := make([]*PathState, 0, geom.SeedCount)
	for _, dir := range dirs {
		paths = append(paths, &PathState{
			Origin:      listener,
			Direction:   dir,
			DelayMs:     m.SeedDelay(),
			Attenuation: 1,
			SeedOrigin:  listener,
		})
	}

	active := len(paths)
	for active > 0 {
		// Children spawned this tick start stepping next tick.
		tickEnd := len(paths)
		for i := 0; i < tickEnd; i++ {
			p := paths[i]
			if p.Terminated {
				continue
			}
			paths = stepPath(p, paths, oracle, listener, m, rng, res)
		}
		if res.CappedPaths > 0 {
			// Runaway trace: the path ceiling was hit, kill whatever is left.
			for _, p := range paths {
				p.Terminated = true
			}
		}
		active = 0
		for _, p := range paths {
			if !p.Terminated {
				active++
			}
		}
	}

	res.Paths = paths
	for _, p := range paths {
		if p.SeedOrigin != listener {
			res.DiffusionPaths++
		}
	}
	return res
}

// stepPath advances one path by a single bounce, appending any spawned
// children to paths and emitted points to res.
func stepPath(p *PathState, paths []*PathState, oracle Oracle, listener geom.Vec3, m acoustic.Model, rng *rand.Rand, res *Result) []*PathState {
	if p.BounceDepth >= acoustic.MaxBounces {
		p.Terminated = true
		return paths
	}
	hit, ok := oracle.Intersect(p.Origin, p.Direction)
	if !ok {
		p.Terminated = true
		return paths
	}

	end := p.Origin.Add(p.Direction.Mul(hit.Distance * acoustic.SlightlyShort))
	segLen := geom.Dist(p.Origin, end)
	distance := p.Distance + segLen
	toListener := geom.Dist(end, listener)
	delay := p.DelayMs + m.DelayFromDistance(segLen)
	totalDelay := delay + m.DelayFromDistance(toListener)
	earshotAttenuation := m.DistanceAttenuation(toListener + distance)

	surface := m.SurfaceAt(hit.Element)
	reflected := p.Attenuation * surface.Reflective
	diffused := p.Attenuation * surface.Diffusion
	fanout := m.Params().DiffusionFanout
	perChild := 0.0
	if fanout >= 1 {
		perChild = diffused / float64(fanout)
	}

	if perChild*earshotAttenuation > acoustic.MinAttenuation && totalDelay < acoustic.MaxDelayMs {
		for c := 0; c < fanout; c++ {
			if len(paths) >= MaxActivePaths {
				res.CappedPaths++
				continue
			}
			paths = append(paths, &PathState{
				Origin:      end,
				Direction:   geom.ScatterDirection(hit.Face, rng),
				DelayMs:     delay,
				Attenuation: perChild,
				Distance:    distance,
				SeedOrigin:  end,
			})
		}
	}

	if (reflected+diffused)*earshotAttenuation > acoustic.MinAttenuation && totalDelay < acoustic.MaxDelayMs {
		res.AudiblePoints = append(res.AudiblePoints, AudiblePoint{
			Location:     end,
			DelayMs:      delay,
			Attenuation:  reflected + diffused,
			PathDistance: distance,
		})
		p.Reflections = append(p.Reflections, end)
	}

	if reflected*earshotAttenuation > acoustic.MinAttenuation {
		p.Origin = end
		p.Direction = geom.Reflect(p.Direction, chainNormal(hit.Face, m, rng)).Norm()
		p.DelayMs = delay
		p.Attenuation = reflected
		p.Distance = distance
		p.BounceDepth++
	} else {
		p.Terminated = true
	}
	return paths
}
