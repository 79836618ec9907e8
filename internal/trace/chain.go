package trace

import (
	"math/rand"

	"github.com/claudioshg/hifi/internal/acoustic"
	"github.com/claudioshg/hifi/internal/geom"
)

// TraceChains runs the single-bounce-chain engine: one specular reflection
// sequence per seed direction, no scattering. Each chain walks until the
// surface swallows the energy, the delay ceiling is reached, the bounce
// budget runs out, or the ray escapes.
func TraceChains(oracle Oracle, listener geom.Vec3, dirs [geom.SeedCount]geom.Vec3, m acoustic.Model, rng *rand.Rand) *Result {
	res := &Result{
		Listener: listener,
		Chains:   make([]Chain, 0, geom.SeedCount),
	}
	for _, dir := range dirs {
		res.Chains = append(res.Chains, traceChain(oracle, listener, dir, m, rng))
	}
	return res
}

func traceChain(oracle Oracle, listener, seedDir geom.Vec3, m acoustic.Model, rng *rand.Rand) Chain {
	chain := Chain{Direction: seedDir}
	start := listener
	dir := seedDir
	pathDistance := 0.0

	for bounce := 1; bounce <= acoustic.MaxBounces; bounce++ {
		hit, ok := oracle.Intersect(start, dir)
		if !ok {
			break
		}
		end := start.Add(dir.Mul(hit.Distance * acoustic.SlightlyShort))
		pathDistance += geom.Dist(start, end)
		chain.Points = append(chain.Points, ChainPoint{
			Location:     end,
			PathDistance: pathDistance,
			Bounce:       bounce,
		})

		earDistance := geom.Dist(end, listener)
		totalDelay := m.DelayFromDistance(earDistance + pathDistance)
		attenuation := m.DistanceAttenuation(earDistance+pathDistance) * m.BounceAttenuation(bounce)
		if attenuation <= acoustic.MinAttenuation || totalDelay >= acoustic.MaxDelayMs {
			break
		}

		dir = geom.Reflect(dir, chainNormal(hit.Face, m, rng)).Norm()
		start = end
	}
	return chain
}

func chainNormal(face geom.BoxFace, m acoustic.Model, rng *rand.Rand) geom.Vec3 {
	if m.Params().JitterNormals {
		return geom.JitteredNormal(face, rng)
	}
	return geom.FaceNormal(face)
}
