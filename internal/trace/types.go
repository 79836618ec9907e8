package trace

import "github.com/claudioshg/hifi/internal/geom"

// RayHit describes the first surface a probe ray strikes.
type RayHit struct {
	Distance float64
	Face     geom.BoxFace
	Element  any
}

// Oracle answers ray-vs-surface queries against the environment. It must be
// safe for concurrent reads; the engines never mutate it.
type Oracle interface {
	Intersect(start, dir geom.Vec3) (RayHit, bool)
}

// AudiblePoint is a point in space from which reflected or diffused sound
// reaches the listener. Delay and attenuation are accumulated up to the
// point itself; the ear-to-point leg is added at injection time.
type AudiblePoint struct {
	Location     geom.Vec3
	DelayMs      float64
	Attenuation  float64
	PathDistance float64
}

// PathState tracks one in-flight diffusion ray between ticks.
type PathState struct {
	Origin      geom.Vec3 // start of the next segment
	Direction   geom.Vec3
	DelayMs     float64
	Attenuation float64
	Distance    float64
	BounceDepth int
	Terminated  bool
	Reflections []geom.Vec3
	SeedOrigin  geom.Vec3
}

// ChainPoint is one reflection along a single-bounce chain. PathDistance is
// the cumulative distance traveled from the listener to this point.
type ChainPoint struct {
	Location     geom.Vec3
	PathDistance float64
	Bounce       int // 1-based bounce index
}

// Chain is the reflection sequence one seed direction produced under the
// chain engine.
type Chain struct {
	Direction geom.Vec3
	Points    []ChainPoint
}

// Result is the output of one full trace. Exactly one of Chains (chain
// engine) or AudiblePoints+Paths (diffusion engine) carries the audible
// contributions; the other is empty.
type Result struct {
	Listener       geom.Vec3
	AudiblePoints  []AudiblePoint
	Paths          []*PathState
	Chains         []Chain
	DiffusionPaths int
	CappedPaths    int
}

// Reflections returns the total number of reflection points recorded.
func (r *Result) Reflections() int {
	if r == nil {
		return 0
	}
	if len(r.Chains) > 0 {
		n := 0
		for i := range r.Chains {
			n += len(r.Chains[i].Points)
		}
		return n
	}
	return len(r.AudiblePoints)
}
