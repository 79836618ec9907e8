package acoustic

import "math"

// Geometric spreading curve constants. The curve approximates amplitude
// falloff over distance and is clamped to unity at close range.
const (
	geometricAmplitudeScalar = 0.3
	distanceLogBase          = 2.5
	distanceScaleRef         = 2.5
)

// Surface describes the three-way energy split of a reflecting surface.
// The shares always sum to 1.
type Surface struct {
	Reflective float64
	Absorption float64
	Diffusion  float64
}

// Model evaluates the acoustic formulas for one parameter set.
type Model struct {
	p Parameters
}

// NewModel wraps a validated parameter set.
func NewModel(p Parameters) Model { return Model{p: p} }

// Params returns the parameter set the model was built with.
func (m Model) Params() Parameters { return m.p }

// DelayFromDistance converts a traveled distance to milliseconds. Under the
// chain engine the configured pre-delay is folded in here; under the
// diffusion engine pre-delay is charged once at seed time instead.
func (m Model) DelayFromDistance(distance float64) float64 {
	delay := m.p.MsPerMeter * distance
	if !m.p.WithDiffusion && m.p.PreDelayMs > 0 {
		delay += m.p.PreDelayMs
	}
	return delay
}

// SeedDelay is the delay a freshly seeded diffusion path starts with.
func (m Model) SeedDelay() float64 {
	if m.p.WithDiffusion {
		return m.p.PreDelayMs
	}
	return 0
}

// DistanceAttenuation returns the amplitude coefficient for a sound source
// at the given distance, clamped to 1 at close range.
func (m Model) DistanceAttenuation(distance float64) float64 {
	logBase := math.Log(distanceLogBase)
	scaleLog := math.Log(distanceScaleRef) / logBase
	distanceSquared := distance * distance
	coefficient := math.Pow(geometricAmplitudeScalar,
		scaleLog+(0.5*math.Log(distanceSquared)/logBase)-1)
	return math.Min(1, m.p.DistanceScale*coefficient)
}

// BounceAttenuation returns the surface energy remaining after the given
// number of specular bounces.
func (m Model) BounceAttenuation(bounces int) float64 {
	return math.Pow(m.p.ReflectiveRatio(), float64(bounces))
}

// SurfaceAt returns the material characteristics at a hit element. The hit
// handle is accepted for per-voxel material lookup, but the stock model
// applies the global parameter split to every surface.
func (m Model) SurfaceAt(element any) Surface {
	_ = element
	return Surface{
		Reflective: m.p.ReflectiveRatio(),
		Absorption: m.p.AbsorptionRatio,
		Diffusion:  m.p.DiffusionRatio,
	}
}
