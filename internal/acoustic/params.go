package acoustic

import "errors"

// Limits shared by both trace engines.
const (
	// MinAttenuation is the audibility floor; contributions at or below it
	// are dropped and paths carrying them terminate.
	MinAttenuation = 1.0 / 256.0

	// MaxDelayMs caps the total accumulated delay of any contribution.
	MaxDelayMs = 20000.0

	// MaxBounces caps the number of surface reflections along one path.
	MaxBounces = 10

	// SlightlyShort scales hit distances so reflection points land on the
	// interior side of the surface.
	SlightlyShort = 0.999
)

// Parameters configures one trace and the sample injection that follows it.
// A Parameters value is immutable once handed to the engine.
type Parameters struct {
	// PreDelayMs is a fixed delay added before the first reflection.
	// Zero disables pre-delay.
	PreDelayMs float64

	// MsPerMeter is the propagation delay of sound, in milliseconds per
	// meter of traveled distance.
	MsPerMeter float64

	// DistanceScale multiplies the distance attenuation curve before it is
	// clamped to unity.
	DistanceScale float64

	// DiffusionFanout is the number of scattered child rays spawned per
	// bounce. Zero disables diffusion spawning.
	DiffusionFanout int

	// AbsorptionRatio and DiffusionRatio split surface energy; the
	// reflective share is 1 - absorption - diffusion and must not be
	// negative.
	AbsorptionRatio float64
	DiffusionRatio  float64

	// JitterNormals perturbs surface normals slightly on every bounce.
	JitterNormals bool

	// HeadOriented seeds probe rays from the head orientation instead of
	// the avatar orientation.
	HeadOriented bool

	// SeparateEars computes per-ear distances from the true ear positions
	// instead of the head center.
	SeparateEars bool

	// StereoSource treats inbound batches as true stereo; otherwise the
	// left channel is duplicated into both ears.
	StereoSource bool

	// WithDiffusion selects the diffusion engine; otherwise the
	// single-bounce-chain engine runs.
	WithDiffusion bool
}

// DefaultParameters returns the stock tuning.
func DefaultParameters() Parameters {
	return Parameters{
		PreDelayMs:      20,
		MsPerMeter:      3,
		DistanceScale:   2,
		DiffusionFanout: 5,
		AbsorptionRatio: 0.125,
		DiffusionRatio:  0.125,
		JitterNormals:   true,
		SeparateEars:    true,
		WithDiffusion:   true,
	}
}

// ReflectiveRatio returns the energy share that reflects specularly.
func (p Parameters) ReflectiveRatio() float64 {
	return 1 - p.AbsorptionRatio - p.DiffusionRatio
}

// Validate rejects parameter sets the engines cannot run with. Invalid
// combinations are refused outright, never clamped.
func (p Parameters) Validate() error {
	if p.PreDelayMs < 0 {
		return errors.New("acoustic: pre-delay must not be negative")
	}
	if p.MsPerMeter <= 0 {
		return errors.New("acoustic: ms-per-meter must be positive")
	}
	if p.DistanceScale < 0 {
		return errors.New("acoustic: distance scale must not be negative")
	}
	if p.DiffusionFanout < 0 {
		return errors.New("acoustic: diffusion fanout must not be negative")
	}
	if p.AbsorptionRatio < 0 || p.AbsorptionRatio > 1 {
		return errors.New("acoustic: absorption ratio must be in [0, 1]")
	}
	if p.DiffusionRatio < 0 || p.DiffusionRatio > 1 {
		return errors.New("acoustic: diffusion ratio must be in [0, 1]")
	}
	if p.ReflectiveRatio() < 0 {
		return errors.New("acoustic: absorption plus diffusion must not exceed 1")
	}
	return nil
}
