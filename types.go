// Package hifi computes early acoustic reflections and diffusions of sound
// in a voxelized 3D environment, producing per-ear delayed and attenuated
// contributions of an input audio stream for a downstream spatial mixer.
package hifi

import (
	"github.com/claudioshg/hifi/internal/acoustic"
	"github.com/claudioshg/hifi/internal/geom"
	"github.com/claudioshg/hifi/internal/inject"
	"github.com/claudioshg/hifi/internal/trace"
)

// Core geometry and trace types.
type (
	// Vec3 is a point or direction in 3D space.
	Vec3 = geom.Vec3
	// Quat is a rotation quaternion.
	Quat = geom.Quat
	// BoxFace identifies which face of a voxel a ray hit.
	BoxFace = geom.BoxFace
	// Parameters configures tracing and injection.
	Parameters = acoustic.Parameters
	// RayHit describes the first surface a probe ray strikes.
	RayHit = trace.RayHit
	// AudiblePoint is a point in space from which reflected or diffused
	// sound reaches the listener.
	AudiblePoint = trace.AudiblePoint

	// RayHitOracle answers ray-vs-surface queries against the voxel
	// environment. Implementations must be safe for concurrent reads.
	RayHitOracle = trace.Oracle
	// SpatialMixSink accepts delayed stereo PCM contributions anchored on
	// its own sample clock.
	SpatialMixSink = inject.Sink
)

// Voxel face tags.
const (
	MinXFace = geom.MinXFace
	MaxXFace = geom.MaxXFace
	MinYFace = geom.MinYFace
	MaxYFace = geom.MaxYFace
	MinZFace = geom.MinZFace
	MaxZFace = geom.MaxZFace
)

// Engine limits.
const (
	MinAttenuation = acoustic.MinAttenuation
	MaxDelayMs     = acoustic.MaxDelayMs
	MaxBounces     = acoustic.MaxBounces
)

// IdentityQuat is the no-rotation orientation.
var IdentityQuat = geom.IdentityQuat

// DefaultParameters returns the stock tuning.
func DefaultParameters() Parameters { return acoustic.DefaultParameters() }

// ListenerPose yields the listener's current position, orientation, and ear
// positions. Implementations are read on every render tick.
type ListenerPose interface {
	Position() Vec3
	Orientation() Quat
	HeadOrientation() Quat
	LeftEarPosition() Vec3
	RightEarPosition() Vec3
}

// FixedPose is a ListenerPose backed by plain fields, for demos and tests.
// Mutate the fields between render ticks to move the listener.
type FixedPose struct {
	Pos        Vec3
	Orient     Quat
	HeadOrient Quat
	LeftEar    Vec3
	RightEar   Vec3
}

func (p *FixedPose) Position() Vec3        { return p.Pos }
func (p *FixedPose) Orientation() Quat     { return p.Orient }
func (p *FixedPose) HeadOrientation() Quat { return p.HeadOrient }
func (p *FixedPose) LeftEarPosition() Vec3 {
	return p.LeftEar
}
func (p *FixedPose) RightEarPosition() Vec3 {
	return p.RightEar
}

// PathPolyline is one traced reflection path for visualization: the seed (or
// scatter) origin followed by each reflection point in bounce order.
type PathPolyline struct {
	// Seed is the seed-direction index for primary paths, -1 for
	// scattered diffusion children.
	Seed   int
	Child  bool
	Points []Vec3
}

// Stats aggregates the most recent trace and injection activity.
type Stats struct {
	TotalPaths     int
	DiffusionPaths int
	Reflections    int
	AudiblePoints  int
	// CappedPaths counts paths refused by the runaway-trace ceiling; any
	// non-zero value means the environment and parameters overwhelmed the
	// trace and the result is partial.
	CappedPaths int
	Batches     int

	MinDelayMs     float64
	MaxDelayMs     float64
	AvgDelayMs     float64
	MinAttenuation float64
	MaxAttenuation float64
	AvgAttenuation float64
}
