package splatfit

// TileRange is the half-open span [Start,End) of sorted splat entries
// belonging to one screen tile.
type TileRange struct {
	Start, End int32
}

// Pipeline is the five-stage differentiable rendering contract. Stages are
// strictly sequential: each stage's outputs are the next stage's inputs,
// with no reordering or skipping. Every forward stage except the sort has
// a matching analytic backward; the training loop drives the backwards in
// reverse stage order, forming one reverse-mode pass per iteration.
//
// Conventions shared by all implementations:
//   - depth[i] == 0 marks an invalid projection (behind or on the camera
//     plane); such points must not contribute to any downstream output.
//   - cov3d is packed symmetric per point: (c00,c01,c02,c11,c12,c22).
//   - conic holds the inverse 2D covariance per point: (A,B,C) for the
//     quadratic form A·dx² + 2B·dx·dy + C·dy².
//   - order entries are sorted by (tile, depth) ascending: front-to-back
//     within every tile, matching the blend accumulation rule.
//   - backward methods accumulate into their gradient arguments.
type Pipeline interface {
	// Project maps world-space means to screen coordinates and camera
	// depth: uv is [N,2], depth is [N].
	Project(pos []Real, view, proj Mat4, cam Camera) (uv, depth []Real, err error)
	// ProjectBackward accumulates d(loss)/d(pos) from a gradient on uv.
	ProjectBackward(pos []Real, view Mat4, cam Camera, depth, dUV []Real, dPos []Real) error

	// Cov3D builds packed world-space covariances [N,6] from activated
	// scales and unit quaternions, only where visible.
	Cov3D(scale, rot []Real, visible []bool) ([]Real, error)
	// Cov3DBackward accumulates gradients on the activated scale and
	// unit quaternion from a packed covariance gradient.
	Cov3DBackward(scale, rot []Real, visible []bool, dCov []Real, dScale, dRot []Real) error

	// EWAProject projects covariances to screen space: conic is [N,3],
	// radius the 3σ footprint in pixels, tiles the per-point count of
	// overlapped screen tiles.
	EWAProject(pos, cov3d []Real, view Mat4, cam Camera, uv []Real, visible []bool) (conic []Real, radius, tiles []int32, err error)
	// EWAProjectBackward accumulates gradients on positions and packed
	// covariances from a conic gradient.
	EWAProjectBackward(pos, cov3d []Real, view Mat4, cam Camera, depth []Real, dConic []Real, dPos, dCov []Real) error

	// SortSplats flattens (point, tile) memberships into one depth-ordered
	// index list plus per-tile ranges into it.
	SortSplats(uv, depth []Real, cam Camera, radius, tiles []int32) (order []int32, ranges []TileRange, err error)

	// AlphaBlend composites the sorted splats into a [C,H,W] image over
	// the scalar background.
	AlphaBlend(uv, conic, opacity, color []Real, order []int32, ranges []TileRange, bg Real, cam Camera) ([]Real, error)
	// AlphaBlendBackward accumulates gradients on uv, conic, opacity and
	// color from an image gradient.
	AlphaBlendBackward(uv, conic, opacity, color []Real, order []int32, ranges []TileRange, bg Real, cam Camera, dImage []Real, dUV, dConic, dOpacity, dColor []Real) error
}

// CPUPipeline is the reference pipeline backend. Stage internals may
// parallelize across tiles; the stage sequencing itself is single-threaded
// and owned by the caller.
type CPUPipeline struct {
	Workers int // per-tile worker limit for blending; 0 means NumCPU
}

// NewCPUPipeline returns a backend using all available CPUs for the
// blending stages.
func NewCPUPipeline() *CPUPipeline { return &CPUPipeline{} }

// Visibility derives the visible mask from the depth sentinel.
func Visibility(depth []Real) []bool {
	vis := make([]bool, len(depth))
	for i, d := range depth {
		vis[i] = d != 0
	}
	return vis
}

// CountVisible returns the number of points with a valid projection.
func CountVisible(depth []Real) int {
	n := 0
	for _, d := range depth {
		if d != 0 {
			n++
		}
	}
	return n
}
