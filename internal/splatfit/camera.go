package splatfit

import (
	"fmt"

	"github.com/chewxy/math32"
)

// Camera holds pinhole intrinsics and the output image size. Immutable for
// the duration of a run.
type Camera struct {
	Fx, Fy Real // focal lengths in pixels
	Cx, Cy Real // principal point in pixels
	W, H   int  // image size in pixels
}

// NewCamera builds a centered pinhole camera from a horizontal field of
// view in radians: fx = fy = 0.5·W / tan(fov/2).
func NewCamera(fovX Real, w, h int) (Camera, error) {
	cam := Camera{W: w, H: h}
	if w <= 0 || h <= 0 {
		return cam, fmt.Errorf("image size must be positive, got %dx%d", w, h)
	}
	if fovX <= 0 || fovX >= math32.Pi {
		return cam, fmt.Errorf("horizontal field of view must be in (0, π), got %f", fovX)
	}
	f := 0.5 * Real(w) / math32.Tan(0.5*fovX)
	cam.Fx, cam.Fy = f, f
	cam.Cx, cam.Cy = Real(w)/2, Real(h)/2
	DebugLog("Created camera fx=%.3f fy=%.3f cx=%.1f cy=%.1f size=%dx%d", cam.Fx, cam.Fy, cam.Cx, cam.Cy, w, h)
	return cam, nil
}

// Validate rejects degenerate cameras before they reach the pipeline.
func (c Camera) Validate() error {
	if c.W <= 0 || c.H <= 0 {
		return fmt.Errorf("image size must be positive, got %dx%d", c.W, c.H)
	}
	if c.Fx <= 0 || c.Fy <= 0 || !isFinite(c.Fx) || !isFinite(c.Fy) {
		return fmt.Errorf("focal lengths must be positive and finite, got fx=%f fy=%f", c.Fx, c.Fy)
	}
	if !isFinite(c.Cx) || !isFinite(c.Cy) {
		return fmt.Errorf("principal point must be finite, got cx=%f cy=%f", c.Cx, c.Cy)
	}
	return nil
}

// TilesX and TilesY give the screen tile grid dimensions.
func (c Camera) TilesX() int { return (c.W + TileSize - 1) / TileSize }
func (c Camera) TilesY() int { return (c.H + TileSize - 1) / TileSize }

// Pixels returns the number of pixels in one channel plane.
func (c Camera) Pixels() int { return c.W * c.H }
