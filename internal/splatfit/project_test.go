package splatfit

import (
	"math"
	"math/rand"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testView(dist Real) Mat4 {
	v := I4()
	v.M[3][2] = dist
	return v
}

func testCam(t *testing.T) Camera {
	t.Helper()
	cam, err := NewCamera(math32.Pi/2, 64, 64)
	require.NoError(t, err)
	return cam
}

func TestProjectCenterPoint(t *testing.T) {
	cam := testCam(t)
	view := testView(8)
	pipe := NewCPUPipeline()
	uv, depth, err := pipe.Project([]Real{0, 0, 0}, view, view, cam)
	require.NoError(t, err)
	assert.InDelta(t, float64(cam.Cx), float64(uv[0]), 1e-4)
	assert.InDelta(t, float64(cam.Cy), float64(uv[1]), 1e-4)
	assert.InDelta(t, 8.0, float64(depth[0]), 1e-5)
}

func TestProjectBehindCameraSentinel(t *testing.T) {
	cam := testCam(t)
	view := testView(8)
	pipe := NewCPUPipeline()
	// one behind, one exactly on the plane, one valid
	pos := []Real{0, 0, -10, 0, 0, -8, 1, 1, 0}
	uv, depth, err := pipe.Project(pos, view, view, cam)
	require.NoError(t, err)
	assert.Zero(t, depth[0])
	assert.Zero(t, depth[1], "a point on the camera plane is invalid")
	assert.NotZero(t, depth[2])
	assert.Zero(t, uv[0])
	assert.Zero(t, uv[1])
	assert.Equal(t, 1, CountVisible(depth))
	assert.Equal(t, []bool{false, false, true}, Visibility(depth))
}

func TestProjectShapeErrors(t *testing.T) {
	cam := testCam(t)
	view := testView(8)
	pipe := NewCPUPipeline()
	_, _, err := pipe.Project([]Real{1, 2}, view, view, cam)
	var se *PipelineStageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "project", se.Stage)
}

func TestProjectBackwardMatchesFiniteDifference(t *testing.T) {
	cam := testCam(t)
	view := testView(8)
	pipe := NewCPUPipeline()
	rng := rand.New(rand.NewSource(7))

	const n = 5
	pos := make([]Real, 3*n)
	for i := range pos {
		pos[i] = Real(rng.Float64()*2 - 1)
	}
	dUV := make([]Real, 2*n)
	for i := range dUV {
		dUV[i] = Real(rng.Float64()*2 - 1)
	}
	loss := func(p []Real) Real {
		uv, _, err := pipe.Project(p, view, view, cam)
		require.NoError(t, err)
		var s Real
		for i := range uv {
			s += dUV[i] * uv[i]
		}
		return s
	}

	_, depth, err := pipe.Project(pos, view, view, cam)
	require.NoError(t, err)
	dPos := make([]Real, 3*n)
	require.NoError(t, pipe.ProjectBackward(pos, view, cam, depth, dUV, dPos))

	const h = 1e-3
	for i := range pos {
		save := pos[i]
		pos[i] = save + h
		lp := loss(pos)
		pos[i] = save - h
		lm := loss(pos)
		pos[i] = save
		want := float64(lp-lm) / (2 * h)
		assert.InDeltaf(t, want, float64(dPos[i]), 2e-2+0.05*math.Abs(want), "pos[%d]", i)
	}
}
