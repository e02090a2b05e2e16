package splatfit

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCov3DIdentityRotation(t *testing.T) {
	pipe := NewCPUPipeline()
	scale := []Real{2, 3, 4}
	rot := []Real{1, 0, 0, 0}
	cov, err := pipe.Cov3D(scale, rot, []bool{true})
	require.NoError(t, err)
	// Σ = diag(s²) under identity rotation
	assert.InDelta(t, 4.0, float64(cov[0]), 1e-4)
	assert.InDelta(t, 9.0, float64(cov[3]), 1e-4)
	assert.InDelta(t, 16.0, float64(cov[5]), 1e-4)
	assert.Zero(t, cov[1])
	assert.Zero(t, cov[2])
	assert.Zero(t, cov[4])
}

func TestCov3DSkipsInvisible(t *testing.T) {
	pipe := NewCPUPipeline()
	scale := []Real{2, 3, 4, 2, 3, 4}
	rot := []Real{1, 0, 0, 0, 1, 0, 0, 0}
	cov, err := pipe.Cov3D(scale, rot, []bool{false, true})
	require.NoError(t, err)
	for k := 0; k < 6; k++ {
		assert.Zero(t, cov[k], "invisible point must stay zero")
	}
	assert.NotZero(t, cov[6])
}

func TestCov3DRotationPreservesTrace(t *testing.T) {
	// trace(Σ) = Σ s² for any unit quaternion
	pipe := NewCPUPipeline()
	scale := []Real{1.5, 0.5, 2}
	rot := []Real{0.5, 0.5, 0.5, 0.5} // unit quaternion

	cov, err := pipe.Cov3D(scale, rot, []bool{true})
	require.NoError(t, err)
	trace := cov[0] + cov[3] + cov[5]
	want := scale[0]*scale[0] + scale[1]*scale[1] + scale[2]*scale[2]
	assert.InDelta(t, float64(want), float64(trace), 1e-4)
}

func TestCov3DBackwardMatchesFiniteDifference(t *testing.T) {
	pipe := NewCPUPipeline()
	rng := rand.New(rand.NewSource(11))

	const n = 3
	scale := make([]Real, 3*n)
	rot := make([]Real, 4*n)
	visible := make([]bool, n)
	for i := range scale {
		scale[i] = Real(0.5 + rng.Float64())
	}
	for i := 0; i < n; i++ {
		visible[i] = true
		var l2 Real
		for c := 0; c < 4; c++ {
			rot[4*i+c] = Real(rng.Float64()*2 - 1)
			l2 += rot[4*i+c] * rot[4*i+c]
		}
		inv := 1 / Real(math.Sqrt(float64(l2)))
		for c := 0; c < 4; c++ {
			rot[4*i+c] *= inv
		}
	}
	dCov := make([]Real, 6*n)
	for i := range dCov {
		dCov[i] = Real(rng.Float64()*2 - 1)
	}
	loss := func() Real {
		cov, err := pipe.Cov3D(scale, rot, visible)
		require.NoError(t, err)
		var s Real
		for i := range cov {
			s += dCov[i] * cov[i]
		}
		return s
	}

	dScale := make([]Real, 3*n)
	dRot := make([]Real, 4*n)
	require.NoError(t, pipe.Cov3DBackward(scale, rot, visible, dCov, dScale, dRot))

	const h = 1e-3
	check := func(buf []Real, grad []Real, name string) {
		for i := range buf {
			save := buf[i]
			buf[i] = save + h
			lp := loss()
			buf[i] = save - h
			lm := loss()
			buf[i] = save
			want := float64(lp-lm) / (2 * h)
			assert.InDeltaf(t, want, float64(grad[i]), 2e-2+0.05*math.Abs(want), "%s[%d]", name, i)
		}
	}
	check(scale, dScale, "scale")
	check(rot, dRot, "rot")
}
