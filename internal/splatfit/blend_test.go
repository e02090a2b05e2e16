package splatfit

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blendCam is a single-tile camera so hand-built order/ranges stay simple.
func blendCam() Camera {
	return Camera{Fx: 10, Fy: 10, Cx: 8, Cy: 8, W: 16, H: 16}
}

func TestAlphaBlendBackgroundOnly(t *testing.T) {
	cam := blendCam()
	pipe := NewCPUPipeline()
	ranges := make([]TileRange, cam.TilesX()*cam.TilesY())
	img, err := pipe.AlphaBlend(nil, nil, nil, nil, nil, ranges, 0.25, cam)
	require.NoError(t, err)
	require.Len(t, img, Channels*cam.Pixels())
	for _, v := range img {
		assert.Equal(t, Real(0.25), v)
	}
}

func TestAlphaBlendSingleSplat(t *testing.T) {
	cam := blendCam()
	pipe := NewCPUPipeline()
	// splat centered exactly on pixel (8,8)
	uv := []Real{8.5, 8.5}
	conic := []Real{1, 0, 1}
	opacity := []Real{0.6}
	color := []Real{0.9, 0.3, 0.1}
	order := []int32{0}
	ranges := make([]TileRange, cam.TilesX()*cam.TilesY())
	ranges[0] = TileRange{Start: 0, End: 1}
	bg := Real(0.2)
	img, err := pipe.AlphaBlend(uv, conic, opacity, color, order, ranges, bg, cam)
	require.NoError(t, err)
	pix := 8*cam.W + 8
	hw := cam.Pixels()
	// at the center dx=dy=0, so alpha equals the opacity
	for c := 0; c < Channels; c++ {
		want := color[c]*0.6 + bg*0.4
		assert.InDeltaf(t, float64(want), float64(img[c*hw+pix]), 1e-5, "channel %d", c)
	}
	// far corner: footprint long gone, pure background
	assert.InDelta(t, float64(bg), float64(img[0]), 1e-5)
}

func TestAlphaBlendOrderMatters(t *testing.T) {
	cam := blendCam()
	pipe := NewCPUPipeline()
	uv := []Real{8.5, 8.5, 8.5, 8.5}
	conic := []Real{1, 0, 1, 1, 0, 1}
	opacity := []Real{0.8, 0.8}
	color := []Real{1, 1, 1, 0, 0, 0}
	ranges := make([]TileRange, cam.TilesX()*cam.TilesY())
	ranges[0] = TileRange{Start: 0, End: 2}
	hw := cam.Pixels()
	pix := 8*cam.W + 8

	white, err := pipe.AlphaBlend(uv, conic, opacity, color, []int32{0, 1}, ranges, 0, cam)
	require.NoError(t, err)
	black, err := pipe.AlphaBlend(uv, conic, opacity, color, []int32{1, 0}, ranges, 0, cam)
	require.NoError(t, err)
	assert.Greater(t, white[pix], black[pix], "front splat must dominate")
	assert.InDelta(t, 0.8, float64(white[pix]), 1e-5)
	assert.InDelta(t, 0.8*0.2, float64(black[hw*0+pix]), 1e-5)
}

func TestAlphaBlendRejectsBadOrder(t *testing.T) {
	cam := blendCam()
	pipe := NewCPUPipeline()
	ranges := make([]TileRange, cam.TilesX()*cam.TilesY())
	_, err := pipe.AlphaBlend([]Real{1, 1}, []Real{1, 0, 1}, []Real{0.5}, []Real{1, 1, 1}, []int32{3}, ranges, 0, cam)
	var se *PipelineStageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "blend", se.Stage)
}

func TestAlphaBlendBackwardMatchesFiniteDifference(t *testing.T) {
	cam := blendCam()
	pipe := NewCPUPipeline()
	rng := rand.New(rand.NewSource(17))

	const n = 3
	uv := make([]Real, 2*n)
	conic := make([]Real, 3*n)
	opacity := make([]Real, n)
	color := make([]Real, Channels*n)
	for i := 0; i < n; i++ {
		uv[2*i] = Real(4 + rng.Float64()*8)
		uv[2*i+1] = Real(4 + rng.Float64()*8)
		conic[3*i] = Real(0.4 + rng.Float64())
		conic[3*i+1] = Real(rng.Float64() * 0.1)
		conic[3*i+2] = Real(0.4 + rng.Float64())
		opacity[i] = Real(0.3 + rng.Float64()*0.4)
		for c := 0; c < Channels; c++ {
			color[Channels*i+c] = Real(rng.Float64())
		}
	}
	order := []int32{0, 1, 2}
	ranges := make([]TileRange, cam.TilesX()*cam.TilesY())
	ranges[0] = TileRange{Start: 0, End: int32(n)}
	bg := Real(0.1)

	dImage := make([]Real, Channels*cam.Pixels())
	for i := range dImage {
		dImage[i] = Real(rng.Float64()*2 - 1)
	}
	loss := func() Real {
		img, err := pipe.AlphaBlend(uv, conic, opacity, color, order, ranges, bg, cam)
		require.NoError(t, err)
		var s Real
		for i := range img {
			s += dImage[i] * img[i]
		}
		return s
	}

	dUV := make([]Real, 2*n)
	dConic := make([]Real, 3*n)
	dOpacity := make([]Real, n)
	dColor := make([]Real, Channels*n)
	require.NoError(t, pipe.AlphaBlendBackward(uv, conic, opacity, color, order, ranges, bg, cam, dImage, dUV, dConic, dOpacity, dColor))

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
			assert.InDeltaf(t, want, float64(grad[i]), 3e-2+0.05*math.Abs(want), "%s[%d]", name, i)
		}
	}
	check(uv, dUV, "uv")
	check(conic, dConic, "conic")
	check(opacity, dOpacity, "opacity")
	check(color, dColor, "color")
}
