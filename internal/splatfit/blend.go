package splatfit

import (
	"runtime"

	"github.com/chewxy/math32"
	"golang.org/x/sync/errgroup"
)

// Stage 5: front-to-back alpha compositing. Every pixel walks its tile's
// depth-ordered splats, accumulating color weighted by opacity·Gaussian
// falloff·transmittance; the remaining transmittance goes to the
// background. Tiles are independent and run on parallel workers; the
// backward pass re-walks each pixel and accumulates per-point gradients
// under sharded locks because one point can overlap many tiles.

func (cp *CPUPipeline) workers() int {
	if cp.Workers > 0 {
		return cp.Workers
	}
	w := runtime.NumCPU()
	if w < 1 {
		w = 1
	}
	return w
}

func (cp *CPUPipeline) checkBlendShapes(stage string, uv, conic, opacity, color []Real, ranges []TileRange, cam Camera) (int, error) {
	n := len(opacity)
	if len(uv) != 2*n || len(conic) != 3*n || len(color) != Channels*n {
		return 0, stageErrf(stage, "field sizes disagree for n=%d: uv=%d conic=%d color=%d", n, len(uv)/2, len(conic)/3, len(color)/Channels)
	}
	if len(ranges) != cam.TilesX()*cam.TilesY() {
		return 0, stageErrf(stage, "tile ranges length %d, want %d", len(ranges), cam.TilesX()*cam.TilesY())
	}
	if err := cam.Validate(); err != nil {
		return 0, stageErrf(stage, "%v", err)
	}
	return n, nil
}

func (cp *CPUPipeline) AlphaBlend(uv, conic, opacity, color []Real, order []int32, ranges []TileRange, bg Real, cam Camera) ([]Real, error) {
	const stage = "blend"
	n, err := cp.checkBlendShapes(stage, uv, conic, opacity, color, ranges, cam)
	if err != nil {
		return nil, err
	}
	for _, j := range order {
		if int(j) < 0 || int(j) >= n {
			return nil, stageErrf(stage, "sorted index %d out of range [0,%d)", j, n)
		}
	}
	hw := cam.Pixels()
	img := make([]Real, Channels*hw)
	tilesX := cam.TilesX()

	var g errgroup.Group
	g.SetLimit(cp.workers())
	for tile := range ranges {
		tile := tile
		g.Go(func() error {
			r := ranges[tile]
			px0 := (tile % tilesX) * TileSize
			py0 := (tile / tilesX) * TileSize
			px1 := imin(cam.W, px0+TileSize)
			py1 := imin(cam.H, py0+TileSize)
			for y := py0; y < py1; y++ {
				for x := px0; x < px1; x++ {
					var acc [Channels]Real
					T := Real(1)
					for e := r.Start; e < r.End; e++ {
						if T < transmitEps {
							break
						}
						j := int(order[e])
						dx := Real(x) + 0.5 - uv[2*j]
						dy := Real(y) + 0.5 - uv[2*j+1]
						A, B, C := conic[3*j], conic[3*j+1], conic[3*j+2]
						power := -0.5*(A*dx*dx+C*dy*dy) - B*dx*dy
						if power > 0 {
							continue
						}
						alpha := opacity[j] * math32.Exp(power)
						if alpha > alphaMax {
							alpha = alphaMax
						}
						if alpha < alphaMin {
							continue
						}
						for c := 0; c < Channels; c++ {
							acc[c] += color[Channels*j+c] * alpha * T
						}
						T *= 1 - alpha
					}
					pix := y*cam.W + x
					for c := 0; c < Channels; c++ {
						img[c*hw+pix] = acc[c] + bg*T
					}
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return img, nil
}

// blendContrib records one splat's contribution to one pixel so the
// backward pass can replay it back-to-front.
type blendContrib struct {
	j     int
	dx    Real
	dy    Real
	gauss Real
	alpha Real
	T     Real // transmittance before this contribution
}

func (cp *CPUPipeline) AlphaBlendBackward(uv, conic, opacity, color []Real, order []int32, ranges []TileRange, bg Real, cam Camera, dImage []Real, dUV, dConic, dOpacity, dColor []Real) error {
	const stage = "blend"
	n, err := cp.checkBlendShapes(stage, uv, conic, opacity, color, ranges, cam)
	if err != nil {
		return err
	}
	hw := cam.Pixels()
	if len(dImage) != Channels*hw {
		return stageErrf(stage, "image gradient length %d, want %d", len(dImage), Channels*hw)
	}
	if len(dUV) != 2*n || len(dConic) != 3*n || len(dOpacity) != n || len(dColor) != Channels*n {
		return stageErrf(stage, "backward shape mismatch for n=%d", n)
	}
	tilesX := cam.TilesX()
	locks := &shardLocks{}

	var g errgroup.Group
	g.SetLimit(cp.workers())
	for tile := range ranges {
		tile := tile
		g.Go(func() error {
			r := ranges[tile]
			if r.Start == r.End {
				return nil
			}
			px0 := (tile % tilesX) * TileSize
			py0 := (tile / tilesX) * TileSize
			px1 := imin(cam.W, px0+TileSize)
			py1 := imin(cam.H, py0+TileSize)
			contribs := make([]blendContrib, 0, int(r.End-r.Start))
			for y := py0; y < py1; y++ {
				for x := px0; x < px1; x++ {
					// Replay the forward walk with identical guards.
					contribs = contribs[:0]
					T := Real(1)
					for e := r.Start; e < r.End; e++ {
						if T < transmitEps {
							break
						}
						j := int(order[e])
						dx := Real(x) + 0.5 - uv[2*j]
						dy := Real(y) + 0.5 - uv[2*j+1]
						A, B, C := conic[3*j], conic[3*j+1], conic[3*j+2]
						power := -0.5*(A*dx*dx+C*dy*dy) - B*dx*dy
						if power > 0 {
							continue
						}
						gauss := math32.Exp(power)
						alpha := opacity[j] * gauss
						if alpha > alphaMax {
							alpha = alphaMax
						}
						if alpha < alphaMin {
							continue
						}
						contribs = append(contribs, blendContrib{j: j, dx: dx, dy: dy, gauss: gauss, alpha: alpha, T: T})
						T *= 1 - alpha
					}

					pix := y*cam.W + x
					var dImg [Channels]Real
					for c := 0; c < Channels; c++ {
						dImg[c] = dImage[c*hw+pix]
					}
					// Suffix accumulator: everything composited after the
					// current splat, background included.
					var suffix [Channels]Real
					for c := 0; c < Channels; c++ {
						suffix[c] = bg * T
					}
					for i := len(contribs) - 1; i >= 0; i-- {
						cb := contribs[i]
						j := cb.j
						var dAlpha Real
						var dCol [Channels]Real
						for c := 0; c < Channels; c++ {
							col := color[Channels*j+c]
							dCol[c] = dImg[c] * cb.alpha * cb.T
							// Later contributions all carry a (1-alpha) factor.
							dAlpha += dImg[c] * (col*cb.T - suffix[c]/(1-cb.alpha))
							suffix[c] += col * cb.alpha * cb.T
						}
						var dOp, dA, dB, dC, dU, dV Real
						if cb.alpha < alphaMax {
							// Clamped alphas block gradient flow to opacity
							// and footprint, matching the forward clamp.
							dOp = dAlpha * cb.gauss
							dPower := dAlpha * cb.alpha
							dA = dPower * (-0.5 * cb.dx * cb.dx)
							dB = dPower * (-cb.dx * cb.dy)
							dC = dPower * (-0.5 * cb.dy * cb.dy)
							A, B := conic[3*j], conic[3*j+1]
							C := conic[3*j+2]
							ddx := dPower * (-(A*cb.dx + B*cb.dy))
							ddy := dPower * (-(C*cb.dy + B*cb.dx))
							// dx = pixel - u, so ∂dx/∂u = -1.
							dU = -ddx
							dV = -ddy
						}
						if UseLocks {
							locks.lock(j)
						}
						dUV[2*j] += dU
						dUV[2*j+1] += dV
						dConic[3*j] += dA
						dConic[3*j+1] += dB
						dConic[3*j+2] += dC
						dOpacity[j] += dOp
						for c := 0; c < Channels; c++ {
							dColor[Channels*j+c] += dCol[c]
						}
						if UseLocks {
							locks.unlock(j)
						}
					}
				}
			}
			return nil
		})
	}
	return g.Wait()
}
