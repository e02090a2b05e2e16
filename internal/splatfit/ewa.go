package splatfit

import "github.com/chewxy/math32"

// Stage 3: EWA projection of world-space covariances into screen space.
// For each visible point the 3D covariance is pushed through the local
// affine approximation T = J·R of the perspective projection, a low-pass
// term keeps the 2D footprint at least a fraction of a pixel wide, and the
// result is inverted into conic form. radius bounds the footprint at 3σ;
// tiles counts the overlapped screen tiles for the sorting stage.

// tileBounds returns the half-open tile rectangle covered by a footprint.
func tileBounds(u, v Real, r int32, cam Camera) (x0, x1, y0, y1 int) {
	x0 = imax(0, int(math32.Floor((u-Real(r))/TileSize)))
	x1 = imin(cam.TilesX(), int(math32.Floor((u+Real(r))/TileSize))+1)
	y0 = imax(0, int(math32.Floor((v-Real(r))/TileSize)))
	y1 = imin(cam.TilesY(), int(math32.Floor((v+Real(r))/TileSize))+1)
	if x0 >= x1 || y0 >= y1 {
		return 0, 0, 0, 0
	}
	return x0, x1, y0, y1
}

// cov2d projects one packed 3D covariance into the three unique entries of
// the screen-space covariance. T is the 2×3 projection approximation.
func cov2dOf(cov []Real, T *[2][3]Real) (a, b, c Real) {
	s := [3][3]Real{
		{cov[0], cov[1], cov[2]},
		{cov[1], cov[3], cov[4]},
		{cov[2], cov[4], cov[5]},
	}
	var ts [2][3]Real
	for r := 0; r < 2; r++ {
		for cc := 0; cc < 3; cc++ {
			ts[r][cc] = T[r][0]*s[0][cc] + T[r][1]*s[1][cc] + T[r][2]*s[2][cc]
		}
	}
	a = ts[0][0]*T[0][0] + ts[0][1]*T[0][1] + ts[0][2]*T[0][2] + covBlur
	b = ts[0][0]*T[1][0] + ts[0][1]*T[1][1] + ts[0][2]*T[1][2]
	c = ts[1][0]*T[1][0] + ts[1][1]*T[1][1] + ts[1][2]*T[1][2] + covBlur
	return a, b, c
}

// projApprox builds the 2×3 matrix T = J·R for one camera-space position.
func projApprox(t Vector3, R Mat3, cam Camera) [2][3]Real {
	j00 := cam.Fx / t.Z
	j02 := -cam.Fx * t.X / (t.Z * t.Z)
	j11 := cam.Fy / t.Z
	j12 := -cam.Fy * t.Y / (t.Z * t.Z)
	var T [2][3]Real
	for c := 0; c < 3; c++ {
		T[0][c] = j00*R.M[0][c] + j02*R.M[2][c]
		T[1][c] = j11*R.M[1][c] + j12*R.M[2][c]
	}
	return T
}

func (cp *CPUPipeline) EWAProject(pos, cov3d []Real, view Mat4, cam Camera, uv []Real, visible []bool) ([]Real, []int32, []int32, error) {
	const stage = "splat"
	n := len(pos) / 3
	if len(cov3d) != 6*n || len(uv) != 2*n || len(visible) != n {
		return nil, nil, nil, stageErrf(stage, "field sizes disagree for n=%d: cov3d=%d uv=%d visible=%d", n, len(cov3d)/6, len(uv)/2, len(visible))
	}
	if err := cam.Validate(); err != nil {
		return nil, nil, nil, stageErrf(stage, "%v", err)
	}
	R := rotation3(view)
	conic := make([]Real, 3*n)
	radius := make([]int32, n)
	tiles := make([]int32, n)
	for i := 0; i < n; i++ {
		if !visible[i] {
			continue
		}
		p := Vector3{pos[3*i], pos[3*i+1], pos[3*i+2]}
		t := view.MulPoint(p)
		T := projApprox(t, R, cam)
		a, b, c := cov2dOf(cov3d[6*i:6*i+6], &T)
		det := a*c - b*b
		if det <= 0 || !isFinite(det) {
			continue // degenerate footprint, never blended
		}
		conic[3*i+0] = c / det
		conic[3*i+1] = -b / det
		conic[3*i+2] = a / det
		mid := 0.5 * (a + c)
		disc := mid*mid - det
		if disc < eigenFloor {
			disc = eigenFloor
		}
		lambda := mid + math32.Sqrt(disc)
		r := int32(math32.Ceil(radiusSigma * math32.Sqrt(lambda)))
		if r <= 0 {
			continue
		}
		x0, x1, y0, y1 := tileBounds(uv[2*i], uv[2*i+1], r, cam)
		cnt := int32((x1 - x0) * (y1 - y0))
		if cnt == 0 {
			continue
		}
		radius[i] = r
		tiles[i] = cnt
	}
	return conic, radius, tiles, nil
}

func (cp *CPUPipeline) EWAProjectBackward(pos, cov3d []Real, view Mat4, cam Camera, depth []Real, dConic []Real, dPos, dCov []Real) error {
	const stage = "splat"
	n := len(pos) / 3
	if len(cov3d) != 6*n || len(depth) != n || len(dConic) != 3*n || len(dPos) != 3*n || len(dCov) != 6*n {
		return stageErrf(stage, "backward shape mismatch for n=%d", n)
	}
	R := rotation3(view)
	for i := 0; i < n; i++ {
		if depth[i] == 0 {
			continue
		}
		dA, dB, dC := dConic[3*i], dConic[3*i+1], dConic[3*i+2]
		if dA == 0 && dB == 0 && dC == 0 {
			continue
		}
		p := Vector3{pos[3*i], pos[3*i+1], pos[3*i+2]}
		t := view.MulPoint(p)
		T := projApprox(t, R, cam)
		a, b, c := cov2dOf(cov3d[6*i:6*i+6], &T)
		det := a*c - b*b
		if det <= 0 || !isFinite(det) {
			continue // matching forward: no conic, no gradient
		}
		inv2 := 1 / (det * det)
		// conic = (c,-b,a)/det; quotient-rule partials w.r.t. (a,b,c).
		da := (dA*(-c*c) + dB*(b*c) + dC*(-b*b)) * inv2
		db := (dA*(2*b*c) - dB*(det+2*b*b) + dC*(2*a*b)) * inv2
		dc := (dA*(-b*b) + dB*(a*b) + dC*(-a*a)) * inv2

		s := [3][3]Real{
			{cov3d[6*i+0], cov3d[6*i+1], cov3d[6*i+2]},
			{cov3d[6*i+1], cov3d[6*i+3], cov3d[6*i+4]},
			{cov3d[6*i+2], cov3d[6*i+4], cov3d[6*i+5]},
		}
		var ts [2][3]Real
		for r := 0; r < 2; r++ {
			for cc := 0; cc < 3; cc++ {
				ts[r][cc] = T[r][0]*s[0][cc] + T[r][1]*s[1][cc] + T[r][2]*s[2][cc]
			}
		}
		// cov2d = T·Σ·Tᵀ with symmetric gradient G2 = [[da,db/2],[db/2,dc]]:
		// dT = 2·G2·(T·Σ), dΣ = Tᵀ·G2·T.
		var dT [2][3]Real
		for cc := 0; cc < 3; cc++ {
			dT[0][cc] = 2*da*ts[0][cc] + db*ts[1][cc]
			dT[1][cc] = 2*dc*ts[1][cc] + db*ts[0][cc]
		}
		g2 := [2][2]Real{{da, db / 2}, {db / 2, dc}}
		var dS [3][3]Real
		for m := 0; m < 3; m++ {
			for nn := 0; nn < 3; nn++ {
				var sum Real
				for r := 0; r < 2; r++ {
					for ss := 0; ss < 2; ss++ {
						sum += T[r][m] * g2[r][ss] * T[ss][nn]
					}
				}
				dS[m][nn] = sum
			}
		}
		dCov[6*i+0] += dS[0][0]
		dCov[6*i+1] += dS[0][1] + dS[1][0]
		dCov[6*i+2] += dS[0][2] + dS[2][0]
		dCov[6*i+3] += dS[1][1]
		dCov[6*i+4] += dS[1][2] + dS[2][1]
		dCov[6*i+5] += dS[2][2]

		// T = J·R ⇒ dJ = dT·Rᵀ; only the four t-dependent entries matter.
		dj00 := dT[0][0]*R.M[0][0] + dT[0][1]*R.M[0][1] + dT[0][2]*R.M[0][2]
		dj02 := dT[0][0]*R.M[2][0] + dT[0][1]*R.M[2][1] + dT[0][2]*R.M[2][2]
		dj11 := dT[1][0]*R.M[1][0] + dT[1][1]*R.M[1][1] + dT[1][2]*R.M[1][2]
		dj12 := dT[1][0]*R.M[2][0] + dT[1][1]*R.M[2][1] + dT[1][2]*R.M[2][2]
		tz2 := t.Z * t.Z
		dtx := dj02 * (-cam.Fx / tz2)
		dty := dj12 * (-cam.Fy / tz2)
		dtz := dj00*(-cam.Fx/tz2) + dj11*(-cam.Fy/tz2) +
			dj02*(2*cam.Fx*t.X/(tz2*t.Z)) + dj12*(2*cam.Fy*t.Y/(tz2*t.Z))
		for j := 0; j < 3; j++ {
			dPos[3*i+j] += view.M[j][0]*dtx + view.M[j][1]*dty + view.M[j][2]*dtz
		}
	}
	return nil
}
