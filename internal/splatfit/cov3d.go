package splatfit

// Stage 2: world-space covariance Σ = R·S·Sᵀ·Rᵀ from activated scales and
// unit quaternions, packed symmetric as (c00,c01,c02,c11,c12,c22).
// Entries for non-visible points are left unspecified (zero here) and must
// never be read downstream.

// quatToRot builds the rotation matrix of a unit quaternion (w,x,y,z).
func quatToRot(w, x, y, z Real) Mat3 {
	return Mat3{M: [3][3]Real{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}}
}

func (cp *CPUPipeline) Cov3D(scale, rot []Real, visible []bool) ([]Real, error) {
	const stage = "covariance3d"
	if len(scale)%3 != 0 || len(rot)%4 != 0 {
		return nil, stageErrf(stage, "scale length %d or rotation length %d not divisible by field width", len(scale), len(rot))
	}
	n := len(scale) / 3
	if len(rot)/4 != n || len(visible) != n {
		return nil, stageErrf(stage, "field sizes disagree: scale=%d rotation=%d visible=%d", n, len(rot)/4, len(visible))
	}
	cov := make([]Real, 6*n)
	for i := 0; i < n; i++ {
		if !visible[i] {
			continue
		}
		sx, sy, sz := scale[3*i], scale[3*i+1], scale[3*i+2]
		R := quatToRot(rot[4*i], rot[4*i+1], rot[4*i+2], rot[4*i+3])
		// M = R·S, Σ = M·Mᵀ
		var M Mat3
		for r := 0; r < 3; r++ {
			M.M[r][0] = R.M[r][0] * sx
			M.M[r][1] = R.M[r][1] * sy
			M.M[r][2] = R.M[r][2] * sz
		}
		var sig [3][3]Real
		for r := 0; r < 3; r++ {
			for c := r; c < 3; c++ {
				sig[r][c] = M.M[r][0]*M.M[c][0] + M.M[r][1]*M.M[c][1] + M.M[r][2]*M.M[c][2]
			}
		}
		cov[6*i+0] = sig[0][0]
		cov[6*i+1] = sig[0][1]
		cov[6*i+2] = sig[0][2]
		cov[6*i+3] = sig[1][1]
		cov[6*i+4] = sig[1][2]
		cov[6*i+5] = sig[2][2]
	}
	return cov, nil
}

func (cp *CPUPipeline) Cov3DBackward(scale, rot []Real, visible []bool, dCov []Real, dScale, dRot []Real) error {
	const stage = "covariance3d"
	n := len(scale) / 3
	if len(dCov) != 6*n || len(dScale) != 3*n || len(dRot) != 4*n || len(visible) != n {
		return stageErrf(stage, "backward shape mismatch for n=%d", n)
	}
	for i := 0; i < n; i++ {
		if !visible[i] {
			continue
		}
		sx, sy, sz := scale[3*i], scale[3*i+1], scale[3*i+2]
		w, x, y, z := rot[4*i], rot[4*i+1], rot[4*i+2], rot[4*i+3]
		R := quatToRot(w, x, y, z)
		s := [3]Real{sx, sy, sz}
		var M Mat3
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				M.M[r][c] = R.M[r][c] * s[c]
			}
		}
		// Unpack the packed covariance gradient into a symmetric matrix:
		// each stored off-diagonal scalar backs two entries of Σ.
		g01 := dCov[6*i+1] / 2
		g02 := dCov[6*i+2] / 2
		g12 := dCov[6*i+4] / 2
		G := Mat3{M: [3][3]Real{
			{dCov[6*i+0], g01, g02},
			{g01, dCov[6*i+3], g12},
			{g02, g12, dCov[6*i+5]},
		}}
		// Σ = M·Mᵀ with G symmetric ⇒ dL/dM = 2·G·M.
		var dM Mat3
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				dM.M[r][c] = 2 * (G.M[r][0]*M.M[0][c] + G.M[r][1]*M.M[1][c] + G.M[r][2]*M.M[2][c])
			}
		}
		// M = R·S ⇒ dR = dM·S, ds_c = Σ_r dM[r][c]·R[r][c].
		var dR Mat3
		for r := 0; r < 3; r++ {
			for c := 0; c < 3; c++ {
				dR.M[r][c] = dM.M[r][c] * s[c]
				dScale[3*i+c] += dM.M[r][c] * R.M[r][c]
			}
		}
		// Chain onto the unit quaternion via ∂R/∂(w,x,y,z).
		D := dR.M
		dRot[4*i+0] += 2 * (-D[0][1]*z + D[0][2]*y + D[1][0]*z - D[1][2]*x - D[2][0]*y + D[2][1]*x)
		dRot[4*i+1] += 2 * (D[0][1]*y + D[0][2]*z + D[1][0]*y - 2*D[1][1]*x - D[1][2]*w + D[2][0]*z + D[2][1]*w - 2*D[2][2]*x)
		dRot[4*i+2] += 2 * (-2*D[0][0]*y + D[0][1]*x + D[0][2]*w + D[1][0]*x + D[1][2]*z - D[2][0]*w + D[2][1]*z - 2*D[2][2]*y)
		dRot[4*i+3] += 2 * (-2*D[0][0]*z - D[0][1]*w + D[0][2]*x + D[1][0]*w - 2*D[1][1]*z + D[1][2]*y + D[2][0]*x + D[2][1]*y - 2*D[2][2]*z)
	}
	return nil
}
