package splatfit

// 4×4 matrix (row-major). View and projection matrices use the row-vector
// convention: a point transforms as [p 1]·M, so the translation lives in
// row 3.
type Mat4 struct {
	M [4][4]Real
}

func I4() Mat4 {
	return Mat4{M: [4][4]Real{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}}
}

func (A Mat4) Mul(B Mat4) Mat4 {
	var R Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			sum := Real(0)
			for k := 0; k < 4; k++ {
				sum += A.M[r][k] * B.M[k][c]
			}
			R.M[r][c] = sum
		}
	}
	return R
}

func (A Mat4) Transpose() Mat4 {
	var R Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			R.M[r][c] = A.M[c][r]
		}
	}
	return R
}

// MulPoint applies the affine transform to a point: [p 1]·M, dropping the
// homogeneous coordinate.
func (A Mat4) MulPoint(p Vector3) Vector3 {
	return Vector3{
		p.X*A.M[0][0] + p.Y*A.M[1][0] + p.Z*A.M[2][0] + A.M[3][0],
		p.X*A.M[0][1] + p.Y*A.M[1][1] + p.Z*A.M[2][1] + A.M[3][1],
		p.X*A.M[0][2] + p.Y*A.M[1][2] + p.Z*A.M[2][2] + A.M[3][2],
	}
}

// MulPointW returns the homogeneous w coordinate of [p 1]·M.
func (A Mat4) MulPointW(p Vector3) Real {
	return p.X*A.M[0][3] + p.Y*A.M[1][3] + p.Z*A.M[2][3] + A.M[3][3]
}

// 3×3 matrix (row-major), used for rotations and covariances.
type Mat3 struct {
	M [3][3]Real
}

func I3() Mat3 {
	return Mat3{M: [3][3]Real{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}}
}

func (A Mat3) Mul(B Mat3) Mat3 {
	var R Mat3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			sum := Real(0)
			for k := 0; k < 3; k++ {
				sum += A.M[r][k] * B.M[k][c]
			}
			R.M[r][c] = sum
		}
	}
	return R
}

func (A Mat3) Transpose() Mat3 {
	var R Mat3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			R.M[r][c] = A.M[c][r]
		}
	}
	return R
}

func (A Mat3) MulVec(v Vector3) Vector3 {
	return Vector3{
		A.M[0][0]*v.X + A.M[0][1]*v.Y + A.M[0][2]*v.Z,
		A.M[1][0]*v.X + A.M[1][1]*v.Y + A.M[1][2]*v.Z,
		A.M[2][0]*v.X + A.M[2][1]*v.Y + A.M[2][2]*v.Z,
	}
}

// rotation3 extracts the camera rotation from a row-vector-convention view
// matrix in column-vector form, so that t = R·p + translation.
func rotation3(view Mat4) Mat3 {
	var R Mat3
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			R.M[r][c] = view.M[c][r]
		}
	}
	return R
}
