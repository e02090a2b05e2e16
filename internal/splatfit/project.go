package splatfit

// Stage 1: perspective projection of world-space means.
//
// Camera-space position t comes from the row-vector view transform; points
// with t.Z < nearPlane get the depth==0 sentinel and are excluded from
// every later stage. A point exactly on the camera plane is treated the
// same as one behind it. The projection matrix participates through a
// homogeneous-w validity test; screen coordinates come straight from the
// intrinsics.
func (cp *CPUPipeline) Project(pos []Real, view, proj Mat4, cam Camera) ([]Real, []Real, error) {
	const stage = "project"
	if len(pos)%3 != 0 {
		return nil, nil, stageErrf(stage, "positions length %d is not a multiple of 3", len(pos))
	}
	if err := cam.Validate(); err != nil {
		return nil, nil, stageErrf(stage, "%v", err)
	}
	n := len(pos) / 3
	uv := make([]Real, 2*n)
	depth := make([]Real, n)
	for i := 0; i < n; i++ {
		p := Vector3{pos[3*i], pos[3*i+1], pos[3*i+2]}
		t := view.MulPoint(p)
		if t.Z < nearPlane {
			continue // depth stays 0: behind-camera sentinel
		}
		if proj.MulPointW(p) == 0 {
			continue // degenerate homogeneous coordinate
		}
		u := cam.Fx*t.X/t.Z + cam.Cx
		v := cam.Fy*t.Y/t.Z + cam.Cy
		if !isFinite(u) || !isFinite(v) {
			return nil, nil, stageErrf(stage, "non-finite screen coordinates for point %d", i)
		}
		uv[2*i] = u
		uv[2*i+1] = v
		depth[i] = t.Z
	}
	return uv, depth, nil
}

func (cp *CPUPipeline) ProjectBackward(pos []Real, view Mat4, cam Camera, depth, dUV []Real, dPos []Real) error {
	const stage = "project"
	n := len(pos) / 3
	if len(depth) != n || len(dUV) != 2*n || len(dPos) != 3*n {
		return stageErrf(stage, "backward shape mismatch: n=%d depth=%d dUV=%d dPos=%d", n, len(depth), len(dUV), len(dPos))
	}
	for i := 0; i < n; i++ {
		if depth[i] == 0 {
			continue
		}
		p := Vector3{pos[3*i], pos[3*i+1], pos[3*i+2]}
		t := view.MulPoint(p)
		du, dv := dUV[2*i], dUV[2*i+1]
		// u = fx·tx/tz + cx, v = fy·ty/tz + cy
		dtx := du * cam.Fx / t.Z
		dty := dv * cam.Fy / t.Z
		dtz := -(du*cam.Fx*t.X + dv*cam.Fy*t.Y) / (t.Z * t.Z)
		// t_k = Σ_j p_j·M[j][k] + M[3][k], so ∂t_k/∂p_j = M[j][k].
		for j := 0; j < 3; j++ {
			dPos[3*i+j] += view.M[j][0]*dtx + view.M[j][1]*dty + view.M[j][2]*dtz
		}
	}
	return nil
}
