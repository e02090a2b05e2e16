package splatfit

import "github.com/chewxy/math32"

// An activation maps a raw attribute tensor into its valid domain on every
// read. Activations are pure: they never cache and never write back into
// the raw storage. Backward chains the upstream gradient on the activated
// values onto the raw gradient accumulator.
type activation interface {
	Name() string
	Forward(raw, out []Real, cols int)
	Backward(raw, act, dAct, dRaw []Real, cols int)
}

// expAct maps ℝ to (0,∞). Used for scales.
type expAct struct{}

func (expAct) Name() string { return "exp" }

func (expAct) Forward(raw, out []Real, cols int) {
	for i, v := range raw {
		out[i] = math32.Exp(v)
	}
}

func (expAct) Backward(raw, act, dAct, dRaw []Real, cols int) {
	// d exp(x)/dx = exp(x), already available as the activated value.
	for i := range raw {
		dRaw[i] += dAct[i] * act[i]
	}
}

// sigmoidAct maps ℝ to (0,1). Used for opacity and color.
type sigmoidAct struct{}

func (sigmoidAct) Name() string { return "sigmoid" }

func (sigmoidAct) Forward(raw, out []Real, cols int) {
	for i, v := range raw {
		out[i] = 1 / (1 + math32.Exp(-v))
	}
}

func (sigmoidAct) Backward(raw, act, dAct, dRaw []Real, cols int) {
	for i := range raw {
		s := act[i]
		dRaw[i] += dAct[i] * s * (1 - s)
	}
}

// normalizeAct maps each row to unit L2 norm. Used for quaternions.
type normalizeAct struct{}

func (normalizeAct) Name() string { return "normalize" }

func (normalizeAct) Forward(raw, out []Real, cols int) {
	for r := 0; r < len(raw); r += cols {
		var l2 Real
		for c := 0; c < cols; c++ {
			l2 += raw[r+c] * raw[r+c]
		}
		l := math32.Sqrt(l2)
		if l == 0 {
			// zero rows pass through, matching Vector3.Norm
			copy(out[r:r+cols], raw[r:r+cols])
			continue
		}
		inv := 1 / l
		for c := 0; c < cols; c++ {
			out[r+c] = raw[r+c] * inv
		}
	}
}

func (normalizeAct) Backward(raw, act, dAct, dRaw []Real, cols int) {
	// For q = v/|v|: dv = (dq - q·(q⋅dq)) / |v|.
	for r := 0; r < len(raw); r += cols {
		var l2 Real
		for c := 0; c < cols; c++ {
			l2 += raw[r+c] * raw[r+c]
		}
		l := math32.Sqrt(l2)
		if l == 0 {
			for c := 0; c < cols; c++ {
				dRaw[r+c] += dAct[r+c]
			}
			continue
		}
		var dot Real
		for c := 0; c < cols; c++ {
			dot += act[r+c] * dAct[r+c]
		}
		inv := 1 / l
		for c := 0; c < cols; c++ {
			dRaw[r+c] += (dAct[r+c] - act[r+c]*dot) * inv
		}
	}
}
