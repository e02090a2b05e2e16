package splatfit

import "github.com/chewxy/math32"

// Adam keeps per-parameter first and second moment estimates and applies
// the bias-corrected update rule. One instance lives per PointModel and
// covers exactly the model's raw parameter set.
type Adam struct {
	lr    Real
	beta1 Real
	beta2 Real
	eps   Real
	t     int
	m     [][]Real
	v     [][]Real
}

// NewAdam builds an optimizer over the given parameter set with the usual
// defaults (beta1=0.9, beta2=0.999, eps=1e-8).
func NewAdam(lr Real, params []*Param) *Adam {
	o := &Adam{
		lr:    lr,
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-8,
		m:     make([][]Real, len(params)),
		v:     make([][]Real, len(params)),
	}
	for i, p := range params {
		o.m[i] = make([]Real, len(p.Data))
		o.v[i] = make([]Real, len(p.Data))
	}
	return o
}

// Step applies one update from the gradients currently on the parameters.
// Gradients are left untouched; the caller clears them.
func (o *Adam) Step(params []*Param) {
	o.t++
	c1 := 1 - math32.Pow(o.beta1, Real(o.t))
	c2 := 1 - math32.Pow(o.beta2, Real(o.t))
	for i, p := range params {
		m, v := o.m[i], o.v[i]
		for j, g := range p.Grad {
			m[j] = o.beta1*m[j] + (1-o.beta1)*g
			v[j] = o.beta2*v[j] + (1-o.beta2)*g*g
			mHat := m[j] / c1
			vHat := v[j] / c2
			p.Data[j] -= o.lr * mHat / (math32.Sqrt(vHat) + o.eps)
		}
	}
}
