package splatfit

import (
	"fmt"
	"math/rand"
)

// Attribute enumerates the trainable fields of a PointModel. Each kind is
// paired at definition time with its activation; there is no dynamic
// dictionary dispatch and an unknown name is a checked, named error.
type Attribute int

const (
	AttrPosition Attribute = iota
	AttrScale
	AttrRotation
	AttrOpacity
	AttrColor
	numAttributes
)

var attributeNames = [numAttributes]string{
	AttrPosition: "position",
	AttrScale:    "scale",
	AttrRotation: "rotation",
	AttrOpacity:  "opacity",
	AttrColor:    "color",
}

// activations pairs each attribute with its domain-restricting transform.
// A nil entry means the raw values are already in-domain (identity).
var activations = [numAttributes]activation{
	AttrPosition: nil,
	AttrScale:    expAct{},
	AttrRotation: normalizeAct{},
	AttrOpacity:  sigmoidAct{},
	AttrColor:    sigmoidAct{},
}

func (a Attribute) String() string {
	if a < 0 || a >= numAttributes {
		return fmt.Sprintf("Attribute(%d)", int(a))
	}
	return attributeNames[a]
}

// ParseAttribute resolves an attribute name. Unknown names yield an
// UnknownAttributeError carrying the offending name.
func ParseAttribute(name string) (Attribute, error) {
	for a, n := range attributeNames {
		if n == name {
			return Attribute(a), nil
		}
	}
	return 0, &UnknownAttributeError{Name: name}
}

// Param is one raw trainable tensor, stored flat row-major, plus its
// gradient accumulator. The raw data is the only state the optimizer
// mutates.
type Param struct {
	Data []Real
	Grad []Real
	Cols int
}

func newParam(n, cols int, lo, hi Real, rng *rand.Rand) *Param {
	p := &Param{
		Data: make([]Real, n*cols),
		Grad: make([]Real, n*cols),
		Cols: cols,
	}
	span := hi - lo
	for i := range p.Data {
		p.Data[i] = lo + Real(rng.Float64())*span
	}
	return p
}

// Rows returns the number of primitives the parameter covers.
func (p *Param) Rows() int { return len(p.Data) / p.Cols }

// ZeroGrad clears the gradient accumulator.
func (p *Param) ZeroGrad() {
	for i := range p.Grad {
		p.Grad[i] = 0
	}
}

// PointModel owns the raw trainable attributes of N Gaussian primitives
// and the Adam optimizer bound to exactly that parameter set.
type PointModel struct {
	Position *Param // [N,3] world-space means
	Scale    *Param // [N,3] log-scales
	Rotation *Param // [N,4] unnormalized quaternions (w,x,y,z)
	Opacity  *Param // [N,1] opacity logits
	Color    *Param // [N,3] color logits

	n   int
	opt *Adam
}

// NewPointModel allocates the five raw fields with independent uniform
// random values (position in [-1,1), the rest in [0,1) pre-activation) and
// binds an Adam optimizer over exactly these parameters. n = 0 is legal
// and renders pure background.
func NewPointModel(n int, lr Real, rng *rand.Rand) (*PointModel, error) {
	if n < 0 {
		return nil, fmt.Errorf("number of points must be non-negative, got %d", n)
	}
	if lr <= 0 || !isFinite(lr) {
		return nil, fmt.Errorf("learning rate must be positive and finite, got %f", lr)
	}
	m := &PointModel{
		Position: newParam(n, 3, -1, 1, rng),
		Scale:    newParam(n, 3, 0, 1, rng),
		Rotation: newParam(n, 4, 0, 1, rng),
		Opacity:  newParam(n, 1, 0, 1, rng),
		Color:    newParam(n, 3, 0, 1, rng),
		n:        n,
	}
	m.opt = NewAdam(lr, m.Params())
	DebugLog("Created point model n=%d lr=%f", n, lr)
	return m, nil
}

// Len returns the number of primitives.
func (m *PointModel) Len() int { return m.n }

// Params returns the raw parameter set in attribute order.
func (m *PointModel) Params() []*Param {
	return []*Param{m.Position, m.Scale, m.Rotation, m.Opacity, m.Color}
}

func (m *PointModel) param(a Attribute) *Param {
	switch a {
	case AttrPosition:
		return m.Position
	case AttrScale:
		return m.Scale
	case AttrRotation:
		return m.Rotation
	case AttrOpacity:
		return m.Opacity
	case AttrColor:
		return m.Color
	}
	return nil
}

// Attribute returns a freshly activated copy of the raw field, or the raw
// values unchanged when the attribute has no activation. The raw storage
// is never modified.
func (m *PointModel) Attribute(a Attribute) ([]Real, error) {
	p := m.param(a)
	if p == nil {
		return nil, &UnknownAttributeError{Name: a.String()}
	}
	out := make([]Real, len(p.Data))
	if act := activations[a]; act != nil {
		act.Forward(p.Data, out, p.Cols)
	} else {
		copy(out, p.Data)
	}
	return out, nil
}

// AttributeByName is Attribute keyed by name; unknown names surface an
// UnknownAttributeError, never a default.
func (m *PointModel) AttributeByName(name string) ([]Real, error) {
	a, err := ParseAttribute(name)
	if err != nil {
		return nil, err
	}
	return m.Attribute(a)
}

// AccumulateGrad chains a gradient on the activated values of one
// attribute onto the raw gradient accumulator.
func (m *PointModel) AccumulateGrad(a Attribute, dAct []Real) error {
	p := m.param(a)
	if p == nil {
		return &UnknownAttributeError{Name: a.String()}
	}
	if len(dAct) != len(p.Data) {
		return fmt.Errorf("gradient for %s has %d values, want %d", a, len(dAct), len(p.Data))
	}
	act := activations[a]
	if act == nil {
		for i, g := range dAct {
			p.Grad[i] += g
		}
		return nil
	}
	activated := make([]Real, len(p.Data))
	act.Forward(p.Data, activated, p.Cols)
	act.Backward(p.Data, activated, dAct, p.Grad, p.Cols)
	return nil
}

// Step applies exactly one optimizer update using the gradients
// accumulated on the raw fields, then clears them. Call once per training
// iteration, after the backward pass and before the next forward pass.
func (m *PointModel) Step() {
	m.opt.Step(m.Params())
	for _, p := range m.Params() {
		p.ZeroGrad()
	}
}
