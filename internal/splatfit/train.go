package splatfit

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Trainer drives the per-iteration contract: activated attributes through
// the five pipeline stages in order, L1 loss, one reverse pass, one
// optimizer step, diagnostics, periodic snapshots. Any stage failure
// aborts the run; there is no retry and a run is not resumable.
type Trainer struct {
	Model      *PointModel
	Pipe       Pipeline
	Cam        Camera
	View, Proj Mat4
	Target     []Real // [C,H,W] in [0,1], immutable
	Background Real

	MaxIter          int
	SnapshotInterval int
	Recorder         SnapshotRecorder // optional

	losses []float64 // per-iteration loss history
}

// SnapshotRecorder receives periodic channel-last renders. Both the GIF
// and the 16-bit PNG recorders satisfy it.
type SnapshotRecorder interface {
	Add(frame []Real) error
	Len() int
}

// IterStats is the per-iteration diagnostic record.
type IterStats struct {
	Iter    int
	Loss    float64
	Visible int
}

func (tr *Trainer) validate() error {
	if tr.Model == nil || tr.Pipe == nil {
		return fmt.Errorf("trainer needs a model and a pipeline")
	}
	if err := tr.Cam.Validate(); err != nil {
		return err
	}
	if len(tr.Target) != Channels*tr.Cam.Pixels() {
		return fmt.Errorf("ground truth has %d values, want %d for %dx%d", len(tr.Target), Channels*tr.Cam.Pixels(), tr.Cam.W, tr.Cam.H)
	}
	if tr.MaxIter <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d", tr.MaxIter)
	}
	if tr.SnapshotInterval <= 0 {
		tr.SnapshotInterval = SnapshotInterval
	}
	return nil
}

// forwardBackward runs stages 1-5, the loss, and the reverse pass, leaving
// gradients accumulated on the model's raw parameters. It returns the
// rendered image and the iteration diagnostics. The optimizer is not
// stepped; Run does that so readers and the writer never overlap.
func (tr *Trainer) forwardBackward(iter int) ([]Real, IterStats, error) {
	stats := IterStats{Iter: iter}
	m := tr.Model

	position, err := m.Attribute(AttrPosition)
	if err != nil {
		return nil, stats, err
	}
	scale, err := m.Attribute(AttrScale)
	if err != nil {
		return nil, stats, err
	}
	rotation, err := m.Attribute(AttrRotation)
	if err != nil {
		return nil, stats, err
	}
	opacity, err := m.Attribute(AttrOpacity)
	if err != nil {
		return nil, stats, err
	}
	color, err := m.Attribute(AttrColor)
	if err != nil {
		return nil, stats, err
	}

	// Stages 1-5, strictly in order: each consumes the previous outputs.
	uv, depth, err := tr.Pipe.Project(position, tr.View, tr.Proj, tr.Cam)
	if err != nil {
		return nil, stats, err
	}
	visible := Visibility(depth)
	stats.Visible = CountVisible(depth)

	cov3d, err := tr.Pipe.Cov3D(scale, rotation, visible)
	if err != nil {
		return nil, stats, err
	}
	conic, radius, tiles, err := tr.Pipe.EWAProject(position, cov3d, tr.View, tr.Cam, uv, visible)
	if err != nil {
		return nil, stats, err
	}
	order, ranges, err := tr.Pipe.SortSplats(uv, depth, tr.Cam, radius, tiles)
	if err != nil {
		return nil, stats, err
	}
	img, err := tr.Pipe.AlphaBlend(uv, conic, opacity, color, order, ranges, tr.Background, tr.Cam)
	if err != nil {
		return nil, stats, err
	}

	stats.Loss, err = L1Loss(img, tr.Target)
	if err != nil {
		return nil, stats, err
	}

	// One reverse pass over all five stages, then chain activations onto
	// the raw parameters.
	n := m.Len()
	dImage := make([]Real, len(img))
	if err := L1LossBackward(img, tr.Target, dImage); err != nil {
		return nil, stats, err
	}
	dUV := make([]Real, 2*n)
	dConic := make([]Real, 3*n)
	dOpacity := make([]Real, n)
	dColor := make([]Real, Channels*n)
	if err := tr.Pipe.AlphaBlendBackward(uv, conic, opacity, color, order, ranges, tr.Background, tr.Cam, dImage, dUV, dConic, dOpacity, dColor); err != nil {
		return nil, stats, err
	}
	dPos := make([]Real, 3*n)
	dCov := make([]Real, 6*n)
	if err := tr.Pipe.EWAProjectBackward(position, cov3d, tr.View, tr.Cam, depth, dConic, dPos, dCov); err != nil {
		return nil, stats, err
	}
	dScale := make([]Real, 3*n)
	dRot := make([]Real, 4*n)
	if err := tr.Pipe.Cov3DBackward(scale, rotation, visible, dCov, dScale, dRot); err != nil {
		return nil, stats, err
	}
	if err := tr.Pipe.ProjectBackward(position, tr.View, tr.Cam, depth, dUV, dPos); err != nil {
		return nil, stats, err
	}

	if err := m.AccumulateGrad(AttrPosition, dPos); err != nil {
		return nil, stats, err
	}
	if err := m.AccumulateGrad(AttrScale, dScale); err != nil {
		return nil, stats, err
	}
	if err := m.AccumulateGrad(AttrRotation, dRot); err != nil {
		return nil, stats, err
	}
	if err := m.AccumulateGrad(AttrOpacity, dOpacity); err != nil {
		return nil, stats, err
	}
	if err := m.AccumulateGrad(AttrColor, dColor); err != nil {
		return nil, stats, err
	}
	return img, stats, nil
}

// RunIteration performs one complete training iteration: forward, loss,
// backward, optimizer step, diagnostics, optional snapshot.
func (tr *Trainer) RunIteration(iter int) (IterStats, error) {
	img, stats, err := tr.forwardBackward(iter)
	if err != nil {
		return stats, err
	}
	tr.Model.Step()
	tr.losses = append(tr.losses, stats.Loss)

	if tr.Recorder != nil && iter%tr.SnapshotInterval == 0 {
		if err := tr.Recorder.Add(snapshot(img, tr.Cam)); err != nil {
			return stats, err
		}
	}
	return stats, nil
}

// Run executes the configured number of iterations. The loop has a single
// state, repeated MaxIter times; the first error aborts everything.
func (tr *Trainer) Run() error {
	if err := tr.validate(); err != nil {
		return err
	}
	every := imax(1, tr.MaxIter/100)
	for iter := 0; iter < tr.MaxIter; iter++ {
		stats, err := tr.RunIteration(iter)
		if err != nil {
			return fmt.Errorf("iteration %d: %w", iter, err)
		}
		if iter%every == 0 {
			fmt.Printf("[PROGRESS] %.2f%% iter=%d loss=%.7f avg=%.7f visible=%d\n",
				float64(iter+1)*100/float64(tr.MaxIter), iter, stats.Loss, tr.MovingAverageLoss(100), stats.Visible)
		}
	}
	return nil
}

// MovingAverageLoss averages the last window recorded losses.
func (tr *Trainer) MovingAverageLoss(window int) float64 {
	if len(tr.losses) == 0 {
		return 0
	}
	start := imax(0, len(tr.losses)-window)
	return stat.Mean(tr.losses[start:], nil)
}

// Losses returns the recorded per-iteration loss history.
func (tr *Trainer) Losses() []float64 { return tr.losses }

func (tr *Trainer) lossStats() {
	if len(tr.losses) == 0 {
		return
	}
	lo, hi := tr.losses[0], tr.losses[0]
	for _, l := range tr.losses {
		if l < lo {
			lo = l
		}
		if l > hi {
			hi = l
		}
	}
	fmt.Printf("[STATS] iters=%d first=%.7f last=%.7f min=%.7f max=%.7f avg100=%.7f\n",
		len(tr.losses), tr.losses[0], tr.losses[len(tr.losses)-1], lo, hi, tr.MovingAverageLoss(100))
}

// snapshot converts a [C,H,W] render into a clamped channel-last copy for
// the frame recorder.
func snapshot(img []Real, cam Camera) []Real {
	hw := cam.Pixels()
	out := make([]Real, hw*Channels)
	for pix := 0; pix < hw; pix++ {
		for c := 0; c < Channels; c++ {
			out[pix*Channels+c] = clamp01(img[c*hw+pix])
		}
	}
	return out
}
