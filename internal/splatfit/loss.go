package splatfit

import "math"

// L1Loss returns the mean absolute difference between the rendered image
// and the ground truth. Accumulation runs in float64; a non-finite result
// (NaN propagation from the pipeline) is an error that aborts the run.
func L1Loss(render, target []Real) (float64, error) {
	if len(render) != len(target) {
		return 0, stageErrf("loss", "rendered image has %d values, ground truth %d", len(render), len(target))
	}
	if len(render) == 0 {
		return 0, stageErrf("loss", "empty image")
	}
	sum := 0.0
	for i := range render {
		d := float64(render[i] - target[i])
		if d < 0 {
			d = -d
		}
		sum += d
	}
	loss := sum / float64(len(render))
	if math.IsNaN(loss) || math.IsInf(loss, 0) {
		return 0, stageErrf("loss", "non-finite loss %f", loss)
	}
	return loss, nil
}

// L1LossBackward writes d(loss)/d(render) into dImage: ±1/len per pixel.
func L1LossBackward(render, target, dImage []Real) error {
	if len(render) != len(target) || len(dImage) != len(render) {
		return stageErrf("loss", "backward shape mismatch: render=%d target=%d dImage=%d", len(render), len(target), len(dImage))
	}
	inv := Real(1) / Real(len(render))
	for i := range render {
		switch {
		case render[i] > target[i]:
			dImage[i] = inv
		case render[i] < target[i]:
			dImage[i] = -inv
		default:
			dImage[i] = 0
		}
	}
	return nil
}
