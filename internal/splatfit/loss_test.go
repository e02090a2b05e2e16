package splatfit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestL1Loss(t *testing.T) {
	render := []Real{0.5, 0.5, 1.0, 0.0}
	target := []Real{0.0, 1.0, 1.0, 0.5}
	loss, err := L1Loss(render, target)
	require.NoError(t, err)
	assert.InDelta(t, (0.5+0.5+0+0.5)/4, loss, 1e-6)

	same, err := L1Loss(target, target)
	require.NoError(t, err)
	assert.Zero(t, same)
}

func TestL1LossErrors(t *testing.T) {
	_, err := L1Loss([]Real{1}, []Real{1, 2})
	assert.Error(t, err)
	_, err = L1Loss(nil, nil)
	assert.Error(t, err)

	nan := Real(0)
	nan /= nan
	_, err = L1Loss([]Real{nan}, []Real{0})
	var se *PipelineStageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "loss", se.Stage)
}

func TestL1LossBackwardSigns(t *testing.T) {
	render := []Real{0.5, 0.5, 1.0}
	target := []Real{0.0, 1.0, 1.0}
	d := make([]Real, 3)
	require.NoError(t, L1LossBackward(render, target, d))
	inv := Real(1) / 3
	assert.Equal(t, inv, d[0])
	assert.Equal(t, -inv, d[1])
	assert.Zero(t, d[2])
}
