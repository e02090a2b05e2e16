package splatfit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, `{"targetImage": "target.png"}`))
	require.NoError(t, err)
	assert.Equal(t, NumPoints, cfg.NumPoints)
	assert.Equal(t, MaxIter, cfg.MaxIter)
	assert.Equal(t, Real(LearningRate), cfg.LearningRate)
	assert.Equal(t, Real(FovXDeg), cfg.FovXDeg)
	assert.Equal(t, SnapshotInterval, cfg.SnapshotInterval)
	assert.Equal(t, MaxImageDim, cfg.MaxImageDim)
	assert.Equal(t, GIFOut, cfg.GIFOut)
	assert.Equal(t, GIFDelay, cfg.GIFDelay)
	assert.Equal(t, Real(CameraDist), cfg.CameraDist)
}

func TestLoadConfigOverrides(t *testing.T) {
	cfg, err := loadConfig(writeConfig(t, `{
		"targetImage": "img.png",
		"numPoints": 500,
		"maxIter": 10,
		"learningRate": 0.05,
		"background": 1,
		"seed": 42
	}`))
	require.NoError(t, err)
	want := &Config{
		NumPoints:        500,
		MaxIter:          10,
		LearningRate:     0.05,
		FovXDeg:          FovXDeg,
		Background:       1,
		SnapshotInterval: SnapshotInterval,
		TargetImage:      "img.png",
		MaxImageDim:      MaxImageDim,
		GIFOut:           GIFOut,
		GIFDelay:         GIFDelay,
		CameraDist:       CameraDist,
		Seed:             42,
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"targetImage":  `{}`,
		"numPoints":    `{"targetImage": "a.png", "numPoints": -1}`,
		"maxIter":      `{"targetImage": "a.png", "maxIter": -5}`,
		"learningRate": `{"targetImage": "a.png", "learningRate": -0.1}`,
		"fovXDeg":      `{"targetImage": "a.png", "fovXDeg": 180}`,
		"background":   `{"targetImage": "a.png", "background": 1.5}`,
		"viewMat":      `{"targetImage": "a.png", "viewMat": [1, 2, 3]}`,
	}
	for field, body := range cases {
		_, err := loadConfig(writeConfig(t, body))
		var ce *ConfigurationError
		require.ErrorAsf(t, err, &ce, "case %s", field)
		assert.Equal(t, field, ce.Field)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestViewMatrixDefault(t *testing.T) {
	cfg := &Config{CameraDist: 8}
	v := cfg.ViewMatrix()
	// camera pulled back: the world origin lands 8 units down the view axis
	p := v.MulPoint(Vector3{0, 0, 0})
	assert.Equal(t, Vector3{0, 0, 8}, p)
}

func TestViewMatrixOverride(t *testing.T) {
	vals := make([]Real, 16)
	for i := range vals {
		vals[i] = Real(i)
	}
	cfg := &Config{ViewMat: vals}
	v := cfg.ViewMatrix()
	assert.Equal(t, Real(0), v.M[0][0])
	assert.Equal(t, Real(7), v.M[1][3])
	assert.Equal(t, Real(15), v.M[3][3])
}

func TestProjMatrixHomogeneousW(t *testing.T) {
	cfg := &Config{FovXDeg: 90}
	cam := Camera{Fx: 32, Fy: 32, Cx: 32, Cy: 32, W: 64, H: 64}
	m := cfg.ProjMatrix(cam)
	// w must equal camera z so points on the camera plane are degenerate
	assert.Equal(t, Real(0), m.MulPointW(Vector3{1, 2, 0}))
	assert.Equal(t, Real(5), m.MulPointW(Vector3{0, 0, 5}))
}
