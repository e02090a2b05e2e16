package splatfit

import (
	"encoding/json"
	"os"

	"github.com/chewxy/math32"
)

type Config struct {
	NumPoints        int    `json:"numPoints,omitempty"`
	MaxIter          int    `json:"maxIter,omitempty"`
	LearningRate     Real   `json:"learningRate,omitempty"`
	FovXDeg          Real   `json:"fovXDeg,omitempty"`
	Background       Real   `json:"background,omitempty"`
	SnapshotInterval int    `json:"snapshotInterval,omitempty"`
	TargetImage      string `json:"targetImage"`
	MaxImageDim      int    `json:"maxImageDim,omitempty"`
	GIFOut           string `json:"gifOut,omitempty"`
	GIFDelay         int    `json:"gifDelay,omitempty"`
	GIFLoop          int    `json:"gifLoop,omitempty"`
	PNGOut           string `json:"pngOut,omitempty"` // 16-bit frame sequence prefix; replaces the GIF when set
	CameraDist       Real   `json:"cameraDist,omitempty"`
	ViewMat          []Real `json:"viewMat,omitempty"` // 16 row-major values; overrides cameraDist
	ProjMat          []Real `json:"projMat,omitempty"` // 16 row-major values
	Seed             int64  `json:"seed,omitempty"`    // 0 means time-based
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	// Defaults / validation
	if cfg.NumPoints < 0 {
		return nil, &ConfigurationError{Field: "numPoints", Reason: "must not be negative"}
	}
	if cfg.NumPoints == 0 {
		cfg.NumPoints = NumPoints
	}
	if cfg.MaxIter < 0 {
		return nil, &ConfigurationError{Field: "maxIter", Reason: "must not be negative"}
	}
	if cfg.MaxIter == 0 {
		cfg.MaxIter = MaxIter
	}
	if cfg.LearningRate < 0 {
		return nil, &ConfigurationError{Field: "learningRate", Reason: "must not be negative"}
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = LearningRate
	}
	if cfg.FovXDeg == 0 {
		cfg.FovXDeg = FovXDeg
	}
	if cfg.FovXDeg <= 0 || cfg.FovXDeg >= 180 {
		return nil, &ConfigurationError{Field: "fovXDeg", Reason: "must be in (0, 180)"}
	}
	if cfg.Background < 0 || cfg.Background > 1 {
		return nil, &ConfigurationError{Field: "background", Reason: "must be in [0, 1]"}
	}
	if cfg.SnapshotInterval < 0 {
		return nil, &ConfigurationError{Field: "snapshotInterval", Reason: "must not be negative"}
	}
	if cfg.SnapshotInterval == 0 {
		cfg.SnapshotInterval = SnapshotInterval
	}
	if cfg.TargetImage == "" {
		return nil, &ConfigurationError{Field: "targetImage", Reason: "required"}
	}
	if cfg.MaxImageDim < 0 {
		return nil, &ConfigurationError{Field: "maxImageDim", Reason: "must not be negative"}
	}
	if cfg.MaxImageDim == 0 {
		cfg.MaxImageDim = MaxImageDim
	}
	if cfg.GIFOut == "" {
		cfg.GIFOut = GIFOut
	}
	if cfg.GIFDelay <= 0 {
		cfg.GIFDelay = GIFDelay
	}
	if cfg.GIFLoop < 0 {
		cfg.GIFLoop = GIFLoop
	}
	if cfg.CameraDist == 0 {
		cfg.CameraDist = CameraDist
	}
	if len(cfg.ViewMat) != 0 && len(cfg.ViewMat) != 16 {
		return nil, &ConfigurationError{Field: "viewMat", Reason: "must have exactly 16 values"}
	}
	if len(cfg.ProjMat) != 0 && len(cfg.ProjMat) != 16 {
		return nil, &ConfigurationError{Field: "projMat", Reason: "must have exactly 16 values"}
	}
	DebugLog("Loaded config from %s: points=%d, iters=%d, lr=%f, fov=%f, target=%s", path, cfg.NumPoints, cfg.MaxIter, cfg.LearningRate, cfg.FovXDeg, cfg.TargetImage)
	return &cfg, nil
}

// ViewMatrix returns the world-to-camera transform: an explicit override
// when given, otherwise identity rotation with the camera pulled back
// along +z by cameraDist (translation lives in row 3 under the row-vector
// convention).
func (cfg *Config) ViewMatrix() Mat4 {
	if len(cfg.ViewMat) == 16 {
		return mat4From(cfg.ViewMat)
	}
	m := I4()
	m.M[3][2] = cfg.CameraDist
	return m
}

// ProjMatrix returns the perspective projection: an explicit override when
// given, otherwise built from the horizontal field of view and the image
// aspect ratio, with w = camera z.
func (cfg *Config) ProjMatrix(cam Camera) Mat4 {
	if len(cfg.ProjMat) == 16 {
		return mat4From(cfg.ProjMat)
	}
	const near, far = Real(nearPlane), Real(100)
	f := 1 / math32.Tan(cfg.FovXDeg*math32.Pi/360)
	var m Mat4
	m.M[0][0] = f
	m.M[1][1] = f * Real(cam.W) / Real(cam.H)
	m.M[2][2] = (far + near) / (far - near)
	m.M[2][3] = 1
	m.M[3][2] = -2 * far * near / (far - near)
	return m
}

func mat4From(v []Real) Mat4 {
	var m Mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			m.M[r][c] = v[4*r+c]
		}
	}
	return m
}
