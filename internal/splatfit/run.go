package splatfit

import (
	"math/rand"
	"time"

	"github.com/chewxy/math32"
)

func Run(cfgPath string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	target, w, h, err := LoadTargetImage(cfg.TargetImage, cfg.MaxImageDim)
	if err != nil {
		return err
	}
	cam, err := NewCamera(cfg.FovXDeg*math32.Pi/180, w, h)
	if err != nil {
		return err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	DebugLog("seed=%d points=%d image=%dx%d", seed, cfg.NumPoints, w, h)

	model, err := NewPointModel(cfg.NumPoints, cfg.LearningRate, rng)
	if err != nil {
		return err
	}

	var rec SnapshotRecorder
	var gifRec *FrameRecorder
	var pngRec *PNGRecorder
	if PNG || cfg.PNGOut != "" {
		prefix := cfg.PNGOut
		if prefix == "" {
			prefix = "frame"
		}
		pngRec, err = NewPNGRecorder(w, h, prefix)
		if err != nil {
			return err
		}
		rec = pngRec
	} else {
		gifRec, err = NewFrameRecorder(w, h, cfg.GIFDelay, cfg.GIFLoop)
		if err != nil {
			return err
		}
		rec = gifRec
	}

	tr := &Trainer{
		Model:            model,
		Pipe:             NewCPUPipeline(),
		Cam:              cam,
		View:             cfg.ViewMatrix(),
		Proj:             cfg.ProjMatrix(cam),
		Target:           target,
		Background:       cfg.Background,
		MaxIter:          cfg.MaxIter,
		SnapshotInterval: cfg.SnapshotInterval,
		Recorder:         rec,
	}

	start := time.Now()
	if err := tr.Run(); err != nil {
		return err
	}
	DebugLog("Iterations: %d, time: %s", cfg.MaxIter, time.Since(start))

	if Debug {
		tr.lossStats()
	}

	if pngRec != nil {
		if err := pngRec.Save(); err != nil {
			return err
		}
		DebugLog("Saved PNG sequence (%d frames)", pngRec.Len())
	} else {
		if err := gifRec.Save(cfg.GIFOut); err != nil {
			return err
		}
		DebugLog("Saved animated GIF: %s (%d frames)", cfg.GIFOut, gifRec.Len())
	}
	return nil
}
