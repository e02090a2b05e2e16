package splatfit

import (
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"os"

	"github.com/chewxy/math32"
)

// FrameRecorder accumulates ordered channel-last RGB snapshots of the
// rendered image and exports them as one animated GIF on Save.
type FrameRecorder struct {
	w, h   int
	delay  int // 100ths of a second per frame (e.g., 5 => 20 fps)
	loop   int // GIF loop count, 0 loops forever
	frames []*image.Paletted
}

func NewFrameRecorder(w, h, delay, loop int) (*FrameRecorder, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %dx%d", w, h)
	}
	if delay <= 0 {
		delay = GIFDelay
	}
	return &FrameRecorder{w: w, h: h, delay: delay, loop: loop}, nil
}

// Add appends one snapshot: w*h*3 values in [0,1], channel-last row-major.
func (fr *FrameRecorder) Add(frame []Real) error {
	if len(frame) != fr.w*fr.h*Channels {
		return fmt.Errorf("frame has %d values, want %d for %dx%d", len(frame), fr.w*fr.h*Channels, fr.w, fr.h)
	}
	rgba := image.NewNRGBA(image.Rect(0, 0, fr.w, fr.h))
	for y := 0; y < fr.h; y++ {
		rowOff := y * rgba.Stride
		for x := 0; x < fr.w; x++ {
			src := (y*fr.w + x) * Channels
			p := rowOff + x*4
			rgba.Pix[p+0] = toByte(frame[src+ChR])
			rgba.Pix[p+1] = toByte(frame[src+ChG])
			rgba.Pix[p+2] = toByte(frame[src+ChB])
			rgba.Pix[p+3] = 255
		}
	}
	// Quantize to paletted for GIF
	pimg := image.NewPaletted(rgba.Bounds(), palette.Plan9)
	draw.FloydSteinberg.Draw(pimg, pimg.Bounds(), rgba, image.Point{})
	fr.frames = append(fr.frames, pimg)
	return nil
}

// Len returns the number of recorded frames.
func (fr *FrameRecorder) Len() int { return len(fr.frames) }

// Save writes the accumulated frames as a single animated GIF.
func (fr *FrameRecorder) Save(path string) error {
	if len(fr.frames) == 0 {
		return fmt.Errorf("no frames recorded")
	}
	out := &gif.GIF{
		Image:     fr.frames,
		Delay:     make([]int, len(fr.frames)),
		LoopCount: fr.loop,
	}
	for i := range out.Delay {
		out.Delay[i] = fr.delay
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gif.EncodeAll(f, out)
}

func toByte(v Real) uint8 {
	return uint8(math32.Round(clamp01(v) * 255))
}
