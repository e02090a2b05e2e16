package splatfit

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"os"

	"github.com/chewxy/math32"
)

// PNGRecorder is the lossless alternative to the GIF recorder: one 16-bit
// PNG per snapshot. The only quantization is the mapping from float color
// to 16-bit; values are already in [0,1] so no per-frame normalization is
// needed.
type PNGRecorder struct {
	w, h   int
	prefix string
	frames [][]Real
}

func NewPNGRecorder(w, h int, prefix string) (*PNGRecorder, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("frame size must be positive, got %dx%d", w, h)
	}
	if prefix == "" {
		return nil, fmt.Errorf("png prefix must not be empty")
	}
	return &PNGRecorder{w: w, h: h, prefix: prefix}, nil
}

// Add appends one snapshot: w*h*3 values in [0,1], channel-last row-major.
func (pr *PNGRecorder) Add(frame []Real) error {
	if len(frame) != pr.w*pr.h*Channels {
		return fmt.Errorf("frame has %d values, want %d for %dx%d", len(frame), pr.w*pr.h*Channels, pr.w, pr.h)
	}
	cp := make([]Real, len(frame))
	copy(cp, frame)
	pr.frames = append(pr.frames, cp)
	return nil
}

// Len returns the number of recorded frames.
func (pr *PNGRecorder) Len() int { return len(pr.frames) }

// Save writes one zero-padded 16-bit PNG per frame.
func (pr *PNGRecorder) Save() error {
	if len(pr.frames) == 0 {
		return fmt.Errorf("no frames recorded")
	}
	width := 1
	if len(pr.frames) > 1 {
		width = int(math.Log10(float64(len(pr.frames)-1))) + 1
	}
	for k, frame := range pr.frames {
		img := image.NewNRGBA64(image.Rect(0, 0, pr.w, pr.h))
		const pxBytes = 8 // 4 channels * 2 bytes/channel
		for y := 0; y < pr.h; y++ {
			rowOff := y * img.Stride
			for x := 0; x < pr.w; x++ {
				src := (y*pr.w + x) * Channels
				r := toU16(frame[src+ChR])
				g := toU16(frame[src+ChG])
				b := toU16(frame[src+ChB])
				a := uint16(0xFFFF)

				p := rowOff + x*pxBytes
				// NRGBA64 stores big-endian uint16 per channel: R, G, B, A.
				img.Pix[p+0] = uint8(r >> 8)
				img.Pix[p+1] = uint8(r)
				img.Pix[p+2] = uint8(g >> 8)
				img.Pix[p+3] = uint8(g)
				img.Pix[p+4] = uint8(b >> 8)
				img.Pix[p+5] = uint8(b)
				img.Pix[p+6] = uint8(a >> 8)
				img.Pix[p+7] = uint8(a)
			}
		}
		full := fmt.Sprintf("%s_%0*d.png", pr.prefix, width, k)
		f, err := os.Create(full)
		if err != nil {
			return err
		}
		enc := png.Encoder{CompressionLevel: png.BestCompression} // still lossless
		if err := enc.Encode(f, img); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	return nil
}

func toU16(v Real) uint16 {
	return uint16(math32.Round(clamp01(v) * 65535))
}
