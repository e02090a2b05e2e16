package splatfit

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	xdraw "golang.org/x/image/draw"
)

// LoadTargetImage decodes a PNG or JPEG ground-truth image into planar
// [C,H,W] values in [0,1]. When either dimension exceeds maxDim (>0) the
// image is downscaled to fit, preserving aspect ratio.
func LoadTargetImage(path string, maxDim int) ([]Real, int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, 0, err
	}
	defer f.Close()
	src, _, err := image.Decode(f)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("decode %s: %w", path, err)
	}

	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return nil, 0, 0, fmt.Errorf("image %s has empty bounds", path)
	}
	if maxDim > 0 && (w > maxDim || h > maxDim) {
		if w >= h {
			h = imax(1, h*maxDim/w)
			w = maxDim
		} else {
			w = imax(1, w*maxDim/h)
			h = maxDim
		}
		dst := image.NewNRGBA(image.Rect(0, 0, w, h))
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Over, nil)
		src = dst
		b = dst.Bounds()
	}

	hw := w * h
	out := make([]Real, Channels*hw)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			pix := y*w + x
			out[ChR*hw+pix] = Real(r) / 65535
			out[ChG*hw+pix] = Real(g) / 65535
			out[ChB*hw+pix] = Real(bl) / 65535
		}
	}
	DebugLog("loaded target %s: %dx%d\n", path, w, h)
	return out, w, h, nil
}
