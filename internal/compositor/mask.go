package compositor

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// resampleMask scales a matte to the target dimensions. Matting services
// commonly return masks at their model resolution, not the frame's.
func resampleMask(mask *image.Gray, width, height int) *image.Gray {
	b := mask.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return mask
	}
	out := image.NewGray(image.Rect(0, 0, width, height))
	xdraw.BiLinear.Scale(out, out.Bounds(), mask, b, xdraw.Src, nil)
	return out
}

// featherMask applies a separable box blur so the subject edge blends into
// the replaced background instead of cutting hard. The kernel is clipped at
// the mask borders.
func featherMask(mask *image.Gray, radius int) *image.Gray {
	if radius <= 0 {
		return mask
	}
	b := mask.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return mask
	}

	tmp := image.NewGray(image.Rect(0, 0, w, h))
	out := image.NewGray(image.Rect(0, 0, w, h))

	// Horizontal pass
	for y := 0; y < h; y++ {
		row := mask.Pix[y*mask.Stride : y*mask.Stride+w]
		for x := 0; x < w; x++ {
			lo, hi := x-radius, x+radius
			if lo < 0 {
				lo = 0
			}
			if hi >= w {
				hi = w - 1
			}
			sum := 0
			for i := lo; i <= hi; i++ {
				sum += int(row[i])
			}
			tmp.Pix[y*tmp.Stride+x] = uint8(sum / (hi - lo + 1))
		}
	}

	// Vertical pass
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			lo, hi := y-radius, y+radius
			if lo < 0 {
				lo = 0
			}
			if hi >= h {
				hi = h - 1
			}
			sum := 0
			for i := lo; i <= hi; i++ {
				sum += int(tmp.Pix[i*tmp.Stride+x])
			}
			out.Pix[y*out.Stride+x] = uint8(sum / (hi - lo + 1))
		}
	}

	return out
}
