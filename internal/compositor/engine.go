package compositor

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"

	apperrors "go-idphoto-guide/internal/errors"
	"go-idphoto-guide/internal/logger"
	"go-idphoto-guide/internal/photospec"
	"go-idphoto-guide/internal/vision"
)

const (
	featherRadius = 2
	// Fraction of excess height kept above the subject when cropping to a
	// print aspect ratio. Biasing toward the top keeps head and shoulders
	// in frame.
	topBias = 0.20
)

// Options controls a compositing run.
type Options struct {
	// Background, when set, replaces everything outside the subject matte
	// with a solid fill.
	Background *color.NRGBA
	// Spec, when set, crops and resizes the output to a print format.
	Spec *photospec.Specification
	// VisibleHeightFactor trims the sensor frame to the portion shown on
	// screen. Values outside (0, 1) leave the frame untouched.
	VisibleHeightFactor float64
	// Brightness shifts all channels by Brightness*255, clamped to [-0.5, 0.5].
	Brightness float64
}

// Result is a finished composite plus the intermediates needed to swap
// the background without re-running segmentation.
type Result struct {
	Image image.Image

	frame *image.NRGBA
	mask  *image.Gray
	spec  *photospec.Specification
}

// Engine renders capture frames into ID photos.
type Engine interface {
	// Process runs the full pipeline: viewport crop, subject matting,
	// background fill, print-format crop and resize, brightness. Stages
	// that cannot run degrade to the previous stage's output rather than
	// failing the whole render.
	Process(ctx context.Context, frame image.Image, opts Options) (*Result, error)

	// SwapBackground re-renders a previous result with a new fill color,
	// reusing its cached matte.
	SwapBackground(ctx context.Context, prev *Result, background color.NRGBA, brightness float64) (image.Image, error)
}

type engine struct {
	segmenter vision.Segmenter
}

// NewEngine creates a compositing engine. A nil segmenter disables
// background replacement but leaves cropping and resizing functional.
func NewEngine(segmenter vision.Segmenter) Engine {
	return &engine{segmenter: segmenter}
}

func (e *engine) Process(ctx context.Context, frame image.Image, opts Options) (*Result, error) {
	if frame == nil {
		return nil, apperrors.NewValidationError("frame is required", nil)
	}

	src := toNRGBA(viewportCrop(frame, opts.VisibleHeightFactor))

	var mask *image.Gray
	if opts.Background != nil {
		mask = e.matte(ctx, src)
	}

	out := src
	if mask != nil {
		out = compositeOver(src, mask, *opts.Background)
	}

	final := renderOutput(out, opts.Spec, opts.Brightness)

	return &Result{
		Image: final,
		frame: src,
		mask:  mask,
		spec:  opts.Spec,
	}, nil
}

func (e *engine) SwapBackground(ctx context.Context, prev *Result, background color.NRGBA, brightness float64) (image.Image, error) {
	if prev == nil || prev.frame == nil {
		return nil, apperrors.NewValidationError("no previous composite to swap", nil)
	}

	mask := prev.mask
	if mask == nil {
		mask = e.matte(ctx, prev.frame)
		if mask == nil {
			return nil, apperrors.NewPipelineError("background swap requires a subject matte", nil)
		}
		prev.mask = mask
	}

	out := compositeOver(prev.frame, mask, background)
	return renderOutput(out, prev.spec, brightness), nil
}

// matte fetches, resamples and feathers the subject mask. Returns nil on
// failure so callers degrade to the unmatted frame.
func (e *engine) matte(ctx context.Context, src *image.NRGBA) *image.Gray {
	if e.segmenter == nil {
		return nil
	}
	mask, err := e.segmenter.Segment(ctx, src)
	if err != nil {
		logger.WithError(err).Warn("Segmentation failed, keeping original background")
		return nil
	}
	b := src.Bounds()
	return featherMask(resampleMask(mask, b.Dx(), b.Dy()), featherRadius)
}

func renderOutput(img *image.NRGBA, spec *photospec.Specification, brightness float64) image.Image {
	out := img
	if spec != nil {
		out = specCrop(out, spec.AspectRatio())
		w, h := spec.PixelSize()
		out = resize(out, w, h)
	}
	return adjustBrightness(out, brightness)
}

// viewportCrop trims the frame to the vertical portion visible on screen,
// centered, matching what the preview showed during guidance.
func viewportCrop(frame image.Image, factor float64) image.Image {
	if factor <= 0 || factor >= 1 {
		return frame
	}
	b := frame.Bounds()
	visible := int(math.Round(float64(b.Dy()) * factor))
	if visible < 1 || visible >= b.Dy() {
		return frame
	}
	top := b.Min.Y + (b.Dy()-visible)/2
	return cropRect(frame, image.Rect(b.Min.X, top, b.Max.X, top+visible))
}

// specCrop cuts the largest window with the target aspect ratio out of the
// frame. Vertical excess is removed mostly from the bottom so headroom
// survives the crop.
func specCrop(img *image.NRGBA, aspect float64) *image.NRGBA {
	if aspect <= 0 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	cropW, cropH := w, h
	if float64(w)/float64(h) > aspect {
		cropW = int(math.Round(float64(h) * aspect))
	} else {
		cropH = int(math.Round(float64(w) / aspect))
	}
	if cropW < 1 || cropH < 1 {
		return img
	}

	x := b.Min.X + (w-cropW)/2
	y := b.Min.Y + int(math.Round(float64(h-cropH)*topBias))
	return toNRGBA(cropRect(img, image.Rect(x, y, x+cropW, y+cropH)))
}

func resize(img *image.NRGBA, width, height int) *image.NRGBA {
	b := img.Bounds()
	if b.Dx() == width && b.Dy() == height {
		return img
	}
	out := image.NewNRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(out, out.Bounds(), img, b, xdraw.Src, nil)
	return out
}

// compositeOver blends the frame onto a solid fill using the matte as
// per-pixel alpha.
func compositeOver(src *image.NRGBA, mask *image.Gray, background color.NRGBA) *image.NRGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			a := int(mask.GrayAt(mask.Bounds().Min.X+x, mask.Bounds().Min.Y+y).Y)
			s := src.NRGBAAt(b.Min.X+x, b.Min.Y+y)
			i := out.PixOffset(x, y)
			out.Pix[i+0] = blend(s.R, background.R, a)
			out.Pix[i+1] = blend(s.G, background.G, a)
			out.Pix[i+2] = blend(s.B, background.B, a)
			out.Pix[i+3] = 0xff
		}
	}
	return out
}

func blend(fg, bg uint8, alpha int) uint8 {
	return uint8((int(fg)*alpha + int(bg)*(255-alpha)) / 255)
}

func adjustBrightness(img *image.NRGBA, delta float64) *image.NRGBA {
	if delta == 0 {
		return img
	}
	if delta > 0.5 {
		delta = 0.5
	} else if delta < -0.5 {
		delta = -0.5
	}
	shift := int(math.Round(delta * 255))

	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	copy(out.Pix, img.Pix)
	for i := 0; i < len(out.Pix); i += 4 {
		out.Pix[i+0] = clampByte(int(out.Pix[i+0]) + shift)
		out.Pix[i+1] = clampByte(int(out.Pix[i+1]) + shift)
		out.Pix[i+2] = clampByte(int(out.Pix[i+2]) + shift)
	}
	return out
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func cropRect(img image.Image, r image.Rectangle) image.Image {
	type subImager interface {
		SubImage(image.Rectangle) image.Image
	}
	if s, ok := img.(subImager); ok {
		return s.SubImage(r)
	}
	out := image.NewNRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(out, out.Bounds(), img, r.Min, draw.Src)
	return out
}

func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
