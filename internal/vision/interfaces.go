package vision

import (
	"context"
	"image"

	"go-idphoto-guide/internal/geometry"
)

// FaceFinder is the face landmark/pose collaborator: given a frame it
// returns zero-or-one raw face observation. A nil face with a nil error
// means no face was found.
type FaceFinder interface {
	Find(ctx context.Context, frame image.Image) (*geometry.RawFace, error)
	Close() error
}

// Segmenter is the portrait-segmentation collaborator: given an image it
// returns a single-channel foreground-probability mask. The mask extent
// may differ from the image extent; callers resample it.
type Segmenter interface {
	Segment(ctx context.Context, img image.Image) (*image.Gray, error)
}
