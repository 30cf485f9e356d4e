package geometry

// Point represents a 2D point in unit-square coordinates
type Point struct {
	X, Y float64
}

// Box represents a face bounding box in unit-square coordinates,
// origin at the top-left of the frame
type Box struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Width returns box width
func (b Box) Width() float64 {
	return b.MaxX - b.MinX
}

// Height returns box height
func (b Box) Height() float64 {
	return b.MaxY - b.MinY
}

// MidX returns the horizontal center of the box
func (b Box) MidX() float64 {
	return (b.MinX + b.MaxX) / 2
}

// MidY returns the vertical center of the box
func (b Box) MidY() float64 {
	return (b.MinY + b.MaxY) / 2
}

// Clamped returns the box clipped to the unit square
func (b Box) Clamped() Box {
	return Box{
		MinX: clamp01(b.MinX),
		MinY: clamp01(b.MinY),
		MaxX: clamp01(b.MaxX),
		MaxY: clamp01(b.MaxY),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// LandmarkGroup names a set of related landmark points
type LandmarkGroup string

const (
	GroupLeftEye      LandmarkGroup = "left_eye"
	GroupRightEye     LandmarkGroup = "right_eye"
	GroupLeftEyebrow  LandmarkGroup = "left_eyebrow"
	GroupRightEyebrow LandmarkGroup = "right_eyebrow"
	GroupNose         LandmarkGroup = "nose"
	GroupOuterLips    LandmarkGroup = "outer_lips"
	GroupLeftPupil    LandmarkGroup = "left_pupil"
	GroupRightPupil   LandmarkGroup = "right_pupil"
	GroupContour      LandmarkGroup = "contour"
)

// RawFace is the shape a face-landmark provider hands to the analyzer:
// the detector's own bounding box, its head-pose estimate for yaw and
// roll, and whatever landmark point groups it produced. Pitch is absent
// because the providers we consume do not report it.
type RawFace struct {
	Box       Box
	Yaw       float64 // radians, signed; positive = turned right
	Roll      float64 // radians, signed; positive = tilted clockwise
	Landmarks map[LandmarkGroup][]Point
}

// FaceObservation is one frame's derived facial geometry. It is ephemeral:
// the caller owns it exclusively and it is overwritten each analysis cycle.
type FaceObservation struct {
	Box       Box
	Yaw       float64 // radians
	Roll      float64 // radians
	Pitch     float64 // radians, estimated (see Analyzer)
	Landmarks map[LandmarkGroup][]Point
}
