package geometry

import (
	"math"
)

const ratioEpsilon = 1e-6

// AnalyzerConfig holds the tunable constants of the analyzer
type AnalyzerConfig struct {
	// PitchScaleDeg maps the eyes-to-nose / nose-to-lips distance ratio to
	// a pitch angle: a ratio of 1.0 maps to 0 degrees, and each unit of
	// deviation from 1.0 maps to this many degrees.
	PitchScaleDeg float64

	// PadFraction pads the landmark-union box by this fraction of its
	// width/height on each side.
	PadFraction float64

	// RawPadFraction pads the detector's raw box when no landmarks are
	// available.
	RawPadFraction float64
}

// DefaultAnalyzerConfig returns the default analyzer constants
func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		PitchScaleDeg:  45.0,
		PadFraction:    0.15,
		RawPadFraction: 0.20,
	}
}

// Analyzer derives yaw/roll/pitch and a corrected bounding box from a raw
// landmark observation. It is a pure function of its input.
type Analyzer struct {
	cfg AnalyzerConfig
}

// NewAnalyzer creates an analyzer with default constants
func NewAnalyzer() *Analyzer {
	return NewAnalyzerWithConfig(DefaultAnalyzerConfig())
}

// NewAnalyzerWithConfig creates an analyzer with custom constants
func NewAnalyzerWithConfig(cfg AnalyzerConfig) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Analyze converts a raw detector observation into a FaceObservation.
// A nil input (no face found, or the detector failed) yields nil.
func (a *Analyzer) Analyze(raw *RawFace) *FaceObservation {
	if raw == nil {
		return nil
	}

	return &FaceObservation{
		Box:       a.expandBox(raw),
		Yaw:       raw.Yaw,
		Roll:      raw.Roll,
		Pitch:     a.estimatePitch(raw.Landmarks),
		Landmarks: raw.Landmarks,
	}
}

// estimatePitch approximates the up-down nod angle from vertical landmark
// proportions: nodding down shortens the apparent eyes-to-nose distance
// relative to nose-to-lips, nodding up lengthens it. The mapping is a
// linear transform calibrated so a distance ratio of 1.0 reads as level,
// not a geometric projection; accuracy is bounded and the constants are
// uncalibrated against ground truth.
func (a *Analyzer) estimatePitch(landmarks map[LandmarkGroup][]Point) float64 {
	eyeLeft, okL := centroid(landmarks[GroupLeftEye])
	eyeRight, okR := centroid(landmarks[GroupRightEye])
	nose, okN := centroid(landmarks[GroupNose])
	lips, okM := centroid(landmarks[GroupOuterLips])
	if !okL || !okR || !okN || !okM {
		return 0
	}

	eyeCenter := Point{X: (eyeLeft.X + eyeRight.X) / 2, Y: (eyeLeft.Y + eyeRight.Y) / 2}
	eyesToNose := distance(eyeCenter, nose)
	noseToLips := distance(nose, lips)

	ratio := eyesToNose / (noseToLips + ratioEpsilon)
	pitchDeg := (ratio - 1.0) * a.cfg.PitchScaleDeg
	return pitchDeg * math.Pi / 180
}

// expandBox reconstructs the face bounding box. Detector boxes are
// frequently too tight around the face, so when landmarks are available
// the box is recomputed as the union of every landmark group's extrema
// and padded outward; without landmarks the raw box is padded by a larger
// fraction instead. The result is clipped to the unit square.
func (a *Analyzer) expandBox(raw *RawFace) Box {
	union, ok := landmarkUnion(raw.Landmarks)
	if !ok {
		return padBox(raw.Box, a.cfg.RawPadFraction)
	}
	return padBox(union, a.cfg.PadFraction)
}

func padBox(b Box, fraction float64) Box {
	padX := b.Width() * fraction
	padY := b.Height() * fraction
	return Box{
		MinX: b.MinX - padX,
		MinY: b.MinY - padY,
		MaxX: b.MaxX + padX,
		MaxY: b.MaxY + padY,
	}.Clamped()
}

func landmarkUnion(landmarks map[LandmarkGroup][]Point) (Box, bool) {
	found := false
	box := Box{MinX: 1, MinY: 1, MaxX: 0, MaxY: 0}
	for _, points := range landmarks {
		for _, p := range points {
			if !found {
				box = Box{MinX: p.X, MinY: p.Y, MaxX: p.X, MaxY: p.Y}
				found = true
				continue
			}
			box.MinX = math.Min(box.MinX, p.X)
			box.MinY = math.Min(box.MinY, p.Y)
			box.MaxX = math.Max(box.MaxX, p.X)
			box.MaxY = math.Max(box.MaxY, p.Y)
		}
	}
	return box, found
}

func centroid(points []Point) (Point, bool) {
	if len(points) == 0 {
		return Point{}, false
	}
	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	return Point{X: sumX / n, Y: sumY / n}, true
}

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
