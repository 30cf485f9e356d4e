package compliance

// Thresholds defines the configurable photo-standard bounds the evaluator
// checks a face observation against. All box-derived values are fractions
// of the visible frame; angles are in degrees.
type Thresholds struct {
	// Face height as a fraction of the visible frame height
	MinFaceHeight      float64
	MaxFaceHeight      float64
	IdealMinFaceHeight float64
	IdealMaxFaceHeight float64

	// Empty space between the top of the face and the top of the frame
	MinHeadroom      float64
	MaxHeadroom      float64
	IdealMinHeadroom float64
	IdealMaxHeadroom float64

	// Horizontal offset of the face center from frame center
	CenterTolerance float64

	// Head pose, degrees
	MaxYawDeg   float64
	MaxRollDeg  float64
	MaxPitchDeg float64

	// Lowest allowed face-bottom position; below it the shoulders fall
	// outside the frame (soft warning only)
	MaxFaceBottom float64
}

// DefaultThresholds returns the canonical threshold profile: the relaxed
// angle set, with the centering relaxation multiplier already folded in.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinFaceHeight:      0.45,
		MaxFaceHeight:      0.75,
		IdealMinFaceHeight: 0.50,
		IdealMaxFaceHeight: 0.70,

		MinHeadroom:      0.05,
		MaxHeadroom:      0.25,
		IdealMinHeadroom: 0.08,
		IdealMaxHeadroom: 0.18,

		CenterTolerance: 0.12, // 8% base tolerance with 1.5x relaxation

		MaxYawDeg:   5.0,
		MaxRollDeg:  3.0,
		MaxPitchDeg: 8.0,

		MaxFaceBottom: 0.92,
	}
}

// StrictThresholds returns the tighter angle/centering profile
func StrictThresholds() Thresholds {
	t := DefaultThresholds()
	t.CenterTolerance = 0.08
	t.MaxYawDeg = 3.0
	t.MaxRollDeg = 2.0
	t.MaxPitchDeg = 5.0
	return t
}

// ThresholdsForProfile maps a configuration profile name to thresholds
func ThresholdsForProfile(profile string) Thresholds {
	if profile == "strict" {
		return StrictThresholds()
	}
	return DefaultThresholds()
}
