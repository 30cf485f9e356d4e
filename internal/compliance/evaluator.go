package compliance

import (
	"math"

	"go-idphoto-guide/internal/geometry"
)

// Priority orders deficiency categories from most to least urgent. Only the
// highest-priority deficiency is ever surfaced; lower-priority issues stay
// suppressed until the higher ones are resolved.
type Priority int

const (
	PriorityNoFace Priority = iota
	PriorityTooFar
	PriorityTooClose
	PriorityPosition
	PriorityAngle
	PrioritySoftWarning
)

// Deficiency codes carried on non-compliant verdicts
const (
	CodeNoFace       = "no_face"
	CodeTooFar       = "too_far"
	CodeTooClose     = "too_close"
	CodeHeadroomLow  = "headroom_low"
	CodeHeadroomHigh = "headroom_high"
	CodeOffCenter    = "off_center"
	CodeYaw          = "yaw"
	CodeRoll         = "roll"
	CodePitch        = "pitch"
	CodeShoulders    = "shoulders"
)

// Verdict is the single compliance result derived for one analyzed frame.
// Exactly one verdict is produced per frame.
type Verdict struct {
	Compliant bool
	// Ideal is set on compliant verdicts whose size and headroom also fall
	// inside the ideal bands, distinguishing "good" from "perfect" framing.
	Ideal    bool
	Priority Priority
	Code     string
	Message  string
}

// Compliant builds a passing verdict
func compliant(ideal bool) Verdict {
	return Verdict{Compliant: true, Ideal: ideal}
}

func deficiency(p Priority, code, message string) Verdict {
	return Verdict{Priority: p, Code: code, Message: message}
}

// Evaluator compares face observations against photo-standard thresholds
type Evaluator struct {
	thresholds Thresholds
	messages   Messages
}

// NewEvaluator creates an evaluator with default thresholds and messages
func NewEvaluator() *Evaluator {
	return NewEvaluatorWith(DefaultThresholds(), DefaultMessages())
}

// NewEvaluatorWith creates an evaluator with custom thresholds and messages
func NewEvaluatorWith(thresholds Thresholds, messages Messages) *Evaluator {
	return &Evaluator{thresholds: thresholds, messages: messages}
}

// Thresholds returns the evaluator's threshold set
func (e *Evaluator) Thresholds() Thresholds {
	return e.thresholds
}

// Evaluate runs the compliance checks in strict priority order and stops at
// the first failure, so the verdict always reports the most critical issue.
// visibleHeightFactor rescales detector-space face heights to the fraction
// of the sensor frame actually visible on screen (1.0 when unknown).
func (e *Evaluator) Evaluate(obs *geometry.FaceObservation, visibleHeightFactor float64) Verdict {
	t := e.thresholds
	m := e.messages

	// 1. Face presence
	if obs == nil {
		return deficiency(PriorityNoFace, CodeNoFace, m.NoFace)
	}

	if visibleHeightFactor <= 0 || visibleHeightFactor > 1 {
		visibleHeightFactor = 1.0
	}

	// 2. Size / distance
	faceHeight := obs.Box.Height() / visibleHeightFactor
	if faceHeight < t.MinFaceHeight {
		return deficiency(PriorityTooFar, CodeTooFar, m.MoveCloser)
	}
	if faceHeight > t.MaxFaceHeight {
		return deficiency(PriorityTooClose, CodeTooClose, m.MoveBack)
	}

	// 3. Headroom (fraction of frame above the face)
	headroom := obs.Box.MinY
	if headroom < t.MinHeadroom {
		return deficiency(PriorityPosition, CodeHeadroomLow, m.MoveDown)
	}
	if headroom > t.MaxHeadroom {
		return deficiency(PriorityPosition, CodeHeadroomHigh, m.MoveUp)
	}

	// 4. Horizontal centering
	offset := obs.Box.MidX() - 0.5
	if math.Abs(offset) > t.CenterTolerance {
		if offset > 0 {
			return deficiency(PriorityPosition, CodeOffCenter, m.MoveLeft)
		}
		return deficiency(PriorityPosition, CodeOffCenter, m.MoveRight)
	}

	// 5. Angles, first failing one wins
	if degrees(obs.Yaw) > t.MaxYawDeg {
		return deficiency(PriorityAngle, CodeYaw, m.FaceCamera)
	}
	if degrees(obs.Roll) > t.MaxRollDeg {
		return deficiency(PriorityAngle, CodeRoll, m.KeepUpright)
	}
	if degrees(obs.Pitch) > t.MaxPitchDeg {
		return deficiency(PriorityAngle, CodePitch, m.LookStraight)
	}

	// 6. Shoulder visibility (soft warning)
	if obs.Box.MaxY > t.MaxFaceBottom {
		return deficiency(PrioritySoftWarning, CodeShoulders, m.ShowShoulder)
	}

	ideal := faceHeight >= t.IdealMinFaceHeight && faceHeight <= t.IdealMaxFaceHeight &&
		headroom >= t.IdealMinHeadroom && headroom <= t.IdealMaxHeadroom
	return compliant(ideal)
}

func degrees(rad float64) float64 {
	return math.Abs(rad) * 180 / math.Pi
}
