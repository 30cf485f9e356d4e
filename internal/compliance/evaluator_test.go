package compliance

import (
	"math"
	"testing"

	"go-idphoto-guide/internal/geometry"
)

func deg(d float64) float64 {
	return d * math.Pi / 180
}

// idealObservation returns an observation that passes every check inside
// the ideal bands: face height 0.6, headroom 0.12, centered, level pose.
func idealObservation() *geometry.FaceObservation {
	return &geometry.FaceObservation{
		Box: geometry.Box{MinX: 0.30, MinY: 0.12, MaxX: 0.70, MaxY: 0.72},
	}
}

func TestEvaluate_Compliant(t *testing.T) {
	e := NewEvaluator()
	v := e.Evaluate(idealObservation(), 1.0)

	if !v.Compliant {
		t.Fatalf("Expected compliant verdict, got %+v", v)
	}
	if !v.Ideal {
		t.Errorf("Expected ideal framing, got %+v", v)
	}
}

func TestEvaluate_CompliantButNotIdeal(t *testing.T) {
	e := NewEvaluator()
	obs := idealObservation()
	// Face height 0.47: inside [0.45,0.75] but below the 0.50 ideal floor.
	obs.Box.MaxY = obs.Box.MinY + 0.47

	v := e.Evaluate(obs, 1.0)
	if !v.Compliant {
		t.Fatalf("Expected compliant verdict, got %+v", v)
	}
	if v.Ideal {
		t.Error("Expected non-ideal verdict for acceptable-band face height")
	}
}

func TestEvaluate_NoFace(t *testing.T) {
	e := NewEvaluator()
	v := e.Evaluate(nil, 1.0)

	if v.Compliant {
		t.Fatal("Expected deficiency for missing face")
	}
	if v.Priority != PriorityNoFace || v.Code != CodeNoFace {
		t.Errorf("Expected no-face deficiency, got %+v", v)
	}
}

func TestEvaluate_TooFarOverridesAngles(t *testing.T) {
	e := NewEvaluator()
	obs := &geometry.FaceObservation{
		// Height 0.30, well below the 0.45 minimum.
		Box: geometry.Box{MinX: 0.35, MinY: 0.30, MaxX: 0.65, MaxY: 0.60},
		Yaw: deg(40), Roll: deg(30), Pitch: deg(25),
	}

	v := e.Evaluate(obs, 1.0)
	if v.Code != CodeTooFar {
		t.Fatalf("Expected too-far to suppress angle deficiencies, got %+v", v)
	}
	if v.Message != DefaultMessages().MoveCloser {
		t.Errorf("Expected move-closer instruction, got %q", v.Message)
	}
}

func TestEvaluate_TooClose(t *testing.T) {
	e := NewEvaluator()
	obs := &geometry.FaceObservation{
		Box: geometry.Box{MinX: 0.10, MinY: 0.10, MaxX: 0.90, MaxY: 0.90},
	}

	v := e.Evaluate(obs, 1.0)
	if v.Code != CodeTooClose || v.Priority != PriorityTooClose {
		t.Errorf("Expected too-close deficiency, got %+v", v)
	}
}

func TestEvaluate_VisibleHeightFactorRescalesSize(t *testing.T) {
	e := NewEvaluator()
	obs := &geometry.FaceObservation{
		// Height 0.30 in sensor space; with only 60% of the sensor frame
		// visible this is 0.50 of the screen, inside the compliant band.
		Box: geometry.Box{MinX: 0.30, MinY: 0.12, MaxX: 0.70, MaxY: 0.42},
	}

	if v := e.Evaluate(obs, 1.0); v.Code != CodeTooFar {
		t.Fatalf("Expected too-far without correction, got %+v", v)
	}
	if v := e.Evaluate(obs, 0.6); !v.Compliant {
		t.Errorf("Expected compliant verdict with 0.6 correction, got %+v", v)
	}
}

func TestEvaluate_HeadroomTooLarge(t *testing.T) {
	e := NewEvaluator()
	obs := &geometry.FaceObservation{
		// Headroom 0.30, above the 0.25 maximum; size and centering fine.
		Box: geometry.Box{MinX: 0.25, MinY: 0.30, MaxX: 0.75, MaxY: 0.85},
	}

	v := e.Evaluate(obs, 1.0)
	if v.Code != CodeHeadroomHigh || v.Priority != PriorityPosition {
		t.Fatalf("Expected headroom deficiency, got %+v", v)
	}
	if v.Message != DefaultMessages().MoveUp {
		t.Errorf("Expected move-up instruction, got %q", v.Message)
	}
}

func TestEvaluate_HeadroomTooSmall(t *testing.T) {
	e := NewEvaluator()
	obs := &geometry.FaceObservation{
		Box: geometry.Box{MinX: 0.25, MinY: 0.02, MaxX: 0.75, MaxY: 0.62},
	}

	v := e.Evaluate(obs, 1.0)
	if v.Code != CodeHeadroomLow {
		t.Fatalf("Expected low-headroom deficiency, got %+v", v)
	}
	if v.Message != DefaultMessages().MoveDown {
		t.Errorf("Expected move-down instruction, got %q", v.Message)
	}
}

func TestEvaluate_OffCenter(t *testing.T) {
	e := NewEvaluator()

	right := idealObservation()
	right.Box.MinX += 0.20
	right.Box.MaxX += 0.20
	v := e.Evaluate(right, 1.0)
	if v.Code != CodeOffCenter || v.Message != DefaultMessages().MoveLeft {
		t.Errorf("Expected move-left for right-shifted face, got %+v", v)
	}

	left := idealObservation()
	left.Box.MinX -= 0.20
	left.Box.MaxX -= 0.20
	v = e.Evaluate(left, 1.0)
	if v.Code != CodeOffCenter || v.Message != DefaultMessages().MoveRight {
		t.Errorf("Expected move-right for left-shifted face, got %+v", v)
	}
}

func TestEvaluate_AngleChecks(t *testing.T) {
	tests := []struct {
		name     string
		yaw      float64
		roll     float64
		pitch    float64
		wantCode string
	}{
		{"yaw over limit", deg(6), 0, 0, CodeYaw},
		{"roll over limit", 0, deg(4), 0, CodeRoll},
		{"pitch over limit", 0, 0, deg(9), CodePitch},
		{"yaw wins over roll and pitch", deg(6), deg(4), deg(9), CodeYaw},
		{"negative angles use magnitude", -deg(6), 0, 0, CodeYaw},
	}

	e := NewEvaluator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := idealObservation()
			obs.Yaw, obs.Roll, obs.Pitch = tt.yaw, tt.roll, tt.pitch

			v := e.Evaluate(obs, 1.0)
			if v.Compliant {
				t.Fatal("Expected angle deficiency, got compliant")
			}
			if v.Code != tt.wantCode {
				t.Errorf("Expected code %s, got %s", tt.wantCode, v.Code)
			}
			if v.Priority != PriorityAngle {
				t.Errorf("Expected angle priority, got %d", v.Priority)
			}
		})
	}
}

func TestEvaluate_AnglesWithinRelaxedProfile(t *testing.T) {
	e := NewEvaluator()
	obs := idealObservation()
	obs.Yaw, obs.Roll, obs.Pitch = deg(4), deg(2.5), deg(7)

	if v := e.Evaluate(obs, 1.0); !v.Compliant {
		t.Errorf("Expected compliance within relaxed angle profile, got %+v", v)
	}
}

func TestEvaluate_StrictProfileRejectsRelaxedAngles(t *testing.T) {
	e := NewEvaluatorWith(StrictThresholds(), DefaultMessages())
	obs := idealObservation()
	obs.Yaw = deg(4) // within relaxed 5, outside strict 3

	v := e.Evaluate(obs, 1.0)
	if v.Compliant || v.Code != CodeYaw {
		t.Errorf("Expected yaw deficiency under strict profile, got %+v", v)
	}
}

func TestEvaluate_ShoulderSoftWarning(t *testing.T) {
	e := NewEvaluator()
	obs := &geometry.FaceObservation{
		// Face bottom at 0.95, past the shoulder line; everything else ok.
		Box: geometry.Box{MinX: 0.30, MinY: 0.25, MaxX: 0.70, MaxY: 0.95},
	}

	v := e.Evaluate(obs, 1.0)
	if v.Compliant || v.Priority != PrioritySoftWarning || v.Code != CodeShoulders {
		t.Errorf("Expected shoulder soft warning, got %+v", v)
	}
}

func TestEvaluate_PositionSuppressesAngles(t *testing.T) {
	e := NewEvaluator()
	obs := &geometry.FaceObservation{
		Box: geometry.Box{MinX: 0.25, MinY: 0.30, MaxX: 0.75, MaxY: 0.85},
		Yaw: deg(30),
	}

	v := e.Evaluate(obs, 1.0)
	if v.Code != CodeHeadroomHigh {
		t.Errorf("Expected position deficiency to suppress yaw, got %+v", v)
	}
}
