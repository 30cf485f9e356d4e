package vision

import (
	"context"
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"

	pigo "github.com/esimov/pigo/core"

	"go-idphoto-guide/internal/geometry"
	"go-idphoto-guide/internal/logger"
)

const (
	minFaceQuality = 5.0
	pupilPerturbs  = 63
)

// Landmark point cascades shipped with pigo; the non-flipped run lands on
// the left half of the face, the flipped run on the right.
var (
	eyeCascadeNames   = []string{"lp46", "lp44", "lp42", "lp38", "lp312"}
	mouthCascadeNames = []string{"lp93", "lp84", "lp82", "lp81"}
)

// PigoFinder is a pigo-backed FaceFinder. The face cascade yields the
// bounding box, the pupil localizer the pupils, and the flp cascades the
// eye and mouth point groups; yaw and roll are estimated from pupil and
// nose geometry since pigo has no head-pose output.
type PigoFinder struct {
	classifier *pigo.Pigo
	puploc     *pigo.PuplocCascade
	flpcs      map[string][]*pigo.FlpCascade
}

// NewPigoFinder loads cascades from dir: "facefinder" (required), "puploc"
// and the "lps" directory (optional; without them observations carry only
// the box).
func NewPigoFinder(dir string) (*PigoFinder, error) {
	cascade, err := os.ReadFile(filepath.Join(dir, "facefinder"))
	if err != nil {
		return nil, fmt.Errorf("failed to read face cascade: %w", err)
	}
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack face cascade: %w", err)
	}

	f := &PigoFinder{classifier: classifier}

	plData, err := os.ReadFile(filepath.Join(dir, "puploc"))
	if err != nil {
		logger.WithError(err).Warn("Pupil cascade unavailable, landmarks disabled")
		return f, nil
	}
	plc, err := pigo.NewPuplocCascade().UnpackCascade(plData)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack pupil cascade: %w", err)
	}
	f.puploc = plc

	flpcs, err := plc.ReadCascadeDir(filepath.Join(dir, "lps"))
	if err != nil {
		logger.WithError(err).Warn("Landmark cascades unavailable, point groups disabled")
		return f, nil
	}
	f.flpcs = flpcs

	return f, nil
}

// Find runs the cascade over the frame and returns the best face, or nil
// when nothing clears the quality threshold.
func (f *PigoFinder) Find(ctx context.Context, frame image.Image) (*geometry.RawFace, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bounds := frame.Bounds()
	cols, rows := bounds.Dx(), bounds.Dy()
	if cols == 0 || rows == 0 {
		return nil, nil
	}

	src := pigo.ImgToNRGBA(frame)
	imgParams := pigo.ImageParams{
		Pixels: pigo.RgbToGrayscale(src),
		Rows:   rows,
		Cols:   cols,
		Dim:    cols,
	}
	cParams := pigo.CascadeParams{
		MinSize:     rows / 10,
		MaxSize:     rows,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: imgParams,
	}

	dets := f.classifier.RunCascade(cParams, 0.0)
	dets = f.classifier.ClusterDetections(dets, 0.2)

	best, ok := bestDetection(dets)
	if !ok {
		return nil, nil
	}

	raw := &geometry.RawFace{Box: detectionBox(best, cols, rows)}
	if f.puploc != nil {
		f.locateLandmarks(best, imgParams, raw, cols, rows)
	}
	return raw, nil
}

// Close releases the finder; pigo holds no external resources
func (f *PigoFinder) Close() error {
	return nil
}

func bestDetection(dets []pigo.Detection) (pigo.Detection, bool) {
	var best pigo.Detection
	found := false
	for _, det := range dets {
		if det.Q < minFaceQuality {
			continue
		}
		if !found || det.Scale > best.Scale {
			best = det
			found = true
		}
	}
	return best, found
}

func detectionBox(det pigo.Detection, cols, rows int) geometry.Box {
	half := float64(det.Scale) / 2
	return geometry.Box{
		MinX: (float64(det.Col) - half) / float64(cols),
		MinY: (float64(det.Row) - half) / float64(rows),
		MaxX: (float64(det.Col) + half) / float64(cols),
		MaxY: (float64(det.Row) + half) / float64(rows),
	}.Clamped()
}

func (f *PigoFinder) locateLandmarks(det pigo.Detection, imgParams pigo.ImageParams, raw *geometry.RawFace, cols, rows int) {
	scale := float64(det.Scale)

	leftProbe := pigo.Puploc{
		Row:      det.Row - int(0.075*scale),
		Col:      det.Col - int(0.175*scale),
		Scale:    float32(scale * 0.25),
		Perturbs: pupilPerturbs,
	}
	leftEye := f.puploc.RunDetector(leftProbe, imgParams, 0.0, false)

	rightProbe := pigo.Puploc{
		Row:      det.Row - int(0.075*scale),
		Col:      det.Col + int(0.185*scale),
		Scale:    float32(scale * 0.25),
		Perturbs: pupilPerturbs,
	}
	rightEye := f.puploc.RunDetector(rightProbe, imgParams, 0.0, false)

	if leftEye.Row <= 0 || leftEye.Col <= 0 || rightEye.Row <= 0 || rightEye.Col <= 0 {
		return
	}

	landmarks := map[geometry.LandmarkGroup][]geometry.Point{
		geometry.GroupLeftPupil:  {pupilPoint(leftEye, cols, rows)},
		geometry.GroupRightPupil: {pupilPoint(rightEye, cols, rows)},
		// The detection center sits on the nose bridge for frontal faces;
		// pigo ships no nose cascade.
		geometry.GroupNose: {{
			X: float64(det.Col) / float64(cols),
			Y: float64(det.Row) / float64(rows),
		}},
	}

	for _, name := range eyeCascadeNames {
		for _, flpc := range f.flpcs[name] {
			if p := flpc.GetLandmarkPoint(leftEye, rightEye, imgParams, pupilPerturbs, false); p.Row > 0 && p.Col > 0 {
				landmarks[geometry.GroupLeftEye] = append(landmarks[geometry.GroupLeftEye], pupilPoint(p, cols, rows))
			}
			if p := flpc.GetLandmarkPoint(leftEye, rightEye, imgParams, pupilPerturbs, true); p.Row > 0 && p.Col > 0 {
				landmarks[geometry.GroupRightEye] = append(landmarks[geometry.GroupRightEye], pupilPoint(p, cols, rows))
			}
		}
	}
	for _, name := range mouthCascadeNames {
		for _, flpc := range f.flpcs[name] {
			if p := flpc.GetLandmarkPoint(leftEye, rightEye, imgParams, pupilPerturbs, false); p.Row > 0 && p.Col > 0 {
				landmarks[geometry.GroupOuterLips] = append(landmarks[geometry.GroupOuterLips], pupilPoint(p, cols, rows))
			}
		}
	}
	if flpcs := f.flpcs["lp84"]; len(flpcs) > 0 {
		if p := flpcs[0].GetLandmarkPoint(leftEye, rightEye, imgParams, pupilPerturbs, true); p.Row > 0 && p.Col > 0 {
			landmarks[geometry.GroupOuterLips] = append(landmarks[geometry.GroupOuterLips], pupilPoint(p, cols, rows))
		}
	}

	raw.Landmarks = landmarks
	raw.Roll, raw.Yaw = estimatePose(leftEye, rightEye, det)
}

func pupilPoint(p *pigo.Puploc, cols, rows int) geometry.Point {
	return geometry.Point{
		X: float64(p.Col) / float64(cols),
		Y: float64(p.Row) / float64(rows),
	}
}

// estimatePose derives roll from the interocular line and yaw from the
// horizontal nose offset against the pupil midpoint. Both are heuristics
// with bounded accuracy, stated in radians.
func estimatePose(leftEye, rightEye *pigo.Puploc, det pigo.Detection) (roll, yaw float64) {
	dx := float64(rightEye.Col - leftEye.Col)
	dy := float64(rightEye.Row - leftEye.Row)
	roll = math.Atan2(dy, dx)

	interocular := math.Hypot(dx, dy)
	if interocular > 0 {
		midX := (float64(leftEye.Col) + float64(rightEye.Col)) / 2
		yaw = math.Atan((float64(det.Col) - midX) / interocular)
	}
	return roll, yaw
}
