package camera

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	apperrors "go-idphoto-guide/internal/errors"
)

// Capture manages webcam capture and hands frames out as image.Image
type Capture struct {
	webcam   *gocv.VideoCapture
	buf      gocv.Mat
	deviceID int
	width    int
	height   int
	mu       sync.Mutex
}

// NewCapture opens the camera device with default 720p resolution
func NewCapture(deviceID int, targetFPS int) (*Capture, error) {
	return NewCaptureWithResolution(deviceID, targetFPS, 1280, 720)
}

// NewCaptureWithResolution opens the camera device with the requested resolution
func NewCaptureWithResolution(deviceID int, targetFPS int, width, height int) (*Capture, error) {
	webcam, err := gocv.OpenVideoCapture(deviceID)
	if err != nil {
		return nil, apperrors.NewPermissionError(fmt.Sprintf("failed to open camera %d", deviceID), err)
	}

	// Set camera properties
	webcam.Set(gocv.VideoCaptureFrameWidth, float64(width))
	webcam.Set(gocv.VideoCaptureFrameHeight, float64(height))
	webcam.Set(gocv.VideoCaptureFPS, float64(targetFPS))

	// Get actual dimensions (camera may not support requested resolution)
	actualWidth := int(webcam.Get(gocv.VideoCaptureFrameWidth))
	actualHeight := int(webcam.Get(gocv.VideoCaptureFrameHeight))

	return &Capture{
		webcam:   webcam,
		buf:      gocv.NewMat(),
		deviceID: deviceID,
		width:    actualWidth,
		height:   actualHeight,
	}, nil
}

// NextFrame grabs one frame and converts it for the Go image pipeline
func (c *Capture) NextFrame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam == nil {
		return nil, apperrors.NewInternalError("camera is closed", nil)
	}
	if !c.webcam.Read(&c.buf) || c.buf.Empty() {
		return nil, apperrors.NewTimeoutError("failed to read camera frame", nil)
	}

	img, err := c.buf.ToImage()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to convert camera frame", err)
	}
	return img, nil
}

// Width returns frame width
func (c *Capture) Width() int {
	return c.width
}

// Height returns frame height
func (c *Capture) Height() int {
	return c.height
}

// Close releases the camera
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.webcam != nil {
		err := c.webcam.Close()
		c.buf.Close()
		c.webcam = nil
		return err
	}
	return nil
}
