package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"go-idphoto-guide/internal/compliance"
	"go-idphoto-guide/internal/compositor"
	"go-idphoto-guide/internal/config"
	apperrors "go-idphoto-guide/internal/errors"
	"go-idphoto-guide/internal/geometry"
	"go-idphoto-guide/internal/guidance"
	"go-idphoto-guide/internal/logger"
	"go-idphoto-guide/internal/observer"
	"go-idphoto-guide/internal/photospec"
	"go-idphoto-guide/internal/session"
	"go-idphoto-guide/internal/storage"
	"go-idphoto-guide/internal/vision"
	"go-idphoto-guide/internal/voice"
	"go-idphoto-guide/pkg/models"
)

const statePushInterval = 200 * time.Millisecond

// Deps are the collaborators the HTTP layer exposes. Session, Voice,
// Sink and Metrics may be nil; their endpoints respond 503.
type Deps struct {
	Config    *config.Config
	Finder    vision.FaceFinder
	Analyzer  *geometry.Analyzer
	Evaluator *compliance.Evaluator
	Engine    compositor.Engine
	Sink      storage.PhotoSink
	Session   *session.Session
	Voice     *voice.Emitter
	Metrics   *observer.MetricsObserver
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type handler struct {
	deps Deps

	upgrader websocket.Upgrader

	mu   sync.Mutex
	last *compositor.Result
}

func NewHandler(deps Deps) http.Handler {
	h := &handler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Local engine, browser preview connects from any origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}

	r := gin.Default()

	// Add middleware
	r.Use(
		requestSizeLimiter(deps.Config.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", h.healthCheck)
	r.GET("/specs", h.listSpecs)
	r.POST("/analyze", h.analyzeFrame)
	r.POST("/process", h.processPhoto)
	r.POST("/background", h.swapBackground)
	r.GET("/guidance", h.streamGuidance)
	r.GET("/state", h.currentState)
	r.POST("/voice", h.setVoice)
	r.POST("/voice/event", h.voiceEvent)
	r.GET("/photos", h.listPhotos)
	r.DELETE("/photos/:name", h.removePhoto)

	return r
}

func (h *handler) healthCheck(c *gin.Context) {
	resp := gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	}
	if h.deps.Metrics != nil {
		resp["metrics"] = h.deps.Metrics.GetMetrics()
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) listSpecs(c *gin.Context) {
	catalog := photospec.Catalog()
	specs := make([]models.SpecDTO, 0, len(catalog))
	for _, s := range catalog {
		w, ht := s.PixelSize()
		specs = append(specs, models.SpecDTO{
			Code:     s.Code,
			Name:     s.Name,
			WidthMM:  s.WidthMM,
			HeightMM: s.HeightMM,
			DPI:      s.DPI,
			WidthPX:  w,
			HeightPX: ht,
		})
	}
	c.JSON(http.StatusOK, gin.H{"specs": specs})
}

// analyzeFrame evaluates one uploaded frame without touching the live
// session's state machine.
func (h *handler) analyzeFrame(c *gin.Context) {
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.deps.Config.RequestTimeout)
	defer cancel()

	frame, err := readFrame(c)
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "invalid frame upload", err)
		return
	}

	raw, err := h.deps.Finder.Find(ctx, frame)
	if err != nil {
		detErr := apperrors.NewDetectionError("face detection failed", err)
		respondError(c, detErr.StatusCode, "face detection failed", detErr)
		return
	}

	obs := h.deps.Analyzer.Analyze(raw)
	verdict := h.deps.Evaluator.Evaluate(obs, h.deps.Config.VisibleHeightFactor())

	logger.WithFields(logrus.Fields{
		"compliant":          verdict.Compliant,
		"code":               verdict.Code,
		"processing_time_ms": time.Since(startTime).Milliseconds(),
	}).Debug("Frame analysis completed")

	c.JSON(http.StatusOK, verdictResponse(verdict, obs))
}

func (h *handler) processPhoto(c *gin.Context) {
	startTime := time.Now()
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.deps.Config.RequestTimeout)
	defer cancel()

	logger.WithFields(logrus.Fields{
		"method": c.Request.Method,
		"path":   c.Request.URL.Path,
		"ip":     c.ClientIP(),
	}).Info("Processing photo request")

	var req models.ProcessRequest
	if err := c.ShouldBind(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request fields", err)
		return
	}

	frame, err := readFrame(c)
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "invalid frame upload", err)
		return
	}

	opts := compositor.Options{
		VisibleHeightFactor: h.deps.Config.VisibleHeightFactor(),
		Brightness:          req.Brightness,
	}
	if req.Background != "" {
		bg, err := parseHexColor(req.Background)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid background color", err)
			return
		}
		opts.Background = &bg
	}
	if req.SpecCode != "" {
		spec, ok := photospec.ByCode(req.SpecCode)
		if !ok {
			respondError(c, http.StatusBadRequest, "unknown photo specification",
				apperrors.NewValidationError(fmt.Sprintf("no specification %q", req.SpecCode), nil))
			return
		}
		opts.Spec = &spec
	}

	res, err := h.deps.Engine.Process(ctx, frame, opts)
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "photo processing failed", err)
		return
	}

	h.mu.Lock()
	h.last = res
	h.mu.Unlock()

	logger.WithFields(logrus.Fields{
		"processing_time_ms": time.Since(startTime).Milliseconds(),
		"persist":            req.Persist,
	}).Info("Photo processing completed")

	if req.Persist {
		if h.deps.Sink == nil {
			respondError(c, http.StatusServiceUnavailable, "photo library unavailable", nil)
			return
		}
		name, err := h.deps.Sink.Save(ctx, res.Image, req.Format)
		if err != nil {
			respondError(c, apperrors.GetStatusCode(err), "failed to save photo", err)
			return
		}
		b := res.Image.Bounds()
		c.JSON(http.StatusOK, models.ProcessResponse{
			Photo:     name,
			Width:     b.Dx(),
			Height:    b.Dy(),
			CreatedAt: time.Now().UTC(),
		})
		return
	}

	writeImage(c, res.Image, req.Format)
}

// swapBackground re-renders the most recent processed photo with a new
// fill, reusing its subject matte.
func (h *handler) swapBackground(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.deps.Config.RequestTimeout)
	defer cancel()

	var req models.BackgroundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request fields", err)
		return
	}

	bg, err := parseHexColor(req.Background)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid background color", err)
		return
	}

	h.mu.Lock()
	last := h.last
	h.mu.Unlock()
	if last == nil {
		respondError(c, http.StatusConflict, "no processed photo to re-render",
			apperrors.NewValidationError("process a photo first", nil))
		return
	}

	img, err := h.deps.Engine.SwapBackground(ctx, last, bg, req.Brightness)
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "background swap failed", err)
		return
	}

	writeImage(c, img, "png")
}

// streamGuidance upgrades to a websocket and pushes guidance state
// changes plus countdown ticks until the client disconnects.
func (h *handler) streamGuidance(c *gin.Context) {
	if h.deps.Session == nil {
		respondError(c, http.StatusServiceUnavailable, "no live session", nil)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.WithError(err).Error("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	// Drain client frames so pings and close frames are processed
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(statePushInterval)
	defer ticker.Stop()

	var lastSent guidance.State
	sentAny := false
	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
			st := h.deps.Session.State()
			if sentAny && st.Equal(lastSent) {
				continue
			}
			msg := models.StateMessage{
				State:     st.Kind.String(),
				Message:   st.Message,
				Remaining: st.Remaining,
				Timestamp: time.Now().UTC(),
			}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
			lastSent = st
			sentAny = true
		}
	}
}

func (h *handler) currentState(c *gin.Context) {
	if h.deps.Session == nil {
		respondError(c, http.StatusServiceUnavailable, "no live session", nil)
		return
	}
	st := h.deps.Session.State()
	c.JSON(http.StatusOK, models.StateMessage{
		State:     st.Kind.String(),
		Message:   st.Message,
		Remaining: st.Remaining,
		Timestamp: time.Now().UTC(),
	})
}

func (h *handler) setVoice(c *gin.Context) {
	if h.deps.Voice == nil {
		respondError(c, http.StatusServiceUnavailable, "voice guidance unavailable", nil)
		return
	}

	var req models.VoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}

	h.deps.Voice.SetMuted(req.Muted)
	c.JSON(http.StatusOK, gin.H{"muted": req.Muted})
}

// voiceEvent lets the host UI announce events the engine cannot see
// itself, like flash toggles or a camera switch.
func (h *handler) voiceEvent(c *gin.Context) {
	if h.deps.Voice == nil {
		respondError(c, http.StatusServiceUnavailable, "voice guidance unavailable", nil)
		return
	}

	var req struct {
		Event string `json:"event" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request format", err)
		return
	}

	ev, ok := map[string]voice.Event{
		"flash_on":        voice.EventFlashOn,
		"flash_off":       voice.EventFlashOff,
		"camera_switched": voice.EventCameraSwitched,
	}[req.Event]
	if !ok {
		respondError(c, http.StatusBadRequest, "unknown event",
			apperrors.NewValidationError(fmt.Sprintf("no event %q", req.Event), nil))
		return
	}

	h.deps.Voice.HandleEvent(ev)
	c.JSON(http.StatusOK, gin.H{"event": req.Event})
}

func (h *handler) listPhotos(c *gin.Context) {
	if h.deps.Sink == nil {
		respondError(c, http.StatusServiceUnavailable, "photo library unavailable", nil)
		return
	}
	photos, err := h.deps.Sink.List(c.Request.Context())
	if err != nil {
		respondError(c, apperrors.GetStatusCode(err), "failed to list photos", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"photos": photos})
}

func (h *handler) removePhoto(c *gin.Context) {
	if h.deps.Sink == nil {
		respondError(c, http.StatusServiceUnavailable, "photo library unavailable", nil)
		return
	}
	if err := h.deps.Sink.Remove(c.Request.Context(), c.Param("name")); err != nil {
		respondError(c, apperrors.GetStatusCode(err), "failed to remove photo", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// readFrame decodes the multipart "frame" upload, honoring EXIF orientation
func readFrame(c *gin.Context) (image.Image, error) {
	file, _, err := c.Request.FormFile("frame")
	if err != nil {
		return nil, apperrors.NewValidationError(`multipart field "frame" is required`, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, apperrors.NewValidationError("failed to read frame upload", err)
	}

	img, err := storage.DecodeWithOrientation(data)
	if err != nil {
		return nil, apperrors.NewValidationError("frame is not a decodable image", err)
	}
	return img, nil
}

func writeImage(c *gin.Context, img image.Image, format string) {
	var buf bytes.Buffer
	switch format {
	case "jpeg", "jpg":
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}); err != nil {
			respondError(c, http.StatusInternalServerError, "failed to encode photo", err)
			return
		}
		c.Data(http.StatusOK, "image/jpeg", buf.Bytes())
	default:
		if err := png.Encode(&buf, img); err != nil {
			respondError(c, http.StatusInternalServerError, "failed to encode photo", err)
			return
		}
		c.Data(http.StatusOK, "image/png", buf.Bytes())
	}
}

func verdictResponse(v compliance.Verdict, obs *geometry.FaceObservation) models.AnalyzeResponse {
	resp := models.AnalyzeResponse{
		Compliant: v.Compliant,
		Ideal:     v.Ideal,
		Code:      v.Code,
		Message:   v.Message,
	}
	if obs != nil {
		resp.Observation = &models.ObservationDTO{
			Box: models.BoxDTO{
				MinX: obs.Box.MinX,
				MinY: obs.Box.MinY,
				MaxX: obs.Box.MaxX,
				MaxY: obs.Box.MaxY,
			},
			YawDeg:   toDegrees(obs.Yaw),
			RollDeg:  toDegrees(obs.Roll),
			PitchDeg: toDegrees(obs.Pitch),
		}
	}
	return resp
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func parseHexColor(s string) (color.NRGBA, error) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 {
		return color.NRGBA{}, apperrors.NewValidationError("background must be #RRGGBB", nil)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, apperrors.NewValidationError("background must be #RRGGBB", err)
	}
	return color.NRGBA{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
		A: 0xff,
	}, nil
}

// Middleware and helper functions
func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err), "request processing failed", err)
		}
	}
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	if appErr, ok := err.(*apperrors.AppError); ok {
		return appErr.StatusCode
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	})
}
