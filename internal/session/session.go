package session

import (
	"context"
	"image"
	"image/color"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"go-idphoto-guide/internal/compliance"
	"go-idphoto-guide/internal/compositor"
	"go-idphoto-guide/internal/geometry"
	"go-idphoto-guide/internal/guidance"
	"go-idphoto-guide/internal/logger"
	"go-idphoto-guide/internal/observer"
	"go-idphoto-guide/internal/photospec"
	"go-idphoto-guide/internal/storage"
	"go-idphoto-guide/internal/vision"
	"go-idphoto-guide/internal/voice"
)

// FrameSource supplies live frames to the session loop.
type FrameSource interface {
	NextFrame(ctx context.Context) (image.Image, error)
	Close() error
}

// Options tunes the capture loop.
type Options struct {
	// TickInterval is the analysis cadence. Frames arriving while an
	// analysis is still running are dropped, never queued.
	TickInterval time.Duration
	// VisibleHeightFactor passes through to compliance and compositing.
	VisibleHeightFactor float64
}

// Components are the collaborators a session drives. Voice, Sink and
// Events may be nil.
type Components struct {
	Source    FrameSource
	Finder    vision.FaceFinder
	Analyzer  *geometry.Analyzer
	Evaluator *compliance.Evaluator
	Machine   *guidance.Machine
	Engine    compositor.Engine
	Voice     *voice.Emitter
	Sink      storage.PhotoSink
	Events    *observer.EventPublisher
}

// PhotoResult is the outcome of one capture render.
type PhotoResult struct {
	Image     image.Image
	Name      string
	CreatedAt time.Time
}

// Session runs the live guidance loop: grab frame, analyze, evaluate,
// feed the state machine, and render a photo when the countdown fires.
type Session struct {
	id string
	c  Components

	opts Options

	mu         sync.Mutex
	background *color.NRGBA
	spec       *photospec.Specification
	brightness float64

	lastFrame   Latest[image.Image]
	lastVerdict Latest[compliance.Verdict]
	lastPhoto   Latest[PhotoResult]

	inFlight  atomic.Bool
	renderGen atomic.Uint64
	alive     atomic.Bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a session and wires the machine's listeners. Start must be
// called before frames flow.
func New(opts Options, c Components) *Session {
	s := &Session{
		id:   uuid.New().String(),
		c:    c,
		opts: opts,
		done: make(chan struct{}),
	}

	var lastKind guidance.StateKind
	var kindMu sync.Mutex
	c.Machine.OnState(func(st guidance.State) {
		if c.Voice != nil {
			c.Voice.HandleState(st)
		}
		kindMu.Lock()
		entered := st.Kind == guidance.StateCountdown && lastKind != guidance.StateCountdown
		lastKind = st.Kind
		kindMu.Unlock()

		s.publish(observer.StateCommitted, true, "", map[string]interface{}{
			"state":   st.Kind.String(),
			"message": st.Message,
		})
		if entered {
			s.publish(observer.CountdownStarted, true, "", nil)
		}
	})
	c.Machine.OnCapture(s.capture)

	return s
}

// ID returns the session identifier
func (s *Session) ID() string {
	return s.id
}

// Start launches the capture loop until ctx ends or Stop is called.
func (s *Session) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.alive.Store(true)

	go s.run(ctx)
}

// Stop halts the loop and detaches the session from its collaborators.
// In-flight analysis finishes but no longer feeds the state machine.
func (s *Session) Stop() {
	if !s.alive.CompareAndSwap(true, false) {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Latest-wins: skip the tick while a frame is still in analysis
			if !s.inFlight.CompareAndSwap(false, true) {
				continue
			}
			go s.tick(ctx)
		}
	}
}

func (s *Session) tick(ctx context.Context) {
	defer s.inFlight.Store(false)

	frame, err := s.c.Source.NextFrame(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.WithError(err).Debug("Frame grab failed")
		}
		return
	}
	s.lastFrame.Store(frame)

	raw, err := s.c.Finder.Find(ctx, frame)
	if err != nil {
		logger.WithError(err).Debug("Face detection failed")
		return
	}

	obs := s.c.Analyzer.Analyze(raw)
	verdict := s.c.Evaluator.Evaluate(obs, s.opts.VisibleHeightFactor)
	s.lastVerdict.Store(verdict)

	if s.alive.Load() {
		s.c.Machine.Feed(verdict)
	}
}

// capture runs when the countdown completes. The render happens off the
// machine's callback goroutine; a newer capture supersedes an unfinished
// older one.
func (s *Session) capture() {
	if !s.alive.Load() {
		return
	}
	s.publish(observer.CaptureTriggered, true, "", nil)

	frame, ok := s.lastFrame.Load()
	if !ok {
		logger.Warn("Capture triggered with no frame available")
		s.c.Machine.Reset()
		return
	}

	gen := s.renderGen.Add(1)
	go s.render(gen, frame)
}

func (s *Session) render(gen uint64, frame image.Image) {
	defer s.c.Machine.Reset()

	s.mu.Lock()
	opts := compositor.Options{
		Background:          s.background,
		Spec:                s.spec,
		VisibleHeightFactor: s.opts.VisibleHeightFactor,
		Brightness:          s.brightness,
	}
	s.mu.Unlock()

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	res, err := s.c.Engine.Process(ctx, frame, opts)
	if err != nil {
		if s.c.Voice != nil {
			s.c.Voice.HandleEvent(voice.EventCaptureFailed)
		}
		s.publish(observer.ProcessingFailed, false, err.Error(), nil)
		return
	}
	if s.renderGen.Load() != gen {
		logger.Debug("Render superseded by a newer capture")
		return
	}

	photo := PhotoResult{Image: res.Image, CreatedAt: time.Now()}
	if s.c.Sink != nil {
		name, err := s.c.Sink.Save(ctx, res.Image, "png")
		if err != nil {
			logger.WithError(err).Error("Failed to persist photo")
		} else {
			photo.Name = name
			s.publish(observer.PhotoSaved, true, "", map[string]interface{}{"photo": name})
		}
	}
	s.lastPhoto.Store(photo)

	if s.c.Voice != nil {
		s.c.Voice.HandleEvent(voice.EventCaptureSuccess)
	}
	s.publish(observer.ProcessingCompleted, true, "", map[string]interface{}{
		"elapsed": time.Since(start).String(),
	})
}

// State returns the machine's committed guidance state
func (s *Session) State() guidance.State {
	return s.c.Machine.Committed()
}

// LatestVerdict returns the newest per-frame verdict
func (s *Session) LatestVerdict() (compliance.Verdict, bool) {
	return s.lastVerdict.Load()
}

// LatestPhoto returns the newest finished capture
func (s *Session) LatestPhoto() (PhotoResult, bool) {
	return s.lastPhoto.Load()
}

// SetBackground selects the replacement background for future renders
func (s *Session) SetBackground(c *color.NRGBA) {
	s.mu.Lock()
	s.background = c
	s.mu.Unlock()
}

// SetSpec selects the print format for future renders
func (s *Session) SetSpec(spec *photospec.Specification) {
	s.mu.Lock()
	s.spec = spec
	s.mu.Unlock()
}

// SetBrightness sets the brightness delta for future renders
func (s *Session) SetBrightness(delta float64) {
	s.mu.Lock()
	s.brightness = delta
	s.mu.Unlock()
}

func (s *Session) publish(et observer.EventType, success bool, errMsg string, meta map[string]interface{}) {
	if s.c.Events == nil {
		return
	}
	s.c.Events.NotifyObservers(context.Background(), observer.SessionEvent{
		EventType:    et,
		Timestamp:    time.Now(),
		SessionID:    s.id,
		Success:      success,
		ErrorMessage: errMsg,
		Metadata:     meta,
	})
}
