package container

import (
	"context"
	"fmt"
	"net/http"

	"go-idphoto-guide/internal/camera"
	"go-idphoto-guide/internal/compliance"
	"go-idphoto-guide/internal/compositor"
	"go-idphoto-guide/internal/config"
	"go-idphoto-guide/internal/geometry"
	"go-idphoto-guide/internal/guidance"
	"go-idphoto-guide/internal/logger"
	"go-idphoto-guide/internal/observer"
	"go-idphoto-guide/internal/session"
	"go-idphoto-guide/internal/storage"
	"go-idphoto-guide/internal/transport"
	"go-idphoto-guide/internal/vision"
	"go-idphoto-guide/internal/voice"
)

// Container holds all application dependencies
type Container struct {
	config    *config.Config
	finder    vision.FaceFinder
	segmenter vision.Segmenter
	engine    compositor.Engine
	machine   *guidance.Machine
	emitter   *voice.Emitter
	sink      storage.PhotoSink
	metrics   *observer.MetricsObserver
	events    *observer.EventPublisher
	source    session.FrameSource
	session   *session.Session
	handler   http.Handler
}

// NewContainer creates a new dependency injection container
func NewContainer(cfg *config.Config) (*Container, error) {
	finder, err := vision.NewPigoFinder(cfg.CascadeDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize face detection: %w", err)
	}

	var segmenter vision.Segmenter
	if cfg.SegmenterURL != "" {
		segmenter = vision.NewHTTPSegmenter(cfg.SegmenterURL)
	} else {
		logger.Warn("No segmenter configured, background replacement disabled")
	}

	analyzer := geometry.NewAnalyzer()
	evaluator := compliance.NewEvaluatorWith(
		compliance.ThresholdsForProfile(cfg.ThresholdProfile),
		compliance.DefaultMessages(),
	)
	engine := compositor.NewEngine(segmenter)

	sink, err := storage.NewLibrarySink(cfg.PhotoLibraryDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize photo library: %w", err)
	}

	machine := guidance.NewMachine(guidance.Config{
		StabilityWindow: cfg.StabilityWindow,
		PushInterval:    cfg.StatePushInterval,
		PerfectSustain:  cfg.PerfectSustain,
		CountdownStart:  cfg.CountdownStart,
		CountdownTick:   cfg.CountdownTick,
	})

	var emitter *voice.Emitter
	if cfg.VoiceEnabled {
		voiceCfg := voice.DefaultEmitterConfig()
		voiceCfg.MinInterval = cfg.VoiceMinInterval
		voiceCfg.Locale = cfg.VoiceLocale
		emitter = voice.NewEmitter(voice.NewCommandSpeaker(cfg.SpeechCommand), voiceCfg)
	}

	metrics := observer.NewMetricsObserver()
	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(metrics)

	c := &Container{
		config:    cfg,
		finder:    finder,
		segmenter: segmenter,
		engine:    engine,
		machine:   machine,
		emitter:   emitter,
		sink:      sink,
		metrics:   metrics,
		events:    events,
	}

	// A live camera is optional; without one the service still serves the
	// stateless analysis and processing endpoints.
	if cfg.CameraDevice >= 0 {
		source, err := camera.NewCapture(cfg.CameraDevice, cfg.CameraFPS)
		if err != nil {
			return nil, fmt.Errorf("failed to open camera: %w", err)
		}
		c.source = source
		c.session = session.New(
			session.Options{
				TickInterval:        cfg.TickInterval,
				VisibleHeightFactor: cfg.VisibleHeightFactor(),
			},
			session.Components{
				Source:    source,
				Finder:    finder,
				Analyzer:  analyzer,
				Evaluator: evaluator,
				Machine:   machine,
				Engine:    engine,
				Voice:     emitter,
				Sink:      sink,
				Events:    events,
			},
		)
	}

	c.handler = transport.NewHandler(transport.Deps{
		Config:    cfg,
		Finder:    finder,
		Analyzer:  analyzer,
		Evaluator: evaluator,
		Engine:    engine,
		Sink:      sink,
		Session:   c.session,
		Voice:     emitter,
		Metrics:   metrics,
	})

	return c, nil
}

// Start launches the live capture session when a camera is configured
func (c *Container) Start(ctx context.Context) {
	if c.session != nil {
		c.session.Start(ctx)
		logger.WithField("session_id", c.session.ID()).Info("Capture session started")
	}
}

// Close stops the session and releases the camera and detector
func (c *Container) Close() error {
	if c.session != nil {
		c.session.Stop()
	}
	var firstErr error
	if c.source != nil {
		if err := c.source.Close(); err != nil {
			firstErr = err
		}
	}
	if err := c.finder.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}
