package voice

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go-idphoto-guide/internal/guidance"
	"go-idphoto-guide/internal/logger"
)

// Event names an explicit host action worth announcing
type Event string

const (
	EventFlashOn        Event = "flash_on"
	EventFlashOff       Event = "flash_off"
	EventCameraSwitched Event = "camera_switched"
	EventCaptureSuccess Event = "capture_success"
	EventCaptureFailed  Event = "capture_failed"
)

// Phrases holds the spoken text for states and events; swappable per locale
type Phrases struct {
	NoFace         string
	Good           string
	Perfect        string
	FlashOn        string
	FlashOff       string
	CameraSwitched string
	CaptureSuccess string
	CaptureFailed  string
}

// DefaultPhrases returns the built-in English phrase set
func DefaultPhrases() Phrases {
	return Phrases{
		NoFace:         "No face detected, please face the camera",
		Good:           "Almost there, adjust slightly",
		Perfect:        "Perfect, hold still",
		FlashOn:        "Flash on",
		FlashOff:       "Flash off",
		CameraSwitched: "Camera switched",
		CaptureSuccess: "Photo captured",
		CaptureFailed:  "Capture failed, please try again",
	}
}

// Config holds the emitter's tunables
type Config struct {
	// MinInterval suppresses identical consecutive announcements unless
	// they are forced.
	MinInterval time.Duration
	Locale      string
	Rate        float64
	Pitch       float64
	Volume      float64
	Phrases     Phrases
}

// DefaultEmitterConfig returns the default emitter tunables
func DefaultEmitterConfig() Config {
	return Config{
		MinInterval: 4 * time.Second,
		Locale:      "en-US",
		Rate:        1.0,
		Pitch:       1.0,
		Volume:      1.0,
		Phrases:     DefaultPhrases(),
	}
}

// Emitter maps committed guidance states and explicit events to spoken
// utterances. It is a best-effort channel: speech-engine failures are
// logged and dropped, a new utterance always cancels the in-flight one,
// and muting cancels speech immediately.
type Emitter struct {
	mu      sync.Mutex
	speaker Speaker
	cfg     Config
	now     func() time.Time

	muted       bool
	lastText    string
	lastAt      time.Time
	cancel      context.CancelFunc
	saidPerfect bool
}

// NewEmitter creates a voice emitter over the given speaker
func NewEmitter(speaker Speaker, cfg Config) *Emitter {
	return &Emitter{
		speaker: speaker,
		cfg:     cfg,
		now:     time.Now,
	}
}

// HandleState announces a committed guidance state. Countdown ticks are
// always forced; the first-ever Perfect announcement is forced as well.
func (e *Emitter) HandleState(s guidance.State) {
	switch s.Kind {
	case guidance.StateNoFace:
		e.Announce(e.cfg.Phrases.NoFace, false)
	case guidance.StateNeedsAdjustment:
		e.Announce(s.Message, false)
	case guidance.StateGood:
		e.Announce(e.cfg.Phrases.Good, false)
	case guidance.StatePerfect:
		e.mu.Lock()
		force := !e.saidPerfect
		e.saidPerfect = true
		e.mu.Unlock()
		e.Announce(e.cfg.Phrases.Perfect, force)
	case guidance.StateCountdown:
		if s.Remaining > 0 {
			e.Announce(strconv.Itoa(s.Remaining), true)
		}
	}
}

// HandleEvent announces an explicit host event; capture events are forced
func (e *Emitter) HandleEvent(ev Event) {
	p := e.cfg.Phrases
	switch ev {
	case EventFlashOn:
		e.Announce(p.FlashOn, false)
	case EventFlashOff:
		e.Announce(p.FlashOff, false)
	case EventCameraSwitched:
		e.Announce(p.CameraSwitched, false)
	case EventCaptureSuccess:
		e.Announce(p.CaptureSuccess, true)
	case EventCaptureFailed:
		e.Announce(p.CaptureFailed, true)
	}
}

// Announce speaks the given text, deduplicating identical consecutive
// messages inside the minimum interval unless force is set. Any in-flight
// utterance is cancelled first.
func (e *Emitter) Announce(text string, force bool) {
	if text == "" {
		return
	}

	e.mu.Lock()
	if e.muted {
		e.mu.Unlock()
		return
	}
	now := e.now()
	if !force && text == e.lastText && now.Sub(e.lastAt) < e.cfg.MinInterval {
		e.mu.Unlock()
		return
	}
	e.lastText = text
	e.lastAt = now

	if e.cancel != nil {
		e.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	u := Utterance{
		Text:   text,
		Locale: e.cfg.Locale,
		Rate:   e.cfg.Rate,
		Pitch:  e.cfg.Pitch,
		Volume: e.cfg.Volume,
	}
	speaker := e.speaker
	e.mu.Unlock()

	go func() {
		if err := speaker.Speak(ctx, u); err != nil && ctx.Err() == nil {
			logger.WithError(err).Debug("Speech engine failed, dropping utterance")
		}
	}()
}

// SetMuted toggles global muting; muting cancels in-flight speech
func (e *Emitter) SetMuted(muted bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = muted
	if muted && e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// Muted reports the current mute flag
func (e *Emitter) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}
