package session

import (
	"context"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"go-idphoto-guide/internal/compliance"
	"go-idphoto-guide/internal/compositor"
	"go-idphoto-guide/internal/geometry"
	"go-idphoto-guide/internal/guidance"
	"go-idphoto-guide/internal/storage"
)

type stubSource struct {
	mu         sync.Mutex
	delay      time.Duration
	calls      int
	concurrent int
	maxConc    int
	closed     bool
}

func (s *stubSource) NextFrame(ctx context.Context) (image.Image, error) {
	s.mu.Lock()
	s.calls++
	s.concurrent++
	if s.concurrent > s.maxConc {
		s.maxConc = s.concurrent
	}
	delay := s.delay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	s.concurrent--
	s.mu.Unlock()

	return image.NewNRGBA(image.Rect(0, 0, 32, 32)), nil
}

func (s *stubSource) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

type stubFinder struct {
	face *geometry.RawFace
}

func (f *stubFinder) Find(ctx context.Context, frame image.Image) (*geometry.RawFace, error) {
	return f.face, nil
}

func (f *stubFinder) Close() error { return nil }

type memorySink struct {
	mu    sync.Mutex
	saved int
}

func (m *memorySink) Save(ctx context.Context, img image.Image, format string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved++
	return "photo.png", nil
}

func (m *memorySink) List(ctx context.Context) ([]storage.PhotoInfo, error) { return nil, nil }
func (m *memorySink) Remove(ctx context.Context, name string) error        { return nil }

func newTestSession(source FrameSource, finder *stubFinder, sink storage.PhotoSink) *Session {
	return New(
		Options{TickInterval: 5 * time.Millisecond},
		Components{
			Source:    source,
			Finder:    finder,
			Analyzer:  geometry.NewAnalyzer(),
			Evaluator: compliance.NewEvaluator(),
			Machine:   guidance.NewMachine(guidance.DefaultConfig()),
			Engine:    compositor.NewEngine(nil),
			Sink:      sink,
		},
	)
}

func TestSessionProducesVerdicts(t *testing.T) {
	source := &stubSource{}
	s := newTestSession(source, &stubFinder{}, nil)

	s.Start(context.Background())
	defer s.Stop()

	deadline := time.After(time.Second)
	for {
		if v, ok := s.LatestVerdict(); ok {
			if v.Code != compliance.CodeNoFace {
				t.Errorf("expected no-face verdict, got %q", v.Code)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("no verdict produced within a second")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSessionDropsFramesWhileBusy(t *testing.T) {
	source := &stubSource{delay: 40 * time.Millisecond}
	s := newTestSession(source, &stubFinder{}, nil)

	s.Start(context.Background())
	time.Sleep(200 * time.Millisecond)
	s.Stop()

	source.mu.Lock()
	defer source.mu.Unlock()
	if source.maxConc > 1 {
		t.Errorf("expected at most one frame in flight, saw %d", source.maxConc)
	}
	// 200ms of 5ms ticks is 40 opportunities; a 40ms grab must shed most.
	if source.calls > 10 {
		t.Errorf("expected dropped ticks while busy, source called %d times", source.calls)
	}
}

func TestSessionStopReturnsPromptly(t *testing.T) {
	source := &stubSource{delay: 30 * time.Millisecond}
	s := newTestSession(source, &stubFinder{}, nil)

	s.Start(context.Background())
	time.Sleep(20 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return within a second")
	}

	// Second Stop is a no-op, not a deadlock or panic.
	s.Stop()
}

func TestSessionCaptureRendersAndPersists(t *testing.T) {
	sink := &memorySink{}
	s := newTestSession(&stubSource{}, &stubFinder{}, sink)
	s.alive.Store(true)
	s.SetBackground(&color.NRGBA{R: 255, A: 255})

	s.lastFrame.Store(image.NewNRGBA(image.Rect(0, 0, 64, 64)))
	s.capture()

	deadline := time.After(time.Second)
	for {
		if photo, ok := s.LatestPhoto(); ok {
			if photo.Image == nil {
				t.Error("expected rendered image")
			}
			if photo.Name != "photo.png" {
				t.Errorf("expected persisted name, got %q", photo.Name)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("capture did not produce a photo within a second")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSessionCaptureWithoutFrame(t *testing.T) {
	s := newTestSession(&stubSource{}, &stubFinder{}, nil)
	s.alive.Store(true)

	s.capture()

	if _, ok := s.LatestPhoto(); ok {
		t.Error("expected no photo when no frame was ever grabbed")
	}
}

func TestSessionSupersededRenderIsDropped(t *testing.T) {
	s := newTestSession(&stubSource{}, &stubFinder{}, nil)
	s.alive.Store(true)

	frame := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	s.renderGen.Store(2)

	done := make(chan struct{})
	go func() {
		s.render(1, frame)
		close(done)
	}()
	<-done

	if _, ok := s.LatestPhoto(); ok {
		t.Error("expected stale render to be discarded")
	}
}

func TestSessionStopDetachesMachine(t *testing.T) {
	source := &stubSource{}
	s := newTestSession(source, &stubFinder{}, nil)

	s.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	s.Stop()

	// A tick racing Stop may still finish; verdicts it stores are
	// harmless, but the machine must not move once detached.
	before := s.State()
	time.Sleep(50 * time.Millisecond)
	if after := s.State(); !after.Equal(before) {
		t.Errorf("machine state changed after Stop: %v -> %v", before, after)
	}
}
