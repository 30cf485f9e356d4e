package guidance

import (
	"sync"
	"time"

	"go-idphoto-guide/internal/compliance"
)

// Config holds the timing constants of the state machine
type Config struct {
	// StabilityWindow is how long a candidate state must remain unchanged
	// before it is committed (debounce against single-frame detector noise).
	StabilityWindow time.Duration

	// PushInterval rate-limits committed-state changes pushed to observers;
	// the very first commit is exempt.
	PushInterval time.Duration

	// PerfectSustain is how long a committed Perfect must hold before the
	// countdown starts.
	PerfectSustain time.Duration

	// CountdownStart and CountdownTick parameterize the capture countdown.
	CountdownStart int
	CountdownTick  time.Duration
}

// DefaultConfig returns the default machine timing
func DefaultConfig() Config {
	return Config{
		StabilityWindow: time.Second,
		PushInterval:    3 * time.Second,
		PerfectSustain:  time.Second,
		CountdownStart:  3,
		CountdownTick:   time.Second,
	}
}

// Machine converts compliance verdicts over time into a stable guidance
// state. Feed it the latest verdict once per evaluation tick; committed
// state changes reach registered listeners after debounce and rate
// limiting, and a sustained Perfect starts the capture countdown.
type Machine struct {
	mu  sync.Mutex
	cfg Config
	now func() time.Time

	stateListeners   []func(State)
	captureListeners []func()

	candidate      State
	candidateSince time.Time

	committed    State
	hasCommitted bool
	lastPush     time.Time
	perfectSince time.Time

	active       *countdown
	countdownGen int
}

// NewMachine creates a guidance state machine in the NoFace state
func NewMachine(cfg Config) *Machine {
	return &Machine{
		cfg:       cfg,
		now:       time.Now,
		candidate: State{Kind: StateNoFace},
		committed: State{Kind: StateNoFace},
	}
}

// OnState registers a listener for committed state changes. Listeners are
// invoked outside the machine's lock and must not block for long.
func (m *Machine) OnState(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateListeners = append(m.stateListeners, fn)
}

// OnCapture registers a listener for the capture trigger
func (m *Machine) OnCapture(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captureListeners = append(m.captureListeners, fn)
}

// Committed returns the current committed state
func (m *Machine) Committed() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.committed
}

// CountdownActive reports whether a capture countdown is in flight
func (m *Machine) CountdownActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active != nil
}

// Feed advances the machine with the latest compliance verdict. Call it
// once per evaluation tick, independent of the camera frame rate.
func (m *Machine) Feed(v compliance.Verdict) {
	m.mu.Lock()
	now := m.now()
	cand := stateForVerdict(v)

	// A countdown in flight absorbs compliant verdicts (single in-flight
	// guard) and is cancelled immediately by any deficiency.
	if m.active != nil {
		if v.Compliant {
			m.mu.Unlock()
			return
		}
		m.cancelCountdownLocked()
		m.candidate = cand
		m.candidateSince = now
		m.commitLocked(cand, now)
		st, listeners := m.committed, m.stateListeners
		m.mu.Unlock()
		notify(listeners, st)
		return
	}

	if !cand.Equal(m.candidate) {
		m.candidate = cand
		m.candidateSince = now
	}

	var pending []State

	stable := now.Sub(m.candidateSince) >= m.cfg.StabilityWindow
	if stable && !cand.Equal(m.committed) {
		if !m.hasCommitted || now.Sub(m.lastPush) >= m.cfg.PushInterval {
			m.commitLocked(cand, now)
			pending = append(pending, m.committed)
		}
	}

	// Perfect held long enough starts the countdown
	if m.committed.Kind == StatePerfect && m.candidate.Kind == StatePerfect &&
		!m.perfectSince.IsZero() && now.Sub(m.perfectSince) >= m.cfg.PerfectSustain {
		m.startCountdownLocked(now)
		pending = append(pending, m.committed)
	}

	listeners := m.stateListeners
	m.mu.Unlock()

	for _, st := range pending {
		notify(listeners, st)
	}
}

// Reset returns the machine to its initial state, cancelling any countdown.
// The consumer calls it after performing a capture.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelCountdownLocked()
	m.candidate = State{Kind: StateNoFace}
	m.committed = State{Kind: StateNoFace}
	m.hasCommitted = false
	m.candidateSince = time.Time{}
	m.lastPush = time.Time{}
	m.perfectSince = time.Time{}
}

func (m *Machine) commitLocked(s State, now time.Time) {
	m.committed = s
	m.hasCommitted = true
	m.lastPush = now
	if s.Kind == StatePerfect {
		m.perfectSince = now
	} else {
		m.perfectSince = time.Time{}
	}
}

func (m *Machine) startCountdownLocked(now time.Time) {
	m.countdownGen++
	gen := m.countdownGen
	m.committed = State{Kind: StateCountdown, Remaining: m.cfg.CountdownStart}
	m.lastPush = now
	m.perfectSince = time.Time{}
	m.active = startCountdown(m.cfg.CountdownStart, m.cfg.CountdownTick,
		func(remaining int) { m.handleCountdownTick(gen, remaining) },
		func() { m.handleCountdownDone(gen) },
	)
}

func (m *Machine) cancelCountdownLocked() {
	if m.active != nil {
		m.active.cancel()
		m.active = nil
		m.countdownGen++
	}
}

func (m *Machine) handleCountdownTick(gen, remaining int) {
	m.mu.Lock()
	if gen != m.countdownGen {
		m.mu.Unlock()
		return
	}
	m.committed = State{Kind: StateCountdown, Remaining: remaining}
	st, listeners := m.committed, m.stateListeners
	m.mu.Unlock()
	notify(listeners, st)
}

func (m *Machine) handleCountdownDone(gen int) {
	m.mu.Lock()
	if gen != m.countdownGen {
		m.mu.Unlock()
		return
	}
	m.active = nil
	m.committed = State{Kind: StateCountdown, Remaining: 0}
	st := m.committed
	listeners := m.stateListeners
	captures := m.captureListeners
	m.mu.Unlock()

	notify(listeners, st)
	for _, fn := range captures {
		fn()
	}
}

func notify(listeners []func(State), st State) {
	for _, fn := range listeners {
		fn(st)
	}
}

func stateForVerdict(v compliance.Verdict) State {
	switch {
	case v.Compliant && v.Ideal:
		return State{Kind: StatePerfect}
	case v.Compliant:
		return State{Kind: StateGood}
	case v.Code == compliance.CodeNoFace:
		return State{Kind: StateNoFace}
	default:
		return State{Kind: StateNeedsAdjustment, Message: v.Message}
	}
}
