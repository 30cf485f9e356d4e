package session

import "sync"

// Latest is a single-slot, latest-wins value holder. Writers overwrite
// unread values; readers always see the newest write.
type Latest[T any] struct {
	mu    sync.Mutex
	value T
	set   bool
}

// Store replaces the held value.
func (l *Latest[T]) Store(v T) {
	l.mu.Lock()
	l.value = v
	l.set = true
	l.mu.Unlock()
}

// Load returns the newest value and whether one was ever stored.
func (l *Latest[T]) Load() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.set
}
