package guidance

import (
	"sync"
	"time"
)

// countdown is the capture countdown controller: a repeating timer that
// decrements from a start value to zero, reporting each decrement and
// raising the done callback when it reaches zero. It is cancellable at any
// tick; the machine ensures only one instance runs at a time.
type countdown struct {
	stop chan struct{}
	once sync.Once
}

func startCountdown(start int, interval time.Duration, onTick func(remaining int), onDone func()) *countdown {
	c := &countdown{stop: make(chan struct{})}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		remaining := start
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				remaining--
				if remaining <= 0 {
					onDone()
					return
				}
				onTick(remaining)
			}
		}
	}()

	return c
}

// cancel stops the countdown; safe to call more than once
func (c *countdown) cancel() {
	c.once.Do(func() {
		close(c.stop)
	})
}
