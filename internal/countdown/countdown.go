// Package countdown implements the suspendable per-round countdown that
// drives automatic round-end. One coordinator owns at most one outstanding
// scheduled tick at a time; pausing or cancelling always invalidates that
// tick before the logical state changes, so a stale tick can never fire
// after the state no longer warrants it.
package countdown

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// State is the countdown's lifecycle state.
type State int

const (
	// Idle: no countdown running (pre-game, between rounds, game done).
	Idle State = iota
	// Running: ticking down one second at a time.
	Running
	// Paused: a challenge froze the remaining time.
	Paused
	// Expired: reached zero and fired the expiry callback.
	Expired
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Expired:
		return "expired"
	default:
		return "idle"
	}
}

var (
	ErrAlreadyRunning = errors.New("countdown already running")
	ErrNotRunning     = errors.New("countdown not running")
	ErrNotPaused      = errors.New("countdown not paused")
)

// Countdown counts a fixed number of seconds down to zero, ticking once per
// wall-clock second. Each tick is scheduled only after the previous tick's
// effect completes; Pause and Cancel invalidate the outstanding tick via a
// generation counter.
type Countdown struct {
	clock  clockwork.Clock
	length int

	onTick   func(remaining int)
	onExpire func()

	mu        sync.Mutex
	state     State
	remaining int
	gen       int
	stop      chan struct{}
}

// Option configures a Countdown.
type Option func(*Countdown)

// WithClock swaps the wall clock, e.g. for a clockwork fake in tests.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Countdown) { c.clock = clock }
}

// WithTickFunc registers a callback invoked after every completed tick with
// the seconds remaining.
func WithTickFunc(fn func(remaining int)) Option {
	return func(c *Countdown) { c.onTick = fn }
}

// New creates a countdown of lengthSec seconds that invokes onExpire once
// when it reaches zero.
func New(lengthSec int, onExpire func(), opts ...Option) *Countdown {
	c := &Countdown{
		clock:    clockwork.NewRealClock(),
		length:   lengthSec,
		onExpire: onExpire,
		state:    Idle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Countdown) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Remaining returns the seconds left on the clock.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Start resets the clock to the full round length and begins ticking. Valid
// from Idle or Expired; starting a running or paused countdown is refused so
// a racing duplicate round start cannot reset the clock.
func (c *Countdown) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Running || c.state == Paused {
		return ErrAlreadyRunning
	}
	c.remaining = c.length
	c.begin()
	return nil
}

// Pause freezes the remaining time and cancels the outstanding tick.
func (c *Countdown) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Running {
		return ErrNotRunning
	}
	close(c.stop)
	c.stop = nil
	c.state = Paused
	log.Debug().Int("remaining_sec", c.remaining).Msg("countdown paused")
	return nil
}

// Resume continues ticking from the frozen remaining time. It never resets
// to the full length.
func (c *Countdown) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Paused {
		return ErrNotPaused
	}
	c.begin()
	log.Debug().Int("remaining_sec", c.remaining).Msg("countdown resumed")
	return nil
}

// Cancel stops the countdown and returns it to Idle from any state.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	c.state = Idle
	c.remaining = 0
}

// begin arms the tick loop. Caller holds the mutex.
func (c *Countdown) begin() {
	c.state = Running
	c.gen++
	stop := make(chan struct{})
	c.stop = stop
	go c.loop(c.gen, stop)
}

// loop schedules one tick at a time. The generation check after each wakeup
// discards a tick that lost a race with Pause or Cancel.
func (c *Countdown) loop(gen int, stop chan struct{}) {
	for {
		timer := c.clock.NewTimer(time.Second)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.Chan():
		}

		c.mu.Lock()
		if c.gen != gen || c.state != Running {
			c.mu.Unlock()
			return
		}
		c.remaining--
		remaining := c.remaining
		if remaining <= 0 {
			c.state = Expired
			c.stop = nil
			c.mu.Unlock()
			if c.onExpire != nil {
				c.onExpire()
			}
			return
		}
		c.mu.Unlock()

		if c.onTick != nil {
			c.onTick(remaining)
		}
	}
}
