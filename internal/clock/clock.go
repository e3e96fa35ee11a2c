// Package clock advances the display's angle and frame counters.
//
// A tick goroutine stands in for the timer interrupt: it bumps the angle one
// degree per period, switches frames once their delay has elapsed and wakes
// the render goroutine. The render goroutine does the heavy work of resolving
// and transmitting a column. The wake slot holds a single pending signal, so
// ticks that arrive while a render is running coalesce instead of queueing.
package clock

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// Angles is the number of columns per rotation.
const Angles = 360

type State string

const (
	Stopped State = "stopped"
	Running State = "running"
)

// FrameSource is the subset of the frame store the clock reads.
type FrameSource interface {
	Count() int
	// Delay is the display time of frame i in milliseconds.
	Delay(i int) uint16
}

// Renderer draws one column. It is only ever called from the render
// goroutine.
type Renderer interface {
	RenderColumn(degrees, frame int)
}

type Clock struct {
	frames FrameSource
	render Renderer

	mu     sync.Mutex // guards state, cancel and lifecycle transitions
	state  State
	cancel context.CancelFunc
	wg     sync.WaitGroup

	degrees atomic.Int32
	frame   atomic.Int32
	period  atomic.Int64 // active degree period, ns
	pending atomic.Int64 // requested period, 0 when none

	lastSwitch time.Time // owned by whoever calls Tick
	wake       chan struct{}
}

// New returns a stopped clock with the given degree period.
func New(frames FrameSource, r Renderer, period time.Duration) *Clock {
	c := &Clock{
		frames:     frames,
		render:     r,
		state:      Stopped,
		lastSwitch: time.Now(),
		wake:       make(chan struct{}, 1),
	}
	c.period.Store(int64(period))
	return c
}

// Start launches the tick and render goroutines. Calling it on a running
// clock does nothing.
func (c *Clock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Running {
		return
	}
	// A reload may have left fewer frames than the current index.
	if int(c.frame.Load()) >= c.frames.Count() {
		c.frame.Store(0)
	}
	c.lastSwitch = time.Now()

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(2)
	go c.drive(ctx)
	go c.work(ctx)
	c.state = Running
	log.Info().Dur("period", c.Period()).Int("frames", c.frames.Count()).Msg("clock started")
}

// Stop halts both goroutines and waits for them, so no render is in flight
// once it returns. Calling it on a stopped clock does nothing.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Stopped {
		return
	}
	c.cancel()
	c.wg.Wait()
	select {
	case <-c.wake:
	default:
	}
	c.state = Stopped
	log.Info().Int("degrees", c.Degrees()).Int("frame", c.Frame()).Msg("clock stopped")
}

func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Clock) drive(ctx context.Context) {
	defer c.wg.Done()
	t := time.NewTicker(c.Period())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if c.Tick(now) {
				t.Reset(c.Period())
			}
		}
	}
}

func (c *Clock) work(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
			c.render.RenderColumn(c.Degrees(), c.Frame())
		}
	}
}

// Tick advances the clock by one degree as of now and signals the render
// goroutine. It reports whether a new period took effect, which only happens
// when the angle wraps to 0. Tick must not be called concurrently with
// itself.
func (c *Clock) Tick(now time.Time) bool {
	changed := false
	// CAS so a concurrent Resync is never overwritten by a stale increment.
	var d int32
	for {
		old := c.degrees.Load()
		d = old + 1
		if d >= Angles {
			d = 0
		}
		if c.degrees.CompareAndSwap(old, d) {
			break
		}
	}
	if d == 0 {
		if p := c.pending.Swap(0); p > 0 && p != c.period.Load() {
			c.period.Store(p)
			changed = true
		}
	}

	if n := c.frames.Count(); n >= 2 {
		f := int(c.frame.Load())
		if f >= n {
			f = 0
		}
		if now.Sub(c.lastSwitch) >= time.Duration(c.frames.Delay(f))*time.Millisecond {
			f = (f + 1) % n
			c.lastSwitch = now
		}
		c.frame.Store(int32(f))
	}

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return changed
}

// SetPeriod requests a new degree period. A running clock picks it up at the
// start of the next rotation; a stopped clock takes it at once. Non-positive
// periods are ignored.
func (c *Clock) SetPeriod(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Stopped {
		c.period.Store(int64(d))
		c.pending.Store(0)
		return
	}
	c.pending.Store(int64(d))
}

// Period is the degree period currently in effect.
func (c *Clock) Period() time.Duration { return time.Duration(c.period.Load()) }

// Resync forces the angle, typically to 0 or 180 when the Hall sensor fires.
func (c *Clock) Resync(deg int) {
	deg %= Angles
	if deg < 0 {
		deg += Angles
	}
	c.degrees.Store(int32(deg))
}

func (c *Clock) Degrees() int { return int(c.degrees.Load()) }

func (c *Clock) Frame() int { return int(c.frame.Load()) }
