// Package sensor watches the Hall sensor that marks a fixed point of the
// rotation.
package sensor

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// pollInterval bounds how long Run waits on an edge before checking ctx.
const pollInterval = 100 * time.Millisecond

// Hall calls Resync(Degrees) on every falling edge of Pin.
type Hall struct {
	Pin     gpio.PinIn
	Degrees int
	Resync  func(deg int)
	// Holdoff ignores edges that follow the previous one too closely, as a
	// magnet passing slowly can bounce.
	Holdoff time.Duration

	edges atomic.Uint64
	last  time.Time
}

// OpenPin initialises the host and looks up a GPIO pin by name, e.g.
// "GPIO17".
func OpenPin(name string) (gpio.PinIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("gpio %q not found", name)
	}
	return p, nil
}

// Run arms the pin and blocks until ctx is cancelled.
func (h *Hall) Run(ctx context.Context) error {
	if err := h.Pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		return fmt.Errorf("arm %s: %w", h.Pin, err)
	}
	log.Info().Str("pin", h.Pin.String()).Int("resync_degrees", h.Degrees).Msg("hall sensor armed")
	for ctx.Err() == nil {
		if !h.Pin.WaitForEdge(pollInterval) {
			continue
		}
		now := time.Now()
		if h.Holdoff > 0 && now.Sub(h.last) < h.Holdoff {
			continue
		}
		h.last = now
		h.edges.Add(1)
		if h.Resync != nil {
			h.Resync(h.Degrees)
		}
	}
	return nil
}

// Edges is the number of accepted edges.
func (h *Hall) Edges() uint64 { return h.edges.Load() }
