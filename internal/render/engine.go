package render

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-holodisplay/internal/frames"
	"github.com/coreman2200/funtimes-holodisplay/internal/led"
	"github.com/coreman2200/funtimes-holodisplay/internal/matrix"
	"github.com/coreman2200/funtimes-holodisplay/internal/options"
)

// Engine resolves a full strip column for the current angle and frame and
// writes it to the driver. It is the clock's render callback.
//
// While rendering is disabled the clock keeps counting but Engine neither
// resolves nor transmits, so the strip holds the last column it was sent.
type Engine struct {
	Resolver Resolver
	Frames   *frames.Store
	Opts     *options.Store
	Drv      Driver

	col []Pixel // owned by the render goroutine

	rendered atomic.Uint64
	busy     atomic.Uint64
	disabled atomic.Uint64
	failed   atomic.Uint64
	lastNS   atomic.Int64
}

// Stats are engine counters since start.
type Stats struct {
	Rendered     uint64  `json:"rendered"`
	SkippedBusy  uint64  `json:"skipped_busy"`
	SkippedOff   uint64  `json:"skipped_disabled"`
	Errors       uint64  `json:"errors"`
	LastRenderUS float64 `json:"last_render_us"`
}

// NewEngine allocates the column buffer for a strip of 2*m.Radial() LEDs.
func NewEngine(m *matrix.Matrix, fs *frames.Store, opts *options.Store, drv Driver) (*Engine, error) {
	if m == nil || fs == nil || opts == nil {
		return nil, errors.New("render: matrix, frames and options are required")
	}
	if m.Side() != fs.Side() {
		return nil, errors.New("render: matrix and frame geometry differ")
	}
	return &Engine{
		Resolver: Resolver{Matrix: m},
		Frames:   fs,
		Opts:     opts,
		Drv:      drv,
		col:      make([]Pixel, 2*m.Radial()),
	}, nil
}

// Leds is the number of LEDs on the whole strip.
func (e *Engine) Leds() int { return len(e.col) }

// RenderColumn draws angle degrees of frame onto the strip.
func (e *Engine) RenderColumn(degrees, frame int) {
	o := e.Opts.Snapshot()
	if !o.Enabled {
		e.disabled.Add(1)
		return
	}
	start := time.Now()

	e.Resolver.Column(e.col, e.Frames.Frame(frame), degrees, o)

	if e.Drv != nil {
		if err := e.Drv.Write(e.col, o.Brightness); err != nil {
			if errors.Is(err, led.ErrBusy) {
				e.busy.Add(1)
				log.Debug().Int("degrees", degrees).Msg("transfer in flight; column skipped")
			} else {
				e.failed.Add(1)
				log.Error().Err(err).Int("degrees", degrees).Msg("strip write failed")
			}
			return
		}
	}
	e.rendered.Add(1)
	e.lastNS.Store(int64(time.Since(start)))
}

func (e *Engine) Stats() Stats {
	return Stats{
		Rendered:     e.rendered.Load(),
		SkippedBusy:  e.busy.Load(),
		SkippedOff:   e.disabled.Load(),
		Errors:       e.failed.Load(),
		LastRenderUS: float64(e.lastNS.Load()) / 1000.0,
	}
}
