package app

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-holodisplay"
	"github.com/coreman2200/funtimes-holodisplay/internal/clock"
	"github.com/coreman2200/funtimes-holodisplay/internal/frames"
	"github.com/coreman2200/funtimes-holodisplay/internal/led"
	"github.com/coreman2200/funtimes-holodisplay/internal/matrix"
	"github.com/coreman2200/funtimes-holodisplay/internal/options"
	"github.com/coreman2200/funtimes-holodisplay/internal/pattern"
	"github.com/coreman2200/funtimes-holodisplay/internal/render"
)

// Core owns everything between the image source and the strip.
type Core struct {
	Matrix *matrix.Matrix
	Frames *frames.Store
	Opts   *options.Store
	Eng    *render.Engine
	Clock  *clock.Clock
	Drv    led.Driver

	mu        sync.Mutex // serialises reloads
	closed    bool
	reloading atomic.Bool
}

// ErrClosed is returned by reloads after Close.
var ErrClosed = errors.New("app: core closed")

type HWConfig struct {
	LedsPerSide  int
	MaxFrames    int
	MatrixPath   string // precomputed artifact; built in memory when empty
	ImagePath    string
	ImageFormat  frames.Format
	DegreePeriod time.Duration
	Options      options.RenderOptions
}

func (hw *HWConfig) applyDefaults() {
	if hw.LedsPerSide <= 0 {
		hw.LedsPerSide = holodisplay.LedsPerSide
	}
	if hw.MaxFrames <= 0 {
		hw.MaxFrames = holodisplay.MaxFrames
	}
	if hw.DegreePeriod <= 0 {
		hw.DegreePeriod = holodisplay.StalledDegreePeriod
	}
}

// InitCore builds the pipeline, fills the frame store and starts the clock.
// A missing or unreadable image is not fatal: the built-in patterns are shown
// instead.
func InitCore(hw HWConfig, drv led.Driver) (*Core, error) {
	hw.applyDefaults()
	side := hw.LedsPerSide * 2

	// 1) Conversion matrix
	m, err := loadMatrix(hw.MatrixPath, hw.LedsPerSide, side)
	if err != nil {
		return nil, err
	}

	// 2) Frames
	fs := frames.NewStore(side, hw.MaxFrames)
	if hw.ImagePath != "" {
		if _, err := fs.LoadFile(hw.ImagePath, hw.ImageFormat); err != nil {
			log.Warn().Err(err).Str("path", hw.ImagePath).Msg("image load incomplete")
		}
	}
	if fs.Count() == 0 {
		n, err := pattern.Seed(fs)
		if err != nil {
			return nil, fmt.Errorf("seed patterns: %w", err)
		}
		log.Info().Int("frames", n).Msg("no image; showing built-in patterns")
	}

	// 3) Options and engine
	opts := options.NewStore(hw.Options)
	eng, err := render.NewEngine(m, fs, opts, drv)
	if err != nil {
		return nil, err
	}

	// 4) Clock
	clk := clock.New(fs, eng, hw.DegreePeriod)
	clk.Start()

	return &Core{Matrix: m, Frames: fs, Opts: opts, Eng: eng, Clock: clk, Drv: drv}, nil
}

func loadMatrix(path string, radial, side int) (*matrix.Matrix, error) {
	if path == "" {
		return matrix.Build(radial, radial, radial, side), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open matrix: %w", err)
	}
	defer f.Close()
	m, err := matrix.Read(f)
	if err != nil {
		return nil, err
	}
	if m.Radial() != radial || m.Side() != side {
		return nil, fmt.Errorf("%w: %s is %d LEDs over %dpx, want %d over %dpx",
			matrix.ErrBadArtifact, path, m.Radial(), m.Side(), radial, side)
	}
	log.Info().Str("path", path).Msg("conversion matrix loaded")
	return m, nil
}

// Reload stops the clock, runs load against the frame store and restarts the
// clock, whatever load returned. Nothing renders while load runs.
func (c *Core) Reload(load func(*frames.Store) (frames.LoadResult, error)) (frames.LoadResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return frames.LoadResult{}, ErrClosed
	}
	c.reloading.Store(true)
	defer c.reloading.Store(false)

	c.Clock.Stop()
	defer c.Clock.Start()

	start := time.Now()
	res, err := load(c.Frames)
	ev := log.Info()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Int("frames", res.Frames).Int("count", c.Frames.Count()).Dur("took", time.Since(start)).Msg("reload")
	return res, err
}

func (c *Core) ReloadFile(path string, format frames.Format) (frames.LoadResult, error) {
	return c.Reload(func(s *frames.Store) (frames.LoadResult, error) {
		return s.LoadFile(path, format)
	})
}

// ReloadBytes loads a binary frame sequence held in memory.
func (c *Core) ReloadBytes(b []byte) (frames.LoadResult, error) {
	return c.Reload(func(s *frames.Store) (frames.LoadResult, error) {
		return s.Load(bytes.NewReader(b))
	})
}

// UpdateFrame replaces one frame.
func (c *Core) UpdateFrame(i int, delay uint16, rgb []byte) error {
	_, err := c.Reload(func(s *frames.Store) (frames.LoadResult, error) {
		if err := s.SetFrame(i, delay, rgb); err != nil {
			return frames.LoadResult{}, err
		}
		return frames.LoadResult{Frames: 1, Bytes: int64(s.RecordSize())}, nil
	})
	return err
}

// Reloading reports whether a reload holds the clock stopped.
func (c *Core) Reloading() bool { return c.reloading.Load() }

// Close stops the clock and releases the driver.
func (c *Core) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.Clock.Stop()
	if c.Drv == nil {
		return nil
	}
	if err := c.Drv.Close(); err != nil && !errors.Is(err, led.ErrClosed) {
		return err
	}
	return nil
}
