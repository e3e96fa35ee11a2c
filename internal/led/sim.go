package led

import (
	"image"
	"image/color"
	"sync"
	"time"

	"periph.io/x/conn/v3/display"
	"periph.io/x/extra/devices/screen"

	"github.com/coreman2200/funtimes-holodisplay/internal/frames"
)

// Sim draws the strip onto a display.Drawer, by default an ANSI terminal
// line. Columns arrive far faster than a terminal can show them, so draws are
// throttled; Write itself never fails until Close.
type Sim struct {
	mu       sync.Mutex
	drawer   display.Drawer
	img      *image.NRGBA
	throttle time.Duration
	lastEmit time.Time
	frames   uint64
	closed   bool
}

// NewSim renders count LEDs to the console.
func NewSim(count int) *Sim {
	return NewSimDrawer(screen.New(count), count, 50*time.Millisecond)
}

// NewSimDrawer renders to d, drawing at most once per throttle.
func NewSimDrawer(d display.Drawer, count int, throttle time.Duration) *Sim {
	return &Sim{
		drawer:   d,
		img:      image.NewNRGBA(image.Rect(0, 0, count, 1)),
		throttle: throttle,
	}
}

func (s *Sim) Write(px []frames.Pixel, brightness uint8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.frames++
	now := time.Now()
	if s.lastEmit.Add(s.throttle).After(now) {
		return nil
	}
	s.lastEmit = now
	for i, p := range px {
		if i >= s.img.Rect.Dx() {
			break
		}
		s.img.SetNRGBA(i, 0, color.NRGBA{
			R: scale(p.R, brightness),
			G: scale(p.G, brightness),
			B: scale(p.B, brightness),
			A: 0xFF,
		})
	}
	return s.drawer.Draw(s.drawer.Bounds(), s.img, image.Point{})
}

// Columns is the number of Write calls accepted, drawn or not.
func (s *Sim) Columns() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.drawer.Halt()
}
