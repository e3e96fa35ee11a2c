package options

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// RenderOptions are the externally adjustable render parameters.
type RenderOptions struct {
	Brightness    uint8  `json:"brightness" yaml:"brightness"`
	OffsetDegrees uint16 `json:"offset_degrees" yaml:"offset_degrees"`
	RedAdjust     int16  `json:"red_adjust" yaml:"red_adjust"`
	GreenAdjust   int16  `json:"green_adjust" yaml:"green_adjust"`
	BlueAdjust    int16  `json:"blue_adjust" yaml:"blue_adjust"`
	Enabled       bool   `json:"enabled" yaml:"enabled"`
}

// Default matches the firmware start-up state: dim, unadjusted, enabled.
func Default() RenderOptions {
	return RenderOptions{Brightness: 20, Enabled: true}
}

// Channel selects one colour adjustment.
type Channel int

const (
	Red Channel = iota
	Green
	Blue
)

// Store guards a RenderOptions value. The lock is held only while copying
// the struct in or out, never while rendering.
type Store struct {
	mu   sync.Mutex
	opts RenderOptions
}

func NewStore(o RenderOptions) *Store {
	s := &Store{}
	s.Update(func(dst *RenderOptions) { *dst = o })
	return s
}

// Snapshot returns a coherent copy of all options.
func (s *Store) Snapshot() RenderOptions {
	s.mu.Lock()
	o := s.opts
	s.mu.Unlock()
	return o
}

// Update applies f to the options atomically. f must not block.
func (s *Store) Update(f func(*RenderOptions)) {
	s.mu.Lock()
	f(&s.opts)
	s.opts.OffsetDegrees %= 360
	s.mu.Unlock()
}

func (s *Store) SetBrightness(b uint8) { s.Update(func(o *RenderOptions) { o.Brightness = b }) }
func (s *Store) SetEnabled(on bool)    { s.Update(func(o *RenderOptions) { o.Enabled = on }) }

// SetOffset sets the angular offset, normalised into 0..359.
func (s *Store) SetOffset(deg int) {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	s.Update(func(o *RenderOptions) { o.OffsetDegrees = uint16(deg) })
}

// SetAdjust sets one signed channel adjustment, clamped to ±255.
func (s *Store) SetAdjust(c Channel, v int) {
	if v > 255 {
		v = 255
	}
	if v < -255 {
		v = -255
	}
	s.Update(func(o *RenderOptions) {
		switch c {
		case Red:
			o.RedAdjust = int16(v)
		case Green:
			o.GreenAdjust = int16(v)
		case Blue:
			o.BlueAdjust = int16(v)
		}
	})
}

// Apply sets one option from a key=value control field. Both the plain names
// and the web UI slider/lever names are accepted:
//
//	brightness | s2     0..255
//	red | s3            -255..255
//	green | s4          -255..255
//	blue | s5           -255..255
//	offset | s6         degrees, any integer
//	enabled | l2        true/false
func (s *Store) Apply(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case "brightness", "s2":
		v, err := strconv.ParseUint(value, 10, 8)
		if err != nil {
			return fmt.Errorf("brightness: %w", err)
		}
		s.SetBrightness(uint8(v))
	case "red", "s3", "green", "s4", "blue", "s5":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		s.SetAdjust(channelFor(key), v)
	case "offset", "s6":
		v, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("offset: %w", err)
		}
		s.SetOffset(v)
	case "enabled", "l2":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("enabled: %w", err)
		}
		s.SetEnabled(v)
	default:
		return fmt.Errorf("unknown option %q", key)
	}
	return nil
}

// Known reports whether Apply understands key.
func Known(key string) bool {
	switch key {
	case "brightness", "s2", "red", "s3", "green", "s4", "blue", "s5", "offset", "s6", "enabled", "l2":
		return true
	}
	return false
}

func channelFor(key string) Channel {
	switch key {
	case "green", "s4":
		return Green
	case "blue", "s5":
		return Blue
	}
	return Red
}
