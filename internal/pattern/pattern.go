// Package pattern draws built-in test frames used when no image is loaded.
package pattern

import (
	"fmt"
	"math"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/coreman2200/funtimes-holodisplay/internal/frames"
)

type Kind string

const (
	ColorWheelKind Kind = "color_wheel"
	SpokesKind     Kind = "spokes"
	RGBRingsKind   Kind = "rgb_rings"
)

// Kinds lists the patterns in Seed order.
var Kinds = []Kind{ColorWheelKind, SpokesKind, RGBRingsKind}

// SeedDelay is the display time of each seeded frame, in ms.
const SeedDelay = 2000

// Render draws kind into a new side*side RGB frame.
func Render(kind Kind, side int) ([]byte, error) {
	switch kind {
	case ColorWheelKind:
		return ColorWheel(side), nil
	case SpokesKind:
		return Spokes(side, 12), nil
	case RGBRingsKind:
		return RGBRings(side), nil
	}
	return nil, fmt.Errorf("unknown pattern %q", kind)
}

// polar returns the radius and angle (degrees, 0..360) of pixel (x,y)
// measured from the image centre.
func polar(x, y, side int) (r, deg float64) {
	c := float64(side-1) / 2
	dx, dy := float64(x)-c, float64(y)-c
	r = math.Hypot(dx, dy)
	deg = math.Atan2(dy, dx) * 180 / math.Pi
	if deg < 0 {
		deg += 360
	}
	return r, deg
}

func set(rgb []byte, side, x, y int, c colorful.Color) {
	i := (y*side + x) * 3
	rgb[i], rgb[i+1], rgb[i+2] = c.RGB255()
}

// ColorWheel maps angle to hue and radius to saturation inside the inscribed
// circle; the corners stay black.
func ColorWheel(side int) []byte {
	rgb := make([]byte, side*side*3)
	rmax := float64(side) / 2
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			r, deg := polar(x, y, side)
			if r > rmax {
				continue
			}
			set(rgb, side, x, y, colorful.Hsv(deg, r/rmax, 1))
		}
	}
	return rgb
}

// Spokes draws n evenly spaced white spokes about one pixel wide.
func Spokes(side, n int) []byte {
	rgb := make([]byte, side*side*3)
	if n <= 0 {
		return rgb
	}
	step := 360 / float64(n)
	white := colorful.Color{R: 1, G: 1, B: 1}
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			r, deg := polar(x, y, side)
			off := math.Mod(deg, step)
			if off > step/2 {
				off = step - off
			}
			// arc length from the nearest spoke
			if r*off*math.Pi/180 <= 0.5 {
				set(rgb, side, x, y, white)
			}
		}
	}
	return rgb
}

// RGBRings draws concentric red, green and blue bands. Every LED of the
// strip lights up once per band, which makes a dead LED easy to spot.
func RGBRings(side int) []byte {
	rgb := make([]byte, side*side*3)
	band := side / 16
	if band < 1 {
		band = 1
	}
	cols := []colorful.Color{{R: 1}, {G: 1}, {B: 1}}
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			r, _ := polar(x, y, side)
			set(rgb, side, x, y, cols[(int(r)/band)%len(cols)])
		}
	}
	return rgb
}

// Seed loads every pattern into s as an animation, starting at frame 0.
// Patterns that do not fit the store's capacity are left out.
func Seed(s *frames.Store) (int, error) {
	n := 0
	for i, k := range Kinds {
		if i >= s.Capacity() {
			break
		}
		rgb, err := Render(k, s.Side())
		if err != nil {
			return n, err
		}
		if err := s.SetFrame(i, SeedDelay, rgb); err != nil {
			return n, fmt.Errorf("seed %s: %w", k, err)
		}
		n++
	}
	return n, nil
}
