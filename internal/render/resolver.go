package render

import (
	"github.com/coreman2200/funtimes-holodisplay/internal/frames"
	"github.com/coreman2200/funtimes-holodisplay/internal/matrix"
	"github.com/coreman2200/funtimes-holodisplay/internal/options"
)

// Resolver turns (angle, LED) into a colour using the conversion matrix.
type Resolver struct {
	Matrix *matrix.Matrix
}

// Resolve returns the colour for one radial position. The opposite side of
// the strip reads the column 180 degrees away; the angular offset applies
// after that. Samples outside the image are black.
func (r Resolver) Resolve(f frames.View, angle, radial int, opposite bool, o options.RenderOptions) Pixel {
	eff := angle
	if opposite {
		eff = (eff + 180) % matrix.Angles
	}
	eff = (eff + int(o.OffsetDegrees)) % matrix.Angles

	c := r.Matrix.At(eff, radial)
	if !c.Valid() {
		return frames.Black
	}
	p := f.Pixel(int(c.X), int(c.Y))
	return Pixel{
		R: adjust(p.R, o.RedAdjust),
		G: adjust(p.G, o.GreenAdjust),
		B: adjust(p.B, o.BlueAdjust),
	}
}

// Column fills dst (2R LEDs) for one angle. LED 0 is the outer end of the
// near half, so LEDs 0..R-1 count inward (radial R-i-1); LEDs R..2R-1 run
// outward along the opposite half (radial i-R).
func (r Resolver) Column(dst []Pixel, f frames.View, angle int, o options.RenderOptions) {
	n := r.Matrix.Radial()
	for i := 0; i < n && i < len(dst); i++ {
		dst[i] = r.Resolve(f, angle, n-i-1, false, o)
	}
	for i := n; i < 2*n && i < len(dst); i++ {
		dst[i] = r.Resolve(f, angle, i-n, true, o)
	}
}

func adjust(c uint8, a int16) uint8 {
	v := int(c) + int(a)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
