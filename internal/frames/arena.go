package frames

import "fmt"

// Pixel is one stored RGB sample.
type Pixel struct{ R, G, B uint8 }

// Black is the colour of everything outside the image.
var Black = Pixel{}

// Arena is a fixed-capacity block of square RGB frames plus one display delay
// per frame. It is allocated once and never resized.
type Arena struct {
	side     int
	capacity int
	pix      []byte   // capacity * side * side * 3
	delays   []uint16 // ms per frame
}

// NewArena allocates room for capacity frames of side x side pixels.
func NewArena(side, capacity int) *Arena {
	if side <= 0 || capacity <= 0 {
		panic(fmt.Sprintf("frames: invalid arena geometry side=%d capacity=%d", side, capacity))
	}
	return &Arena{
		side:     side,
		capacity: capacity,
		pix:      make([]byte, capacity*side*side*3),
		delays:   make([]uint16, capacity),
	}
}

func (a *Arena) Side() int      { return a.side }
func (a *Arena) Capacity() int  { return a.capacity }
func (a *Arena) FrameSize() int { return a.side * a.side * 3 }

func (a *Arena) offset(frame, x, y int) int {
	if frame < 0 || frame >= a.capacity || x < 0 || x >= a.side || y < 0 || y >= a.side {
		panic(fmt.Sprintf("frames: index out of range frame=%d x=%d y=%d (capacity %d, side %d)",
			frame, x, y, a.capacity, a.side))
	}
	return ((frame*a.side+y)*a.side + x) * 3
}

// Pixel reads frame row y, column x.
func (a *Arena) Pixel(frame, x, y int) Pixel {
	o := a.offset(frame, x, y)
	return Pixel{a.pix[o], a.pix[o+1], a.pix[o+2]}
}

// SetPixel writes frame row y, column x.
func (a *Arena) SetPixel(frame, x, y int, p Pixel) {
	o := a.offset(frame, x, y)
	a.pix[o], a.pix[o+1], a.pix[o+2] = p.R, p.G, p.B
}

// slot exposes the raw bytes of one frame for bulk loading.
func (a *Arena) slot(frame int) []byte {
	o := a.offset(frame, 0, 0)
	return a.pix[o : o+a.FrameSize()]
}

func (a *Arena) clear(frame int) {
	s := a.slot(frame)
	for i := range s {
		s[i] = 0
	}
}

// View is a read-only window onto one frame of the arena.
type View struct {
	a     *Arena
	frame int
}

func (v View) Valid() bool { return v.a != nil }

// Pixel returns row y, column x, or black for an invalid view.
func (v View) Pixel(x, y int) Pixel {
	if v.a == nil {
		return Black
	}
	return v.a.Pixel(v.frame, x, y)
}

func (v View) Delay() uint16 {
	if v.a == nil {
		return 0
	}
	return v.a.delays[v.frame]
}

func (v View) Index() int { return v.frame }
