package matrix

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Angles is the number of angular columns per rotation.
const Angles = 360

// ErrBadArtifact is returned by Read when the input is not a matrix artifact.
var ErrBadArtifact = errors.New("matrix: bad artifact")

var magic = [4]byte{'P', 'C', 'M', '1'}

// Coord is a pixel coordinate inside the source image.
type Coord struct{ X, Y int16 }

// Off marks a polar sample that falls outside the image.
var Off = Coord{-1, -1}

func (c Coord) Valid() bool { return c != Off }

// Matrix maps (angle, radial index) to an image pixel. It is immutable once
// built and safe for concurrent readers.
type Matrix struct {
	radial int
	side   int
	cells  []Coord // [angle*radial + i]
}

// Build computes the lookup for every whole degree and every LED on one half
// of the strip. Samples outside [0, side) on either axis are stored as Off.
func Build(centerX, centerY, radial, side int) *Matrix {
	m := &Matrix{
		radial: radial,
		side:   side,
		cells:  make([]Coord, Angles*radial),
	}
	for angle := 0; angle < Angles; angle++ {
		theta := float64(angle) * math.Pi / 180.0
		cos, sin := math.Cos(theta), math.Sin(theta)
		for i := 0; i < radial; i++ {
			x := int(math.Round(float64(centerX) + float64(i)*cos))
			y := int(math.Round(float64(centerY) + float64(i)*sin))
			c := Off
			if x >= 0 && x < side && y >= 0 && y < side {
				c = Coord{X: int16(x), Y: int16(y)}
			}
			m.cells[angle*radial+i] = c
		}
	}
	return m
}

// At returns the coordinate for angle (0..359) and radial index. Indices
// outside the table yield Off.
func (m *Matrix) At(angle, i int) Coord {
	if angle < 0 || angle >= Angles || i < 0 || i >= m.radial {
		return Off
	}
	return m.cells[angle*m.radial+i]
}

func (m *Matrix) Angles() int { return Angles }
func (m *Matrix) Radial() int { return m.radial }
func (m *Matrix) Side() int   { return m.side }

// WriteTo serialises the matrix as a binary artifact: magic, angles, radial
// and side as little-endian uint16, then X,Y int16 pairs in angle-major order.
func (m *Matrix) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	hdr := make([]byte, 10)
	copy(hdr, magic[:])
	binary.LittleEndian.PutUint16(hdr[4:], Angles)
	binary.LittleEndian.PutUint16(hdr[6:], uint16(m.radial))
	binary.LittleEndian.PutUint16(hdr[8:], uint16(m.side))
	n, err := bw.Write(hdr)
	total := int64(n)
	if err != nil {
		return total, err
	}
	var pair [4]byte
	for _, c := range m.cells {
		binary.LittleEndian.PutUint16(pair[0:], uint16(c.X))
		binary.LittleEndian.PutUint16(pair[2:], uint16(c.Y))
		n, err = bw.Write(pair[:])
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, bw.Flush()
}

// Read loads a matrix written by WriteTo.
func Read(r io.Reader) (*Matrix, error) {
	br := bufio.NewReader(r)
	hdr := make([]byte, 10)
	if _, err := io.ReadFull(br, hdr); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrBadArtifact, err)
	}
	if [4]byte(hdr[:4]) != magic {
		return nil, fmt.Errorf("%w: magic %q", ErrBadArtifact, hdr[:4])
	}
	if a := binary.LittleEndian.Uint16(hdr[4:]); a != Angles {
		return nil, fmt.Errorf("%w: %d angles", ErrBadArtifact, a)
	}
	m := &Matrix{
		radial: int(binary.LittleEndian.Uint16(hdr[6:])),
		side:   int(binary.LittleEndian.Uint16(hdr[8:])),
	}
	if m.radial == 0 || m.side == 0 {
		return nil, fmt.Errorf("%w: empty geometry", ErrBadArtifact)
	}
	m.cells = make([]Coord, Angles*m.radial)
	var pair [4]byte
	for i := range m.cells {
		if _, err := io.ReadFull(br, pair[:]); err != nil {
			return nil, fmt.Errorf("%w: cell %d: %v", ErrBadArtifact, i, err)
		}
		m.cells[i] = Coord{
			X: int16(binary.LittleEndian.Uint16(pair[0:])),
			Y: int16(binary.LittleEndian.Uint16(pair[2:])),
		}
	}
	return m, nil
}
