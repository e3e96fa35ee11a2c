package matrix

import (
	"bufio"
	"fmt"
	"io"
)

// WriteArray prints the matrix as a C initialiser usable in firmware builds.
func (m *Matrix) WriteArray(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "const Coordinates conversion_matrix[%d][%d] PROGMEM = \n{\n", Angles, m.radial)
	for angle := 0; angle < Angles; angle++ {
		bw.WriteString("  { ")
		for i := 0; i < m.radial; i++ {
			c := m.At(angle, i)
			fmt.Fprintf(bw, "{%d, %d}, ", c.X, c.Y)
		}
		bw.WriteString(" },\n")
	}
	bw.WriteString("};\n")
	return bw.Flush()
}

// WritePretty lists the coordinates of LEDs [from, to) for every angle.
func (m *Matrix) WritePretty(w io.Writer, from, to int) error {
	if to > m.radial {
		to = m.radial
	}
	bw := bufio.NewWriter(w)
	for angle := 0; angle < Angles; angle++ {
		fmt.Fprintf(bw, "Angle %d Degrees:\n", angle)
		for i := from; i < to; i++ {
			c := m.At(angle, i)
			fmt.Fprintf(bw, " LED: %d -> (x, y): (%d, %d)", i, c.X, c.Y)
		}
		bw.WriteString("\n - - - - - - - - - - - - - - - -\n")
	}
	return bw.Flush()
}

// WriteCoverage draws the pixels swept by a single LED over a full rotation.
// Each cell is printed twice to roughly square up terminal characters.
func (m *Matrix) WriteCoverage(w io.Writer, led int) error {
	field := make([][]byte, m.side)
	for y := range field {
		field[y] = make([]byte, m.side)
		for x := range field[y] {
			field[y][x] = ' '
		}
	}
	for angle := 0; angle < Angles; angle++ {
		if c := m.At(angle, led); c.Valid() {
			field[c.Y][c.X] = '#'
		}
	}
	bw := bufio.NewWriter(w)
	for _, row := range field {
		for _, ch := range row {
			bw.WriteByte(ch)
			bw.WriteByte(ch)
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
