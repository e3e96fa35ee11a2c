package led

import (
	"errors"

	"github.com/coreman2200/funtimes-holodisplay/internal/frames"
)

var (
	// ErrBusy means the previous transfer is still in flight; the column was
	// dropped and the next tick should simply try again.
	ErrBusy = errors.New("led: transfer in flight")
	// ErrClosed is returned by Write after Close.
	ErrClosed = errors.New("led: driver closed")
)

// Driver abstracts an LED output sink.
type Driver interface {
	// Write pushes one strip column at the given global brightness. len(px)
	// must equal the strip length. px is not retained.
	Write(px []frames.Pixel, brightness uint8) error
	// Close releases resources.
	Close() error
}

// Kind names a driver implementation.
type Kind string

const (
	KindAPA102 Kind = "apa102"
	KindDMA    Kind = "dma"
	KindNRZ    Kind = "nrz"
	KindSim    Kind = "sim"
)

// scale applies a 0..255 global brightness to one channel.
func scale(c, brightness uint8) byte {
	return byte((uint16(c)*uint16(brightness) + 127) / 255)
}

// packRGB flattens px into dst as R,G,B triples, optionally scaled.
func packRGB(dst []byte, px []frames.Pixel, brightness uint8, scaled bool) []byte {
	dst = dst[:0]
	for _, p := range px {
		if scaled {
			dst = append(dst, scale(p.R, brightness), scale(p.G, brightness), scale(p.B, brightness))
		} else {
			dst = append(dst, p.R, p.G, p.B)
		}
	}
	return dst
}
