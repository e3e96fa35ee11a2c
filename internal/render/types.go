package render

import "github.com/coreman2200/funtimes-holodisplay/internal/frames"

type Pixel = frames.Pixel

// Driver abstracts the LED transport (SPI, etc.). Implementations must not
// retain px after Write returns.
type Driver interface {
	Write(px []Pixel, brightness uint8) error
}
