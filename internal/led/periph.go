package led

import (
	"fmt"
	"io"
	"sync"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/devices/v3/apa102"
	"periph.io/x/devices/v3/nrzled"

	"github.com/coreman2200/funtimes-holodisplay/internal/frames"
)

// APA102 drives an APA102/SK9822 strip through periph's apa102 device.
// Write blocks until the SPI transfer completes. Global brightness maps to
// the device intensity.
type APA102 struct {
	mu     sync.Mutex
	dev    *apa102.Dev
	count  int
	rgb    []byte
	closer io.Closer
}

// NewAPA102 connects count LEDs on p. If p is also an io.Closer it is closed
// with the driver.
func NewAPA102(p spi.Port, count int) (*APA102, error) {
	o := apa102.DefaultOpts
	o.NumPixels = count
	d, err := apa102.New(p, &o)
	if err != nil {
		return nil, fmt.Errorf("apa102: %w", err)
	}
	a := &APA102{dev: d, count: count, rgb: make([]byte, 0, count*3)}
	if c, ok := p.(io.Closer); ok {
		a.closer = c
	}
	return a, nil
}

func (a *APA102) Write(px []frames.Pixel, brightness uint8) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dev == nil {
		return ErrClosed
	}
	if len(px) != a.count {
		return fmt.Errorf("apa102: %d pixels for a %d LED strip", len(px), a.count)
	}
	a.dev.Intensity = brightness
	a.rgb = packRGB(a.rgb, px, brightness, false)
	if _, err := a.dev.Write(a.rgb); err != nil {
		return fmt.Errorf("apa102 write: %w", err)
	}
	return nil
}

func (a *APA102) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.dev == nil {
		return nil
	}
	err := a.dev.Halt()
	a.dev = nil
	if a.closer != nil {
		if cerr := a.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// NRZ drives a WS2812 (NeoPixel) strip through periph's nrzled SPI encoder.
// NeoPixels have no global brightness, so channels are scaled in software.
type NRZ struct {
	mu     sync.Mutex
	dev    *nrzled.Dev
	count  int
	rgb    []byte
	closer io.Closer
}

func NewNRZ(p spi.Port, count int) (*NRZ, error) {
	o := nrzled.Opts{NumPixels: count, Channels: 3, Freq: 2500 * physic.KiloHertz}
	d, err := nrzled.NewSPI(p, &o)
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	n := &NRZ{dev: d, count: count, rgb: make([]byte, 0, count*3)}
	if c, ok := p.(io.Closer); ok {
		n.closer = c
	}
	return n, nil
}

func (n *NRZ) Write(px []frames.Pixel, brightness uint8) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dev == nil {
		return ErrClosed
	}
	if len(px) != n.count {
		return fmt.Errorf("nrzled: %d pixels for a %d LED strip", len(px), n.count)
	}
	n.rgb = packRGB(n.rgb, px, brightness, true)
	if _, err := n.dev.Write(n.rgb); err != nil {
		return fmt.Errorf("nrzled write: %w", err)
	}
	return nil
}

func (n *NRZ) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.dev == nil {
		return nil
	}
	err := n.dev.Halt()
	n.dev = nil
	if n.closer != nil {
		if cerr := n.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
