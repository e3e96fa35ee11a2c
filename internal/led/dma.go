package led

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/spi"

	"github.com/coreman2200/funtimes-holodisplay/internal/frames"
)

// FrameLen is the size of an encoded APA102 transfer for n LEDs.
func FrameLen(n int) int { return 4 + 4*n + endLen(n) }

// The end frame must clock at least n/2 extra edges down the chain.
func endLen(n int) int {
	if e := n / 2; e > 4 {
		return e
	}
	return 4
}

// EncodeAPA102 writes a complete APA102 transfer for px into dst and returns
// it. dst is grown if needed. Layout: four 0x00 start bytes, one
// {0xE0|brightness5, B, G, R} word per LED, then the 0xFF end frame.
func EncodeAPA102(dst []byte, px []frames.Pixel, brightness uint8) []byte {
	n := FrameLen(len(px))
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	dst[0], dst[1], dst[2], dst[3] = 0, 0, 0, 0
	b5 := byte((uint16(brightness)*31 + 127) / 255)
	o := 4
	for _, p := range px {
		dst[o] = 0xE0 | b5
		dst[o+1] = p.B
		dst[o+2] = p.G
		dst[o+3] = p.R
		o += 4
	}
	for ; o < n; o++ {
		dst[o] = 0xFF
	}
	return dst
}

// DMA streams APA102 frames asynchronously. Write encodes into a private
// buffer and hands it to a transmit goroutine; while a transfer is in flight
// further writes return ErrBusy instead of blocking the render path.
type DMA struct {
	conn   spi.Conn
	closer io.Closer
	count  int

	mu     sync.Mutex // guards buf, closed and sends on reqs
	buf    []byte
	closed bool

	busy   atomic.Bool
	failed atomic.Uint64
	reqs   chan []byte
	done   chan struct{}
}

// NewDMA starts the transmit goroutine on c. closer, if non-nil, is closed
// with the driver.
func NewDMA(c spi.Conn, closer io.Closer, count int) *DMA {
	d := &DMA{
		conn:   c,
		closer: closer,
		count:  count,
		buf:    make([]byte, FrameLen(count)),
		reqs:   make(chan []byte, 1),
		done:   make(chan struct{}),
	}
	go d.transmit()
	return d
}

func (d *DMA) transmit() {
	defer close(d.done)
	for b := range d.reqs {
		if err := d.conn.Tx(b, nil); err != nil {
			d.failed.Add(1)
			log.Error().Err(err).Msg("apa102 transfer failed")
		}
		d.busy.Store(false)
	}
}

func (d *DMA) Write(px []frames.Pixel, brightness uint8) error {
	if len(px) != d.count {
		return fmt.Errorf("dma: %d pixels for a %d LED strip", len(px), d.count)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if !d.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	// The transmitter is idle, so buf is ours again.
	d.buf = EncodeAPA102(d.buf, px, brightness)
	d.reqs <- d.buf
	return nil
}

// Idle reports whether no transfer is in flight.
func (d *DMA) Idle() bool { return !d.busy.Load() }

// Failed counts transfers the bus rejected.
func (d *DMA) Failed() uint64 { return d.failed.Load() }

// Close waits for the in-flight transfer, then releases the port.
func (d *DMA) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.reqs)
	d.mu.Unlock()
	<-d.done
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}
