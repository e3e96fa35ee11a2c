package motor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

// SerialFeed reads the motor controller's "m1=<us>" reports from a serial
// line and feeds them to a Tracker.
type SerialFeed struct {
	Port    string
	Baud    int
	Tracker *Tracker
}

// Run opens the port and feeds the tracker until ctx is cancelled or the
// port fails.
func (f *SerialFeed) Run(ctx context.Context) error {
	baud := f.Baud
	if baud == 0 {
		baud = 115200
	}
	port, err := serial.Open(f.Port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Port, err)
	}
	log.Info().Str("port", f.Port).Int("baud", baud).Msg("motor feed connected")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			port.Close()
		case <-done:
		}
	}()

	err = Feed(port, f.Tracker)
	port.Close()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Feed reads newline separated reports from r until EOF. Lines that do not
// parse are logged and skipped.
func Feed(r io.Reader, t *Tracker) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		us, err := ParseReport(line)
		if err != nil {
			log.Warn().Err(err).Str("line", line).Msg("motor report ignored")
			continue
		}
		t.Pulse(us)
	}
	return sc.Err()
}

// ParseReport extracts the pulse period from "m1=<us>". A bare number is
// accepted too.
func ParseReport(line string) (int64, error) {
	v := line
	if k, rest, ok := strings.Cut(line, "="); ok {
		if k != "m1" {
			return 0, fmt.Errorf("unexpected key %q", k)
		}
		v = rest
	}
	us, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("pulse period: %w", err)
	}
	return us, nil
}
