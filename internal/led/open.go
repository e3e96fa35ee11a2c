package led

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Open initialises the host and returns the driver of the given kind on SPI
// port dev ("" picks the first one). speedHz of 0 keeps the device default.
// When the hardware cannot be opened the console simulator is returned
// instead and the failure is logged; the error is only for an unknown kind.
func Open(kind Kind, dev string, speedHz int, count int) (Driver, error) {
	switch kind {
	case KindSim:
		return NewSim(count), nil
	case KindAPA102, KindDMA, KindNRZ:
	default:
		return nil, fmt.Errorf("unknown driver %q", kind)
	}
	d, err := openSPI(kind, dev, speedHz, count)
	if err != nil {
		log.Warn().Err(err).Str("driver", string(kind)).Msg("strip unavailable; falling back to console simulator")
		return NewSim(count), nil
	}
	log.Info().Str("driver", string(kind)).Str("dev", dev).Int("leds", count).Msg("strip opened")
	return d, nil
}

func openSPI(kind Kind, dev string, speedHz int, count int) (Driver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	p, err := spireg.Open(dev)
	if err != nil {
		return nil, fmt.Errorf("open spi %q: %w", dev, err)
	}
	freq := physic.Frequency(speedHz) * physic.Hertz
	if speedHz > 0 {
		if err := p.LimitSpeed(freq); err != nil {
			p.Close()
			return nil, fmt.Errorf("limit speed: %w", err)
		}
	}

	var d Driver
	switch kind {
	case KindAPA102:
		d, err = NewAPA102(p, count)
	case KindNRZ:
		d, err = NewNRZ(p, count)
	case KindDMA:
		if speedHz <= 0 {
			freq = 8 * physic.MegaHertz
		}
		var c spi.Conn
		c, err = p.Connect(freq, spi.Mode0, 8)
		if err == nil {
			d = NewDMA(c, p, count)
		}
	default:
		err = fmt.Errorf("unknown driver %q", kind)
	}
	if err != nil {
		p.Close()
		return nil, err
	}
	return d, nil
}
