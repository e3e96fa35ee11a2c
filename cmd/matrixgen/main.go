// Command matrixgen precomputes the polar-to-pixel conversion matrix, either
// as a binary artifact for holo -matrix or as text for inspection.
package main

import (
	"bufio"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-holodisplay"
	"github.com/coreman2200/funtimes-holodisplay/internal/matrix"
)

func main() {
	var (
		leds   = flag.Int("leds", holodisplay.LedsPerSide, "LEDs on each half of the strip")
		side   = flag.Int("side", 0, "image width/height in pixels, default 2*leds")
		cx     = flag.Int("cx", -1, "hub x in image pixels, default leds")
		cy     = flag.Int("cy", -1, "hub y in image pixels, default leds")
		format = flag.String("format", "bin", "output: bin | array | pretty | coverage")
		out    = flag.String("out", "", "output file, stdout when empty")
		from   = flag.Int("from", 0, "pretty: first LED")
		to     = flag.Int("to", -1, "pretty: LED after the last one, default leds")
		led    = flag.Int("led", -1, "coverage: radial index, default the outermost")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	s := *side
	if s <= 0 {
		s = 2 * *leds
	}
	x, y := *cx, *cy
	if x < 0 {
		x = *leds
	}
	if y < 0 {
		y = *leds
	}

	if *to < 0 {
		*to = *leds
	}
	if *led < 0 {
		*led = *leds - 1
	}

	start := time.Now()
	m := matrix.Build(x, y, *leds, s)
	log.Info().Int("leds", *leds).Int("side", s).Int("cx", x).Int("cy", y).
		Dur("took", time.Since(start)).Msg("matrix built")

	f := os.Stdout
	if *out != "" {
		var err error
		if f, err = os.Create(*out); err != nil {
			log.Fatal().Err(err).Msg("create output")
		}
		defer f.Close()
	}
	w := bufio.NewWriter(f)

	var err error
	switch *format {
	case "bin":
		_, err = m.WriteTo(w)
	case "array":
		err = m.WriteArray(w)
	case "pretty":
		err = m.WritePretty(w, *from, *to)
	case "coverage":
		err = m.WriteCoverage(w, *led)
	default:
		log.Fatal().Str("format", *format).Msg("unknown format")
	}
	if err == nil {
		err = w.Flush()
	}
	if err != nil {
		log.Fatal().Err(err).Msg("write matrix")
	}
	if *out != "" {
		log.Info().Str("path", *out).Str("format", *format).Msg("matrix written")
	}
}
