package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-holodisplay"
	"github.com/coreman2200/funtimes-holodisplay/internal/app"
	"github.com/coreman2200/funtimes-holodisplay/internal/config"
	"github.com/coreman2200/funtimes-holodisplay/internal/frames"
	"github.com/coreman2200/funtimes-holodisplay/internal/led"
	"github.com/coreman2200/funtimes-holodisplay/internal/motor"
	"github.com/coreman2200/funtimes-holodisplay/internal/options"
	"github.com/coreman2200/funtimes-holodisplay/internal/sensor"
	"github.com/coreman2200/funtimes-holodisplay/internal/ws"
)

func main() {
	// ---- Flags (remain usable; config.yaml can override most) ----
	var (
		driver      = flag.String("driver", "sim", "driver: apa102 | dma | nrz | sim")
		spiDev      = flag.String("spi", "", "SPI port name or path, empty for the first one")
		speedHz     = flag.Int("speed-hz", 8000000, "SPI clock in Hz")
		ledsPerSide = flag.Int("leds", holodisplay.LedsPerSide, "LEDs on each half of the strip")
		maxFrames   = flag.Int("max-frames", holodisplay.MaxFrames, "frame arena capacity")
		imagePath   = flag.String("image", "image.bin", "frame sequence to show at start")
		imageFormat = flag.String("format", "bin", "image format: bin | json")
		matrixPath  = flag.String("matrix", "", "precomputed conversion matrix; built at start when empty")
		brightness  = flag.Int("brightness", 20, "global brightness 0..255")
		hallPin     = flag.String("hall", "", "Hall sensor GPIO name, e.g. GPIO17")
		motorPort   = flag.String("motor-serial", "", "serial port of the motor controller")
		addr        = flag.String("addr", ":8080", "HTTP listen address")
		configPath  = flag.String("config", "config.yaml", "path to config.yaml")
		logLevel    = flag.String("log-level", "info", "trace | debug | info | warn | error")
		simOnly     = flag.Bool("sim-only", false, "force simulation (no hardware output)")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	// ---- Load config.yaml (optional) ----
	cfg := &config.Config{}
	if c, err := config.Load(*configPath); err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with flags")
	} else {
		cfg = c
	}

	// ---- Effective params (config overrides flags where available) ----
	cfg.Driver = firstNonZeroString(cfg.Driver, *driver)
	cfg.SPI.Dev = firstNonZeroString(cfg.SPI.Dev, *spiDev)
	cfg.SPI.SpeedHz = firstNonZero(cfg.SPI.SpeedHz, *speedHz)
	cfg.LedsPerSide = firstNonZero(cfg.LedsPerSide, *ledsPerSide)
	cfg.MaxFrames = firstNonZero(cfg.MaxFrames, *maxFrames)
	cfg.ImagePath = firstNonZeroString(cfg.ImagePath, *imagePath)
	cfg.ImageFormat = firstNonZeroString(cfg.ImageFormat, *imageFormat)
	cfg.MatrixPath = firstNonZeroString(cfg.MatrixPath, *matrixPath)
	level := cfg.BrightnessOr(*brightness)
	cfg.Brightness = &level
	cfg.Hall.Pin = firstNonZeroString(cfg.Hall.Pin, *hallPin)
	cfg.Motor.SerialPort = firstNonZeroString(cfg.Motor.SerialPort, *motorPort)
	cfg.Addr = firstNonZeroString(cfg.Addr, *addr)
	cfg.LogLevel = firstNonZeroString(cfg.LogLevel, *logLevel)
	if *simOnly {
		cfg.Driver = string(led.KindSim)
	}

	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		log.Warn().Err(err).Str("level", cfg.LogLevel).Msg("bad log level; using info")
	} else {
		zerolog.SetGlobalLevel(lvl)
	}

	// ---- Driver ----
	drv, err := led.Open(led.Kind(cfg.Driver), cfg.SPI.Dev, cfg.SPI.SpeedHz, 2*cfg.LedsPerSide)
	if err != nil {
		log.Warn().Err(err).Str("driver", cfg.Driver).Msg("unknown driver; using SIM")
		cfg.Driver = string(led.KindSim)
		drv = led.NewSim(2 * cfg.LedsPerSide)
	}
	if _, ok := drv.(*led.Sim); ok {
		cfg.Driver = string(led.KindSim)
	}

	// ---- Core ----
	core, err := app.InitCore(app.HWConfig{
		LedsPerSide:  cfg.LedsPerSide,
		MaxFrames:    cfg.MaxFrames,
		MatrixPath:   cfg.MatrixPath,
		ImagePath:    cfg.ImagePath,
		ImageFormat:  frames.Format(cfg.ImageFormat),
		DegreePeriod: time.Duration(cfg.DegreePeriodUs) * time.Microsecond,
		Options:      renderOptions(cfg),
	}, drv)
	if err != nil {
		log.Fatal().Err(err).Msg("core init failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- Motor pulses -> degree period ----
	tracker := motor.NewTracker(cfg.Motor.PulsesPerRotation, cfg.Motor.Window)
	tracker.OnPeriod = core.Clock.SetPeriod
	if cfg.Motor.SerialPort != "" {
		feed := &motor.SerialFeed{Port: cfg.Motor.SerialPort, Baud: cfg.Motor.Baud, Tracker: tracker}
		go func() {
			if err := feed.Run(ctx); err != nil {
				log.Error().Err(err).Msg("motor feed stopped; pulses only arrive over HTTP now")
			}
		}()
	}

	// ---- Hall sensor -> resync ----
	if cfg.Hall.Pin != "" {
		pin, err := sensor.OpenPin(cfg.Hall.Pin)
		if err != nil {
			log.Warn().Err(err).Msg("hall sensor unavailable; running without resync")
		} else {
			h := &sensor.Hall{
				Pin:     pin,
				Degrees: cfg.Hall.ResyncDegrees,
				Resync:  core.Clock.Resync,
				Holdoff: time.Duration(cfg.Hall.HoldoffMs) * time.Millisecond,
			}
			go func() {
				if err := h.Run(ctx); err != nil {
					log.Error().Err(err).Msg("hall sensor stopped")
				}
			}()
		}
	}

	// ---- State + HTTP ----
	state := ws.NewState(core, tracker, cfg, *configPath)
	state.CurrentDriver = cfg.Driver

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      state.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("driver", cfg.Driver).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server crashed")
		}
	}()

	// ---- Graceful shutdown ----
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	s := <-ch
	log.Info().Str("signal", s.String()).Msg("shutting down")

	cancel()
	_ = srv.Close()
	if err := core.Close(); err != nil {
		log.Error().Err(err).Msg("close strip")
	}
}

func renderOptions(cfg *config.Config) options.RenderOptions {
	o := options.Default()
	o.Brightness = uint8(clamp(cfg.BrightnessOr(int(o.Brightness)), 0, 255))
	o.Enabled = cfg.Enabled == nil || *cfg.Enabled
	s := options.NewStore(o)
	s.SetOffset(cfg.OffsetDegrees)
	s.SetAdjust(options.Red, cfg.RedAdjust)
	s.SetAdjust(options.Green, cfg.GreenAdjust)
	s.SetAdjust(options.Blue, cfg.BlueAdjust)
	return s.Snapshot()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func firstNonZero(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}

func firstNonZeroString(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
