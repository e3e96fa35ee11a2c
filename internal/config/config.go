package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type SPI struct {
	Dev     string `yaml:"dev"`      // e.g. /dev/spidev0.0, "" for the first port
	SpeedHz int    `yaml:"speed_hz"` // e.g. 8000000
}

type Hall struct {
	Pin           string `yaml:"pin"`            // e.g. GPIO17, "" to disable
	ResyncDegrees int    `yaml:"resync_degrees"` // angle the magnet sits at
	HoldoffMs     int    `yaml:"holdoff_ms"`
}

type Motor struct {
	SerialPort        string `yaml:"serial_port"` // "" when pulses arrive over HTTP
	Baud              int    `yaml:"baud"`
	PulsesPerRotation int    `yaml:"pulses_per_rotation"`
	Window            int    `yaml:"window"`
}

type Config struct {
	Driver      string `yaml:"driver"` // "apa102" | "dma" | "nrz" | "sim"
	SPI         SPI    `yaml:"spi,omitempty"`
	LedsPerSide int    `yaml:"leds_per_side"`
	MaxFrames   int    `yaml:"max_frames"`

	ImagePath   string `yaml:"image_path"`
	ImageFormat string `yaml:"image_format"` // "bin" | "json"
	MatrixPath  string `yaml:"matrix_path"`

	DegreePeriodUs int `yaml:"degree_period_us"`

	Brightness    *int  `yaml:"brightness,omitempty"` // nil when never set; 0 is a valid level
	OffsetDegrees int   `yaml:"offset_degrees"`
	RedAdjust     int   `yaml:"red_adjust"`
	GreenAdjust   int   `yaml:"green_adjust"`
	BlueAdjust    int   `yaml:"blue_adjust"`
	Enabled       *bool `yaml:"enabled,omitempty"`

	Hall  Hall  `yaml:"hall,omitempty"`
	Motor Motor `yaml:"motor,omitempty"`

	Addr     string `yaml:"addr"`
	LogLevel string `yaml:"log_level"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// BrightnessOr returns the saved brightness, or def when none was saved.
func (c *Config) BrightnessOr(def int) int {
	if c.Brightness == nil {
		return def
	}
	return *c.Brightness
}
