package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
driver: dma
spi:
  dev: /dev/spidev0.0
  speed_hz: 8000000
leds_per_side: 64
image_path: /var/lib/holo/image.bin
image_format: bin
brightness: 40
offset_degrees: 90
red_adjust: -10
enabled: false
hall:
  pin: GPIO17
  resync_degrees: 180
motor:
  serial_port: /dev/ttyUSB0
  baud: 115200
addr: ":8080"
`

func TestLoad(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(sample), 0644))

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "dma", c.Driver)
	assert.Equal(t, 8000000, c.SPI.SpeedHz)
	assert.Equal(t, 64, c.LedsPerSide)
	assert.Equal(t, 40, c.BrightnessOr(20))
	assert.Equal(t, 90, c.OffsetDegrees)
	assert.Equal(t, -10, c.RedAdjust)
	require.NotNil(t, c.Enabled)
	assert.False(t, *c.Enabled)
	assert.Equal(t, "GPIO17", c.Hall.Pin)
	assert.Equal(t, 180, c.Hall.ResyncDegrees)
	assert.Equal(t, "/dev/ttyUSB0", c.Motor.SerialPort)
	assert.Zero(t, c.MaxFrames)
}

func TestSaveRoundTrip(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	on, level := true, 12
	in := &Config{Driver: "sim", Brightness: &level, Enabled: &on, Addr: ":9000"}
	require.NoError(t, Save(p, in))

	out, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestZeroBrightnessSurvivesRestart(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	off := 0
	require.NoError(t, Save(p, &Config{Brightness: &off}))

	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 0, c.BrightnessOr(20))

	assert.Equal(t, 20, (&Config{}).BrightnessOr(20))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	p := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(p, []byte("driver: [unterminated"), 0644))
	_, err = Load(p)
	assert.Error(t, err)
}
