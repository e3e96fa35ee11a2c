// Package motor turns the motor controller's pulse timing into the display's
// degree period and keeps the motor power setpoint.
package motor

import (
	"math"
	"sync"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
	"github.com/rs/zerolog/log"

	"github.com/coreman2200/funtimes-holodisplay"
)

const (
	// StalledPulse is what the controller reports when no pulse was seen.
	StalledPulse = math.MaxInt32
	// MinPulse is the shortest plausible pulse; anything below is noise.
	MinPulse = 1000

	StalledDegreePeriod = holodisplay.StalledDegreePeriod

	DefaultPulsesPerRotation = holodisplay.PulsesPerRotation
	DefaultWindow            = 4

	minPower = 96
	maxPower = 255
)

// Tracker derives the degree period and RPM from microseconds between motor
// encoder pulses. OnPeriod, when set, receives every new degree period; it is
// called without the tracker lock held.
type Tracker struct {
	OnPeriod func(time.Duration)

	mu       sync.Mutex
	pulses   int
	avg      *movingaverage.MovingAverage
	window   int
	degree   time.Duration
	rpm      int
	enabled  bool
	power    int
	lastSeen time.Time
}

// NewTracker returns a tracker that starts out stalled. Non-positive
// arguments fall back to the defaults.
func NewTracker(pulsesPerRotation, window int) *Tracker {
	if pulsesPerRotation <= 0 {
		pulsesPerRotation = DefaultPulsesPerRotation
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{
		pulses: pulsesPerRotation,
		window: window,
		avg:    movingaverage.New(window),
		degree: StalledDegreePeriod,
	}
}

// Pulse records one pulse period in microseconds and returns the resulting
// degree period.
func (t *Tracker) Pulse(us int64) time.Duration {
	t.mu.Lock()
	if us >= StalledPulse || us < MinPulse {
		// Stale samples would blend into the spin-up.
		t.avg = movingaverage.New(t.window)
		t.degree = StalledDegreePeriod
		t.rpm = 0
	} else {
		t.avg.Add(float64(us))
		rotation := t.avg.Avg() * float64(t.pulses)
		t.degree = time.Duration(rotation/360*1000) * time.Nanosecond
		t.rpm = int(60e6 / rotation)
	}
	t.lastSeen = time.Now()
	d, rpm := t.degree, t.rpm
	cb := t.OnPeriod
	t.mu.Unlock()

	log.Trace().Int64("pulse_us", us).Dur("degree", d).Int("rpm", rpm).Msg("motor pulse")
	if cb != nil {
		cb(d)
	}
	return d
}

// DegreePeriod is the last derived time per degree.
func (t *Tracker) DegreePeriod() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.degree
}

func (t *Tracker) RPM() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rpm
}

// LastSeen is when the last pulse report arrived; zero if none has.
func (t *Tracker) LastSeen() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastSeen
}

// SetEnabled is the motor lever. Turning it off drops the power to 0.
func (t *Tracker) SetEnabled(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = on
	if !on {
		t.power = 0
	}
}

func (t *Tracker) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// SetTargetPower maps a 0..100 slider onto the ESC range 96..255. It is
// ignored while the motor is disabled.
func (t *Tracker) SetTargetPower(percent int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.power = TargetPower(percent)
}

// TargetPowerValue is the power the motor controller should apply.
func (t *Tracker) TargetPowerValue() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.power
}

// TargetPower maps percent (clamped to 0..100) onto 96..255.
func TargetPower(percent int) int {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return int(float64(percent)*(maxPower-minPower)/100.0 + minPower)
}
