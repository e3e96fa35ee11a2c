package holodisplay

import "time"

const (
	// AnglesPerRotation is the number of columns the image is cut into.
	AnglesPerRotation = 360
	// LedsPerSide is the number of LEDs on each half of the double-sided strip.
	LedsPerSide = 64
	// ImageSide is the width/height of a stored frame in pixels.
	ImageSide = LedsPerSide * 2
	// MaxFrames is the arena capacity. 162 frames of 128x128 RGB fit in 8MB.
	MaxFrames = 162

	// StalledDegreePeriod is used while the motor is not turning.
	StalledDegreePeriod = 5000 * time.Microsecond
	// PulsesPerRotation is 9 pulses per motor turn through a 1:10 gearbox.
	PulsesPerRotation = 90
)
