// Package nativeevent defines the decoder-specific event shape (spec.md §3
// "Native event") and the uniform post-normalization CapabilityEvent that
// every downstream stage (C2-C5) operates on.
package nativeevent

import (
	"time"

	"github.com/inputplumber/inputplumber/pkg/capability"
)

// Kind mirrors the evdev event-type vocabulary; HID-raw and IIO decoders
// synthesize the closest equivalent kind for their own native events so a
// single NativeEvent shape serves all three source families (spec.md §4.2).
type Kind uint8

const (
	KindSync Kind = iota
	KindKey
	KindRel
	KindAbs
	KindMsc
	KindSw
	KindLed
	KindSnd
	KindRep
	KindFf
	KindPwr
	KindFfStatus
	KindUinput
)

// ValueType disambiguates how Value should be interpreted/normalized.
type ValueType uint8

const (
	ValueButton ValueType = iota
	ValueTrigger
	ValueJoystickX
	ValueJoystickY
	ValueImuX
	ValueImuY
	ValueImuZ
)

// Event is a single native event emitted by a source decoder (C1).
type Event struct {
	Kind      Kind
	Code      uint16
	Value     int32
	ValueType ValueType
	// Field addresses a HID-raw report field (reportID/byteStart/bitOffset
	// packed together) when the event originates from the HID-raw decoder;
	// unused for evdev/IIO-originated events, which are identified by
	// Kind+Code instead.
	Field uint32
	// SyncFrame groups events that arrived in the same EV_SYN/report/sample
	// boundary; the capability translator completes chords and flushes
	// consumption tracking at frame end (spec.md §4.3 "Ordering").
	SyncFrame uint64
	Source    string
	Timestamp time.Time
}

// CapabilityEvent is the uniform internal event that flows C2 -> C3 -> C4 ->
// C5, per spec.md §3. Value is normalized: [0,1] for triggers/pressures,
// [-1,1] for axes, {0,1} for buttons.
type CapabilityEvent struct {
	Capability capability.Capability
	Value      float64
	Timestamp  time.Time
	// SyncFrame is carried through so C3/C4 can preserve per-frame ordering
	// guarantees without re-deriving frame boundaries.
	SyncFrame uint64
}

func NewCapabilityEvent(c capability.Capability, value float64, ts time.Time) CapabilityEvent {
	return CapabilityEvent{Capability: c, Value: value, Timestamp: ts}
}

// IsPressed is a convenience accessor for button-shaped capability events.
func (e CapabilityEvent) IsPressed() bool {
	return e.Value >= 0.5
}

// Clamp normalizes a value into [lo, hi], used by axis/trigger deadzone and
// normalization math in the capability translator and source decoders.
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ApplyDeadzone zeroes out values with absolute magnitude below the deadzone
// and rescales the remaining range to preserve continuity at the deadzone
// boundary, matching the axis/trigger/gyro deadzone semantics in spec.md §3.
func ApplyDeadzone(v, deadzone float64) float64 {
	if deadzone <= 0 {
		return v
	}
	mag := v
	sign := 1.0
	if mag < 0 {
		mag = -mag
		sign = -1.0
	}
	if mag < deadzone {
		return 0
	}
	if deadzone >= 1 {
		return 0
	}
	scaled := (mag - deadzone) / (1 - deadzone)
	return sign * Clamp(scaled, 0, 1)
}
