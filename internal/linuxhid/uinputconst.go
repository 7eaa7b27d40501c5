// Package linuxhid holds the raw Linux wire structs and event/key code
// constants shared by the uinput- and evdev-facing packages. Ioctl numbers
// come directly from golang.org/x/sys/unix (UI_SET_EVBIT, UI_DEV_CREATE,
// BUS_USB, …); this package supplies the event-type and key/button code
// values and the fixed-size C structs the kernel expects on the wire,
// grounded on the uinput wire format in other_examples'
// ptokihery-pykeymouse uinput_linux.go, generalized from "mouse only" to the
// full keyboard/mouse/gamepad/touch capability surface this daemon needs.
package linuxhid

import "golang.org/x/sys/unix"

// evdev event types (linux/input-event-codes.h).
const (
	EvSyn      = 0x00
	EvKey      = 0x01
	EvRel      = 0x02
	EvAbs      = 0x03
	EvMsc      = 0x04
	EvSw       = 0x05
	EvLed      = 0x11
	EvSnd      = 0x12
	EvRep      = 0x14
	EvFF       = 0x15
	EvPwr      = 0x16
	EvFFStatus = 0x17
)

const SynReport = 0

// Relative axis codes.
const (
	RelX      = 0x00
	RelY      = 0x01
	RelHWheel = 0x06
	RelWheel  = 0x08
)

// Absolute axis codes.
const (
	AbsX             = 0x00
	AbsY             = 0x01
	AbsZ             = 0x02
	AbsRX            = 0x03
	AbsRY            = 0x04
	AbsRZ            = 0x05
	AbsHat0X         = 0x10
	AbsHat0Y         = 0x11
	AbsMTSlot        = 0x2f
	AbsMTPositionX   = 0x35
	AbsMTPositionY   = 0x36
	AbsMTTrackingID  = 0x39
)

// Key/button codes referenced by the targets this daemon creates.
const (
	BtnLeft      = 0x110
	BtnRight     = 0x111
	BtnMiddle    = 0x112
	BtnSouth     = 0x130
	BtnEast      = 0x131
	BtnNorth     = 0x133
	BtnWest      = 0x134
	BtnTL        = 0x136
	BtnTR        = 0x137
	BtnSelect    = 0x13a
	BtnStart     = 0x13b
	BtnMode      = 0x13c
	BtnThumbL    = 0x13d
	BtnThumbR    = 0x13e
	BtnTouch     = 0x14a
	BtnDPadUp    = 0x220
	BtnDPadDown  = 0x221
	BtnDPadLeft  = 0x222
	BtnDPadRight = 0x223
)

const absSize = 64

// InputID mirrors struct input_id.
type InputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

// UinputUserDev mirrors the legacy struct uinput_user_dev written once at
// device-creation time to declare name, bus identity and axis ranges.
type UinputUserDev struct {
	Name         [80]byte
	ID           InputID
	FFEffectsMax uint32
	Absmax       [absSize]int32
	Absmin       [absSize]int32
	Absfuzz      [absSize]int32
	Absflat      [absSize]int32
}

// InputEvent mirrors struct input_event, the frame written to /dev/uinput
// and read from /dev/input/eventN. unix.Timeval keeps the on-wire layout
// correct for both 32- and 64-bit time_t kernels.
type InputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// AbsInfo mirrors struct input_absinfo, returned by EVIOCGABS.
type AbsInfo struct {
	Value      int32
	Minimum    int32
	Maximum    int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}
