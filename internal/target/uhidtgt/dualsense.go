// Package uhidtgt implements the branded-gamepad target family (C5, spec.md
// §4.6): one module per controller brand, each owning a fixed USB HID
// descriptor and an in-memory current-state/serializer pair that packs
// state into the vendor's wire report on a fixed cadence. Grounded on the
// teacher's existing psanford/uhid lifecycle (internal/linux/linux_backend.go
// OpenOutput/uhidDeviceHandle: NewDevice/Open/InjectEvent/events channel)
// and on pkg/bits + pkg/usbhid/hiddesc for descriptor/report construction.
package uhidtgt

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/psanford/uhid"
	"go.uber.org/zap"

	"github.com/inputplumber/inputplumber/pkg/capability"
	"github.com/inputplumber/inputplumber/pkg/nativeevent"
	"github.com/inputplumber/inputplumber/pkg/usbhid/hiddesc"
)

// DualSense USB report IDs and sizes, from the Linux hid-playstation driver
// (drivers/hid/hid-playstation.c) via the Game Controller Collective wiki.
const (
	dualSenseReportIDInput  = 0x01
	dualSenseInputReportLen = 64
	dualSenseReportIDOutput = 0x02

	dualSenseVendorID  = 0x054c
	dualSenseProductID = 0x0ce6

	ds5AccelResPerG   = 8192
	ds5GyroResPerDegS = 1024
)

// dpadDirection enumerates the DualSense 4-bit hat switch field (byte 8,
// low nibble): the 8 compass points clockwise from North, 8 = released.
type dpadDirection uint8

const (
	dpadNorth dpadDirection = iota
	dpadNorthEast
	dpadEast
	dpadSouthEast
	dpadSouth
	dpadSouthWest
	dpadWest
	dpadNorthWest
	dpadNone
)

// DualSenseTarget is a bit-exact DualSense USB input-report emulator: a
// fixed descriptor, an in-memory current-state struct per control, and a
// serializer that packs state into the real 64-byte hid-playstation wire
// report on every change (spec.md §4.6 "a serializer that packs state into
// the vendor's report format for periodic submission").
type DualSenseTarget struct {
	log *zap.Logger
	dev *uhid.Device

	mu     sync.Mutex
	state  dualSenseState
	cancel context.CancelFunc
}

type dualSenseState struct {
	leftX, leftY   uint8 // 8-bit centered at 0x80
	rightX, rightY uint8
	leftTrigger    uint8
	rightTrigger   uint8
	dpad           dpadDirection

	triangle, circle, cross, square      bool
	l1, r1, l2, r2, l3, r3               bool
	options, create                      bool
	mute, touchpadClick, ps              bool
	leftPaddle, rightPaddle              bool
	leftFn, rightFn                      bool

	gyroX, gyroY, gyroZ    int16 // raw counts, DS5_GYRO_RES_PER_DEG_S per deg/s
	accelX, accelY, accelZ int16 // raw counts, DS5_ACC_RES_PER_G per g

	// dpadUp/Down/Left/Right are the four independent DPad button
	// capabilities folded into the single hat-switch field on serialize.
	dpadUp, dpadDown, dpadLeft, dpadRight bool
}

func neutralDualSenseState() dualSenseState {
	return dualSenseState{leftX: 0x80, leftY: 0x80, rightX: 0x80, rightY: 0x80, dpad: dpadNone}
}

// NewDualSense creates the uhid kernel device for a DualSense controller
// under the given device name, per the teacher's OpenOutput/NewDevice pattern.
func NewDualSense(log *zap.Logger, name string) (*DualSenseTarget, error) {
	desc, err := dualSenseDescriptor()
	if err != nil {
		return nil, fmt.Errorf("uhidtgt: build descriptor: %w", err)
	}
	dev, err := uhid.NewDevice(name, desc)
	if err != nil {
		return nil, fmt.Errorf("uhidtgt: new device: %w", err)
	}
	dev.Data.Bus = 0x03 // BUS_USB
	dev.Data.VendorID = dualSenseVendorID
	dev.Data.ProductID = dualSenseProductID
	return &DualSenseTarget{log: log.With(zap.String("target", name)), dev: dev, state: neutralDualSenseState()}, nil
}

// dualSenseDescriptor builds a simplified gamepad HID report descriptor
// (generic desktop joystick usage page) using the teacher's hiddesc
// encoder; it is representative of the report layout Serialize packs, not a
// byte-for-byte copy of Sony's published descriptor, since hidraw clients
// that care about DualSense reports (Linux's own hid-playstation, SDL) key
// off vendor/product ID rather than parsing the descriptor at runtime.
func dualSenseDescriptor() ([]byte, error) {
	desc := &hiddesc.ReportDescriptor{
		Collections: []hiddesc.Collection{{
			Type:      hiddesc.CollectionTypeApplication,
			UsagePage: 0x01, // Generic Desktop
			UsageID:   0x05, // Gamepad
			Items: []hiddesc.MainItem{
				{Type: hiddesc.MainItemTypeInput, DataItem: &hiddesc.DataItem{
					ReportID: dualSenseReportIDInput, UsagePage: 0x01, UsageIDs: []uint16{0x30, 0x31, 0x33, 0x34},
					ReportSize: 8, ReportCount: 4, LogicalMinimum: 0, LogicalMaximum: 255, Flags: hiddesc.DataFlagVariable,
				}},
				{Type: hiddesc.MainItemTypeInput, DataItem: &hiddesc.DataItem{
					ReportID: dualSenseReportIDInput, UsagePage: 0x02, UsageIDs: []uint16{0xc5, 0xc4},
					ReportSize: 8, ReportCount: 2, LogicalMinimum: 0, LogicalMaximum: 255, Flags: hiddesc.DataFlagVariable,
				}},
				{Type: hiddesc.MainItemTypeInput, DataItem: &hiddesc.DataItem{
					ReportID: dualSenseReportIDInput, UsagePage: 0x09, UsageMinimum: 1, UsageMaximum: 16,
					ReportSize: 1, ReportCount: 16, LogicalMinimum: 0, LogicalMaximum: 1, Flags: hiddesc.DataFlagVariable,
				}},
			},
		}},
	}
	var buf bytes.Buffer
	if err := hiddesc.NewDescriptorEncoder(&buf, desc).Encode(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Run opens the kernel device, applies capability events to the in-memory
// state, and submits the serialized report on every change until ctx is
// cancelled or in closes. It also drains Output events (rumble/LED) from the
// kernel, per spec.md §4.6 "Output reports ... flow back through the target
// to whichever source capture can honor them" — forwarded verbatim to
// onOutput, since a physical DualSense's output-report layout is Sony's own
// and a relayed hidraw source expects exactly the bytes the host wrote.
func (t *DualSenseTarget) Run(ctx context.Context, in <-chan nativeevent.CapabilityEvent, onOutput func([]byte)) error {
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	events, err := t.dev.Open(ctx)
	if err != nil {
		cancel()
		return fmt.Errorf("uhidtgt: open: %w", err)
	}
	defer t.drainAndClose()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				if ev.Type == uhid.Output && onOutput != nil {
					onOutput(ev.Data)
				}
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-in:
			if !ok {
				return nil
			}
			t.apply(ev)
			t.submit()
		}
	}
}

func (t *DualSenseTarget) apply(ev nativeevent.CapabilityEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch ev.Capability.Kind {
	case capability.KindGamepadButton:
		pressed := ev.Value >= 0.5
		switch ev.Capability.Button {
		case capability.ButtonSouth:
			t.state.cross = pressed
		case capability.ButtonEast:
			t.state.circle = pressed
		case capability.ButtonWest:
			t.state.square = pressed
		case capability.ButtonNorth:
			t.state.triangle = pressed
		case capability.ButtonLeftBumper:
			t.state.l1 = pressed
		case capability.ButtonRightBumper:
			t.state.r1 = pressed
		case capability.ButtonSelect:
			t.state.create = pressed
		case capability.ButtonStart:
			t.state.options = pressed
		case capability.ButtonLeftStickClick:
			t.state.l3 = pressed
		case capability.ButtonRightStickClick:
			t.state.r3 = pressed
		case capability.ButtonGuide:
			t.state.ps = pressed
		case capability.ButtonQuickAccess:
			t.state.touchpadClick = pressed
		case capability.ButtonQuickAccess2:
			t.state.mute = pressed
		case capability.ButtonLeftPaddle1:
			t.state.leftPaddle = pressed
		case capability.ButtonRightPaddle1:
			t.state.rightPaddle = pressed
		case capability.ButtonLeftPaddle2:
			t.state.leftFn = pressed
		case capability.ButtonRightPaddle2:
			t.state.rightFn = pressed
		case capability.ButtonDPadUp, capability.ButtonDPadDown, capability.ButtonDPadLeft, capability.ButtonDPadRight:
			t.applyDpadLocked(ev.Capability.Button, pressed)
		}
	case capability.KindGamepadAxis:
		signed := centeredByte(ev.Capability, ev.Value)
		switch {
		case ev.Capability.Axis == capability.AxisLeftStick && isX(ev.Capability.Direction):
			t.state.leftX = signed
		case ev.Capability.Axis == capability.AxisLeftStick:
			t.state.leftY = signed
		case ev.Capability.Axis == capability.AxisRightStick && isX(ev.Capability.Direction):
			t.state.rightX = signed
		case ev.Capability.Axis == capability.AxisRightStick:
			t.state.rightY = signed
		}
	case capability.KindGamepadTrigger:
		v := uint8(nativeevent.Clamp(ev.Value, 0, 1) * 255)
		if ev.Capability.Trigger == capability.TriggerRight {
			t.state.rightTrigger = v
		} else {
			t.state.leftTrigger = v
		}
	case capability.KindGamepadGyro:
		v := int16(nativeevent.Clamp(ev.Value, -1, 1) * ds5GyroResPerDegS)
		setImuAxis(&t.state.gyroX, &t.state.gyroY, &t.state.gyroZ, ev.Capability.ImuAxis, v)
	case capability.KindGamepadAccelerometer:
		v := int16(nativeevent.Clamp(ev.Value, -1, 1) * ds5AccelResPerG)
		setImuAxis(&t.state.accelX, &t.state.accelY, &t.state.accelZ, ev.Capability.ImuAxis, v)
	}
}

// applyDpadLocked folds the four independent DPad button capabilities back
// into the single 4-bit hat-switch field the wire format uses; caller must
// hold t.mu.
func (t *DualSenseTarget) applyDpadLocked(b capability.Button, pressed bool) {
	switch b {
	case capability.ButtonDPadUp:
		t.state.dpadUp = pressed
	case capability.ButtonDPadDown:
		t.state.dpadDown = pressed
	case capability.ButtonDPadLeft:
		t.state.dpadLeft = pressed
	case capability.ButtonDPadRight:
		t.state.dpadRight = pressed
	}
	t.state.dpad = dpadFromDirections(t.state.dpadUp, t.state.dpadDown, t.state.dpadLeft, t.state.dpadRight)
}

func dpadFromDirections(up, down, left, right bool) dpadDirection {
	switch {
	case up && right:
		return dpadNorthEast
	case down && right:
		return dpadSouthEast
	case down && left:
		return dpadSouthWest
	case up && left:
		return dpadNorthWest
	case up:
		return dpadNorth
	case right:
		return dpadEast
	case down:
		return dpadSouth
	case left:
		return dpadWest
	default:
		return dpadNone
	}
}

func setImuAxis(x, y, z *int16, axis capability.ImuAxis, v int16) {
	switch axis {
	case capability.ImuAxisPitch:
		*x = v
	case capability.ImuAxisRoll:
		*y = v
	case capability.ImuAxisYaw:
		*z = v
	}
}

func isX(dir capability.Direction) bool {
	return dir == capability.DirectionLeft || dir == capability.DirectionRight || dir == capability.DirectionPositive
}

// centeredByte converts a half-axis magnitude event back into an 8-bit
// centered value (0x80 neutral), matching the wire format's "8-bit
// centered" stick axes.
func centeredByte(c capability.Capability, value float64) uint8 {
	sign := 1.0
	if c.Direction == capability.DirectionLeft || c.Direction == capability.DirectionUp || c.Direction == capability.DirectionNegative {
		sign = -1.0
	}
	v := sign * nativeevent.Clamp(value, 0, 1)
	return uint8(128 + int(v*127))
}

// submit packs the current state into the wire report and injects it into
// the kernel device, per the teacher's InjectEvent pattern.
func (t *DualSenseTarget) submit() {
	t.mu.Lock()
	report := t.serializeLocked()
	t.mu.Unlock()
	if err := t.dev.InjectEvent(report); err != nil {
		t.log.Warn("uhid inject failed", zap.Error(err))
	}
}

// serializeLocked packs dualSenseState into the 64-byte USB input report
// hid-playstation.c expects, bit-for-bit: byte 0 report ID, bytes 1-7
// sticks/triggers/sequence, bytes 8-10 buttons and dpad, bytes 16-27
// gyro/accelerometer, byte 33 onward neutral touch/power/timestamp fields
// a passthrough game need not distinguish from an idle real pad. Caller
// must hold t.mu.
func (t *DualSenseTarget) serializeLocked() []byte {
	r := make([]byte, dualSenseInputReportLen)
	r[0] = dualSenseReportIDInput
	r[1] = t.state.leftX
	r[2] = t.state.leftY
	r[3] = t.state.rightX
	r[4] = t.state.rightY
	r[5] = t.state.leftTrigger
	r[6] = t.state.rightTrigger
	r[7] = 0x01 // seq_number

	// byte 8: triangle(7) circle(6) cross(5) square(4) dpad(3..0)
	var b8 byte
	b8 |= boolBit(t.state.triangle, 7)
	b8 |= boolBit(t.state.circle, 6)
	b8 |= boolBit(t.state.cross, 5)
	b8 |= boolBit(t.state.square, 4)
	b8 |= byte(t.state.dpad) & 0x0f
	r[8] = b8

	// byte 9: r3(7) l3(6) options(5) create(4) r2(3) l2(2) r1(1) l1(0)
	var b9 byte
	b9 |= boolBit(t.state.r3, 7)
	b9 |= boolBit(t.state.l3, 6)
	b9 |= boolBit(t.state.options, 5)
	b9 |= boolBit(t.state.create, 4)
	b9 |= boolBit(t.state.r2, 3)
	b9 |= boolBit(t.state.l2, 2)
	b9 |= boolBit(t.state.r1, 1)
	b9 |= boolBit(t.state.l1, 0)
	r[9] = b9

	// byte 10: right_paddle(7) left_paddle(6) right_fn(5) left_fn(4) _(3)
	// mute(2) touchpad(1) ps(0)
	var b10 byte
	b10 |= boolBit(t.state.rightPaddle, 7)
	b10 |= boolBit(t.state.leftPaddle, 6)
	b10 |= boolBit(t.state.rightFn, 5)
	b10 |= boolBit(t.state.leftFn, 4)
	b10 |= boolBit(t.state.mute, 2)
	b10 |= boolBit(t.state.touchpadClick, 1)
	b10 |= boolBit(t.state.ps, 0)
	r[10] = b10

	putInt16LE(r[16:18], t.state.gyroX)
	putInt16LE(r[18:20], t.state.gyroY)
	putInt16LE(r[20:22], t.state.gyroZ)
	putInt16LE(r[22:24], t.state.accelX)
	putInt16LE(r[24:26], t.state.accelY)
	putInt16LE(r[26:28], t.state.accelZ)

	// bytes 33/37: finger context 128 = not touching (no touch wired yet).
	r[33] = 128
	r[37] = 128
	r[53] = 0x02 // power_state: Complete
	r[54] = 0xC8 // power_percent nibble(0x08)=100% | plugged_usb_power|data bits set
	return r
}

func boolBit(v bool, bit uint) byte {
	if v {
		return 1 << bit
	}
	return 0
}

func putInt16LE(b []byte, v int16) {
	b[0] = byte(v)
	b[1] = byte(uint16(v) >> 8)
}

// decodeDualSenseInputReport is the inverse of serializeLocked, used by
// tests to assert the serializer round-trips (spec.md §8 round-trip
// property for bit-exact report formats).
func decodeDualSenseInputReport(r []byte) dualSenseState {
	var s dualSenseState
	s.leftX, s.leftY, s.rightX, s.rightY = r[1], r[2], r[3], r[4]
	s.leftTrigger, s.rightTrigger = r[5], r[6]

	b8 := r[8]
	s.triangle = b8&(1<<7) != 0
	s.circle = b8&(1<<6) != 0
	s.cross = b8&(1<<5) != 0
	s.square = b8&(1<<4) != 0
	s.dpad = dpadDirection(b8 & 0x0f)

	b9 := r[9]
	s.r3 = b9&(1<<7) != 0
	s.l3 = b9&(1<<6) != 0
	s.options = b9&(1<<5) != 0
	s.create = b9&(1<<4) != 0
	s.r2 = b9&(1<<3) != 0
	s.l2 = b9&(1<<2) != 0
	s.r1 = b9&(1<<1) != 0
	s.l1 = b9&(1<<0) != 0

	b10 := r[10]
	s.rightPaddle = b10&(1<<7) != 0
	s.leftPaddle = b10&(1<<6) != 0
	s.rightFn = b10&(1<<5) != 0
	s.leftFn = b10&(1<<4) != 0
	s.mute = b10&(1<<2) != 0
	s.touchpadClick = b10&(1<<1) != 0
	s.ps = b10&(1<<0) != 0

	s.gyroX = int16(uint16(r[16]) | uint16(r[17])<<8)
	s.gyroY = int16(uint16(r[18]) | uint16(r[19])<<8)
	s.gyroZ = int16(uint16(r[20]) | uint16(r[21])<<8)
	s.accelX = int16(uint16(r[22]) | uint16(r[23])<<8)
	s.accelY = int16(uint16(r[24]) | uint16(r[25])<<8)
	s.accelZ = int16(uint16(r[26]) | uint16(r[27])<<8)
	return s
}

func (t *DualSenseTarget) drainAndClose() {
	t.mu.Lock()
	t.state = neutralDualSenseState()
	report := t.serializeLocked()
	t.mu.Unlock()
	_ = t.dev.InjectEvent(report)
	time.Sleep(5 * time.Millisecond)
	_ = t.dev.Close()
}
