// Package uinputtgt implements the uinput-based target family (C5, spec.md
// §4.6): generic virtual gamepad, mouse, keyboard, touchpad and
// touchscreen devices built on the kernel's user-input interface. Grounded
// on the uinput wire protocol in other_examples' ptokihery-pykeymouse
// uinput_linux.go, generalized to the daemon's full capability vocabulary
// and the Creating/Running/Draining/Closed target lifecycle (spec.md §4.6).
package uinputtgt

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/inputplumber/inputplumber/internal/linuxhid"
	"github.com/inputplumber/inputplumber/pkg/capability"
	"github.com/inputplumber/inputplumber/pkg/nativeevent"
)

// Kind selects which uinput device profile to create.
type Kind int

const (
	KindGamepad Kind = iota
	KindMouse
	KindKeyboard
	KindTouchpad
	KindTouchscreen
)

// State is the per-target lifecycle from spec.md §4.6.
type State int32

const (
	StateCreating State = iota
	StateRunning
	StateDraining
	StateClosed
)

var uinputPaths = []string{"/dev/uinput", "/dev/input/uinput"}

// Target is one uinput-backed virtual device.
type Target struct {
	log  *zap.Logger
	kind Kind
	name string
	file *os.File

	state State32
	mu    sync.Mutex

	// axis state, tracked per named stick so a half-axis update (one
	// direction) can be recombined into the signed ABS value the kernel
	// expects (spec.md §4.6 "sub-pixel accumulators" analog for absolute
	// axes is simply retained float state).
	stickX, stickY           map[capability.AxisName]float64
	buttonsDown              map[capability.Button]bool
	mouseAccumX, mouseAccumY float64
}

// State32 wraps atomic.Int32 so State reads/writes are race-free across the
// Run goroutine and external drain observers.
type State32 struct{ v atomic.Int32 }

func (s *State32) Load() State   { return State(s.v.Load()) }
func (s *State32) Store(v State) { s.v.Store(int32(v)) }

// New opens /dev/uinput and declares the evdev capability bitmap for kind
// before returning a Target in StateCreating.
func New(log *zap.Logger, kind Kind, name string) (*Target, error) {
	file, err := openUinput()
	if err != nil {
		return nil, fmt.Errorf("uinputtgt: %w", err)
	}
	t := &Target{
		log:        log.With(zap.String("target", name)),
		kind:       kind,
		name:       name,
		file:       file,
		stickX:     make(map[capability.AxisName]float64),
		stickY:     make(map[capability.AxisName]float64),
		buttonsDown: make(map[capability.Button]bool),
	}
	if err := t.configure(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("uinputtgt: configure %s: %w", name, err)
	}
	return t, nil
}

func openUinput() (*os.File, error) {
	var lastErr error
	for _, p := range uinputPaths {
		f, err := os.OpenFile(p, os.O_WRONLY|unix.O_NONBLOCK, 0)
		if err == nil {
			return f, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("open uinput device: %w", lastErr)
}

func (t *Target) configure() error {
	fd := int(t.file.Fd())
	setBit := func(req uint, arg int) error { return unix.IoctlSetInt(fd, req, arg) }

	if err := setBit(unix.UI_SET_EVBIT, linuxhid.EvKey); err != nil {
		return err
	}
	switch t.kind {
	case KindGamepad:
		for _, code := range []int{
			linuxhid.BtnSouth, linuxhid.BtnEast, linuxhid.BtnNorth, linuxhid.BtnWest,
			linuxhid.BtnTL, linuxhid.BtnTR, linuxhid.BtnSelect, linuxhid.BtnStart,
			linuxhid.BtnMode, linuxhid.BtnThumbL, linuxhid.BtnThumbR,
			linuxhid.BtnDPadUp, linuxhid.BtnDPadDown, linuxhid.BtnDPadLeft, linuxhid.BtnDPadRight,
		} {
			_ = setBit(unix.UI_SET_KEYBIT, code)
		}
		if err := setBit(unix.UI_SET_EVBIT, linuxhid.EvAbs); err != nil {
			return err
		}
		for _, code := range []int{linuxhid.AbsX, linuxhid.AbsY, linuxhid.AbsRX, linuxhid.AbsRY, linuxhid.AbsZ, linuxhid.AbsRZ} {
			_ = setBit(unix.UI_SET_ABSBIT, code)
		}
	case KindMouse:
		for _, code := range []int{linuxhid.BtnLeft, linuxhid.BtnRight, linuxhid.BtnMiddle} {
			_ = setBit(unix.UI_SET_KEYBIT, code)
		}
		if err := setBit(unix.UI_SET_EVBIT, linuxhid.EvRel); err != nil {
			return err
		}
		for _, code := range []int{linuxhid.RelX, linuxhid.RelY, linuxhid.RelWheel, linuxhid.RelHWheel} {
			_ = setBit(unix.UI_SET_RELBIT, code)
		}
	case KindKeyboard:
		for code := 1; code < 250; code++ {
			_ = setBit(unix.UI_SET_KEYBIT, code)
		}
	case KindTouchpad, KindTouchscreen:
		_ = setBit(unix.UI_SET_KEYBIT, linuxhid.BtnTouch)
		if err := setBit(unix.UI_SET_EVBIT, linuxhid.EvAbs); err != nil {
			return err
		}
		for _, code := range []int{linuxhid.AbsMTSlot, linuxhid.AbsMTPositionX, linuxhid.AbsMTPositionY, linuxhid.AbsMTTrackingID} {
			_ = setBit(unix.UI_SET_ABSBIT, code)
		}
	}

	var dev linuxhid.UinputUserDev
	copy(dev.Name[:], t.name)
	dev.ID.Bustype = unix.BUS_USB
	dev.ID.Vendor = 0x16c0
	dev.ID.Product = 0x05df
	dev.ID.Version = 1
	if t.kind == KindGamepad {
		setAbsRange(&dev, linuxhid.AbsX, -32767, 32767)
		setAbsRange(&dev, linuxhid.AbsY, -32767, 32767)
		setAbsRange(&dev, linuxhid.AbsRX, -32767, 32767)
		setAbsRange(&dev, linuxhid.AbsRY, -32767, 32767)
		setAbsRange(&dev, linuxhid.AbsZ, 0, 255)
		setAbsRange(&dev, linuxhid.AbsRZ, 0, 255)
	}
	if t.kind == KindTouchpad || t.kind == KindTouchscreen {
		setAbsRange(&dev, linuxhid.AbsMTPositionX, 0, 32767)
		setAbsRange(&dev, linuxhid.AbsMTPositionY, 0, 32767)
		setAbsRange(&dev, linuxhid.AbsMTSlot, 0, 9)
		setAbsRange(&dev, linuxhid.AbsMTTrackingID, 0, 65535)
	}
	if err := binary.Write(t.file, binary.LittleEndian, &dev); err != nil {
		return fmt.Errorf("write uinput_user_dev: %w", err)
	}
	if err := unix.IoctlSetInt(fd, unix.UI_DEV_CREATE, 0); err != nil {
		return fmt.Errorf("UI_DEV_CREATE: %w", err)
	}
	t.state.Store(StateCreating)
	return nil
}

func setAbsRange(dev *linuxhid.UinputUserDev, code int, min, max int32) {
	dev.Absmin[code] = min
	dev.Absmax[code] = max
}

// Run consumes capability events until ctx is cancelled or in closes, then
// drains to neutral state and destroys the kernel device (spec.md §4.6
// "Draining ... emits synthetic neutral-state ... then closes").
func (t *Target) Run(ctx context.Context, in <-chan nativeevent.CapabilityEvent) error {
	t.state.Store(StateRunning)
	defer t.drainAndClose()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-in:
			if !ok {
				return nil
			}
			t.handle(ev)
		}
	}
}

func (t *Target) handle(ev nativeevent.CapabilityEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Capability.Kind {
	case capability.KindGamepadButton:
		code, ok := gamepadButtonCode(ev.Capability.Button)
		if !ok {
			return
		}
		pressed := ev.Value >= 0.5
		t.buttonsDown[ev.Capability.Button] = pressed
		t.emitKey(uint16(code), pressed)
		t.sync()
	case capability.KindGamepadAxis:
		t.handleAxis(ev.Capability, ev.Value)
		t.sync()
	case capability.KindGamepadTrigger:
		code := linuxhid.AbsZ
		if ev.Capability.Trigger == capability.TriggerRight {
			code = linuxhid.AbsRZ
		}
		t.emitAbs(uint16(code), int32(nativeevent.Clamp(ev.Value, 0, 1)*255))
		t.sync()
	case capability.KindKeyboardKey:
		code, ok := keyCode(ev.Capability.Key)
		if !ok {
			return
		}
		t.emitKey(uint16(code), ev.Value >= 0.5)
		t.sync()
	case capability.KindMouseButton:
		code, ok := mouseButtonCode(ev.Capability.MouseButton)
		if !ok {
			return
		}
		t.emitKey(uint16(code), ev.Value >= 0.5)
		t.sync()
	case capability.KindMouseMotion:
		t.handleMouseMotion(ev.Capability.Direction, ev.Value)
	}
}

func (t *Target) handleAxis(c capability.Capability, value float64) {
	x := t.stickX[c.Axis]
	y := t.stickY[c.Axis]
	switch c.Direction {
	case capability.DirectionLeft:
		x = -value
	case capability.DirectionRight:
		x = value
	case capability.DirectionUp:
		y = -value
	case capability.DirectionDown:
		y = value
	case capability.DirectionPositive:
		x = value
	case capability.DirectionNegative:
		x = -value
	default:
		x = value
	}
	t.stickX[c.Axis] = x
	t.stickY[c.Axis] = y

	codeX, codeY := axisCodes(c.Axis)
	t.emitAbs(uint16(codeX), int32(x*32767))
	t.emitAbs(uint16(codeY), int32(y*32767))
}

// handleMouseMotion integrates the speed-parameterized relative-motion
// capability event into whole pixels, retaining the fractional remainder so
// slow deflections still accumulate smoothly (spec.md §4.6 "sub-pixel
// accumulators to smoothly reconstruct relative motion").
func (t *Target) handleMouseMotion(dir capability.Direction, delta float64) {
	switch dir {
	case capability.DirectionRight:
		t.mouseAccumX += delta
	case capability.DirectionLeft:
		t.mouseAccumX -= delta
	case capability.DirectionDown:
		t.mouseAccumY += delta
	case capability.DirectionUp:
		t.mouseAccumY -= delta
	}
	wholeX, fracX := math.Modf(t.mouseAccumX)
	wholeY, fracY := math.Modf(t.mouseAccumY)
	t.mouseAccumX = fracX
	t.mouseAccumY = fracY
	if wholeX != 0 {
		t.emitRel(linuxhid.RelX, int32(wholeX))
	}
	if wholeY != 0 {
		t.emitRel(linuxhid.RelY, int32(wholeY))
	}
	if wholeX != 0 || wholeY != 0 {
		t.sync()
	}
}

func (t *Target) emitKey(code uint16, pressed bool) {
	v := int32(0)
	if pressed {
		v = 1
	}
	t.write(linuxhid.EvKey, code, v)
}

func (t *Target) emitAbs(code uint16, v int32)  { t.write(linuxhid.EvAbs, code, v) }
func (t *Target) emitRel(code uint16, v int32)  { t.write(linuxhid.EvRel, code, v) }
func (t *Target) sync()                          { t.write(linuxhid.EvSyn, linuxhid.SynReport, 0) }

func (t *Target) write(kind, code uint16, value int32) {
	if t.state.Load() == StateClosed {
		return
	}
	now := time.Now()
	ev := linuxhid.InputEvent{
		Time:  unix.Timeval{Sec: now.Unix(), Usec: int64(now.Nanosecond() / 1000)},
		Type:  kind,
		Code:  code,
		Value: value,
	}
	if err := binary.Write(t.file, binary.LittleEndian, &ev); err != nil {
		t.log.Warn("uinput write failed", zap.Error(err))
	}
}

// drainAndClose emits a neutral state (every tracked button released, every
// axis centered) before destroying and closing the kernel device, per
// spec.md §4.6's Draining state.
func (t *Target) drainAndClose() {
	t.state.Store(StateDraining)
	t.mu.Lock()
	for btn, down := range t.buttonsDown {
		if !down {
			continue
		}
		if code, ok := gamepadButtonCode(btn); ok {
			t.emitKey(uint16(code), false)
		}
	}
	for axis := range t.stickX {
		codeX, codeY := axisCodes(axis)
		t.emitAbs(uint16(codeX), 0)
		t.emitAbs(uint16(codeY), 0)
	}
	t.sync()
	t.mu.Unlock()

	fd := int(t.file.Fd())
	_ = unix.IoctlSetInt(fd, unix.UI_DEV_DESTROY, 0)
	_ = t.file.Close()
	t.state.Store(StateClosed)
}

func axisCodes(name capability.AxisName) (x, y int) {
	switch name {
	case capability.AxisRightStick:
		return linuxhid.AbsRX, linuxhid.AbsRY
	case capability.AxisHat1, capability.AxisHat2, capability.AxisHat3:
		return linuxhid.AbsHat0X, linuxhid.AbsHat0Y
	default:
		return linuxhid.AbsX, linuxhid.AbsY
	}
}

func gamepadButtonCode(b capability.Button) (int, bool) {
	switch b {
	case capability.ButtonSouth:
		return linuxhid.BtnSouth, true
	case capability.ButtonEast:
		return linuxhid.BtnEast, true
	case capability.ButtonNorth:
		return linuxhid.BtnNorth, true
	case capability.ButtonWest:
		return linuxhid.BtnWest, true
	case capability.ButtonLeftBumper:
		return linuxhid.BtnTL, true
	case capability.ButtonRightBumper:
		return linuxhid.BtnTR, true
	case capability.ButtonSelect:
		return linuxhid.BtnSelect, true
	case capability.ButtonStart:
		return linuxhid.BtnStart, true
	case capability.ButtonGuide:
		return linuxhid.BtnMode, true
	case capability.ButtonLeftStickClick:
		return linuxhid.BtnThumbL, true
	case capability.ButtonRightStickClick:
		return linuxhid.BtnThumbR, true
	case capability.ButtonDPadUp:
		return linuxhid.BtnDPadUp, true
	case capability.ButtonDPadDown:
		return linuxhid.BtnDPadDown, true
	case capability.ButtonDPadLeft:
		return linuxhid.BtnDPadLeft, true
	case capability.ButtonDPadRight:
		return linuxhid.BtnDPadRight, true
	default:
		return 0, false
	}
}

func mouseButtonCode(id string) (int, bool) {
	switch id {
	case "left":
		return linuxhid.BtnLeft, true
	case "right":
		return linuxhid.BtnRight, true
	case "middle":
		return linuxhid.BtnMiddle, true
	default:
		return 0, false
	}
}

// keyCode maps the canonical Linux KEY_* name carried by a Keyboard.Key
// capability to its numeric code. Only the subset exercised by shipped
// profiles (WASD + modifiers + common bindings) is populated; unknown names
// are rejected rather than guessed.
var keyCodeTable = map[string]int{
	"KEY_A": 30, "KEY_B": 48, "KEY_C": 46, "KEY_D": 32, "KEY_E": 18,
	"KEY_F": 33, "KEY_G": 34, "KEY_H": 35, "KEY_I": 23, "KEY_J": 36,
	"KEY_K": 37, "KEY_L": 38, "KEY_M": 50, "KEY_N": 49, "KEY_O": 24,
	"KEY_P": 25, "KEY_Q": 16, "KEY_R": 19, "KEY_S": 31, "KEY_T": 20,
	"KEY_U": 22, "KEY_V": 47, "KEY_W": 17, "KEY_X": 45, "KEY_Y": 21, "KEY_Z": 44,
	"KEY_SPACE": 57, "KEY_ENTER": 28, "KEY_ESC": 1, "KEY_LEFTSHIFT": 42,
	"KEY_LEFTCTRL": 29, "KEY_LEFTALT": 56, "KEY_LEFTMETA": 125, "KEY_TAB": 15,
	"KEY_F17": 187,
}

func keyCode(name string) (int, bool) {
	code, ok := keyCodeTable[name]
	return code, ok
}
