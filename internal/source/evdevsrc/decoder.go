// Package evdevsrc implements the evdev source decoder (C1, spec.md §4.2):
// it grabs an input node exclusively, reads 24-byte input_event frames and
// emits native events with device-specific axis ranges rescaled to the
// translator's canonical pre-scaled domain. Grounded on the
// Open/Read/Grab/Release pattern in other_examples'
// rendyananta-golang-evdev device.go, adapted to emit nativeevent.Event over
// a channel instead of exposing a blocking Read method.
package evdevsrc

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/inputplumber/inputplumber/internal/capmap"
	"github.com/inputplumber/inputplumber/internal/linuxhid"
	"github.com/inputplumber/inputplumber/pkg/nativeevent"
)

// axisCalibration rescales a device-reported raw ABS value into the
// translator's canonical integer domain (±AxisRawMax for joystick axes, 0..
// TriggerRawMax for triggers) using the range probed once at open (spec.md
// §4.2 "Axis ranges ... are probed once and cached for normalization").
type axisCalibration struct {
	min, max  int32
	valueType nativeevent.ValueType
}

func (c axisCalibration) rescale(raw int32) int32 {
	span := c.max - c.min
	if span == 0 {
		return 0
	}
	switch c.valueType {
	case nativeevent.ValueTrigger:
		return int32(float64(raw-c.min) / float64(span) * capmap.TriggerRawMax)
	default:
		norm := float64(raw-c.min)/float64(span)*2 - 1
		return int32(norm * capmap.AxisRawMax)
	}
}

// Source owns one grabbed evdev node.
type Source struct {
	file   *os.File
	path   string
	axes   map[uint16]axisCalibration
	frame  uint64
}

// absValueType classifies which canonical domain an ABS code belongs to, so
// Open knows how to rescale it. Hat axes are treated as joysticks (the
// capability translator resolves them to digital DPad presses via
// axis_direction thresholds, spec.md §4.3).
func absValueType(code uint16) nativeevent.ValueType {
	switch code {
	case linuxhid.AbsZ, linuxhid.AbsRZ:
		return nativeevent.ValueTrigger
	case linuxhid.AbsX:
		return nativeevent.ValueJoystickX
	case linuxhid.AbsY:
		return nativeevent.ValueJoystickY
	case linuxhid.AbsRX:
		return nativeevent.ValueJoystickX
	case linuxhid.AbsRY:
		return nativeevent.ValueJoystickY
	case linuxhid.AbsHat0X:
		return nativeevent.ValueJoystickX
	case linuxhid.AbsHat0Y:
		return nativeevent.ValueJoystickY
	default:
		return nativeevent.ValueJoystickX
	}
}

// absCodesToProbe is the fixed set of ABS axes this daemon ever needs to
// calibrate; probing is harmless (and ignored) for axes the device lacks.
var absCodesToProbe = []uint16{
	linuxhid.AbsX, linuxhid.AbsY, linuxhid.AbsRX, linuxhid.AbsRY,
	linuxhid.AbsZ, linuxhid.AbsRZ, linuxhid.AbsHat0X, linuxhid.AbsHat0Y,
}

// Open grabs devnode exclusively (spec.md §4.2 "It grabs the device on open
// so the kernel routes events only to us") and probes its ABS axis ranges.
func Open(devnode string) (*Source, error) {
	f, err := os.OpenFile(devnode, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("evdevsrc: open %s: %w", devnode, err)
	}
	if err := unix.IoctlSetInt(int(f.Fd()), uint(linuxhid.EVIOCGRAB), 1); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("evdevsrc: grab %s: %w", devnode, err)
	}
	s := &Source{file: f, path: devnode, axes: make(map[uint16]axisCalibration)}
	for _, code := range absCodesToProbe {
		var info linuxhid.AbsInfo
		if _, _, errno := unix.Syscall(unix.SYS_IOCTL, f.Fd(), linuxhid.EVIOCGABS(int(code)), uintptr(unsafe.Pointer(&info))); errno == 0 {
			s.axes[code] = axisCalibration{min: info.Minimum, max: info.Maximum, valueType: absValueType(code)}
		}
	}
	return s, nil
}

// Run reads frames until ctx is cancelled or the device errs out, emitting
// rescaled native events on out. It ungrabs and closes the device before
// returning and leaves out open (spec.md §5 "source captures ungrab their devices before
// exiting").
func (s *Source) Run(ctx context.Context, out chan<- nativeevent.Event) error {
	defer s.release()
	buf := make([]byte, 24)
	errCh := make(chan error, 1)
	evCh := make(chan linuxhid.InputEvent, 32)
	go s.readLoop(buf, evCh, errCh)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			return fmt.Errorf("evdevsrc: %s: %w", s.path, err)
		case ev := <-evCh:
			if ev.Type == linuxhid.EvSyn {
				s.frame++
				continue
			}
			out <- s.toNative(ev)
		}
	}
}

func (s *Source) readLoop(buf []byte, out chan<- linuxhid.InputEvent, errCh chan<- error) {
	for {
		n, err := s.file.Read(buf)
		if err != nil {
			errCh <- err
			return
		}
		if n < 24 {
			continue
		}
		var ev linuxhid.InputEvent
		if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &ev); err != nil {
			errCh <- err
			return
		}
		out <- ev
	}
}

func (s *Source) toNative(ev linuxhid.InputEvent) nativeevent.Event {
	value := ev.Value
	vt := nativeevent.ValueButton
	kind := evdevKindFor(ev.Type)
	if kind == nativeevent.KindAbs {
		if cal, ok := s.axes[ev.Code]; ok {
			value = cal.rescale(ev.Value)
			vt = cal.valueType
		}
	}
	return nativeevent.Event{
		Kind:      kind,
		Code:      ev.Code,
		Value:     value,
		ValueType: vt,
		SyncFrame: s.frame,
		Source:    s.path,
		Timestamp: time.Unix(ev.Time.Sec, ev.Time.Usec*1000),
	}
}

func evdevKindFor(t uint16) nativeevent.Kind {
	switch t {
	case linuxhid.EvKey:
		return nativeevent.KindKey
	case linuxhid.EvRel:
		return nativeevent.KindRel
	case linuxhid.EvAbs:
		return nativeevent.KindAbs
	case linuxhid.EvMsc:
		return nativeevent.KindMsc
	case linuxhid.EvSw:
		return nativeevent.KindSw
	case linuxhid.EvLed:
		return nativeevent.KindLed
	case linuxhid.EvSnd:
		return nativeevent.KindSnd
	case linuxhid.EvRep:
		return nativeevent.KindRep
	case linuxhid.EvFF:
		return nativeevent.KindFf
	case linuxhid.EvPwr:
		return nativeevent.KindPwr
	case linuxhid.EvFFStatus:
		return nativeevent.KindFfStatus
	default:
		return nativeevent.KindSync
	}
}

// release ungrabs the node and closes its file handle.
func (s *Source) release() {
	_ = unix.IoctlSetInt(int(s.file.Fd()), uint(linuxhid.EVIOCGRAB), 0)
	_ = s.file.Close()
}
