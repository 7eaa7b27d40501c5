package evdevsrc

import (
	"testing"

	"github.com/inputplumber/inputplumber/internal/capmap"
	"github.com/inputplumber/inputplumber/internal/linuxhid"
	"github.com/inputplumber/inputplumber/pkg/nativeevent"
)

func mockInputEvent(typ, code uint16, value int32) linuxhid.InputEvent {
	return linuxhid.InputEvent{Type: typ, Code: code, Value: value}
}

func TestAxisCalibrationRescaleJoystickCentersAndClamps(t *testing.T) {
	cal := axisCalibration{min: -32768, max: 32767, valueType: nativeevent.ValueJoystickX}

	if got := cal.rescale(0); got < -200 || got > 200 {
		t.Fatalf("center raw=0 should rescale near 0, got %d", got)
	}
	if got := cal.rescale(32767); got < capmap.AxisRawMax-200 {
		t.Fatalf("max raw should rescale near AxisRawMax, got %d", got)
	}
	if got := cal.rescale(-32768); got > -capmap.AxisRawMax+200 {
		t.Fatalf("min raw should rescale near -AxisRawMax, got %d", got)
	}
}

func TestAxisCalibrationRescaleTriggerIsUnsigned(t *testing.T) {
	cal := axisCalibration{min: 0, max: 1023, valueType: nativeevent.ValueTrigger}

	if got := cal.rescale(0); got != 0 {
		t.Fatalf("min raw should rescale to 0, got %d", got)
	}
	if got := cal.rescale(1023); got < capmap.TriggerRawMax-2 {
		t.Fatalf("max raw should rescale near TriggerRawMax, got %d", got)
	}
}

func TestAxisCalibrationRescaleZeroSpanIsZero(t *testing.T) {
	cal := axisCalibration{min: 10, max: 10, valueType: nativeevent.ValueJoystickX}
	if got := cal.rescale(10); got != 0 {
		t.Fatalf("degenerate range should rescale to 0, got %d", got)
	}
}

func TestToNativeUsesCalibratedAxisAndTracksSyncFrame(t *testing.T) {
	s := &Source{
		path: "/dev/input/event9",
		axes: map[uint16]axisCalibration{
			0x00: {min: -32768, max: 32767, valueType: nativeevent.ValueJoystickX},
		},
		frame: 3,
	}
	ev := s.toNative(mockInputEvent(0x03, 0x00, 16384))
	if ev.Kind != nativeevent.KindAbs {
		t.Fatalf("expected KindAbs, got %v", ev.Kind)
	}
	if ev.ValueType != nativeevent.ValueJoystickX {
		t.Fatalf("expected calibrated ValueType, got %v", ev.ValueType)
	}
	if ev.SyncFrame != 3 {
		t.Fatalf("expected current frame counter carried through, got %d", ev.SyncFrame)
	}
	if ev.Value <= 0 {
		t.Fatalf("positive raw should rescale to a positive value, got %d", ev.Value)
	}
}

func TestToNativeUncalibratedAxisPassesRawValue(t *testing.T) {
	s := &Source{path: "/dev/input/event9", axes: map[uint16]axisCalibration{}}
	ev := s.toNative(mockInputEvent(0x01, 0x130, 1))
	if ev.Kind != nativeevent.KindKey {
		t.Fatalf("expected KindKey, got %v", ev.Kind)
	}
	if ev.Value != 1 {
		t.Fatalf("expected raw value passed through for key events, got %d", ev.Value)
	}
}
