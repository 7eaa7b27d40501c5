package capmap

import (
	"time"

	"github.com/inputplumber/inputplumber/pkg/capability"
	"github.com/inputplumber/inputplumber/pkg/nativeevent"
)

// matches reports whether ev satisfies predicate p, and if so the
// normalized capability-domain value ([0,1] for buttons/triggers, [-1,1]
// for axes) it carries.
func (p SourcePredicate) matches(ev nativeevent.Event) (value float64, ok bool) {
	switch {
	case p.Evdev != nil:
		return p.Evdev.matches(ev)
	case p.Hidraw != nil:
		return p.Hidraw.matches(ev)
	default:
		return 0, false
	}
}

func (p *EvdevPredicate) matches(ev nativeevent.Event) (float64, bool) {
	if ev.Kind != p.EventType || ev.Code != p.EventCode {
		return 0, false
	}
	if p.EventValue != nil && ev.Value != *p.EventValue {
		return 0, false
	}
	value := normalize(ev.Value, p.ValueType)
	switch p.AxisDirection {
	case capability.DirectionPositive, capability.DirectionUp, capability.DirectionRight:
		if ev.Value <= 0 {
			return 0, false
		}
		return value, true
	case capability.DirectionNegative, capability.DirectionDown, capability.DirectionLeft:
		if ev.Value >= 0 {
			return 0, false
		}
		if value < 0 {
			value = -value
		}
		return value, true
	default:
		return value, true
	}
}

// matches for a HidrawPredicate assumes the decoder (internal/source/hidrawsrc)
// has already extracted the field and encoded it as a native event whose
// Field identifies the field's address within the report and whose Value is
// the raw decoded integer; ReportID disambiguation happens upstream where the
// event is constructed, so here we only need to match on the synthesized
// field identity, which the decoder packs into ev.Field.
func (p *HidrawPredicate) matches(ev nativeevent.Event) (float64, bool) {
	if ev.Kind != nativeevent.KindUinput {
		return 0, false
	}
	if ev.Field != hidrawFieldID(p.ReportID, p.ByteStart, p.BitOffset) {
		return 0, false
	}
	return normalize(ev.Value, ev.ValueType), true
}

// hidrawFieldID derives a stable field identity from a HID-raw field
// address, packing reportID (8 bits), byteStart (16 bits) and bitOffset (3
// bits, 0-7) into a uint32 so predicate matching can compare field identity
// without reparsing the report layout on every event.
func hidrawFieldID(reportID uint8, byteStart, bitOffset int) uint32 {
	return uint32(reportID)<<24 | uint32(byteStart&0xffff)<<8 | uint32(bitOffset&0x7)
}

// HidrawFieldEvent constructs the native event a hidraw decoder should emit
// for one changed field, given its declared config and decoded raw value.
func HidrawFieldEvent(cfg HidrawPredicate, raw int32, source string, ts time.Time, syncFrame uint64) nativeevent.Event {
	return nativeevent.Event{
		Kind:      nativeevent.KindUinput,
		Field:     hidrawFieldID(cfg.ReportID, cfg.ByteStart, cfg.BitOffset),
		Value:     raw,
		ValueType: valueTypeForInputType(cfg.InputType),
		SyncFrame: syncFrame,
		Source:    source,
		Timestamp: ts,
	}
}

func valueTypeForInputType(inputType string) nativeevent.ValueType {
	switch inputType {
	case "button":
		return nativeevent.ValueButton
	case "trigger":
		return nativeevent.ValueTrigger
	case "joystick_x":
		return nativeevent.ValueJoystickX
	case "joystick_y":
		return nativeevent.ValueJoystickY
	case "imu_x":
		return nativeevent.ValueImuX
	case "imu_y":
		return nativeevent.ValueImuY
	case "imu_z":
		return nativeevent.ValueImuZ
	default:
		return nativeevent.ValueButton
	}
}

func normalize(raw int32, vt nativeevent.ValueType) float64 {
	switch vt {
	case nativeevent.ValueButton:
		if raw != 0 {
			return 1
		}
		return 0
	case nativeevent.ValueTrigger:
		return nativeevent.Clamp(float64(raw)/TriggerRawMax, 0, 1)
	case nativeevent.ValueJoystickX, nativeevent.ValueJoystickY:
		return nativeevent.Clamp(float64(raw)/AxisRawMax, -1, 1)
	case nativeevent.ValueImuX, nativeevent.ValueImuY, nativeevent.ValueImuZ:
		return float64(raw)
	default:
		return float64(raw)
	}
}
