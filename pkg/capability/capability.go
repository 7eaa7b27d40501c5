// Package capability defines the uniform capability vocabulary that every
// source decoder normalizes into and every target device maps back out of.
// It is the tagged-enumeration equivalent described in spec.md §3 — a single
// comparable Go value rather than a class hierarchy, so it can be used
// directly as a map key in capability-map and profile lookups.
package capability

import "fmt"

// Kind identifies which capability family a Capability belongs to.
type Kind uint8

const (
	KindGamepadButton Kind = iota
	KindGamepadAxis
	KindGamepadTrigger
	KindGamepadGyro
	KindGamepadAccelerometer
	KindKeyboardKey
	KindMouseButton
	KindMouseMotion
	KindTouchpad
	KindTouchscreen
	KindDbus
)

func (k Kind) String() string {
	switch k {
	case KindGamepadButton:
		return "gamepad.button"
	case KindGamepadAxis:
		return "gamepad.axis"
	case KindGamepadTrigger:
		return "gamepad.trigger"
	case KindGamepadGyro:
		return "gamepad.gyro"
	case KindGamepadAccelerometer:
		return "gamepad.accelerometer"
	case KindKeyboardKey:
		return "keyboard.key"
	case KindMouseButton:
		return "mouse.button"
	case KindMouseMotion:
		return "mouse.motion"
	case KindTouchpad:
		return "touchpad"
	case KindTouchscreen:
		return "touchscreen"
	case KindDbus:
		return "dbus"
	default:
		return "unknown"
	}
}

// Button enumerates the canonical gamepad buttons from spec.md §3.
type Button string

const (
	ButtonSouth          Button = "South"
	ButtonEast           Button = "East"
	ButtonNorth          Button = "North"
	ButtonWest           Button = "West"
	ButtonDPadUp         Button = "DPadUp"
	ButtonDPadDown       Button = "DPadDown"
	ButtonDPadLeft       Button = "DPadLeft"
	ButtonDPadRight      Button = "DPadRight"
	ButtonLeftBumper     Button = "LeftBumper"
	ButtonRightBumper    Button = "RightBumper"
	ButtonLeftStickClick Button = "LeftStickClick"
	ButtonRightStickClick Button = "RightStickClick"
	ButtonStart          Button = "Start"
	ButtonSelect         Button = "Select"
	ButtonGuide          Button = "Guide"
	ButtonQuickAccess    Button = "QuickAccess"
	ButtonQuickAccess2   Button = "QuickAccess2"
	ButtonKeyboard       Button = "Keyboard"
	ButtonLeftPaddle1    Button = "LeftPaddle1"
	ButtonLeftPaddle2    Button = "LeftPaddle2"
	ButtonRightPaddle1   Button = "RightPaddle1"
	ButtonRightPaddle2   Button = "RightPaddle2"
	ButtonLeftTop        Button = "LeftTop"
	ButtonRightTop       Button = "RightTop"
)

// AxisName enumerates the named gamepad axes/hats.
type AxisName string

const (
	AxisLeftStick  AxisName = "LeftStick"
	AxisRightStick AxisName = "RightStick"
	AxisHat1       AxisName = "Hat1"
	AxisHat2       AxisName = "Hat2"
	AxisHat3       AxisName = "Hat3"
)

// Direction selects a half-axis for Axis capabilities and predicates.
type Direction string

const (
	DirectionNone     Direction = ""
	DirectionUp       Direction = "up"
	DirectionDown     Direction = "down"
	DirectionLeft     Direction = "left"
	DirectionRight    Direction = "right"
	DirectionPositive Direction = "positive"
	DirectionNegative Direction = "negative"
)

// TriggerName enumerates the named gamepad triggers/force sensors.
type TriggerName string

const (
	TriggerLeft              TriggerName = "LeftTrigger"
	TriggerRight             TriggerName = "RightTrigger"
	TriggerLeftTouchpadForce TriggerName = "LeftTouchpadForce"
	TriggerRightTouchpadForce TriggerName = "RightTouchpadForce"
	TriggerLeftStickForce    TriggerName = "LeftStickForce"
	TriggerRightStickForce   TriggerName = "RightStickForce"
)

// ImuName enumerates the named gyro/accelerometer instances (multiple IMUs
// are possible on devices such as the DualSense Edge's grips).
type ImuName string

const (
	ImuGyro1 ImuName = "Gyro1"
	ImuGyro2 ImuName = "Gyro2"
	ImuGyro3 ImuName = "Gyro3"
)

// ImuAxis selects which physical axis of an IMU reading a capability refers to.
type ImuAxis string

const (
	ImuAxisPitch ImuAxis = "pitch"
	ImuAxisRoll  ImuAxis = "roll"
	ImuAxisYaw   ImuAxis = "yaw"
)

// Capability is a single comparable value uniquely identifying one abstract
// input or output. Two Capability values compare equal with == iff they
// refer to the same control, which lets capability-map and profile targets
// use Capability directly as a map key.
type Capability struct {
	Kind Kind

	Button      Button
	Axis        AxisName
	Trigger     TriggerName
	Imu         ImuName
	ImuAxis     ImuAxis
	Direction   Direction
	Deadzone    float64
	Key         string
	MouseButton string
	Touch       string
	DbusCode    string
}

func GamepadButton(id Button) Capability {
	return Capability{Kind: KindGamepadButton, Button: id}
}

func GamepadAxis(name AxisName, dir Direction, deadzone float64) Capability {
	return Capability{Kind: KindGamepadAxis, Axis: name, Direction: dir, Deadzone: deadzone}
}

func GamepadTrigger(name TriggerName, deadzone float64) Capability {
	return Capability{Kind: KindGamepadTrigger, Trigger: name, Deadzone: deadzone}
}

func GamepadGyro(name ImuName, axis ImuAxis, dir Direction, deadzone float64) Capability {
	return Capability{Kind: KindGamepadGyro, Imu: name, ImuAxis: axis, Direction: dir, Deadzone: deadzone}
}

func GamepadAccelerometer(name ImuName, axis ImuAxis, dir Direction, deadzone float64) Capability {
	return Capability{Kind: KindGamepadAccelerometer, Imu: name, ImuAxis: axis, Direction: dir, Deadzone: deadzone}
}

func KeyboardKey(code string) Capability {
	return Capability{Kind: KindKeyboardKey, Key: code}
}

func MouseButtonCap(id string) Capability {
	return Capability{Kind: KindMouseButton, MouseButton: id}
}

func MouseMotion(dir Direction) Capability {
	return Capability{Kind: KindMouseMotion, Direction: dir}
}

func TouchpadCap(name string) Capability {
	return Capability{Kind: KindTouchpad, Touch: name}
}

func TouchscreenCap(region string) Capability {
	return Capability{Kind: KindTouchscreen, Touch: region}
}

func Dbus(code string) Capability {
	return Capability{Kind: KindDbus, DbusCode: code}
}

func (c Capability) String() string {
	switch c.Kind {
	case KindGamepadButton:
		return fmt.Sprintf("Gamepad.Button.%s", c.Button)
	case KindGamepadAxis:
		if c.Direction != DirectionNone {
			return fmt.Sprintf("Gamepad.Axis.%s.%s", c.Axis, c.Direction)
		}
		return fmt.Sprintf("Gamepad.Axis.%s", c.Axis)
	case KindGamepadTrigger:
		return fmt.Sprintf("Gamepad.Trigger.%s", c.Trigger)
	case KindGamepadGyro:
		return fmt.Sprintf("Gamepad.Gyro.%s.%s", c.Imu, c.ImuAxis)
	case KindGamepadAccelerometer:
		return fmt.Sprintf("Gamepad.Accelerometer.%s.%s", c.Imu, c.ImuAxis)
	case KindKeyboardKey:
		return fmt.Sprintf("Keyboard.Key.%s", c.Key)
	case KindMouseButton:
		return fmt.Sprintf("Mouse.Button.%s", c.MouseButton)
	case KindMouseMotion:
		if c.Direction != DirectionNone {
			return fmt.Sprintf("Mouse.Motion.%s", c.Direction)
		}
		return "Mouse.Motion"
	case KindTouchpad:
		return fmt.Sprintf("Touchpad.%s", c.Touch)
	case KindTouchscreen:
		return fmt.Sprintf("Touchscreen.%s", c.Touch)
	case KindDbus:
		return fmt.Sprintf("Dbus.%s", c.DbusCode)
	default:
		return "Capability{?}"
	}
}

// IsGamepad reports whether the capability belongs to the gamepad family,
// used by the intercept gate (spec.md §4.5) to distinguish "Gamepad events"
// from "Non-gamepad events" in the routing table.
func (c Capability) IsGamepad() bool {
	switch c.Kind {
	case KindGamepadButton, KindGamepadAxis, KindGamepadTrigger, KindGamepadGyro, KindGamepadAccelerometer:
		return true
	default:
		return false
	}
}
