package uhidtgt

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/inputplumber/inputplumber/pkg/capability"
	"github.com/inputplumber/inputplumber/pkg/nativeevent"
)

func TestDualSenseSerializeRoundTrips(t *testing.T) {
	log := zaptest.NewLogger(t)
	tgt, err := NewDualSense(log, "test-dualsense")
	if err != nil {
		t.Fatalf("NewDualSense: %v", err)
	}

	events := []nativeevent.CapabilityEvent{
		{Capability: capability.GamepadButton(capability.ButtonSouth), Value: 1},
		{Capability: capability.GamepadButton(capability.ButtonEast), Value: 1},
		{Capability: capability.GamepadButton(capability.ButtonLeftBumper), Value: 1},
		{Capability: capability.GamepadButton(capability.ButtonGuide), Value: 1},
		{Capability: capability.GamepadButton(capability.ButtonDPadUp), Value: 1},
		{Capability: capability.GamepadButton(capability.ButtonDPadRight), Value: 1},
		{Capability: capability.GamepadAxis(capability.AxisLeftStick, capability.DirectionRight, 0), Value: 1},
		{Capability: capability.GamepadTrigger(capability.TriggerRight, 0), Value: 1},
		{Capability: capability.GamepadGyro(capability.ImuGyro1, capability.ImuAxisYaw, capability.DirectionPositive, 0), Value: 0.5},
	}
	for _, ev := range events {
		tgt.apply(ev)
	}

	tgt.mu.Lock()
	report := tgt.serializeLocked()
	tgt.mu.Unlock()

	if len(report) != dualSenseInputReportLen {
		t.Fatalf("expected a %d-byte USB input report, got %d", dualSenseInputReportLen, len(report))
	}
	if report[0] != dualSenseReportIDInput {
		t.Fatalf("expected report ID 0x%02x, got 0x%02x", dualSenseReportIDInput, report[0])
	}

	got := decodeDualSenseInputReport(report)
	if !got.cross {
		t.Fatal("expected cross (South) bit set")
	}
	if !got.circle {
		t.Fatal("expected circle (East) bit set")
	}
	if !got.l1 {
		t.Fatal("expected l1 bit set")
	}
	if !got.ps {
		t.Fatal("expected ps bit set")
	}
	if got.dpad != dpadNorthEast {
		t.Fatalf("expected dpad NorthEast (up+right), got %v", got.dpad)
	}
	if got.leftX != 0xFF {
		t.Fatalf("expected left stick X pegged right (0xFF), got 0x%02x", got.leftX)
	}
	if got.rightTrigger != 0xFF {
		t.Fatalf("expected right trigger fully pressed, got 0x%02x", got.rightTrigger)
	}
	if got.gyroZ != ds5GyroResPerDegS/2 {
		t.Fatalf("expected gyro yaw scaled to half range, got %d", got.gyroZ)
	}
}

func TestDualSenseDpadReleaseKeepsOtherDirection(t *testing.T) {
	log := zaptest.NewLogger(t)
	tgt, err := NewDualSense(log, "test-dualsense-2")
	if err != nil {
		t.Fatalf("NewDualSense: %v", err)
	}

	tgt.apply(nativeevent.CapabilityEvent{Capability: capability.GamepadButton(capability.ButtonDPadUp), Value: 1})
	tgt.apply(nativeevent.CapabilityEvent{Capability: capability.GamepadButton(capability.ButtonDPadRight), Value: 1})
	tgt.apply(nativeevent.CapabilityEvent{Capability: capability.GamepadButton(capability.ButtonDPadUp), Value: 0})

	tgt.mu.Lock()
	dpad := tgt.state.dpad
	tgt.mu.Unlock()

	if dpad != dpadEast {
		t.Fatalf("expected dpad East after releasing Up, got %v", dpad)
	}
}

func TestDualSenseNeutralStateIsDpadReleasedAndCenteredSticks(t *testing.T) {
	s := neutralDualSenseState()
	if s.dpad != dpadNone {
		t.Fatalf("expected neutral dpad to be None, got %v", s.dpad)
	}
	if s.leftX != 0x80 || s.leftY != 0x80 || s.rightX != 0x80 || s.rightY != 0x80 {
		t.Fatal("expected neutral sticks centered at 0x80")
	}
}
