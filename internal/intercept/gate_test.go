package intercept

import (
	"testing"

	"github.com/inputplumber/inputplumber/pkg/capability"
)

// Scenario 4 (spec.md §8): Pass routes South to targets, Guide to the bus
// with an auto-transition to All, then a subsequent South goes to the bus.
func TestResolvePassGuideAutoTransitionsToAll(t *testing.T) {
	c := NewCell()
	c.Set(ModePass)
	south := capability.GamepadButton(capability.ButtonSouth)
	guide := capability.GamepadButton(capability.ButtonGuide)

	route, mode := Resolve(c, south)
	if route != RouteTargets || mode != ModePass {
		t.Fatalf("expected South routed to targets under Pass, got route=%v mode=%v", route, mode)
	}

	route, mode = Resolve(c, guide)
	if route != RouteBus || mode != ModeAll {
		t.Fatalf("expected Guide routed to bus and mode->All, got route=%v mode=%v", route, mode)
	}
	if c.Get() != ModeAll {
		t.Fatalf("expected cell to now read All, got %v", c.Get())
	}

	route, mode = Resolve(c, south)
	if route != RouteBus || mode != ModeAll {
		t.Fatalf("expected subsequent South routed to bus under All, got route=%v mode=%v", route, mode)
	}
}

func TestResolveGamepadOnlySplitsRouting(t *testing.T) {
	c := NewCell()
	c.Set(ModeGamepadOnly)
	south := capability.GamepadButton(capability.ButtonSouth)
	key := capability.KeyboardKey("KEY_A")

	if route, _ := Resolve(c, south); route != RouteBus {
		t.Fatalf("expected gamepad event to route to bus, got %v", route)
	}
	if route, _ := Resolve(c, key); route != RouteTargets {
		t.Fatalf("expected non-gamepad event to route to targets, got %v", route)
	}
}

func TestResolveNoneAlwaysTargets(t *testing.T) {
	c := NewCell()
	south := capability.GamepadButton(capability.ButtonSouth)
	key := capability.KeyboardKey("KEY_A")
	if route, _ := Resolve(c, south); route != RouteTargets {
		t.Fatalf("expected None to route gamepad events to targets, got %v", route)
	}
	if route, _ := Resolve(c, key); route != RouteTargets {
		t.Fatalf("expected None to route non-gamepad events to targets, got %v", route)
	}
}
