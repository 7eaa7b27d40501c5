package profile

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/inputplumber/inputplumber/pkg/capability"
	"github.com/inputplumber/inputplumber/pkg/nativeevent"
)

// Scenario 3 (spec.md §8): a stick axis fed for 100ms at 60Hz produces
// Mouse.Motion events whose x-delta sums to speed_pps * deflection * duration.
func TestTranslatorStickToMouseMotionIntegratesToExpectedTotal(t *testing.T) {
	rightStick := capability.GamepadAxis(capability.AxisRightStick, capability.DirectionRight, 0.1)
	mouseRight := capability.MouseMotion(capability.DirectionRight)

	const speedPPS = 800.0
	prof := Profile{Name: "mouse_keyboard_wasd", Mappings: []Mapping{{
		Name:        "right-stick-x-to-mouse",
		SourceEvent: SourceEvent{Capability: rightStick},
		TargetEvents: []TargetEvent{{
			Capability: mouseRight,
			Motion:     &MotionParams{SpeedPPS: speedPPS, TickRate: 250},
		}},
	}}}

	tr, err := NewTranslator(zaptest.NewLogger(t), prof)
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan nativeevent.CapabilityEvent)
	out := make(chan nativeevent.CapabilityEvent, 1024)
	done := make(chan struct{})
	go func() {
		_ = tr.Run(ctx, in, out)
		close(done)
	}()

	stop := time.Now().Add(100 * time.Millisecond)
	go func() {
		tick := time.NewTicker(time.Second / 60)
		defer tick.Stop()
		for time.Now().Before(stop) {
			<-tick.C
			in <- nativeevent.NewCapabilityEvent(rightStick, 0.5, time.Now())
		}
	}()

	time.Sleep(130 * time.Millisecond)
	cancel()
	<-done
	close(out)

	var total float64
	var count int
	for ev := range out {
		if ev.Capability != mouseRight {
			t.Fatalf("unexpected capability: %+v", ev.Capability)
		}
		if ev.Value <= 0 {
			t.Fatalf("expected strictly positive x-delta, got %v", ev.Value)
		}
		total += ev.Value
		count++
	}
	if count == 0 {
		t.Fatal("expected at least one Mouse.Motion event")
	}
	want := speedPPS * 0.5 * 0.1
	if total < want-20 || total > want+20 {
		t.Fatalf("expected total delta near %v, got %v over %d events", want, total, count)
	}
}

func TestTranslatorDirectMappingCarriesValueThrough(t *testing.T) {
	south := capability.GamepadButton(capability.ButtonSouth)
	space := capability.KeyboardKey("KEY_SPACE")
	prof := Profile{Mappings: []Mapping{{
		Name:         "south-to-space",
		SourceEvent:  SourceEvent{Capability: south},
		TargetEvents: []TargetEvent{{Capability: space}},
	}}}
	tr, err := NewTranslator(zaptest.NewLogger(t), prof)
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan nativeevent.CapabilityEvent)
	out := make(chan nativeevent.CapabilityEvent, 4)
	done := make(chan struct{})
	go func() {
		_ = tr.Run(ctx, in, out)
		close(done)
	}()

	in <- nativeevent.NewCapabilityEvent(south, 1, time.Now())
	in <- nativeevent.NewCapabilityEvent(south, 0, time.Now())
	time.Sleep(10 * time.Millisecond)
	cancel()
	<-done
	close(out)

	var got []nativeevent.CapabilityEvent
	for ev := range out {
		got = append(got, ev)
	}
	if len(got) != 2 || got[0].Capability != space || got[0].Value != 1 || got[1].Value != 0 {
		t.Fatalf("expected South press/release carried through as space key, got %v", got)
	}
}
