package capmap

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/inputplumber/inputplumber/pkg/capability"
	"github.com/inputplumber/inputplumber/pkg/nativeevent"
)

func keyPred(code uint16) SourcePredicate {
	return SourcePredicate{Evdev: &EvdevPredicate{
		EventType: nativeevent.KindKey,
		EventCode: code,
		ValueType: nativeevent.ValueButton,
	}}
}

func keyEvent(code uint16, down bool, ts time.Time) nativeevent.Event {
	v := int32(0)
	if down {
		v = 1
	}
	return nativeevent.Event{Kind: nativeevent.KindKey, Code: code, Value: v, ValueType: nativeevent.ValueButton, Timestamp: ts}
}

func runTranslator(t *testing.T, tr *Translator, events []nativeevent.Event) []nativeevent.CapabilityEvent {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan nativeevent.Event)
	out := make(chan nativeevent.CapabilityEvent, 64)
	done := make(chan struct{})
	go func() {
		_ = tr.Run(ctx, in, out)
		close(done)
	}()
	for _, ev := range events {
		in <- ev
	}
	// give delayed_chord timers a chance to fire before we stop collecting.
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done
	close(out)
	var got []nativeevent.CapabilityEvent
	for ev := range out {
		got = append(got, ev)
	}
	return got
}

// Scenario 1 (spec.md §8): guide chord on three keys fires exactly once on
// the third keydown and releases on the first keyup.
func TestTranslatorChordFiresOnceAndReleasesOnFirstUp(t *testing.T) {
	guide := capability.Capability{Kind: capability.KindGamepadButton, Button: capability.ButtonGuide}
	m := CapabilityMap{Version: 2, Mappings: []Mapping{{
		Name:         "guide-chord",
		MappingType:  MappingChord,
		SourceEvents: []SourcePredicate{keyPred(29 /*RightCtrl*/), keyPred(125 /*LeftMeta*/), keyPred(187 /*F17*/)},
		TargetEvent:  guide,
	}}}
	tr, err := NewTranslator(zaptest.NewLogger(t), m)
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}

	now := time.Unix(0, 0)
	events := []nativeevent.Event{
		keyEvent(29, true, now),
		keyEvent(125, true, now),
		keyEvent(187, true, now), // third down: chord completes
		keyEvent(187, false, now), // first up: chord releases
		keyEvent(125, false, now),
		keyEvent(29, false, now),
	}
	got := runTranslator(t, tr, events)

	var ones, zeros int
	for _, ev := range got {
		if ev.Capability != guide {
			t.Fatalf("unexpected capability emitted: %+v", ev.Capability)
		}
		if ev.Value == 1 {
			ones++
		} else if ev.Value == 0 {
			zeros++
		}
	}
	if ones != 1 || zeros != 1 {
		t.Fatalf("expected exactly one 1 and one 0, got ones=%d zeros=%d (events=%v)", ones, zeros, got)
	}
}

// Scenario 2 (spec.md §8): half-axis DPad only fires the direction whose
// sign matches, never the opposite direction's capability.
func TestTranslatorHalfAxisDPad(t *testing.T) {
	left := capability.Capability{Kind: capability.KindGamepadButton, Button: capability.ButtonDPadLeft}
	right := capability.Capability{Kind: capability.KindGamepadButton, Button: capability.ButtonDPadRight}
	m := CapabilityMap{Version: 2, Mappings: []Mapping{
		{
			Name:        "dpad-left",
			MappingType: MappingSingle,
			SourceEvents: []SourcePredicate{{Evdev: &EvdevPredicate{
				EventType:     nativeevent.KindAbs,
				EventCode:     16, // ABS_HAT0X
				ValueType:     nativeevent.ValueButton,
				AxisDirection: capability.DirectionLeft,
			}}},
			TargetEvent: left,
		},
		{
			Name:        "dpad-right",
			MappingType: MappingSingle,
			SourceEvents: []SourcePredicate{{Evdev: &EvdevPredicate{
				EventType:     nativeevent.KindAbs,
				EventCode:     16,
				ValueType:     nativeevent.ValueButton,
				AxisDirection: capability.DirectionRight,
			}}},
			TargetEvent: right,
		},
	}}
	tr, err := NewTranslator(zaptest.NewLogger(t), m)
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}

	got := runTranslator(t, tr, []nativeevent.Event{
		{Kind: nativeevent.KindAbs, Code: 16, Value: -1, ValueType: nativeevent.ValueButton, Timestamp: time.Unix(0, 0)},
	})
	if len(got) != 1 {
		t.Fatalf("expected exactly one capability event, got %v", got)
	}
	if got[0].Capability != left || got[0].Value != 1 {
		t.Fatalf("expected DPadLeft=1, got %+v", got[0])
	}
}

// Scenario 6 (spec.md §8): delayed_chord tap path replays the original
// capability unchanged when released inside the hold window.
func TestTranslatorDelayedChordTapReplaysUnchanged(t *testing.T) {
	north := capability.Capability{Kind: capability.KindGamepadButton, Button: capability.ButtonNorth}
	west := capability.Capability{Kind: capability.KindGamepadButton, Button: capability.ButtonWest}
	m := CapabilityMap{Version: 2, Mappings: []Mapping{{
		Name:         "north-hold-west",
		MappingType:  MappingDelayedChord,
		SourceEvents: []SourcePredicate{keyPred(53 /*KEY_North-ish*/)},
		HoldWindow:   300 * time.Millisecond,
		TargetEvent:  west,
		TapTarget:    &north,
	}}}
	tr, err := NewTranslator(zaptest.NewLogger(t), m)
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}

	now := time.Unix(0, 0)
	got := runTranslator(t, tr, []nativeevent.Event{
		keyEvent(53, true, now),
		keyEvent(53, false, now.Add(50*time.Millisecond)),
	})
	if len(got) != 2 {
		t.Fatalf("expected tap to replay as two North edges, got %v", got)
	}
	for _, ev := range got {
		if ev.Capability != north {
			t.Fatalf("expected replayed capability to be North, got %+v", ev)
		}
	}
	if got[0].Value != 1 || got[1].Value != 0 {
		t.Fatalf("expected North 1 then 0 preserving order, got %v", got)
	}
}

// Scenario 6 continued: holding past the window fires the hold target and
// releases it cleanly without ever emitting the tap target.
func TestTranslatorDelayedChordHoldFiresWestNotNorth(t *testing.T) {
	north := capability.Capability{Kind: capability.KindGamepadButton, Button: capability.ButtonNorth}
	west := capability.Capability{Kind: capability.KindGamepadButton, Button: capability.ButtonWest}
	m := CapabilityMap{Version: 2, Mappings: []Mapping{{
		Name:         "north-hold-west",
		MappingType:  MappingDelayedChord,
		SourceEvents: []SourcePredicate{keyPred(53)},
		HoldWindow:   20 * time.Millisecond,
		TargetEvent:  west,
		TapTarget:    &north,
	}}}
	tr, err := NewTranslator(zaptest.NewLogger(t), m)
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan nativeevent.Event)
	out := make(chan nativeevent.CapabilityEvent, 16)
	done := make(chan struct{})
	go func() {
		_ = tr.Run(ctx, in, out)
		close(done)
	}()
	in <- keyEvent(53, true, time.Unix(0, 0))
	time.Sleep(60 * time.Millisecond) // past the 20ms hold window
	in <- keyEvent(53, false, time.Unix(0, 0).Add(60*time.Millisecond))
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done
	close(out)

	var got []nativeevent.CapabilityEvent
	for ev := range out {
		got = append(got, ev)
	}
	if len(got) != 2 {
		t.Fatalf("expected exactly West=1 then West=0, got %v", got)
	}
	if got[0].Capability != west || got[0].Value != 1 {
		t.Fatalf("expected West=1 first, got %+v", got[0])
	}
	if got[1].Capability != west || got[1].Value != 0 {
		t.Fatalf("expected West=0 second, got %+v", got[1])
	}
}

// Invariant 3 (spec.md §8): a multi_source mapping lets two independent
// predicates update the same target independently, each firing on its own.
func TestTranslatorMultiSourceIndependentUpdates(t *testing.T) {
	brake := capability.Capability{Kind: capability.KindGamepadTrigger, Trigger: capability.TriggerLeft}
	m := CapabilityMap{Version: 2, Mappings: []Mapping{{
		Name:        "brake-multi",
		MappingType: MappingMultiSource,
		SourceEvents: []SourcePredicate{
			{Evdev: &EvdevPredicate{EventType: nativeevent.KindAbs, EventCode: 2, ValueType: nativeevent.ValueTrigger}},
			{Hidraw: &HidrawPredicate{ReportID: 1, ByteStart: 4, BitOffset: 0, Width: 8, InputType: "trigger"}},
		},
		TargetEvent: brake,
	}}}
	tr, err := NewTranslator(zaptest.NewLogger(t), m)
	if err != nil {
		t.Fatalf("NewTranslator: %v", err)
	}

	got := runTranslator(t, tr, []nativeevent.Event{
		{Kind: nativeevent.KindAbs, Code: 2, Value: 128, ValueType: nativeevent.ValueTrigger, Timestamp: time.Unix(0, 0)},
		HidrawFieldEvent(HidrawPredicate{ReportID: 1, ByteStart: 4, BitOffset: 0, InputType: "trigger"}, 255, "hidraw0", time.Unix(0, 1), 1),
	})
	if len(got) != 2 {
		t.Fatalf("expected both sources to independently fire, got %v", got)
	}
}
