package composite

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/inputplumber/inputplumber/internal/capmap"
	"github.com/inputplumber/inputplumber/internal/profile"
	"github.com/inputplumber/inputplumber/pkg/capability"
	"github.com/inputplumber/inputplumber/pkg/nativeevent"
)

// fakeEventSource replays a fixed sequence of native events once, then
// blocks until ctx is cancelled (mimicking a live kernel fd with no more
// activity).
type fakeEventSource struct {
	events []nativeevent.Event
}

func (f *fakeEventSource) Run(ctx context.Context, out chan<- nativeevent.Event) error {
	for _, ev := range f.events {
		out <- ev
	}
	<-ctx.Done()
	return nil
}

// recordingTarget captures every capability event it receives.
type recordingTarget struct {
	mu   sync.Mutex
	got  []nativeevent.CapabilityEvent
	seen chan struct{}
}

func newRecordingTarget() *recordingTarget {
	return &recordingTarget{seen: make(chan struct{}, 16)}
}

func (r *recordingTarget) Run(ctx context.Context, in <-chan nativeevent.CapabilityEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-in:
			r.mu.Lock()
			r.got = append(r.got, ev)
			r.mu.Unlock()
			select {
			case r.seen <- struct{}{}:
			default:
			}
		}
	}
}

func (r *recordingTarget) snapshot() []nativeevent.CapabilityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]nativeevent.CapabilityEvent, len(r.got))
	copy(out, r.got)
	return out
}

func keyPredMapping(code uint16, target capability.Capability) capmap.Mapping {
	return capmap.Mapping{
		Name:        "single",
		MappingType: capmap.MappingSingle,
		SourceEvents: []capmap.SourcePredicate{{
			Evdev: &capmap.EvdevPredicate{EventType: nativeevent.KindKey, EventCode: code, ValueType: nativeevent.ValueButton},
		}},
		TargetEvent: target,
	}
}

func TestDeviceRoutesSourceEventsToTarget(t *testing.T) {
	log := zaptest.NewLogger(t)
	south := capability.GamepadButton(capability.ButtonSouth)
	capMap := capmap.CapabilityMap{Version: 2, Mappings: []capmap.Mapping{keyPredMapping(0x130, south)}}
	prof := profile.Profile{Mappings: []profile.Mapping{{
		SourceEvent:  profile.SourceEvent{Capability: south},
		TargetEvents: []profile.TargetEvent{{Capability: south}},
	}}}

	src := &fakeEventSource{events: []nativeevent.Event{
		{Kind: nativeevent.KindKey, Code: 0x130, Value: 1},
	}}
	tgt := newRecordingTarget()

	dev, err := New(log, Config{
		Name:          "test",
		CapabilityMap: capMap,
		Profile:       prof,
		EventSources:  map[string]EventSource{"pad0": src},
		Targets:       map[string]Target{"gamepad0": tgt},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dev.Run(ctx)
		close(done)
	}()

	select {
	case <-tgt.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for target to observe an event")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for composite to tear down")
	}

	got := tgt.snapshot()
	if len(got) == 0 {
		t.Fatal("expected at least one capability event delivered to target")
	}
	if got[0].Capability != south {
		t.Fatalf("expected South button capability, got %v", got[0].Capability)
	}
	if got[0].Value != 1 {
		t.Fatalf("expected pressed value 1, got %v", got[0].Value)
	}
}

func TestDeviceDropsBlockedSourceEvents(t *testing.T) {
	log := zaptest.NewLogger(t)
	south := capability.GamepadButton(capability.ButtonSouth)
	capMap := capmap.CapabilityMap{Version: 2, Mappings: []capmap.Mapping{keyPredMapping(0x130, south)}}
	prof := profile.Profile{Mappings: []profile.Mapping{{
		SourceEvent:  profile.SourceEvent{Capability: south},
		TargetEvents: []profile.TargetEvent{{Capability: south}},
	}}}

	blocked := &fakeEventSource{events: []nativeevent.Event{
		{Kind: nativeevent.KindKey, Code: 0x130, Value: 1},
	}}
	tgt := newRecordingTarget()

	dev, err := New(log, Config{
		Name:                "test",
		CapabilityMap:       capMap,
		Profile:             prof,
		BlockedEventSources: map[string]EventSource{"dup0": blocked},
		Targets:             map[string]Target{"gamepad0": tgt},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dev.Run(ctx)
		close(done)
	}()

	select {
	case <-tgt.seen:
		t.Fatal("blocked source's event reached the target")
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for composite to tear down")
	}

	if got := tgt.snapshot(); len(got) != 0 {
		t.Fatalf("expected no capability events, got %v", got)
	}
}

func TestDeviceTearsDownAfterRepeatedTaskFailure(t *testing.T) {
	log := zaptest.NewLogger(t)
	dev, err := New(log, Config{
		Name:          "flaky",
		CapabilityMap: capmap.CapabilityMap{Version: 2},
		Profile:       profile.Profile{},
		EventSources: map[string]EventSource{
			"flaky": failingSource{},
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	done := make(chan struct{})
	go func() {
		dev.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected composite to tear itself down after the source fails twice")
	}
}

type failingSource struct{}

func (failingSource) Run(ctx context.Context, out chan<- nativeevent.Event) error {
	return context.DeadlineExceeded
}
