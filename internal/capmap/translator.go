package capmap

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/inputplumber/inputplumber/pkg/nativeevent"
)

// Translator is the C2 Capability Translator (spec.md §4.3): it consumes one
// composite device's merged native event stream and produces capability
// events according to an ordered CapabilityMap, owning the chord/delayed_chord
// hold timers itself so callers never need to poll for timeouts.
type Translator struct {
	log      *zap.Logger
	mappings []Mapping

	// owner[key] is the index of the first chord/delayed_chord mapping that
	// declares a predicate for key; keys no such mapping declares have no
	// entry. A single mapping referencing a key with an owner is suppressed:
	// the chord has first claim on that raw signal (spec.md §9 Open Question
	// (b)). multi_source mappings do not check ownership and still fire.
	owner map[predicateKey]int

	states []chordState
	frame  uint64
}

type chordState struct {
	keys       []predicateKey
	predActive []bool
	committed  bool

	// delayed_chord only
	pendingDelayed bool
	replay         []replayItem
	timerGen       uint64
}

type replayItem struct {
	predIndex int
	value     float64
	ts        time.Time
}

type timerFired struct {
	mappingIndex int
	gen          uint64
}

// NewTranslator builds a Translator from a validated CapabilityMap.
func NewTranslator(log *zap.Logger, m CapabilityMap) (*Translator, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	t := &Translator{
		log:      log,
		mappings: m.Mappings,
		owner:    make(map[predicateKey]int),
		states:   make([]chordState, len(m.Mappings)),
	}
	for i, mapping := range t.mappings {
		keys := make([]predicateKey, len(mapping.SourceEvents))
		for j, pred := range mapping.SourceEvents {
			k, ok := pred.key()
			if !ok {
				continue
			}
			keys[j] = k
			if mapping.MappingType == MappingChord || mapping.MappingType == MappingDelayedChord {
				if _, exists := t.owner[k]; !exists {
					t.owner[k] = i
				}
			}
		}
		t.states[i] = chordState{keys: keys, predActive: make([]bool, len(keys))}
	}
	return t, nil
}

// Run consumes native events from in and emits capability events to out until
// ctx is cancelled or in is closed. It owns delayed_chord hold timers
// internally via time.AfterFunc, so the caller's select loop never needs to
// know about chord timing.
func (t *Translator) Run(ctx context.Context, in <-chan nativeevent.Event, out chan<- nativeevent.CapabilityEvent) error {
	timerCh := make(chan timerFired, 16)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-in:
			if !ok {
				return nil
			}
			t.handleEvent(ev, out, timerCh)
		case fired := <-timerCh:
			t.handleTimer(fired, out)
		}
	}
}

// handleEvent dispatches one native event to every mapping whose predicates
// could match it, applying chord ownership/suppression (spec.md §9 Open
// Question (b)) before resolving single/multi_source targets.
func (t *Translator) handleEvent(ev nativeevent.Event, out chan<- nativeevent.CapabilityEvent, timerCh chan timerFired) {
	t.dispatch(ev, out, timerCh, -1)
}

// dispatch is the shared resolution path used both for live events and for
// delayed_chord replay of buffered events; skipMapping excludes the
// delayed_chord mapping currently replaying, so replay cannot recurse into
// itself.
func (t *Translator) dispatch(ev nativeevent.Event, out chan<- nativeevent.CapabilityEvent, timerCh chan timerFired, skipMapping int) {
	for i, mapping := range t.mappings {
		if i == skipMapping {
			continue
		}
		switch mapping.MappingType {
		case MappingChord, MappingDelayedChord:
			for predIdx, pred := range mapping.SourceEvents {
				value, ok := pred.matches(ev)
				if !ok {
					continue
				}
				t.handleChordPredicate(i, predIdx, value, ev.Timestamp, out, timerCh)
			}
		case MappingSingle:
			pred := mapping.SourceEvents[0]
			value, ok := pred.matches(ev)
			if !ok {
				continue
			}
			if k, has := pred.key(); has {
				if owner, exists := t.owner[k]; exists && owner != i && owner != skipMapping {
					continue // claimed by a chord/delayed_chord
				}
			}
			t.emit(out, mapping, value, ev.Timestamp)
		case MappingMultiSource:
			for _, pred := range mapping.SourceEvents {
				value, ok := pred.matches(ev)
				if !ok {
					continue
				}
				t.emit(out, mapping, value, ev.Timestamp)
			}
		}
	}
}

func (t *Translator) emit(out chan<- nativeevent.CapabilityEvent, mapping Mapping, value float64, ts time.Time) {
	out <- nativeevent.NewCapabilityEvent(mapping.TargetEvent, value, ts)
}

// handleChordPredicate advances the chord/delayed_chord state machine for
// mapping m on a rising or falling edge of one of its constituent predicates,
// per spec.md §4.3.
func (t *Translator) handleChordPredicate(m, predIdx int, value float64, ts time.Time, out chan<- nativeevent.CapabilityEvent, timerCh chan timerFired) {
	mapping := t.mappings[m]
	st := &t.states[m]

	isActive := value >= 0.5 || value <= -0.5
	if isActive == st.predActive[predIdx] {
		return // no edge
	}
	st.predActive[predIdx] = isActive

	if mapping.MappingType == MappingChord {
		if isActive {
			if !st.committed && allActive(st.predActive) {
				st.committed = true
				t.emit(out, mapping, 1, ts)
			}
		} else if st.committed {
			st.committed = false
			t.emit(out, mapping, 0, ts)
		}
		return
	}

	// MappingDelayedChord
	if isActive {
		if st.committed {
			return // already fired; redundant re-press of a constituent is ignored
		}
		if !st.pendingDelayed {
			st.pendingDelayed = true
			st.replay = st.replay[:0]
			st.timerGen++
			gen := st.timerGen
			time.AfterFunc(mapping.HoldWindow, func() {
				select {
				case timerCh <- timerFired{mappingIndex: m, gen: gen}:
				default:
				}
			})
		}
		st.replay = append(st.replay, replayItem{predIndex: predIdx, value: value, ts: ts})
		return
	}

	// falling edge
	if st.committed {
		st.committed = false
		t.emit(out, mapping, 0, ts)
		return
	}
	if st.pendingDelayed {
		st.replay = append(st.replay, replayItem{predIndex: predIdx, value: value, ts: ts})
		t.replayUnchorded(m, out, timerCh)
	}
}

// handleTimer fires when a delayed_chord's hold window elapses. A stale
// timer (superseded by a new hold attempt, or the chord already resolved by
// an early release) is identified by comparing gen against the current
// timerGen and is ignored.
func (t *Translator) handleTimer(fired timerFired, out chan<- nativeevent.CapabilityEvent) {
	st := &t.states[fired.mappingIndex]
	if !st.pendingDelayed || fired.gen != st.timerGen {
		return
	}
	if !allActive(st.predActive) {
		// hold window elapsed but not every constituent is still down; treat
		// as a failed hold and fall back to the tap/replay path.
		t.replayUnchorded(fired.mappingIndex, out, nil)
		return
	}
	st.pendingDelayed = false
	st.committed = true
	mapping := t.mappings[fired.mappingIndex]
	t.emit(out, mapping, 1, st.replay[len(st.replay)-1].ts)
	st.replay = st.replay[:0]
}

// replayUnchorded resolves a delayed_chord hold attempt that failed to
// complete before a constituent released, per spec.md §4.3 "if any predicate
// releases before the window elapses, the unchorded events are replayed in
// their original order with preserved values" and the tap/hold
// disambiguation in spec.md §8 scenario 6.
func (t *Translator) replayUnchorded(m int, out chan<- nativeevent.CapabilityEvent, timerCh chan timerFired) {
	mapping := t.mappings[m]
	st := &t.states[m]
	st.pendingDelayed = false
	buffered := st.replay
	st.replay = nil
	for i := range st.predActive {
		st.predActive[i] = false
	}

	if mapping.TapTarget != nil {
		// Single declared tap target: replay each buffered edge directly
		// against it, preserving original values and order.
		for _, item := range buffered {
			out <- nativeevent.NewCapabilityEvent(*mapping.TapTarget, item.value, item.ts)
		}
		return
	}

	// No tap target: hand the buffered raw signals back to normal
	// resolution so any other mapping referencing the same predicates
	// (single/multi_source) can claim them. Re-synthesize a minimal native
	// event per buffered item; this mapping is excluded from dispatch to
	// prevent recursing back into itself.
	for _, item := range buffered {
		pred := mapping.SourceEvents[item.predIndex]
		ev := syntheticEventFor(pred, item.value, item.ts)
		t.dispatch(ev, out, timerCh, m)
	}
}

// syntheticEventFor reconstructs a plausible native event for replay
// purposes from a predicate and the capability-domain value it last carried.
// Only the fields matches() inspects need to round-trip faithfully.
func syntheticEventFor(pred SourcePredicate, value float64, ts time.Time) nativeevent.Event {
	switch {
	case pred.Evdev != nil:
		raw := int32(0)
		if value != 0 {
			raw = 1
		}
		if pred.Evdev.EventValue != nil {
			raw = *pred.Evdev.EventValue
		}
		return nativeevent.Event{
			Kind:      pred.Evdev.EventType,
			Code:      pred.Evdev.EventCode,
			Value:     raw,
			ValueType: pred.Evdev.ValueType,
			Timestamp: ts,
		}
	case pred.Hidraw != nil:
		raw := int32(0)
		if value != 0 {
			raw = 1
		}
		return nativeevent.Event{
			Kind:      nativeevent.KindUinput,
			Field:     hidrawFieldID(pred.Hidraw.ReportID, pred.Hidraw.ByteStart, pred.Hidraw.BitOffset),
			Value:     raw,
			ValueType: valueTypeForInputType(pred.Hidraw.InputType),
			Timestamp: ts,
		}
	default:
		return nativeevent.Event{Timestamp: ts}
	}
}

func allActive(active []bool) bool {
	for _, a := range active {
		if !a {
			return false
		}
	}
	return len(active) > 0
}
