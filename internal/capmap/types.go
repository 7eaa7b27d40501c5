// Package capmap implements the Capability Translator (C2, spec.md §4.3):
// the stage that rewrites native events into capability events according to
// an ordered capability map, including chord, delayed-chord and
// multi-source mapping kinds with their timing semantics.
package capmap

import (
	"fmt"
	"time"

	"github.com/inputplumber/inputplumber/pkg/capability"
	"github.com/inputplumber/inputplumber/pkg/nativeevent"
)

// MappingType selects the translation semantics for one capability-map
// entry, per spec.md §4.3.
type MappingType string

const (
	MappingSingle       MappingType = "single"
	MappingChord        MappingType = "chord"
	MappingDelayedChord MappingType = "delayed_chord"
	MappingMultiSource  MappingType = "multi_source"
)

// Canonical normalization ranges used to convert a decoder's raw integer
// native-event value into the [0,1]/[-1,1] capability-event domain. Source
// decoders emit values already rescaled onto these ranges (spec.md §4.2:
// "Axis ranges ... are probed once and cached for normalization"), so the
// translator only needs one fixed divisor per ValueType instead of
// per-device calibration data.
const (
	AxisRawMax    = 32767
	TriggerRawMax = 255
)

// HidrawPredicate identifies and decodes one field of a HID-raw report, per
// spec.md §3's HidrawConfig. ByteStart/BitOffset address the field within
// the report as read, counted from its first byte (a leading report-ID
// byte, if any, is byte 0); Width is in bits.
type HidrawPredicate struct {
	ReportID  uint8  `json:"reportId" yaml:"reportId"`
	ByteStart int    `json:"byteStart" yaml:"byteStart"`
	BitOffset int    `json:"bitOffset" yaml:"bitOffset"`
	Width     int    `json:"width" yaml:"width"`
	Signed    bool   `json:"signed" yaml:"signed"`
	InputType string `json:"inputType" yaml:"inputType"`
}

// EvdevPredicate identifies one evdev (type,code) native event and,
// optionally, the half-axis/value it must carry to match.
type EvdevPredicate struct {
	EventType     nativeevent.Kind        `json:"eventType" yaml:"eventType"`
	EventCode     uint16                  `json:"eventCode" yaml:"eventCode"`
	ValueType     nativeevent.ValueType   `json:"valueType" yaml:"valueType"`
	AxisDirection capability.Direction    `json:"axisDirection,omitempty" yaml:"axisDirection,omitempty"`
	EventValue    *int32                  `json:"eventValue,omitempty" yaml:"eventValue,omitempty"`
}

// SourcePredicate is one predicate in a mapping's source_events list. Exactly
// one of Evdev/Hidraw should be populated, selected by the owning source's
// group (spec.md §3 "Group tag").
type SourcePredicate struct {
	Evdev  *EvdevPredicate  `json:"evdev,omitempty" yaml:"evdev,omitempty"`
	Hidraw *HidrawPredicate `json:"hidraw,omitempty" yaml:"hidraw,omitempty"`
}

// key returns a value comparable with == that uniquely identifies the raw
// signal this predicate reads, used both to index incoming native events and
// to decide chord-constituent ownership (spec.md §4.3 "A chord predicate can
// participate in only one chord at a time").
func (p SourcePredicate) key() (predicateKey, bool) {
	switch {
	case p.Evdev != nil:
		return predicateKey{evdev: true, eventType: p.Evdev.EventType, eventCode: p.Evdev.EventCode}, true
	case p.Hidraw != nil:
		return predicateKey{
			evdev:     false,
			reportID:  p.Hidraw.ReportID,
			byteStart: p.Hidraw.ByteStart,
			bitOffset: p.Hidraw.BitOffset,
		}, true
	default:
		return predicateKey{}, false
	}
}

type predicateKey struct {
	evdev     bool
	eventType nativeevent.Kind
	eventCode uint16
	reportID  uint8
	byteStart int
	bitOffset int
}

// Mapping is one ordered entry of a capability map (spec.md §3).
type Mapping struct {
	Name         string                `json:"name" yaml:"name"`
	SourceEvents []SourcePredicate     `json:"sourceEvents" yaml:"sourceEvents"`
	MappingType  MappingType           `json:"mappingType" yaml:"mappingType"`
	TargetEvent  capability.Capability `json:"targetEvent" yaml:"targetEvent"`
	// HoldWindow applies to delayed_chord only: the minimum time every
	// predicate must be held simultaneously before the chord fires.
	HoldWindow time.Duration `json:"holdWindow,omitempty" yaml:"holdWindow,omitempty"`
	// TapTarget applies to delayed_chord only: the capability emitted,
	// replaying each buffered predicate's original edges and values, when
	// the hold window is not satisfied before the first release (spec.md
	// §4.3 "the unchorded events are replayed ... with preserved values").
	// This distinguishes a tap on one key from a long-hold chord on the
	// same key (spec.md §8 scenario 6); when TapTarget is nil for a
	// multi-predicate delayed_chord, the buffered native events are instead
	// re-dispatched to any other mapping that also references the same
	// predicates (spec.md §9 Open Question (b)).
	TapTarget *capability.Capability `json:"tapTarget,omitempty" yaml:"tapTarget,omitempty"`
}

// CapabilityMap is the loaded, ordered set of mappings for one composite
// device (spec.md §3). Version reflects which schema it was parsed from;
// v1 maps are lowered to v2 shape by Migrate before a Map is constructed.
type CapabilityMap struct {
	Version  int       `json:"version" yaml:"version"`
	Mappings []Mapping `json:"mappings" yaml:"mappings"`
}

func (m CapabilityMap) Validate() error {
	for i, mapping := range m.Mappings {
		if len(mapping.SourceEvents) == 0 {
			return fmt.Errorf("mapping %d (%s): no source events", i, mapping.Name)
		}
		switch mapping.MappingType {
		case MappingSingle:
			if len(mapping.SourceEvents) != 1 {
				return fmt.Errorf("mapping %d (%s): single mapping requires exactly one source event", i, mapping.Name)
			}
		case MappingChord:
			if len(mapping.SourceEvents) < 2 {
				return fmt.Errorf("mapping %d (%s): chord mapping requires at least two source events", i, mapping.Name)
			}
		case MappingDelayedChord:
			// A delayed_chord with a single source event is the tap/hold
			// disambiguation pattern (spec.md §8 scenario 6); two or more is
			// a genuine hold-to-activate chord.
			if mapping.HoldWindow <= 0 {
				return fmt.Errorf("mapping %d (%s): delayed_chord requires a positive holdWindow", i, mapping.Name)
			}
		case MappingMultiSource:
			// any number of aliasing predicates is valid
		default:
			return fmt.Errorf("mapping %d (%s): unknown mapping type %q", i, mapping.Name, mapping.MappingType)
		}
	}
	return nil
}
