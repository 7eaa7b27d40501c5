package capmap

import (
	"encoding/json"
	"fmt"

	"github.com/inputplumber/inputplumber/pkg/capability"
	"github.com/inputplumber/inputplumber/pkg/nativeevent"
)

// v1Mapping is the legacy capability_map_v1 shape (spec.md §9 "Schema
// migration"): a list of evdev keycodes that must all be held ("activation
// keys") to produce one target capability event.
type v1Mapping struct {
	Name            string                `json:"name" yaml:"name"`
	ActivationKeys  []uint16              `json:"activationKeys" yaml:"activationKeys"`
	TargetEvent     capability.Capability `json:"targetEvent" yaml:"targetEvent"`
}

type v1CapabilityMap struct {
	Version  int         `json:"version" yaml:"version"`
	Mappings []v1Mapping `json:"mappings" yaml:"mappings"`
}

// Decode parses raw YAML-as-JSON bytes into a v2 CapabilityMap, lowering a
// v1 document first if its version field says so (spec.md §6 "implementations
// must accept both").
func Decode(raw []byte) (CapabilityMap, error) {
	var probe struct {
		Version int `json:"version" yaml:"version"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return CapabilityMap{}, fmt.Errorf("capmap: decode version probe: %w", err)
	}
	if probe.Version == 1 {
		var v1 v1CapabilityMap
		if err := json.Unmarshal(raw, &v1); err != nil {
			return CapabilityMap{}, fmt.Errorf("capmap: decode v1: %w", err)
		}
		return Migrate(v1), nil
	}
	var v2 CapabilityMap
	if err := json.Unmarshal(raw, &v2); err != nil {
		return CapabilityMap{}, fmt.Errorf("capmap: decode v2: %w", err)
	}
	return v2, nil
}

// Migrate lowers a capability_map_v1 document to v2 shape, per spec.md §9:
// "v1 is lowered to v2 by treating its activation list as a chord of
// keyboard predicates whose target is the v1 target_event." A single-key
// activation list lowers to a single mapping instead of a degenerate
// one-predicate chord, since spec.md's chord mapping type requires at least
// two source events.
func Migrate(v1 v1CapabilityMap) CapabilityMap {
	v2 := CapabilityMap{Version: 2, Mappings: make([]Mapping, 0, len(v1.Mappings))}
	for _, m := range v1.Mappings {
		preds := make([]SourcePredicate, 0, len(m.ActivationKeys))
		for _, code := range m.ActivationKeys {
			preds = append(preds, SourcePredicate{
				Evdev: &EvdevPredicate{
					EventType: nativeevent.KindKey,
					EventCode: code,
					ValueType: nativeevent.ValueButton,
				},
			})
		}
		mappingType := MappingChord
		if len(preds) <= 1 {
			mappingType = MappingSingle
		}
		v2.Mappings = append(v2.Mappings, Mapping{
			Name:         m.Name,
			SourceEvents: preds,
			MappingType:  mappingType,
			TargetEvent:  m.TargetEvent,
		})
	}
	return v2
}
