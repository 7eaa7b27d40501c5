// Package profile implements the Profile Translator (C3, spec.md §4.4): the
// per-composite stage that rewrites capability events into output capability
// events according to the loaded device profile, including the
// stick-to-mouse-motion continuous producer.
package profile

import (
	"fmt"

	"github.com/inputplumber/inputplumber/pkg/capability"
)

// DefaultMotionTickRate is the producer rate used when a motion mapping
// doesn't declare its own, chosen to comfortably exceed typical USB mouse
// polling rates (spec.md §4.4 "continuous relative-motion events at a fixed
// rate").
const DefaultMotionTickRate = 250.0

// SourceEvent matches one incoming capability event. Threshold, when
// nonzero, turns an analog source into a digital gate: values with smaller
// magnitude are treated as zero (spec.md §3 "optional threshold metadata").
type SourceEvent struct {
	Capability capability.Capability `json:"capability" yaml:"capability"`
	Threshold  float64               `json:"threshold,omitempty" yaml:"threshold,omitempty"`
}

// MotionParams configures a Mouse.Motion target event: SpeedPPS is pixels
// per second at full deflection; TickRate (Hz) is the producer's fixed
// emission rate.
type MotionParams struct {
	SpeedPPS float64 `json:"speedPps" yaml:"speedPps"`
	TickRate float64 `json:"tickRate,omitempty" yaml:"tickRate,omitempty"`
}

// TargetEvent is one output of a profile mapping. Motion is populated only
// when Capability.Kind is KindMouseMotion.
type TargetEvent struct {
	Capability capability.Capability `json:"capability" yaml:"capability"`
	Motion     *MotionParams         `json:"motion,omitempty" yaml:"motion,omitempty"`
}

// Mapping is one ordered entry of a device profile (spec.md §3 "Profile").
type Mapping struct {
	Name         string        `json:"name" yaml:"name"`
	SourceEvent  SourceEvent   `json:"sourceEvent" yaml:"sourceEvent"`
	TargetEvents []TargetEvent `json:"targetEvents" yaml:"targetEvents"`
}

// Profile is the loaded, ordered set of mappings for one composite device.
type Profile struct {
	Name     string    `json:"name" yaml:"name"`
	Mappings []Mapping `json:"mappings" yaml:"mappings"`
}

func (p Profile) Validate() error {
	for i, m := range p.Mappings {
		if len(m.TargetEvents) == 0 {
			return fmt.Errorf("profile %s mapping %d (%s): no target events", p.Name, i, m.Name)
		}
		for _, te := range m.TargetEvents {
			if te.Capability.Kind == capability.KindMouseMotion && te.Motion == nil {
				return fmt.Errorf("profile %s mapping %d (%s): mouse motion target requires motion params", p.Name, i, m.Name)
			}
			if te.Motion != nil && te.Motion.SpeedPPS <= 0 {
				return fmt.Errorf("profile %s mapping %d (%s): motion speedPps must be positive", p.Name, i, m.Name)
			}
		}
	}
	return nil
}
