// Package manager implements the Manager (C7, spec.md §4.1): it loads
// composite-device configurations, watches for hotplugged kernel input
// nodes via udev and DMI facts, matches nodes against configurations in
// priority order, and drives composite devices through their lifecycle.
package manager

import (
	"fmt"

	"github.com/inputplumber/inputplumber/pkg/devmatch"
)

// EvdevMatcher matches an evdev node's sysfs-reported identity (spec.md §3
// "Source device descriptor"). Empty fields are wildcards.
type EvdevMatcher struct {
	Name      string `json:"name,omitempty" yaml:"name,omitempty"`
	VendorID  string `json:"vendorId,omitempty" yaml:"vendorId,omitempty"`
	ProductID string `json:"productId,omitempty" yaml:"productId,omitempty"`
	Handler   string `json:"handler,omitempty" yaml:"handler,omitempty"`
	PhysPath  string `json:"physPath,omitempty" yaml:"physPath,omitempty"`
}

func (m *EvdevMatcher) matches(n NodeInfo) (bool, error) {
	checks := []fieldCheck{
		{m.Name, n.Name},
		{m.Handler, n.Handler},
		{m.PhysPath, n.PhysPath},
	}
	ok, err := matchFields(checks)
	if !ok || err != nil {
		return ok, err
	}
	return matchHexFields(m.VendorID, n.VendorID, m.ProductID, n.ProductID)
}

// HidrawMatcher matches a hidraw node. ReportLen declares the fixed size of
// the input reports this device sends (including the leading report-ID
// byte for numbered reports), since the daemon doesn't parse the HID report
// descriptor to recover it.
type HidrawMatcher struct {
	Name         string `json:"name,omitempty" yaml:"name,omitempty"`
	VendorID     string `json:"vendorId,omitempty" yaml:"vendorId,omitempty"`
	ProductID    string `json:"productId,omitempty" yaml:"productId,omitempty"`
	InterfaceNum *int   `json:"interfaceNum,omitempty" yaml:"interfaceNum,omitempty"`
	Handler      string `json:"handler,omitempty" yaml:"handler,omitempty"`
	ReportLen    int    `json:"reportLen" yaml:"reportLen"`
}

func (m *HidrawMatcher) matches(n NodeInfo) (bool, error) {
	if m.InterfaceNum != nil && *m.InterfaceNum != n.InterfaceNum {
		return false, nil
	}
	checks := []fieldCheck{
		{m.Name, n.Name},
		{m.Handler, n.Handler},
	}
	ok, err := matchFields(checks)
	if !ok || err != nil {
		return ok, err
	}
	return matchHexFields(m.VendorID, n.VendorID, m.ProductID, n.ProductID)
}

// IIOMatcher matches an IIO sensor device directory. ImuName selects which
// named IMU instance (spec.md §4.3 "Gyro1"/"Gyro2"/"Gyro3") this node's
// readings are addressed as in capability mappings; it defaults to "Gyro1"
// when a composite has only one IMU.
type IIOMatcher struct {
	ID          string         `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string         `json:"name,omitempty" yaml:"name,omitempty"`
	MountMatrix *[3][3]float64 `json:"mountMatrix,omitempty" yaml:"mountMatrix,omitempty"`
	ImuName     string         `json:"imuName,omitempty" yaml:"imuName,omitempty"`
}

func (m *IIOMatcher) matches(n NodeInfo) (bool, error) {
	return matchFields([]fieldCheck{
		{m.ID, n.IIOId},
		{m.Name, n.Name},
	})
}

// Group selects which source-side decoder/target family a matched node
// belongs to (spec.md §3 "Group tag").
type Group string

const (
	GroupGamepad     Group = "gamepad"
	GroupKeyboard    Group = "keyboard"
	GroupMouse       Group = "mouse"
	GroupIMU         Group = "imu"
	GroupTouchscreen Group = "touchscreen"
	GroupLED         Group = "led"
)

// SourceDeviceEntry is one entry of a composite-device configuration's
// source_devices list, evaluated in order (spec.md §4.1).
// Unique defaults to true when unset: an extra matched device beyond the
// first spawns a new composite instance instead of joining the existing one
// (spec.md §4.1 invariant 6), up to the config's MaximumSources. Set to
// false to merge every matched device of this entry into one composite.
type SourceDeviceEntry struct {
	Group   Group          `json:"group" yaml:"group"`
	Evdev   *EvdevMatcher  `json:"evdev,omitempty" yaml:"evdev,omitempty"`
	Hidraw  *HidrawMatcher `json:"hidraw,omitempty" yaml:"hidraw,omitempty"`
	IIO     *IIOMatcher    `json:"iio,omitempty" yaml:"iio,omitempty"`
	Ignore  bool           `json:"ignore,omitempty" yaml:"ignore,omitempty"`
	Blocked bool           `json:"blocked,omitempty" yaml:"blocked,omitempty"`
	Unique  *bool          `json:"unique,omitempty" yaml:"unique,omitempty"`
}

func (e SourceDeviceEntry) matches(n NodeInfo) (bool, error) {
	switch {
	case e.Evdev != nil && n.Kind == NodeEvdev:
		return e.Evdev.matches(n)
	case e.Hidraw != nil && n.Kind == NodeHidraw:
		return e.Hidraw.matches(n)
	case e.IIO != nil && n.Kind == NodeIIO:
		return e.IIO.matches(n)
	default:
		return false, nil
	}
}

// DMIConstraint matches facts read once from /sys/class/dmi/id/* (spec.md
// §4.1 "DMI facts gathered once at startup").
type DMIConstraint struct {
	ProductName string `json:"productName,omitempty" yaml:"productName,omitempty"`
	SysVendor   string `json:"sysVendor,omitempty" yaml:"sysVendor,omitempty"`
	CPUVendor   string `json:"cpuVendor,omitempty" yaml:"cpuVendor,omitempty"`
}

func (c DMIConstraint) satisfiedBy(facts map[string]string) (bool, error) {
	return matchFields([]fieldCheck{
		{c.ProductName, facts["product_name"]},
		{c.SysVendor, facts["sys_vendor"]},
		{c.CPUVendor, facts["cpu_vendor"]},
	})
}

// TargetDeviceEntry declares one target device a composite instance should
// create, per spec.md §4.6's three target families.
type TargetDeviceEntry struct {
	Kind string `json:"kind" yaml:"kind"` // "uinput-gamepad","uinput-mouse","uinput-keyboard","uinput-touchpad","uinput-touchscreen","uhid-dualsense","bus"
	Name string `json:"name" yaml:"name"`
}

// CompositeDeviceConfig is one loaded composite_device_v1 configuration
// (spec.md §6).
type CompositeDeviceConfig struct {
	Name             string              `json:"name" yaml:"name"`
	Matches          []DMIConstraint     `json:"matches,omitempty" yaml:"matches,omitempty"`
	SourceDevices    []SourceDeviceEntry `json:"sourceDevices" yaml:"sourceDevices"`
	TargetDevices    []TargetDeviceEntry `json:"targetDevices" yaml:"targetDevices"`
	// SingleSource is deprecated in favor of MaximumSources; kept for
	// config-schema compatibility and treated as MaximumSources=1 when set
	// and MaximumSources is left unspecified.
	SingleSource     bool                `json:"singleSource,omitempty" yaml:"singleSource,omitempty"`
	MaximumSources   int                 `json:"maximumSources,omitempty" yaml:"maximumSources,omitempty"`
	CapabilityMapPath string             `json:"capabilityMapPath" yaml:"capabilityMapPath"`
	ProfilePath       string             `json:"profilePath,omitempty" yaml:"profilePath,omitempty"`
}

// effectiveMaxSources resolves the deprecated SingleSource flag into the
// MaximumSources limit it historically stood in for.
func (cfg CompositeDeviceConfig) effectiveMaxSources() int {
	if cfg.MaximumSources > 0 {
		return cfg.MaximumSources
	}
	if cfg.SingleSource {
		return 1
	}
	return 0
}

// dmiSatisfied reports whether cfg's DMI constraints (if any) are satisfied;
// an empty Matches list always satisfies (spec.md §4.1 "whose matches is
// empty or whose DMI constraints are satisfied").
func (cfg CompositeDeviceConfig) dmiSatisfied(facts map[string]string) bool {
	if len(cfg.Matches) == 0 {
		return true
	}
	for _, m := range cfg.Matches {
		ok, err := m.satisfiedBy(facts)
		if err == nil && ok {
			return true
		}
	}
	return false
}

// requiredGroups returns the distinct groups this config's non-ignore
// source_devices entries reference; a composite starts only once at least
// one source per required group is present (spec.md §4.1 point 3).
func (cfg CompositeDeviceConfig) requiredGroups() map[Group]bool {
	groups := make(map[Group]bool)
	for _, e := range cfg.SourceDevices {
		if e.Ignore {
			continue
		}
		groups[e.Group] = true
	}
	return groups
}

// fieldCheck pairs a matcher's configured glob/brace pattern with the
// candidate node's actual field value; an empty pattern is a wildcard.
type fieldCheck struct {
	pattern string
	value   string
}

// matchFields reports whether every check's pattern matches its value,
// short-circuiting on the first non-match or error.
func matchFields(checks []fieldCheck) (bool, error) {
	for _, c := range checks {
		if c.pattern == "" {
			continue
		}
		ok, err := devmatch.MatchString(c.pattern, c.value)
		if err != nil {
			return false, fmt.Errorf("matcher: %w", err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// matchHexFields reports whether both vendor and product ID patterns match
// their 16-bit values; an empty pattern is a wildcard.
func matchHexFields(vendorPattern string, vendorValue uint16, productPattern string, productValue uint16) (bool, error) {
	if vendorPattern != "" {
		ok, err := devmatch.MatchHex(vendorPattern, vendorValue)
		if err != nil {
			return false, fmt.Errorf("matcher: %w", err)
		}
		if !ok {
			return false, nil
		}
	}
	if productPattern != "" {
		ok, err := devmatch.MatchHex(productPattern, productValue)
		if err != nil {
			return false, fmt.Errorf("matcher: %w", err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}
