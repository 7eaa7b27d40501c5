package manager

import "testing"

func boolPtr(b bool) *bool { return &b }

func TestResolveUniqueDefaultsTrue(t *testing.T) {
	if !resolveUnique(SourceDeviceEntry{}) {
		t.Fatal("expected unset Unique to default to true")
	}
	if resolveUnique(SourceDeviceEntry{Unique: boolPtr(false)}) {
		t.Fatal("expected explicit false to stay false")
	}
	if !resolveUnique(SourceDeviceEntry{Unique: boolPtr(true)}) {
		t.Fatal("expected explicit true to stay true")
	}
}

func TestInstancesForSingleMatchIsOneInstance(t *testing.T) {
	groups := map[Group]*groupMatch{
		GroupGamepad: {unique: true, nodes: []NodeInfo{{Path: "/dev/input/event0"}}},
	}
	instances := instancesFor(groups, 0)
	if len(instances) != 1 || len(instances[0]) != 1 {
		t.Fatalf("expected one instance with one node, got %v", instances)
	}
}

func TestInstancesForUniqueGroupSpawnsMultiple(t *testing.T) {
	groups := map[Group]*groupMatch{
		GroupGamepad: {unique: true, nodes: []NodeInfo{
			{Path: "/dev/hidraw0"}, {Path: "/dev/hidraw1"},
		}},
	}
	instances := instancesFor(groups, 0)
	if len(instances) != 2 {
		t.Fatalf("expected two instances for two unique matches, got %d", len(instances))
	}
	if instances[0][0].Path == instances[1][0].Path {
		t.Fatal("expected each instance to get a distinct node")
	}
}

func TestInstancesForRespectsMaximumSources(t *testing.T) {
	groups := map[Group]*groupMatch{
		GroupGamepad: {unique: true, nodes: []NodeInfo{
			{Path: "/dev/hidraw0"}, {Path: "/dev/hidraw1"}, {Path: "/dev/hidraw2"},
		}},
	}
	instances := instancesFor(groups, 2)
	if len(instances) != 2 {
		t.Fatalf("expected maximumSources to cap instances at 2, got %d", len(instances))
	}
}

func TestInstancesForNonUniqueGroupMergesIntoOne(t *testing.T) {
	groups := map[Group]*groupMatch{
		GroupLED: {unique: false, nodes: []NodeInfo{
			{Path: "/dev/hidraw0"}, {Path: "/dev/hidraw1"},
		}},
	}
	instances := instancesFor(groups, 0)
	if len(instances) != 1 {
		t.Fatalf("expected a non-unique group to merge into a single instance, got %d", len(instances))
	}
	if len(instances[0]) != 2 {
		t.Fatalf("expected both non-unique matches in the single instance, got %d", len(instances[0]))
	}
}

func TestInstanceSatisfiesRequiredGroups(t *testing.T) {
	cfg := CompositeDeviceConfig{
		SourceDevices: []SourceDeviceEntry{
			{Group: GroupGamepad, Hidraw: &HidrawMatcher{Handler: "hidraw0"}},
			{Group: GroupIMU, IIO: &IIOMatcher{ID: "iio:device0"}},
		},
	}
	required := cfg.requiredGroups()

	gamepadOnly := []NodeInfo{{Kind: NodeHidraw, Handler: "hidraw0"}}
	if instanceSatisfiesRequired(cfg, gamepadOnly, required) {
		t.Fatal("expected missing IMU group to fail satisfaction")
	}

	both := []NodeInfo{
		{Kind: NodeHidraw, Handler: "hidraw0"},
		{Kind: NodeIIO, IIOId: "iio:device0"},
	}
	if !instanceSatisfiesRequired(cfg, both, required) {
		t.Fatal("expected both required groups present to satisfy")
	}
}

func TestEffectiveMaxSourcesDeprecatedAlias(t *testing.T) {
	cfg := CompositeDeviceConfig{SingleSource: true}
	if got := cfg.effectiveMaxSources(); got != 1 {
		t.Fatalf("expected SingleSource to alias to MaximumSources=1, got %d", got)
	}
	cfg = CompositeDeviceConfig{SingleSource: true, MaximumSources: 3}
	if got := cfg.effectiveMaxSources(); got != 3 {
		t.Fatalf("expected explicit MaximumSources to win over SingleSource, got %d", got)
	}
}
