package manager

import "testing"

func TestEvdevMatcherWildcard(t *testing.T) {
	m := &EvdevMatcher{}
	ok, err := m.matches(NodeInfo{Kind: NodeEvdev, Name: "Xbox Wireless Controller"})
	if err != nil || !ok {
		t.Fatalf("empty matcher should match anything, got ok=%v err=%v", ok, err)
	}
}

func TestEvdevMatcherName(t *testing.T) {
	m := &EvdevMatcher{Name: "Xbox Wireless Controller"}
	ok, err := m.matches(NodeInfo{Kind: NodeEvdev, Name: "Xbox Wireless Controller"})
	if err != nil || !ok {
		t.Fatalf("expected match, got ok=%v err=%v", ok, err)
	}
	ok, err = m.matches(NodeInfo{Kind: NodeEvdev, Name: "Some Other Pad"})
	if err != nil || ok {
		t.Fatalf("expected no match, got ok=%v err=%v", ok, err)
	}
}

func TestEvdevMatcherVendorProductHex(t *testing.T) {
	m := &EvdevMatcher{VendorID: "{045e,054c}", ProductID: "02fd"}
	ok, err := m.matches(NodeInfo{Kind: NodeEvdev, VendorID: 0x045e, ProductID: 0x02fd})
	if err != nil || !ok {
		t.Fatalf("expected vendor/product match, got ok=%v err=%v", ok, err)
	}
	ok, err = m.matches(NodeInfo{Kind: NodeEvdev, VendorID: 0x1234, ProductID: 0x02fd})
	if err != nil || ok {
		t.Fatalf("expected vendor mismatch to fail, got ok=%v err=%v", ok, err)
	}
}

func TestIIOMatcherIDAndName(t *testing.T) {
	m := &IIOMatcher{ID: "iio:device0", ImuName: "Gyro2"}
	ok, err := m.matches(NodeInfo{Kind: NodeIIO, IIOId: "iio:device0", Name: "bmi260"})
	if err != nil || !ok {
		t.Fatalf("expected IIO ID match, got ok=%v err=%v", ok, err)
	}
	ok, err = m.matches(NodeInfo{Kind: NodeIIO, IIOId: "iio:device1", Name: "bmi260"})
	if err != nil || ok {
		t.Fatalf("expected IIO ID mismatch to fail, got ok=%v err=%v", ok, err)
	}
}

func TestHidrawMatcherInterfaceNum(t *testing.T) {
	iface := 2
	m := &HidrawMatcher{InterfaceNum: &iface, ReportLen: 64}
	ok, _ := m.matches(NodeInfo{Kind: NodeHidraw, InterfaceNum: 2})
	if !ok {
		t.Fatalf("expected interface number match")
	}
	ok, _ = m.matches(NodeInfo{Kind: NodeHidraw, InterfaceNum: 0})
	if ok {
		t.Fatalf("expected interface number mismatch to fail")
	}
}

func TestSourceDeviceEntryDispatchesByKind(t *testing.T) {
	e := SourceDeviceEntry{
		Group: GroupGamepad,
		Evdev: &EvdevMatcher{Name: "Pad"},
	}
	ok, err := e.matches(NodeInfo{Kind: NodeEvdev, Name: "Pad"})
	if err != nil || !ok {
		t.Fatalf("expected evdev match, got ok=%v err=%v", ok, err)
	}
	// A hidraw node should never match an entry whose only matcher is evdev.
	ok, err = e.matches(NodeInfo{Kind: NodeHidraw, Name: "Pad"})
	if err != nil || ok {
		t.Fatalf("expected kind mismatch to fail, got ok=%v err=%v", ok, err)
	}
}

func TestDMISatisfiedEmptyMatchesAlwaysTrue(t *testing.T) {
	cfg := CompositeDeviceConfig{}
	if !cfg.dmiSatisfied(map[string]string{"product_name": "anything"}) {
		t.Fatal("empty Matches should always be satisfied")
	}
}

func TestDMISatisfiedRequiresOneConstraintMatch(t *testing.T) {
	cfg := CompositeDeviceConfig{
		Matches: []DMIConstraint{
			{SysVendor: "ValveSoftware"},
			{ProductName: "Jupiter*"},
		},
	}
	if !cfg.dmiSatisfied(map[string]string{"product_name": "Jupiter", "sys_vendor": "Other"}) {
		t.Fatal("expected second constraint to satisfy")
	}
	if cfg.dmiSatisfied(map[string]string{"product_name": "Neptune", "sys_vendor": "Other"}) {
		t.Fatal("expected no constraint to match")
	}
}

func TestRequiredGroupsSkipsIgnoreEntries(t *testing.T) {
	cfg := CompositeDeviceConfig{
		SourceDevices: []SourceDeviceEntry{
			{Group: GroupGamepad},
			{Group: GroupKeyboard, Ignore: true},
			{Group: GroupIMU},
		},
	}
	groups := cfg.requiredGroups()
	if len(groups) != 2 || !groups[GroupGamepad] || !groups[GroupIMU] {
		t.Fatalf("expected gamepad+imu required groups, got %v", groups)
	}
	if groups[GroupKeyboard] {
		t.Fatal("ignored entry's group should not be required")
	}
}
