package devmatch

import "testing"

func TestMatchString(t *testing.T) {
	cases := []struct {
		pattern string
		input   string
		want    bool
	}{
		{"AYANEO*", "AYANEO 2021", true},
		{"AYANEO*", "Other Device", false},
		{"{Xbox,XBOX} Wireless Controller", "Xbox Wireless Controller", true},
		{"{Xbox,XBOX} Wireless Controller", "XBOX Wireless Controller", true},
		{"{Xbox,XBOX} Wireless Controller", "xbox Wireless Controller", false},
		{"usb-0000:*-0/input0", "usb-0000:03.0-0/input0", true},
		{"Gamepad {1,2,3}", "Gamepad 2", true},
		{"Gamepad {1,2,3}", "Gamepad 4", false},
		{"AYA*{NEO,neo}*", "AYANEO 2021 NEO", true},
	}
	for _, c := range cases {
		got, err := MatchString(c.pattern, c.input)
		if err != nil {
			t.Fatalf("MatchString(%q, %q) error: %v", c.pattern, c.input, err)
		}
		if got != c.want {
			t.Errorf("MatchString(%q, %q) = %v, want %v", c.pattern, c.input, got, c.want)
		}
	}
}

func TestMatchHex(t *testing.T) {
	cases := []struct {
		pattern string
		value   uint16
		want    bool
	}{
		{"17ef", 0x17ef, true},
		{"{17ef,2f68}", 0x2f68, true},
		{"{17ef,2f68}", 0x1234, false},
		{"17*", 0x17ef, true},
	}
	for _, c := range cases {
		got, err := MatchHex(c.pattern, c.value)
		if err != nil {
			t.Fatalf("MatchHex(%q, %x) error: %v", c.pattern, c.value, err)
		}
		if got != c.want {
			t.Errorf("MatchHex(%q, %x) = %v, want %v", c.pattern, c.value, got, c.want)
		}
	}
}

func TestExpandBracesNested(t *testing.T) {
	got := expandBraces("a{b,c{d,e}}f")
	want := map[string]bool{"abf": true, "acdf": true, "acef": true}
	if len(got) != len(want) {
		t.Fatalf("expandBraces() = %v, want keys %v", got, want)
	}
	for _, g := range got {
		if !want[g] {
			t.Errorf("unexpected expansion %q", g)
		}
	}
}
