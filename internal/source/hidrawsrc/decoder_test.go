package hidrawsrc

import (
	"testing"

	"github.com/inputplumber/inputplumber/internal/capmap"
	"github.com/inputplumber/inputplumber/pkg/nativeevent"
)

func TestDecodeFieldUnsignedByteAligned(t *testing.T) {
	report := []byte{0x01, 0x00, 0x7f, 0x00}
	p := capmap.HidrawPredicate{ByteStart: 2, BitOffset: 0, Width: 8, InputType: "trigger"}
	if got := decodeField(report, p); got != 0x7f {
		t.Fatalf("expected 0x7f, got %d", got)
	}
}

func TestDecodeFieldSignedNegative(t *testing.T) {
	report := []byte{0x01, 0xff} // -1 as a signed 8-bit field
	p := capmap.HidrawPredicate{ByteStart: 1, BitOffset: 0, Width: 8, Signed: true, InputType: "joystick_x"}
	if got := decodeField(report, p); got != -1 {
		t.Fatalf("expected -1, got %d", got)
	}
}

func TestDecodeFieldSubByteOffset(t *testing.T) {
	// byte 1 = 0b0000_1010; bit 1 holds a single-bit button field, set.
	report := []byte{0x01, 0b00001010}
	p := capmap.HidrawPredicate{ByteStart: 1, BitOffset: 1, Width: 1, InputType: "button"}
	if got := decodeField(report, p); got != 1 {
		t.Fatalf("expected bit 1 set -> 1, got %d", got)
	}
	p2 := capmap.HidrawPredicate{ByteStart: 1, BitOffset: 0, Width: 1, InputType: "button"}
	if got := decodeField(report, p2); got != 0 {
		t.Fatalf("expected bit 0 clear -> 0, got %d", got)
	}
}

func TestDecodeChangedFieldsSkipsUnchangedAndRespectsReportID(t *testing.T) {
	s := &Source{
		fields: []FieldSpec{
			{HidrawPredicate: capmap.HidrawPredicate{ReportID: 1, ByteStart: 1, BitOffset: 0, Width: 8, InputType: "trigger"}, ReportLen: 3},
		},
		last: make(map[int]int32),
	}
	out := make(chan nativeevent.Event, 4)
	s.decode([]byte{1, 10, 0}, out)
	s.decode([]byte{1, 10, 0}, out) // unchanged, should not emit again
	s.decode([]byte{2, 99, 0}, out) // wrong report ID, ignored
	s.decode([]byte{1, 20, 0}, out)
	close(out)
	var got []int32
	for e := range out {
		got = append(got, e.Value)
	}
	if len(got) != 2 || got[0] != 10 || got[1] != 20 {
		t.Fatalf("expected [10 20], got %v", got)
	}
}
