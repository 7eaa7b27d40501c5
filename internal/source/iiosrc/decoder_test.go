package iiosrc

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIdentityMountMatrixIsNoOp(t *testing.T) {
	x, y, z := Identity.apply(1, 2, 3)
	if x != 1 || y != 2 || z != 3 {
		t.Fatalf("identity matrix should pass values through unchanged, got (%v,%v,%v)", x, y, z)
	}
}

func TestMountMatrixSwapsAxes(t *testing.T) {
	swapXY := MountMatrix{{0, 1, 0}, {1, 0, 0}, {0, 0, 1}}
	x, y, z := swapXY.apply(1, 2, 3)
	if x != 2 || y != 1 || z != 3 {
		t.Fatalf("expected x/y swapped, got (%v,%v,%v)", x, y, z)
	}
}

func TestReadFloatParsesTrimmedSysfsValue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in_accel_scale")
	if err := os.WriteFile(path, []byte("0.000598\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := readFloat(path)
	if err != nil {
		t.Fatal(err)
	}
	if got < 0.000597 || got > 0.000599 {
		t.Fatalf("expected ~0.000598, got %v", got)
	}
}

func TestAxisPrefixForKind(t *testing.T) {
	if axisPrefixFor(KindAccel) != "in_accel" {
		t.Fatalf("expected in_accel prefix for KindAccel")
	}
	if axisPrefixFor(KindGyro) != "in_anglvel" {
		t.Fatalf("expected in_anglvel prefix for KindGyro")
	}
}
