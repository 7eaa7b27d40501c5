package dbussvc

import "testing"

func TestSanitizeName(t *testing.T) {
	cases := map[string]string{
		"Xbox Controller":  "Xbox_Controller",
		"steam-deck/imu.0": "steam_deck_imu_0",
		"already_clean":    "already_clean",
		"":                 "_",
		"!!!":              "___",
	}
	for in, want := range cases {
		if got := sanitizeName(in); got != want {
			t.Errorf("sanitizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCompositeObjectPath(t *testing.T) {
	got := compositeObjectPath("Xbox Controller")
	want := "/org/inputplumber/Composite/Xbox_Controller"
	if string(got) != want {
		t.Errorf("compositeObjectPath = %q, want %q", got, want)
	}
}

func TestParseInterceptMode(t *testing.T) {
	valid := []string{"None", "Pass", "All", "GamepadOnly"}
	for _, s := range valid {
		if _, ok := parseInterceptMode(s); !ok {
			t.Errorf("expected %q to parse", s)
		}
	}
	if _, ok := parseInterceptMode("Bogus"); ok {
		t.Error("expected unknown mode to fail parsing")
	}
}
