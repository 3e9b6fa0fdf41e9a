package util

import (
	"testing"
	"time"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"", true, true},
		{"yes", false, true},
		{"ON", false, true},
		{"0", true, false},
		{"off", true, false},
		{"maybe", true, true},
	}
	for _, tt := range tests {
		t.Setenv("REELPIPE_TEST_BOOL", tt.value)
		if got := ParseBoolEnv("REELPIPE_TEST_BOOL", tt.def); got != tt.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.def, got, tt.want)
		}
	}
}

func TestParseIntEnv(t *testing.T) {
	t.Setenv("REELPIPE_TEST_INT", " 250 ")
	if got := ParseIntEnv("REELPIPE_TEST_INT", 1); got != 250 {
		t.Errorf("ParseIntEnv = %d, want 250", got)
	}
	t.Setenv("REELPIPE_TEST_INT", "many")
	if got := ParseIntEnv("REELPIPE_TEST_INT", 7); got != 7 {
		t.Errorf("ParseIntEnv invalid = %d, want default 7", got)
	}
}

func TestParseDurationEnv(t *testing.T) {
	t.Setenv("REELPIPE_TEST_DURATION", "90s")
	if got := ParseDurationEnv("REELPIPE_TEST_DURATION", time.Minute); got != 90*time.Second {
		t.Errorf("ParseDurationEnv = %v, want 90s", got)
	}
	for _, bad := range []string{"soon", "-5m"} {
		t.Setenv("REELPIPE_TEST_DURATION", bad)
		if got := ParseDurationEnv("REELPIPE_TEST_DURATION", time.Minute); got != time.Minute {
			t.Errorf("ParseDurationEnv(%q) = %v, want default", bad, got)
		}
	}
}
