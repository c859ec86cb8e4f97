package util

import (
	"testing"
	"time"
)

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"ON", false, true},
		{"false", true, false},
		{"0", true, false},
		{"maybe", true, true},
		{"maybe", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("RDA_TEST_BOOL", tt.value)
			if got := GetEnvBool("RDA_TEST_BOOL", tt.def); got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetEnvSeconds(t *testing.T) {
	t.Setenv("RDA_TEST_SECONDS", "15")
	if got := GetEnvSeconds("RDA_TEST_SECONDS", time.Second); got != 15*time.Second {
		t.Fatalf("got %v, want 15s", got)
	}

	t.Setenv("RDA_TEST_SECONDS", "-3")
	if got := GetEnvSeconds("RDA_TEST_SECONDS", 2*time.Second); got != 2*time.Second {
		t.Fatalf("negative values should fall back to default, got %v", got)
	}
}

func TestGetEnvString_EmptyFallsBack(t *testing.T) {
	t.Setenv("RDA_TEST_STRING", "  ")
	if got := GetEnvString("RDA_TEST_STRING", "fallback"); got != "fallback" {
		t.Fatalf("got %q, want fallback", got)
	}
}
