package util

import (
	"strings"
	"testing"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue bool
		want         bool
	}{
		{"unset uses default", "", true, true},
		{"true", "true", false, true},
		{"yes", "YES", false, true},
		{"one", "1", false, true},
		{"on", "on", false, true},
		{"false", "false", true, false},
		{"zero", "0", true, false},
		{"off", " off ", true, false},
		{"garbage uses default", "maybe", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const key = "RETAILPIPE_TEST_BOOL"
			if tt.value != "" {
				t.Setenv(key, tt.value)
			}
			if got := ParseBoolEnv(key, tt.defaultValue); got != tt.want {
				t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestParseIntEnv(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		defaultValue int
		want         int
	}{
		{"unset uses default", "", 7, 7},
		{"valid", "42", 7, 42},
		{"negative", "-3", 7, -3},
		{"padded", " 10 ", 7, 10},
		{"garbage uses default", "ten", 7, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const key = "RETAILPIPE_TEST_INT"
			if tt.value != "" {
				t.Setenv(key, tt.value)
			}
			if got := ParseIntEnv(key, tt.defaultValue); got != tt.want {
				t.Errorf("ParseIntEnv(%q, %d) = %d, want %d", tt.value, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestNewSessionID(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	if !strings.HasPrefix(a, "s_") {
		t.Errorf("session id %q missing prefix", a)
	}
	if a == b {
		t.Error("session ids must be unique")
	}
	if len(a) < 10 {
		t.Errorf("session id %q suspiciously short", a)
	}
}
