package util

import (
	"testing"
	"time"
)

func TestGetEnvString(t *testing.T) {
	t.Setenv("KG_TEST_STRING", "value")
	t.Setenv("KG_TEST_BLANK", "  ")

	if got := GetEnvString("KG_TEST_STRING", "fallback"); got != "value" {
		t.Fatalf("expected value, got %q", got)
	}
	if got := GetEnvString("KG_TEST_BLANK", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback for blank value, got %q", got)
	}
	if got := GetEnvString("KG_TEST_UNSET_STRING", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback for unset value, got %q", got)
	}
}

func TestGetEnvNumeric(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  float64
	}{
		{"integer", "2500", 2500},
		{"float", "0.75", 0.75},
		{"padded", " 12 ", 12},
		{"invalid", "many", 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("KG_TEST_NUMERIC", tt.value)
			if got := GetEnvNumeric("KG_TEST_NUMERIC", 7); got != tt.want {
				t.Fatalf("GetEnvNumeric() = %v, want %v", got, tt.want)
			}
		})
	}

	if got := GetEnvInt("KG_TEST_UNSET_NUMERIC", 200); got != 200 {
		t.Fatalf("expected default 200, got %d", got)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"true", true},
		{"1", true},
		{"FALSE", false},
		{"maybe", true},
	}
	for _, tt := range tests {
		t.Setenv("KG_TEST_BOOL", tt.value)
		if got := GetEnvBool("KG_TEST_BOOL", true); got != tt.want {
			t.Errorf("GetEnvBool(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{name: "go duration", value: "90s", want: 90 * time.Second},
		{name: "bare seconds", value: "2.5", want: 2500 * time.Millisecond},
		{name: "invalid", value: "soon", want: time.Minute},
		{name: "negative", value: "-5s", want: time.Minute},
		{name: "blank", value: " ", want: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("KG_TEST_DURATION", tt.value)
			if got := GetEnvDuration("KG_TEST_DURATION", time.Minute); got != tt.want {
				t.Fatalf("GetEnvDuration(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
