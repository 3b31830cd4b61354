package utils

import (
	"testing"
	"time"
)

func TestDeleteDuration(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		label    string
		expected time.Duration
	}{
		{"1hour", time.Hour},
		{"6hours", 6 * time.Hour},
		{"12hours", 12 * time.Hour},
		{"1day", 24 * time.Hour},
		{"2days", 48 * time.Hour},
		{"7days", 7 * 24 * time.Hour},
		{"30days", 30 * 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			got := DeleteDuration(tt.label, now)
			if got == nil {
				t.Fatalf("DeleteDuration(%q) = nil, want %v", tt.label, tt.expected)
			}
			if want := now.Add(tt.expected); !got.Equal(want) {
				t.Errorf("DeleteDuration(%q) = %v, want %v", tt.label, got, want)
			}
		})
	}
}

func TestDeleteDurationNever(t *testing.T) {
	if got := DeleteDuration("never", time.Now()); got != nil {
		t.Errorf("DeleteDuration(\"never\") = %v, want nil", got)
	}
}

func TestDeleteDurationUnknownLabelDefaults(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for _, label := range []string{"", "forever", "3weeks"} {
		got := DeleteDuration(label, now)
		if got == nil {
			t.Fatalf("DeleteDuration(%q) = nil, want 30-day default", label)
		}
		if want := now.Add(30 * 24 * time.Hour); !got.Equal(want) {
			t.Errorf("DeleteDuration(%q) = %v, want %v", label, got, want)
		}
	}
}
