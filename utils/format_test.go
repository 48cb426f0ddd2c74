package utils

import (
	"testing"
	"time"
)

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, test := range tests {
		if result := FormatBytes(test.bytes); result != test.expected {
			t.Errorf("FormatBytes(%d) = %s, expected %s", test.bytes, result, test.expected)
		}
	}
}

func TestFormatSpeed(t *testing.T) {
	if got := FormatSpeed(1.5 * 1024 * 1024); got != "1.50 MB/s" {
		t.Errorf("FormatSpeed = %q", got)
	}
	if got := FormatSpeed(0); got != "0.00 MB/s" {
		t.Errorf("FormatSpeed(0) = %q", got)
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{0, "00:00"},
		{59 * time.Second, "00:59"},
		{61 * time.Second, "01:01"},
		{2*time.Hour + 5*time.Second, "120:05"},
		{-time.Second, "00:00"},
	}
	for _, tt := range tests {
		if got := FormatClock(tt.d); got != tt.expected {
			t.Errorf("FormatClock(%v) = %q, want %q", tt.d, got, tt.expected)
		}
	}
}
