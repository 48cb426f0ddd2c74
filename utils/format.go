package utils

import (
	"fmt"
	"time"
)

// FormatBytes formats byte count as human-readable string
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatSpeed renders bytes per second as MB/s with two decimals
func FormatSpeed(bytesPerSecond float64) string {
	return fmt.Sprintf("%.2f MB/s", bytesPerSecond/(1024*1024))
}

// FormatClock renders a duration as mm:ss, letting minutes grow past 59
func FormatClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
