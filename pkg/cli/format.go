package cli

import (
	"fmt"
	"time"
)

var byteUnits = []string{"KB", "MB", "GB", "TB"}

// FormatDuration renders d for status lines: 850ms, 12.3s, 2m5.0s.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := d / time.Minute
	return fmt.Sprintf("%dm%.1fs", int(m), (d - m*time.Minute).Seconds())
}

// FormatBytes renders a file size in binary units.
func FormatBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}
	v := float64(n) / 1024
	unit := 0
	for v >= 1024 && unit < len(byteUnits)-1 {
		v /= 1024
		unit++
	}
	return fmt.Sprintf("%.2f %s", v, byteUnits[unit])
}

func FormatPercent(ratio float64) string {
	return fmt.Sprintf("%.1f%%", ratio*100)
}

// FormatPayload renders how much of a carrier's capacity a payload uses,
// e.g. "16 of 324 bits (4.9%)". A zero capacity reads as full.
func FormatPayload(bits, capacity int) string {
	ratio := 1.0
	if capacity > 0 {
		ratio = float64(bits) / float64(capacity)
	}
	return fmt.Sprintf("%d of %d bits (%s)", bits, capacity, FormatPercent(ratio))
}
