package progress

import (
	"fmt"
	"math"
	"time"

	"github.com/Maeiro/MMMMM/internal/downloader"
)

// speedKB returns throughput in KiB per second.
func speedKB(bytes int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return (float64(bytes) / 1024) / elapsed.Seconds()
}

// FormatSpeed renders throughput, switching to MB/s at 1024 KB/s.
func FormatSpeed(bytes int64, elapsed time.Duration) string {
	kb := speedKB(bytes, elapsed)
	if kb >= 1024 {
		return fmt.Sprintf("%.2f MB/s", kb/1024)
	}
	return fmt.Sprintf("%.2f KB/s", kb)
}

// FormatETA estimates the remaining time from current throughput.
func FormatETA(p downloader.Progress) string {
	if !p.KnownLength() {
		return "Unknown"
	}
	kb := speedKB(p.Downloaded, p.Elapsed)
	if kb <= 0 {
		return "Calculating..."
	}
	remaining := (float64(p.Total-p.Downloaded) / 1024) / kb
	if remaining <= 0 {
		return "Calculating..."
	}
	minutes := int(remaining / 60)
	seconds := int(math.Mod(remaining, 60))
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
