package export

import (
	"fmt"
	"math"
)

// FormatTime renders a detection timestamp with one decimal, or the
// undetected sentinel for negative/NaN input.
func FormatTime(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		return "-"
	}
	return fmt.Sprintf("%.1f", seconds)
}

// FormatPercentage rounds to a whole percent.
func FormatPercentage(value float64) string {
	if value < 0 || math.IsNaN(value) {
		return "-%"
	}
	return fmt.Sprintf("%d%%", int(math.Round(value)))
}

// FormatFileSize renders a byte count for humans.
func FormatFileSize(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case size >= GB:
		return fmt.Sprintf("%.2f GB", float64(size)/float64(GB))
	case size >= MB:
		return fmt.Sprintf("%.2f MB", float64(size)/float64(MB))
	case size >= KB:
		return fmt.Sprintf("%.2f KB", float64(size)/float64(KB))
	default:
		return fmt.Sprintf("%d B", size)
	}
}

// FormatDurationSeconds renders an elapsed time as "Xm Ys".
func FormatDurationSeconds(seconds float64) string {
	total := int(math.Round(seconds))
	if total < 60 {
		return fmt.Sprintf("%ds", total)
	}
	minutes := total / 60
	rest := total % 60
	if rest == 0 {
		return fmt.Sprintf("%dm", minutes)
	}
	return fmt.Sprintf("%dm %ds", minutes, rest)
}

// EstimateAnalysisTime gives the rough analysis duration for a video:
// about 10x its playing time.
func EstimateAnalysisTime(videoDuration float64) string {
	return "~" + FormatDurationSeconds(videoDuration*10)
}
