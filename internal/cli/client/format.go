package client

import (
	"fmt"
	"math"
	"strings"
)

var highlightReplacer = strings.NewReplacer("<em>", "[", "</em>", "]")

// renderHighlight shows highlight markers as brackets for terminal output
func renderHighlight(s string) string {
	return highlightReplacer.Replace(s)
}

// formatTimestamp renders seconds as mm:ss, or h:mm:ss past the hour
func formatTimestamp(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(seconds)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

func formatRange(r *TimeRange) string {
	if r == nil {
		return ""
	}
	return fmt.Sprintf("[%s-%s]", formatTimestamp(r.StartTime), formatTimestamp(r.EndTime))
}
