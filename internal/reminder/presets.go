// Package reminder fires notifications ahead of upcoming occurrences.
package reminder

import (
	"fmt"
	"slices"
)

// Presets are the reminder offsets, in minutes before an occurrence, offered
// to users.
var Presets = []int{0, 5, 10, 15, 30, 60, 120, 1440}

// MaxPreset is the largest preset offset in minutes.
const MaxPreset = 1440

// IsPreset reports whether minutes is one of the offered presets.
func IsPreset(minutes int) bool {
	return slices.Contains(Presets, minutes)
}

// Label renders an offset the way the reminder picker shows it.
func Label(minutes int) string {
	switch {
	case minutes <= 0:
		return "At time of event"
	case minutes%1440 == 0:
		return plural(minutes/1440, "day")
	case minutes%60 == 0:
		return plural(minutes/60, "hour")
	default:
		return plural(minutes, "minute")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s before", unit)
	}
	return fmt.Sprintf("%d %ss before", n, unit)
}
