// Package duration handles the compound "XhYmZs" duration format used by the
// Twitch Helix video API and by timestamp deep links, plus the rate-modifier
// adjustment applied to beatmap lengths.
package duration

import (
	"fmt"
	"math"
)

// ParseCompound parses a compound duration like "3h15m42s" into total seconds.
// Any subset of units may appear (in h, m, s order); unparseable runs are
// skipped.
func ParseCompound(s string) int {
	var total int
	cur := ""
	for _, r := range s {
		if r >= '0' && r <= '9' {
			cur += string(r)
			continue
		}
		if cur == "" {
			continue
		}
		n := 0
		for _, d := range cur {
			n = n*10 + int(d-'0')
		}
		switch r {
		case 'h':
			total += n * 3600
		case 'm':
			total += n * 60
		case 's':
			total += n
		}
		cur = ""
	}
	return total
}

// FormatCompound renders total seconds as "XhYmZs", always emitting all three
// units. Used for display timestamps and VOD deep-link query values.
func FormatCompound(totalSeconds int) string {
	hours := totalSeconds / 3600
	totalSeconds %= 3600
	minutes := totalSeconds / 60
	seconds := totalSeconds % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}

// Effective returns the real-time play length for a map of the given length
// once rate modifiers are applied. DT/NC play at 1.5x, HT at 0.75x. Only one
// rate modifier is expected per play; when both appear the DT/NC branch wins.
func Effective(lengthSeconds int, mods []string) int {
	if hasMod(mods, "DT") || hasMod(mods, "NC") {
		return int(math.Round(float64(lengthSeconds) / 1.5))
	}
	if hasMod(mods, "HT") {
		return int(math.Round(float64(lengthSeconds) / 0.75))
	}
	return lengthSeconds
}

func hasMod(mods []string, mod string) bool {
	for _, m := range mods {
		if m == mod {
			return true
		}
	}
	return false
}
