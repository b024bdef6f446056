// Package core holds the time-entry domain: entries, categories, the date
// normalizer, duration formatting and calendar math.
//
// Durations are whole minutes everywhere in the application. Hours are only
// ever produced for display, so rounding is done on integers to keep the
// output stable regardless of floating point representation.
package core

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatHours renders minutes as hours with the given number of decimals,
// rounding half up on the exact decimal value.
//
// Examples:
//
//	FormatHours(90, 1)  -> "1.5"
//	FormatHours(15, 1)  -> "0.3"
//	FormatHours(125, 2) -> "2.08"
func FormatHours(minutes, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	neg := minutes < 0
	if neg {
		minutes = -minutes
	}
	scale := int64(1)
	for i := 0; i < decimals; i++ {
		scale *= 10
	}
	// round(minutes*scale/60) with half up: floor((2*m*scale + 60) / 120)
	scaled := (2*int64(minutes)*scale + 60) / 120

	var b strings.Builder
	if neg && scaled != 0 {
		b.WriteByte('-')
	}
	b.WriteString(strconv.FormatInt(scaled/scale, 10))
	if decimals > 0 {
		frac := strconv.FormatInt(scaled%scale, 10)
		b.WriteByte('.')
		b.WriteString(strings.Repeat("0", decimals-len(frac)))
		b.WriteString(frac)
	}
	return b.String()
}

// SplitDuration splits minutes into whole hours and remaining minutes.
func SplitDuration(minutes int) (hours, mins int) {
	return minutes / 60, minutes % 60
}

// FormatDuration renders minutes as "Xh Ym".
func FormatDuration(minutes int) string {
	h, m := SplitDuration(minutes)
	return fmt.Sprintf("%dh %dm", h, m)
}

// RoundSecondsToMinutes converts elapsed seconds into whole minutes, rounding
// half up.
func RoundSecondsToMinutes(seconds int) int {
	if seconds <= 0 {
		return 0
	}
	return (2*seconds + 60) / 120
}

// FormatClock renders seconds as HH:MM:SS.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}
