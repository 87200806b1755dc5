package view

import (
	"fmt"
	"strings"
)

// PrecisionThresholdMs is the remaining time under which labels show
// milliseconds, so players can see how close they are to running out.
const PrecisionThresholdMs = 90_000

const (
	msPerSecond = 1000
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
)

// FormatTimeLabel renders milliseconds as [HH:]MM:SS[.mmm].
//
// The hour segment only appears from one hour up and the millisecond segment
// only below PrecisionThresholdMs. Negative input renders as zero.
func FormatTimeLabel(ms int64) string {
	if ms < 0 {
		ms = 0
	}

	var b strings.Builder
	if hours := ms / msPerHour; hours > 0 {
		fmt.Fprintf(&b, "%02d:", hours)
	}
	fmt.Fprintf(&b, "%02d:%02d", ms/msPerMinute%60, ms/msPerSecond%60)
	if ms < PrecisionThresholdMs {
		fmt.Fprintf(&b, ".%03d", ms%msPerSecond)
	}
	return b.String()
}
