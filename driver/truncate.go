package driver

import (
	"strconv"
	"strings"
)

const (
	truncateMaxLines = 100
	truncateMaxChars = 4000
	truncateHeadKeep = 50
	truncateTailKeep = 50
)

// Truncate bounds command output stored in ExecutionState. Output of more
// than 100 lines keeps its first 50 and last 50 lines with one elision
// marker line between them; output still longer than 4000 characters after
// that keeps its first and last 2000 characters joined by a truncation
// marker. Output under both limits is returned unchanged. Truncate
// publishes nothing: the only part of a driver's output that reaches the
// event bus is what the driver sends through its StreamSink, which
// eventbus.DriverSink publishes at debug level; no code in this module
// publishes trace-level events.
func Truncate(output string) string {
	lines := strings.Split(output, "\n")

	if len(lines) > truncateMaxLines {
		head := lines[:truncateHeadKeep]
		tail := lines[len(lines)-truncateTailKeep:]
		elided := len(lines) - truncateHeadKeep - truncateTailKeep
		lines = append(append(append([]string{}, head...),
			elidedMarker(elided)), tail...)
		output = strings.Join(lines, "\n")
	}

	if len(output) > truncateMaxChars {
		head := output[:truncateMaxChars/2]
		tail := output[len(output)-truncateMaxChars/2:]
		output = head + "\n... [truncated] ...\n" + tail
	}

	return output
}

func elidedMarker(n int) string {
	if n <= 0 {
		return ""
	}
	return "... [" + strconv.Itoa(n) + " lines elided] ..."
}
