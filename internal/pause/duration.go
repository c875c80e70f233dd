// Package pause implements the global pause/resume gate (spec C6).
package pause

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// durationPattern matches "<H>h<M>m<S>s" with any subset of components
// present, in that order. All three groups empty means "not a duration".
var durationPattern = regexp.MustCompile(`^(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

// ParseDuration parses strings like "2h", "30m", "1h30m", "1h30m15s".
// The second return value is false ("unset") for any other input,
// including the empty string.
func ParseDuration(text string) (time.Duration, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, false
	}
	m := durationPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	if m[1] == "" && m[2] == "" && m[3] == "" {
		return 0, false
	}

	hours := atoiOrZero(m[1])
	minutes := atoiOrZero(m[2])
	seconds := atoiOrZero(m[3])

	total := hours*3600 + minutes*60 + seconds
	return time.Duration(total) * time.Second, true
}

func atoiOrZero(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
