// aiOS Core - Control Plane for Autonomous Agent Infrastructure
// SPDX-License-Identifier: AGPL-3.0-or-later

package plugin

import (
	"bufio"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MohaMehrzad/aios-core/internal/logging"
)

// CheckFileWatch reports whether path's mtime is newer than lastChecked
// (unix seconds). A zero lastChecked always fires, matching the
// Option::None branch of the original check_file_watch.
func CheckFileWatch(path string, lastChecked int64) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	modified := info.ModTime().Unix()
	if lastChecked == 0 {
		return true
	}
	return modified > lastChecked
}

// CheckCron evaluates a 5-field "minute hour day month weekday" cron
// expression against now, supporting "*", "*/N", and comma lists per
// field.
func CheckCron(expression string, now time.Time) bool {
	parts := strings.Fields(expression)
	if len(parts) != 5 {
		return false
	}
	checks := []struct {
		pattern string
		value   uint32
	}{
		{parts[0], uint32(now.Minute())},
		{parts[1], uint32(now.Hour())},
		{parts[2], uint32(now.Day())},
		{parts[3], uint32(now.Month())},
		{parts[4], isoWeekday(now)},
	}
	for _, c := range checks {
		if !matchesCronField(c.pattern, c.value) {
			return false
		}
	}
	return true
}

// isoWeekday maps Go's Sunday=0 weekday to ISO's Monday=1..Sunday=7, the
// same convention chrono's "%u" format uses.
func isoWeekday(t time.Time) uint32 {
	w := int(t.Weekday())
	if w == 0 {
		return 7
	}
	return uint32(w)
}

// matchesCronField matches a single cron field against value.
func matchesCronField(pattern string, value uint32) bool {
	if pattern == "*" {
		return true
	}
	if interval, ok := strings.CutPrefix(pattern, "*/"); ok {
		if n, err := strconv.ParseUint(interval, 10, 32); err == nil {
			return n > 0 && value%uint32(n) == 0
		}
	}
	for _, part := range strings.Split(pattern, ",") {
		if n, err := strconv.ParseUint(strings.TrimSpace(part), 10, 32); err == nil {
			if uint32(n) == value {
				return true
			}
		}
	}
	return false
}

// CheckMetricThreshold evaluates a threshold comparison; unknown
// operators log and return false rather than panicking.
func CheckMetricThreshold(current float64, operator string, threshold float64) bool {
	switch operator {
	case ">", "gt":
		return current > threshold
	case ">=", "gte":
		return current >= threshold
	case "<", "lt":
		return current < threshold
	case "<=", "lte":
		return current <= threshold
	case "==", "eq":
		return math.Abs(current-threshold) < epsilon
	case "!=", "ne":
		return math.Abs(current-threshold) >= epsilon
	default:
		logging.Debug().Str("operator", operator).Msg("unknown metric trigger operator")
		return false
	}
}

const epsilon = 1e-9

// CheckLogPattern reports whether logLine contains pattern as a substring.
func CheckLogPattern(logLine, pattern string) bool {
	return strings.Contains(logLine, pattern)
}

// TailLogPattern reads the bytes appended to path since offset, checks
// each new line against pattern via CheckLogPattern, and returns whether
// any matched plus the offset to resume from next time. A file that has
// shrunk since offset (truncated or rotated) is re-read from the start,
// the same "can't trust the old position" recovery CheckFileWatch's
// lastChecked=0 branch uses for a trigger's first run.
func TailLogPattern(path, pattern string, offset int64) (fired bool, newOffset int64) {
	f, err := os.Open(path)
	if err != nil {
		return false, offset
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, offset
	}
	size := info.Size()
	if offset > size {
		offset = 0
	}
	if offset == size {
		return false, offset
	}

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return false, offset
	}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if CheckLogPattern(scanner.Text(), pattern) {
			fired = true
		}
	}
	return fired, size
}
