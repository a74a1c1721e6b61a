// Package timeutil renders timestamps and durations for terminal output.
package timeutil

import (
	"strconv"
	"strings"
	"time"
)

// LocalTimeFormat is the layout of every local timestamp the CLI prints.
const LocalTimeFormat = "Mon Jan 2 15:04:05 2006"

var durationUnits = []struct {
	size   time.Duration
	suffix string
}{
	{24 * time.Hour, "d"},
	{time.Hour, "h"},
	{time.Minute, "m"},
	{time.Second, "s"},
}

// FormatUptime reformats a Go duration string ("72h30m15s") with
// FormatDuration. Unparseable input is returned unchanged.
func FormatUptime(uptime string) string {
	d, err := time.ParseDuration(uptime)
	if err != nil {
		return uptime
	}
	return FormatDuration(d)
}

// FormatDuration renders d as "3d 0h 30m 15s", starting at the largest
// non-zero unit. Sub-second remainders are dropped.
func FormatDuration(d time.Duration) string {
	var parts []string
	for _, u := range durationUnits {
		n := d / u.size
		d -= n * u.size
		if n == 0 && len(parts) == 0 && u.size != time.Second {
			continue
		}
		parts = append(parts, strconv.FormatInt(int64(n), 10)+u.suffix)
	}
	return strings.Join(parts, " ")
}

// FormatTime converts an RFC 3339 timestamp to local time, returning the
// input as is when it does not parse.
func FormatTime(timestamp string) string {
	t, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		return timestamp
	}
	return FormatLocal(t)
}

// FormatLocal renders t in local time. The zero time renders empty.
func FormatLocal(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(LocalTimeFormat)
}
