// Package relative formats timestamps as "N units ago" strings.
//
// The calendar is deliberately simplified: a month is exactly 4 weeks and a
// year exactly 12 of those months. Dashboards comparing output with older
// clients depend on these exact bucket widths.
package relative

import (
	"fmt"
	"math"
	"time"

	"github.com/victornm/giveboard/internal/errors"
)

const (
	minute = 60
	hour   = 60 * minute
	day    = 24 * hour
	week   = 7 * day
	month  = 4 * week
	year   = 12 * month
)

type bucket struct {
	bound int64 // exclusive upper bound in seconds, 0 means unbounded
	width int64
	unit  string
}

var buckets = []bucket{
	{bound: minute, width: 1, unit: "second"},
	{bound: hour, width: minute, unit: "minute"},
	{bound: day, width: hour, unit: "hour"},
	{bound: week, width: day, unit: "day"},
	{bound: month, width: week, unit: "week"},
	{bound: year, width: month, unit: "month"},
	{width: year, unit: "year"},
}

// layouts accepted by FormatString, tried in order.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02",
}

// Format describes how long before now the instant t happened.
// A t after now produces a negative count in the seconds bucket, e.g. "-5 seconds ago".
func Format(t, now time.Time) string {
	diff := Seconds(t, now)

	for _, b := range buckets {
		if b.bound != 0 && diff >= b.bound {
			continue
		}

		n := diff / b.width
		return fmt.Sprintf("%d %s ago", n, plural(b.unit, n))
	}

	// unreachable, the last bucket is unbounded
	return ""
}

// FormatString parses ts and formats it relative to now.
func FormatString(ts string, now time.Time) (string, error) {
	t, err := Parse(ts)
	if err != nil {
		return "", err
	}

	return Format(t, now), nil
}

// Parse reads an absolute timestamp the backend may send.
func Parse(ts string) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, nil
		}
	}

	return time.Time{}, errors.InvalidArgument("invalid timestamp: %q", ts)
}

// Seconds returns now-t in whole seconds, rounding half-seconds up.
func Seconds(t, now time.Time) int64 {
	return int64(math.Floor(now.Sub(t).Seconds() + 0.5))
}

func plural(unit string, n int64) string {
	if n == 1 {
		return unit
	}

	return unit + "s"
}
