// Package appledate converts between the Messages database timestamp
// encoding and wall-clock time. chat.db stores dates as nanoseconds since
// 2001-01-01 00:00:00 UTC rather than the Unix epoch.
package appledate

import "time"

// EpochOffsetSeconds is the offset between the Apple reference date
// (2001-01-01) and the Unix epoch.
const EpochOffsetSeconds int64 = 978307200

const nanosPerSecond int64 = 1_000_000_000

// ToTime converts a raw chat.db date (Apple-epoch nanoseconds) to local time.
func ToTime(raw int64) time.Time {
	secs := raw / nanosPerSecond
	nanos := raw % nanosPerSecond
	return time.Unix(secs+EpochOffsetSeconds, nanos)
}

// FromTime converts wall-clock time to a raw chat.db date, truncating
// toward zero at nanosecond resolution.
func FromTime(t time.Time) int64 {
	return (t.Unix()-EpochOffsetSeconds)*nanosPerSecond + int64(t.Nanosecond())
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WindowStart returns the raw chat.db date for midnight, local time,
// lookbackDays calendar days before now. A message dated exactly
// lookbackDays ago is inside the window; one day older is not.
func WindowStart(now time.Time, lookbackDays int) int64 {
	return FromTime(StartOfDay(now).AddDate(0, 0, -lookbackDays))
}
