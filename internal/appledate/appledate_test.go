package appledate

import (
	"testing"
	"time"
)

func TestToTimeEpochOrigin(t *testing.T) {
	got := ToTime(0).UTC()
	want := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ToTime(0) = %v, want %v", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	now := time.Now()
	back := ToTime(FromTime(now))
	if !back.Equal(now) {
		t.Errorf("round trip drifted: %v -> %v", now, back)
	}
}

func TestToTimeSubsecond(t *testing.T) {
	raw := int64(1)*1_000_000_000 + 500_000_000 // 1.5s past the reference date
	got := ToTime(raw).UTC()
	want := time.Date(2001, 1, 1, 0, 0, 1, 500_000_000, time.UTC)
	if !got.Equal(want) {
		t.Errorf("ToTime = %v, want %v", got, want)
	}
}

func TestWindowStartBoundary(t *testing.T) {
	loc := time.FixedZone("TST", -5*3600)
	now := time.Date(2024, 6, 15, 13, 45, 0, 0, loc)

	start := WindowStart(now, 14)

	// Exactly 14 calendar days back, any time of day, is in-window.
	onBoundary := FromTime(time.Date(2024, 6, 1, 0, 0, 0, 0, loc))
	if onBoundary < start {
		t.Error("message dated exactly lookbackDays ago fell outside the window")
	}
	// One day older is out.
	before := FromTime(time.Date(2024, 5, 31, 23, 59, 59, 0, loc))
	if before >= start {
		t.Error("message dated lookbackDays+1 ago fell inside the window")
	}
}
