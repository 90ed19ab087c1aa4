package models

import (
	"testing"
	"time"
)

func ts(hour, min int) time.Time {
	return time.Date(2026, 3, 10, hour, min, 0, 0, time.UTC)
}

func TestScanForGaps_BusinessHoursGapFlagged(t *testing.T) {
	// Newest first: 14:00 follows 10:00, a 4h silence in the middle of the day.
	timestamps := []time.Time{ts(14, 0), ts(10, 0), ts(9, 55)}
	if !scanForGaps(timestamps, 2*time.Hour, 6, 22) {
		t.Fatal("expected daytime gap to be flagged")
	}
}

func TestScanForGaps_OvernightGapIgnored(t *testing.T) {
	// 23:30 -> 04:00 next morning style silence: the newer side is outside
	// business hours, so closing overnight is not suspicious.
	timestamps := []time.Time{ts(23, 30), ts(4, 0)}
	if scanForGaps(timestamps, 2*time.Hour, 6, 22) {
		t.Fatal("overnight gap must not be flagged")
	}
}

func TestScanForGaps_DenseActivityClean(t *testing.T) {
	timestamps := []time.Time{ts(12, 0), ts(11, 30), ts(11, 0), ts(10, 30)}
	if scanForGaps(timestamps, 2*time.Hour, 6, 22) {
		t.Fatal("30-minute cadence must not be flagged")
	}
}

func TestScanForGaps_ThresholdIsExclusive(t *testing.T) {
	// Exactly at the threshold is allowed; only strictly-greater gaps flag.
	timestamps := []time.Time{ts(12, 0), ts(10, 0)}
	if scanForGaps(timestamps, 2*time.Hour, 6, 22) {
		t.Fatal("gap equal to threshold must not be flagged")
	}
	if !scanForGaps(timestamps, 2*time.Hour-time.Minute, 6, 22) {
		t.Fatal("gap above threshold must be flagged")
	}
}

func TestScanForGaps_ShortInputs(t *testing.T) {
	if scanForGaps(nil, time.Hour, 6, 22) {
		t.Fatal("empty input must not be flagged")
	}
	if scanForGaps([]time.Time{ts(12, 0)}, time.Hour, 6, 22) {
		t.Fatal("single row must not be flagged")
	}
}
