package transform

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWeekWindowsEndOnLastSunday(t *testing.T) {
	// Wednesday 2026-08-26: the most recent window must end Sunday 08-23.
	windows := WeekWindows(date(2026, time.August, 26), 3)
	if len(windows) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(windows))
	}
	if !windows[0].End.Equal(date(2026, time.August, 23)) {
		t.Fatalf("first window ends %v, want 2026-08-23", windows[0].End)
	}
	if !windows[0].Start.Equal(date(2026, time.August, 17)) {
		t.Fatalf("first window starts %v, want 2026-08-17", windows[0].Start)
	}
	if !windows[1].End.Equal(date(2026, time.August, 16)) {
		t.Fatalf("second window ends %v, want 2026-08-16", windows[1].End)
	}
}

func TestWeekWindowsSundayBoundary(t *testing.T) {
	// When today is a Sunday it closes the most recent window itself.
	windows := WeekWindows(date(2026, time.August, 23), 1)
	if !windows[0].End.Equal(date(2026, time.August, 23)) {
		t.Fatalf("window ends %v, want today", windows[0].End)
	}
}

func TestWeeksAgoPlacement(t *testing.T) {
	now := date(2026, time.August, 26)
	windows := WeekWindows(now, 52)

	cases := []struct {
		name string
		day  time.Time
		want int
	}{
		{"inside most recent window", date(2026, time.August, 20), 1},
		{"window end boundary", date(2026, time.August, 23), 1},
		{"window start boundary", date(2026, time.August, 17), 1},
		{"previous window", date(2026, time.August, 14), 2},
		{"after the boundary (current partial week)", date(2026, time.August, 25), 0},
		{"older than the full range", date(2025, time.August, 1), 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := WeeksAgo(tc.day, windows); got != tc.want {
				t.Fatalf("WeeksAgo(%v) = %d, want %d", tc.day, got, tc.want)
			}
		})
	}
}

func TestWeeksAgoIgnoresTimeOfDay(t *testing.T) {
	windows := WeekWindows(date(2026, time.August, 26), 4)
	lateSunday := time.Date(2026, time.August, 23, 23, 59, 0, 0, time.UTC)
	if got := WeeksAgo(lateSunday, windows); got != 1 {
		t.Fatalf("WeeksAgo(late Sunday) = %d, want 1", got)
	}
}
