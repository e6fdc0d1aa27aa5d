package transform

import "time"

// WeekWindow is one Sunday-to-Saturday sales window, inclusive on both
// ends. Bounds are truncated to midnight.
type WeekWindow struct {
	Start time.Time
	End   time.Time
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// WeekWindows returns count windows ordered most recent first. The first
// window ends on the most recent Sunday, or on now itself when now falls
// on a Sunday, so the current partial week never dilutes the series.
func WeekWindows(now time.Time, count int) []WeekWindow {
	boundary := midnight(now)
	if wd := int(boundary.Weekday()); wd != 0 {
		boundary = boundary.AddDate(0, 0, -wd)
	}
	windows := make([]WeekWindow, 0, count)
	for i := 0; i < count; i++ {
		end := boundary.AddDate(0, 0, -7*i)
		windows = append(windows, WeekWindow{Start: end.AddDate(0, 0, -6), End: end})
	}
	return windows
}

// WeeksAgo places t into one of the windows and returns its 1-based index,
// or 0 when t falls outside every window.
func WeeksAgo(t time.Time, windows []WeekWindow) int {
	day := midnight(t)
	for i, w := range windows {
		if !day.Before(w.Start) && !day.After(w.End) {
			return i + 1
		}
	}
	return 0
}
