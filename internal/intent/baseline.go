package intent

import (
	"fmt"
	"time"

	"github.com/driftline/driftline/internal/bv"
)

// ComputeBaselineDates derives the baseline period from the current period.
//
// The function is pure: same inputs always yield the same range. The
// resulting range never overlaps the current range.
//
// Alignment rules:
//   - A current range covering whole calendar months shifts back by the same
//     number of months for PREVIOUS_PERIOD, so Mar 1..Mar 31 compares against
//     Feb 1..Feb 28 rather than a ragged 31-day window.
//   - A current range covering whole weeks (starting on the calendar's week
//     start day) shifts back by whole weeks, preserving weekday alignment.
//   - Any other range shifts back by its day count, ending the day before
//     the current range starts.
//   - LAST_YEAR shifts both endpoints back one year, clamping Feb 29 to
//     Feb 28 in non-leap years.
func ComputeBaselineDates(baselineType BaselineType, current TimeRange, calendar bv.CalendarRules) (TimeRange, error) {
	switch baselineType {
	case BaselinePreviousPeriod:
		return previousPeriod(current, calendar), nil
	case BaselineLastYear:
		return TimeRange{
			Start: yearBack(current.Start),
			End:   yearBack(current.End),
		}, nil
	default:
		return TimeRange{}, fmt.Errorf("baseline type %q has no derived dates", baselineType)
	}
}

// ResolveBaseline returns the absolute baseline range for an intent,
// honoring explicit custom dates.
func ResolveBaseline(in *StructuredIntent, calendar bv.CalendarRules) (TimeRange, error) {
	if in.Baseline == nil {
		return TimeRange{}, fmt.Errorf("intent has no baseline")
	}
	if in.Baseline.Type == BaselineCustom {
		return TimeRange{Start: *in.Baseline.Start, End: *in.Baseline.End}, nil
	}
	return ComputeBaselineDates(in.Baseline.Type, in.TimeRange, calendar)
}

func previousPeriod(current TimeRange, calendar bv.CalendarRules) TimeRange {
	if months, ok := wholeMonths(current); ok {
		start := current.Start.AddDate(0, -months, 0)
		return TimeRange{
			Start: Date{start},
			End:   Date{current.Start.AddDate(0, 0, -1)},
		}
	}

	days := current.Days()
	if days%7 == 0 && startsOnWeekStart(current.Start, calendar.WeekStart) {
		start := current.Start.AddDate(0, 0, -days)
		return TimeRange{
			Start: Date{start},
			End:   Date{current.Start.AddDate(0, 0, -1)},
		}
	}

	end := current.Start.AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(days - 1))
	return TimeRange{Start: Date{start}, End: Date{end}}
}

// wholeMonths reports whether the range covers exactly n whole calendar
// months, first day through last day.
func wholeMonths(r TimeRange) (int, bool) {
	if r.Start.Day() != 1 {
		return 0, false
	}
	nextDay := r.End.AddDate(0, 0, 1)
	if nextDay.Day() != 1 {
		return 0, false
	}
	months := int(nextDay.Month()) - int(r.Start.Month()) + 12*(nextDay.Year()-r.Start.Year())
	if months < 1 {
		return 0, false
	}
	return months, true
}

func startsOnWeekStart(d Date, weekStart bv.WeekStart) bool {
	switch weekStart {
	case bv.WeekStartSunday:
		return d.Weekday() == time.Sunday
	default:
		return d.Weekday() == time.Monday
	}
}

// yearBack shifts a date back one year, clamping Feb 29 to Feb 28.
func yearBack(d Date) Date {
	year, month, day := d.Date()
	if month == time.February && day == 29 {
		day = 28
	}
	return NewDate(year-1, month, day)
}
