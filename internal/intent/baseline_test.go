package intent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/driftline/internal/bv"
)

func rng(y1 int, m1 time.Month, d1, y2 int, m2 time.Month, d2 int) TimeRange {
	return TimeRange{Start: NewDate(y1, m1, d1), End: NewDate(y2, m2, d2)}
}

func TestComputeBaselineDates_PreviousPeriod(t *testing.T) {
	cal := bv.DefaultCalendar()

	tests := []struct {
		name    string
		current TimeRange
		want    TimeRange
	}{
		{
			name:    "whole month shifts to prior month",
			current: rng(2026, time.January, 1, 2026, time.January, 31),
			want:    rng(2025, time.December, 1, 2025, time.December, 31),
		},
		{
			name:    "march against february keeps whole months",
			current: rng(2026, time.March, 1, 2026, time.March, 31),
			want:    rng(2026, time.February, 1, 2026, time.February, 28),
		},
		{
			name:    "two whole months shift together",
			current: rng(2026, time.March, 1, 2026, time.April, 30),
			want:    rng(2026, time.January, 1, 2026, time.February, 28),
		},
		{
			// 2026-01-05 is a Monday.
			name:    "whole weeks keep weekday alignment",
			current: rng(2026, time.January, 5, 2026, time.January, 18),
			want:    rng(2025, time.December, 22, 2026, time.January, 4),
		},
		{
			name:    "ragged range shifts by day count",
			current: rng(2026, time.January, 10, 2026, time.January, 19),
			want:    rng(2025, time.December, 31, 2026, time.January, 9),
		},
		{
			name:    "single day",
			current: rng(2026, time.January, 15, 2026, time.January, 15),
			want:    rng(2026, time.January, 14, 2026, time.January, 14),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeBaselineDates(BaselinePreviousPeriod, tt.current, cal)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.False(t, got.Overlaps(tt.current), "baseline must not overlap current")
		})
	}
}

func TestComputeBaselineDates_PreviousPeriod_Deterministic(t *testing.T) {
	cal := bv.DefaultCalendar()
	current := rng(2026, time.January, 1, 2026, time.January, 31)

	first, err := ComputeBaselineDates(BaselinePreviousPeriod, current, cal)
	require.NoError(t, err)
	second, err := ComputeBaselineDates(BaselinePreviousPeriod, current, cal)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestComputeBaselineDates_LastYear(t *testing.T) {
	cal := bv.DefaultCalendar()

	got, err := ComputeBaselineDates(BaselineLastYear, rng(2026, time.March, 1, 2026, time.March, 31), cal)
	require.NoError(t, err)
	assert.Equal(t, rng(2025, time.March, 1, 2025, time.March, 31), got)

	// Feb 29 clamps to Feb 28 in the non-leap prior year.
	got, err = ComputeBaselineDates(BaselineLastYear, rng(2024, time.February, 29, 2024, time.February, 29), cal)
	require.NoError(t, err)
	assert.Equal(t, rng(2023, time.February, 28, 2023, time.February, 28), got)
}

func TestComputeBaselineDates_SundayWeekStart(t *testing.T) {
	cal := bv.CalendarRules{FiscalYearStart: 1, WeekStart: bv.WeekStartSunday}

	// 2026-01-04 is a Sunday; one whole week.
	got, err := ComputeBaselineDates(BaselinePreviousPeriod, rng(2026, time.January, 4, 2026, time.January, 10), cal)
	require.NoError(t, err)
	assert.Equal(t, rng(2025, time.December, 28, 2026, time.January, 3), got)
}

func TestComputeBaselineDates_CustomHasNoDerivedDates(t *testing.T) {
	_, err := ComputeBaselineDates(BaselineCustom, rng(2026, time.January, 1, 2026, time.January, 31), bv.DefaultCalendar())
	require.Error(t, err)
}

func TestResolveBaseline(t *testing.T) {
	cal := bv.DefaultCalendar()

	start := NewDate(2025, time.June, 1)
	end := NewDate(2025, time.June, 30)
	in := &StructuredIntent{
		Metric:    "total_revenue",
		TimeRange: rng(2026, time.January, 1, 2026, time.January, 31),
		Baseline:  &Baseline{Type: BaselineCustom, Start: &start, End: &end},
	}
	got, err := ResolveBaseline(in, cal)
	require.NoError(t, err)
	assert.Equal(t, TimeRange{Start: start, End: end}, got)

	in.Baseline = &Baseline{Type: BaselinePreviousPeriod}
	got, err = ResolveBaseline(in, cal)
	require.NoError(t, err)
	assert.Equal(t, rng(2025, time.December, 1, 2025, time.December, 31), got)

	in.Baseline = nil
	_, err = ResolveBaseline(in, cal)
	require.Error(t, err)
}
