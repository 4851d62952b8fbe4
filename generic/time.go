package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// TIME POINT - Calendar date (UTC, day granularity)
// =============================================================================

// DateLayout is the wire and storage format of a TimePoint.
const DateLayout = "2006-01-02"

// TimePoint is a calendar date. Revenue is recognized per day at most, so the
// time of day is always truncated to midnight UTC.
type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime truncates t to its calendar date in t's location.
func FromTime(t time.Time) TimePoint {
	return NewTimePoint(t.Year(), t.Month(), t.Day())
}

func Today() TimePoint { return FromTime(time.Now()) }

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (TimePoint, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TimePoint{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return FromTime(t), nil
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.Time.Before(other.Time) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.Time.Equal(other.Time) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.Time.After(other.Time) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return !tp.After(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return !tp.Before(other) }

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }

// AddMonths moves n calendar months. Days past the end of the target month
// are clamped (Jan 31 + 1 month = Feb 28/29), unlike time.AddDate.
func (tp TimePoint) AddMonths(n int) TimePoint {
	first := time.Date(tp.Year(), tp.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	day := tp.Day()
	if last := DaysInMonth(TimePoint{Time: first}); day > last {
		day = last
	}
	return NewTimePoint(first.Year(), first.Month(), day)
}

// Properties
func (tp TimePoint) Year() int           { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month   { return tp.Time.Month() }
func (tp TimePoint) Day() int            { return tp.Time.Day() }
func (tp TimePoint) IsZero() bool        { return tp.Time.IsZero() }
func (tp TimePoint) IsFirstOfMonth() bool { return tp.Day() == 1 }

func (tp TimePoint) StartOfMonth() TimePoint { return NewTimePoint(tp.Year(), tp.Month(), 1) }

func (tp TimePoint) String() string { return tp.Time.Format(DateLayout) }

func (tp TimePoint) MarshalText() ([]byte, error) { return []byte(tp.String()), nil }

func (tp *TimePoint) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*tp = parsed
	return nil
}

// =============================================================================
// CALENDAR UTILITIES
// =============================================================================

// DaysInMonth returns the number of days in date's calendar month.
func DaysInMonth(date TimePoint) int {
	return time.Date(date.Year(), date.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysRemainingInMonth counts date itself through the last day of its month.
// Jan 15 -> 17.
func DaysRemainingInMonth(date TimePoint) int {
	return DaysInMonth(date) - date.Day() + 1
}

// DaysBetween returns whole days in [from, to).
func DaysBetween(from, to TimePoint) int { return int(to.Time.Sub(from.Time).Hours() / 24) }

// MonthsBetween counts whole calendar months from start to end. A month is
// complete once end reaches the same day-of-month as start (clamped to the end
// of shorter months), so Jan 15 -> Apr 15 is 3 and Jan 15 -> Apr 14 is 2.
// Returns 0 when end is not after start.
func MonthsBetween(start, end TimePoint) int {
	if !end.After(start) {
		return 0
	}
	months := (end.Year()-start.Year())*12 + int(end.Month()-start.Month())
	if start.AddMonths(months).After(end) {
		months--
	}
	return months
}
