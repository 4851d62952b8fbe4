package generic

// =============================================================================
// PERIOD - Half-open date range [Start, End)
// =============================================================================

// Period is the half-open range [Start, End). End is the first day NOT
// covered, so a calendar month is [Mar 1, Apr 1) and consecutive periods
// share their boundary without overlapping.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// NewPeriod validates that end is not before start.
func NewPeriod(start, end TimePoint) (Period, error) {
	if end.Before(start) {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Start: start, End: end}, nil
}

// MonthPeriod returns the calendar month containing date.
func MonthPeriod(date TimePoint) Period {
	start := date.StartOfMonth()
	return Period{Start: start, End: start.AddMonths(1)}
}

// Contains returns true if t is within [Start, End).
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.Before(p.End)
}

func (p Period) IsEmpty() bool { return !p.End.After(p.Start) }

// Days returns the number of days covered.
func (p Period) Days() int { return DaysBetween(p.Start, p.End) }

// Months returns calendar months between Start and End (see MonthsBetween).
func (p Period) Months() int { return MonthsBetween(p.Start, p.End) }

// MonthStarts returns the first day of every calendar month that overlaps the
// period, in order. [Jan 15, Apr 15) yields Jan 1, Feb 1, Mar 1, Apr 1.
// An empty period still yields the month of Start.
func (p Period) MonthStarts() []TimePoint {
	current := p.Start.StartOfMonth()
	starts := []TimePoint{current}
	for {
		current = current.AddMonths(1)
		if !current.Before(p.End) {
			return starts
		}
		starts = append(starts, current)
	}
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + ")"
}
