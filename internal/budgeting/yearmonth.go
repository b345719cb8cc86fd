package budgeting

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidYearMonth = errors.New("invalid year-month, want YYYY-MM")

// YearMonth names one calendar month, e.g. 2024-03.
type YearMonth struct {
	Year  int
	Month time.Month
}

func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse("2006-01", s)

	if err != nil {
		return YearMonth{}, ErrInvalidYearMonth
	}

	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Window returns the month boundaries in UTC. The window is
// [start, end): end is the first instant of the following month, which
// makes the month's own last instant inclusive without naming it.
func (ym YearMonth) Window() (start, end time.Time) {
	start = time.Date(ym.Year, ym.Month, 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)

	return start, end
}

// Contains reports whether ts falls inside the month, evaluated in UTC
// regardless of the timestamp's own location.
func (ym YearMonth) Contains(ts time.Time) bool {
	start, end := ym.Window()
	ts = ts.UTC()

	return !ts.Before(start) && ts.Before(end)
}
