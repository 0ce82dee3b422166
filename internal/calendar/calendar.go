// Package calendar implements the Pricepally four-week business month.
//
// Every month is divided into exactly four weeks starting on days 1, 8, 15
// and 22; anything from day 22 onward belongs to week 4. All series
// timestamps and forecast target weeks are aligned to this calendar.
package calendar

import (
	"fmt"
	"time"
)

// weekStartDay maps the week-of-month number (1-4) to its starting day.
var weekStartDay = map[int]int{
	1: 1,
	2: 8,
	3: 15,
	4: 22,
}

// Week identifies one business week.
type Week struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	// WeekNo is the week within the month, 1-4.
	WeekNo int `json:"week_no"`
}

// Date returns the representative start date of the week.
func (w Week) Date() (time.Time, error) {
	day, ok := weekStartDay[w.WeekNo]
	if !ok {
		return time.Time{}, fmt.Errorf("invalid week number %d, must be 1-4", w.WeekNo)
	}
	if w.Month < 1 || w.Month > 12 {
		return time.Time{}, fmt.Errorf("invalid month %d", w.Month)
	}
	return time.Date(w.Year, time.Month(w.Month), day, 0, 0, 0, 0, time.UTC), nil
}

// Next returns the following business week. Week 4 rolls over to week 1 of
// the next month.
func (w Week) Next() Week {
	if w.WeekNo < 4 {
		return Week{Year: w.Year, Month: w.Month, WeekNo: w.WeekNo + 1}
	}
	if w.Month < 12 {
		return Week{Year: w.Year, Month: w.Month + 1, WeekNo: 1}
	}
	return Week{Year: w.Year + 1, Month: 1, WeekNo: 1}
}

// Add returns the week n steps after w.
func (w Week) Add(n int) Week {
	out := w
	for i := 0; i < n; i++ {
		out = out.Next()
	}
	return out
}

// Index returns a monotonically increasing ordinal for the week, usable as a
// regression index: four weeks per month, twelve months per year.
func (w Week) Index() int {
	return w.Year*48 + (w.Month-1)*4 + (w.WeekNo - 1)
}

// Before reports whether w is strictly earlier than other.
func (w Week) Before(other Week) bool {
	return w.Index() < other.Index()
}

// String formats the week as YYYY-MM/W.
func (w Week) String() string {
	return fmt.Sprintf("%04d-%02d/%d", w.Year, w.Month, w.WeekNo)
}

// FromDate maps a calendar date onto its business week.
func FromDate(t time.Time) Week {
	weekNo := (t.Day()-1)/7 + 1
	if weekNo > 4 {
		weekNo = 4
	}
	return Week{Year: t.Year(), Month: int(t.Month()), WeekNo: weekNo}
}

// WeeksBetween returns the number of business weeks from a to b. Negative if
// b is earlier than a.
func WeeksBetween(a, b Week) int {
	return b.Index() - a.Index()
}
