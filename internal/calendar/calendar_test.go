package calendar

import (
	"testing"
	"time"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name string
		in   Week
		want Week
	}{
		{"within_month", Week{2026, 3, 2}, Week{2026, 3, 3}},
		{"month_rollover", Week{2026, 3, 4}, Week{2026, 4, 1}},
		{"year_rollover", Week{2026, 12, 4}, Week{2027, 1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.Next(); got != tt.want {
				t.Errorf("Next(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestFromDate(t *testing.T) {
	tests := []struct {
		day  int
		want int
	}{
		{1, 1},
		{7, 1},
		{8, 2},
		{15, 3},
		{21, 3},
		{22, 4},
		{28, 4},
		{31, 4}, // days past 28 fold into week 4
	}

	for _, tt := range tests {
		d := time.Date(2026, 3, tt.day, 12, 0, 0, 0, time.UTC)
		got := FromDate(d)
		if got.WeekNo != tt.want {
			t.Errorf("FromDate(day %d).WeekNo = %d, want %d", tt.day, got.WeekNo, tt.want)
		}
	}
}

func TestDateInvalid(t *testing.T) {
	if _, err := (Week{2026, 3, 5}).Date(); err == nil {
		t.Error("expected error for week number 5")
	}
	if _, err := (Week{2026, 13, 1}).Date(); err == nil {
		t.Error("expected error for month 13")
	}
}

func TestWeeksBetween(t *testing.T) {
	tests := []struct {
		name string
		a, b Week
		want int
	}{
		{"same_week", Week{2026, 3, 2}, Week{2026, 3, 2}, 0},
		{"adjacent", Week{2026, 3, 2}, Week{2026, 3, 3}, 1},
		{"across_month", Week{2026, 3, 4}, Week{2026, 4, 2}, 2},
		{"across_year", Week{2026, 12, 3}, Week{2027, 1, 1}, 2},
		{"negative", Week{2026, 4, 1}, Week{2026, 3, 4}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeeksBetween(tt.a, tt.b); got != tt.want {
				t.Errorf("WeeksBetween(%s, %s) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestAddMatchesRepeatedNext(t *testing.T) {
	w := Week{2026, 11, 3}
	got := w.Add(6)
	want := w
	for i := 0; i < 6; i++ {
		want = want.Next()
	}
	if got != want {
		t.Errorf("Add(6) = %s, want %s", got, want)
	}
	if WeeksBetween(w, got) != 6 {
		t.Errorf("WeeksBetween after Add(6) = %d, want 6", WeeksBetween(w, got))
	}
}

func TestString(t *testing.T) {
	if got := (Week{2026, 3, 2}).String(); got != "2026-03/2" {
		t.Errorf("String() = %q, want %q", got, "2026-03/2")
	}
}
