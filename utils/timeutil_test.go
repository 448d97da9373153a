package utils

import (
	"testing"
	"time"
)

func TestParseHourMinute(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		expHour    int
		expMinutes int
	}{
		{
			name:       "simple time",
			input:      "08:30",
			expHour:    8,
			expMinutes: 30,
		},
		{
			name:       "time with seconds",
			input:      "17:45:30",
			expHour:    17,
			expMinutes: 45,
		},
		{
			name:       "iso datetime",
			input:      "2025-03-10T09:15:00+02:00",
			expHour:    9,
			expMinutes: 15,
		},
		{
			name:       "mysql datetime",
			input:      "2025-03-10 13:45:00",
			expHour:    13,
			expMinutes: 45,
		},
		{
			name:       "time with trailing zone",
			input:      "09:15:00Z",
			expHour:    9,
			expMinutes: 15,
		},
		{
			name:       "padded input",
			input:      "  07:05 ",
			expHour:    7,
			expMinutes: 5,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			h, m, err := ParseHourMinute(tc.input)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if h != tc.expHour || m != tc.expMinutes {
				t.Fatalf("expected %02d:%02d, got %02d:%02d", tc.expHour, tc.expMinutes, h, m)
			}
		})
	}
}

func TestParseHourMinuteInvalid(t *testing.T) {
	for _, input := range []string{"", "invalid", "25:00", "10:61", "10"} {
		if _, _, err := ParseHourMinute(input); err == nil {
			t.Fatalf("expected error for input %q", input)
		}
	}
}

func TestClockMinutes(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"00:00", 0},
		{"08:30", 510},
		{"23:59", 1439},
	}
	for _, tc := range tests {
		got, err := ClockMinutes(tc.input)
		if err != nil {
			t.Fatalf("ClockMinutes(%q): unexpected error %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("ClockMinutes(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func TestFormatClock(t *testing.T) {
	tests := []struct {
		minutes int
		want    string
	}{
		{0, "00:00"},
		{510, "08:30"},
		{1439, "23:59"},
		{1440, "00:00"},
		{-30, "23:30"},
	}
	for _, tc := range tests {
		if got := FormatClock(tc.minutes); got != tc.want {
			t.Fatalf("FormatClock(%d) = %q, want %q", tc.minutes, got, tc.want)
		}
	}
}

func TestWeekdayIndex(t *testing.T) {
	// 2025-03-10 is a Monday
	tests := []struct {
		date string
		want int
	}{
		{"2025-03-10", 0},
		{"2025-03-12", 2},
		{"2025-03-15", 5},
		{"2025-03-16", 6},
	}
	for _, tc := range tests {
		day, err := time.Parse("2006-01-02", tc.date)
		if err != nil {
			t.Fatal(err)
		}
		if got := WeekdayIndex(day); got != tc.want {
			t.Fatalf("WeekdayIndex(%s) = %d, want %d", tc.date, got, tc.want)
		}
	}
}

func TestDateOfKeepsLocation(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatal(err)
	}
	ts := time.Date(2025, 3, 10, 23, 45, 12, 0, loc)
	got := DateOf(ts)
	if got.Hour() != 0 || got.Minute() != 0 || got.Second() != 0 {
		t.Fatalf("DateOf did not truncate to midnight: %v", got)
	}
	if got.Location() != loc {
		t.Fatalf("DateOf changed location: %v", got.Location())
	}
	if !SameDate(ts, got) {
		t.Fatalf("SameDate(%v, %v) = false", ts, got)
	}
}

func TestSameDateAcrossMidnight(t *testing.T) {
	a := time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)
	b := time.Date(2025, 3, 11, 0, 1, 0, 0, time.UTC)
	if SameDate(a, b) {
		t.Fatal("expected different dates across midnight")
	}
}

func TestWindows(t *testing.T) {
	tests := []struct {
		name             string
		t, start, end    int
		inClosed, inOpen bool
	}{
		{"inside", 500, 480, 720, true, true},
		{"at start", 480, 480, 720, true, true},
		{"at end", 720, 480, 720, true, false},
		{"before", 479, 480, 720, false, false},
		{"after", 721, 480, 720, false, false},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := InWindow(tc.t, tc.start, tc.end); got != tc.inClosed {
				t.Fatalf("InWindow(%d, %d, %d) = %v, want %v", tc.t, tc.start, tc.end, got, tc.inClosed)
			}
			if got := BeforeWindow(tc.t, tc.start, tc.end); got != tc.inOpen {
				t.Fatalf("BeforeWindow(%d, %d, %d) = %v, want %v", tc.t, tc.start, tc.end, got, tc.inOpen)
			}
		})
	}
}
