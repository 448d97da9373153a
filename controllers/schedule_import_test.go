package controllers

import (
	"strings"
	"testing"

	"github.com/eldertek/pg-pointage-sub001/models"
)

func TestBuildColumnIndex(t *testing.T) {
	header := []string{"NFC_ID", "Schedule_Type", "Jour", "Demi-Journee", "Debut_1", "Fin_1", "Debut_2", "Fin_2", "Duree"}
	col := buildColumnIndex(header)

	checks := map[string]int{
		"site":          0,
		"type":          1,
		"jour":          2,
		"plage":         3,
		"debut1":        4,
		"fin1":          5,
		"debut2":        6,
		"fin2":          7,
		"duree_minutes": 8,
	}
	for key, want := range checks {
		got, ok := col[key]
		if !ok {
			t.Fatalf("key %q missing from column index", key)
		}
		if got != want {
			t.Fatalf("col[%q] = %d, want %d", key, got, want)
		}
	}
}

func TestParseDayOfWeek(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"lundi", 0},
		{"Mercredi", 2},
		{"DIMANCHE", 6},
		{"friday", 4},
		{"3", 3},
	}
	for _, tc := range tests {
		got, err := parseDayOfWeek(tc.input)
		if err != nil {
			t.Fatalf("parseDayOfWeek(%q): %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("parseDayOfWeek(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
	for _, input := range []string{"", "someday", "7", "-1"} {
		if _, err := parseDayOfWeek(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func importColumns() map[string]int {
	return buildColumnIndex([]string{"site", "type", "jour", "plage", "debut1", "fin1", "debut2", "fin2", "duree_minutes"})
}

func TestParseScheduleRowFixedFullDay(t *testing.T) {
	col := importColumns()
	row := []string{"TST-S0001", "FIXE", "lundi", "", "8:00", "12:00:00", "14:00", "17:00", ""}

	parsed, err := parseScheduleRow(row, col, 2)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.ScheduleType != models.ScheduleTypeFixed {
		t.Fatalf("type = %q", parsed.ScheduleType)
	}
	if parsed.DayOfWeek != 0 || parsed.DayType != models.DayTypeFull {
		t.Fatalf("day = %d type %q", parsed.DayOfWeek, parsed.DayType)
	}
	if parsed.StartTime1 != "08:00" || parsed.EndTime1 != "12:00" {
		t.Fatalf("window 1 = %q-%q, clock values not normalized", parsed.StartTime1, parsed.EndTime1)
	}
	if parsed.StartTime2 != "14:00" || parsed.EndTime2 != "17:00" {
		t.Fatalf("window 2 = %q-%q", parsed.StartTime2, parsed.EndTime2)
	}
}

func TestParseScheduleRowHalfDays(t *testing.T) {
	col := importColumns()

	am, err := parseScheduleRow([]string{"TST-S0001", "FIXE", "mardi", "MATIN", "08:00", "12:00", "", "", ""}, col, 3)
	if err != nil {
		t.Fatal(err)
	}
	if am.DayType != models.DayTypeAM || am.StartTime1 != "08:00" || am.StartTime2 != "" {
		t.Fatalf("AM row = %+v", am)
	}

	// PM rows land in the afternoon window even when the sheet fills the
	// first time columns
	pm, err := parseScheduleRow([]string{"TST-S0001", "FIXE", "mardi", "PM", "14:00", "17:00", "", "", ""}, col, 4)
	if err != nil {
		t.Fatal(err)
	}
	if pm.DayType != models.DayTypePM {
		t.Fatalf("PM row day type = %q", pm.DayType)
	}
	if pm.StartTime2 != "14:00" || pm.EndTime2 != "17:00" {
		t.Fatalf("PM window = %q-%q", pm.StartTime2, pm.EndTime2)
	}
	if pm.StartTime1 != "" || pm.EndTime1 != "" {
		t.Fatalf("PM row must not keep a morning window: %+v", pm)
	}
}

func TestParseScheduleRowFrequency(t *testing.T) {
	col := importColumns()

	parsed, err := parseScheduleRow([]string{"TST-S0002", "FREQUENCE", "vendredi", "", "", "", "", "", "90"}, col, 5)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.ScheduleType != models.ScheduleTypeFrequency || parsed.FrequencyDuration != 90 {
		t.Fatalf("frequency row = %+v", parsed)
	}

	if _, err := parseScheduleRow([]string{"TST-S0002", "FREQUENCE", "vendredi", "", "", "", "", "", "0"}, col, 6); err == nil {
		t.Fatal("expected error for non-positive duration")
	}
	if _, err := parseScheduleRow([]string{"TST-S0002", "FREQUENCE", "vendredi", "", "", "", "", "", ""}, col, 7); err == nil {
		t.Fatal("expected error for missing duration")
	}
}

func TestParseScheduleRowErrors(t *testing.T) {
	col := importColumns()
	tests := []struct {
		name string
		row  []string
	}{
		{"missing site", []string{"", "FIXE", "lundi", "", "08:00", "12:00", "", "", ""}},
		{"unknown type", []string{"TST-S0001", "ROTATION", "lundi", "", "08:00", "12:00", "", "", ""}},
		{"bad day", []string{"TST-S0001", "FIXE", "someday", "", "08:00", "12:00", "", "", ""}},
		{"bad clock", []string{"TST-S0001", "FIXE", "lundi", "", "25:00", "12:00", "", "", ""}},
		{"missing first window", []string{"TST-S0001", "FIXE", "lundi", "", "", "", "14:00", "17:00", ""}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseScheduleRow(tc.row, col, 2); err == nil {
				t.Fatalf("expected error for row %v", tc.row)
			}
		})
	}
}

func TestReadCSV(t *testing.T) {
	input := "site,type,jour,debut_1,fin_1\nTST-S0001, FIXE ,lundi,08:00,12:00\n"
	rows, err := readCSV(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d", len(rows))
	}
	col := buildColumnIndex(rows[0])
	if getValue(rows[1], col, "type") != "FIXE" {
		t.Fatalf("cell not trimmed: %q", getValue(rows[1], col, "type"))
	}
}

func TestIsRowEmpty(t *testing.T) {
	if !isRowEmpty([]string{"", "  ", ""}) {
		t.Fatal("blank row not detected")
	}
	if isRowEmpty([]string{"", "x"}) {
		t.Fatal("non-empty row flagged empty")
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename("../etc/passwd"); strings.Contains(got, "..") || strings.Contains(got, "/") {
		t.Fatalf("sanitizeFilename left traversal characters: %q", got)
	}
}
