package services

import (
	"testing"
	"time"

	"github.com/eldertek/pg-pointage-sub001/models"
)

func fullDayDetail() models.ScheduleDetail {
	return models.ScheduleDetail{
		DayType:    models.DayTypeFull,
		StartTime1: "08:00",
		EndTime1:   "12:00",
		StartTime2: "14:00",
		EndTime2:   "17:00",
	}
}

func minutes(clock string) int {
	h := int(clock[0]-'0')*10 + int(clock[1]-'0')
	m := int(clock[3]-'0')*10 + int(clock[4]-'0')
	return h*60 + m
}

func TestClassifyFixedArrival(t *testing.T) {
	detail := fullDayDetail()
	tests := []struct {
		name        string
		clock       string
		wantMatched bool
		wantSlot    int
		wantLate    bool
		wantMinutes uint
	}{
		{
			name:        "on time",
			clock:       "08:00",
			wantMatched: true,
			wantSlot:    1,
		},
		{
			name:        "exactly at margin is tolerated",
			clock:       "08:15",
			wantMatched: true,
			wantSlot:    1,
		},
		{
			name:        "one minute past margin",
			clock:       "08:16",
			wantMatched: true,
			wantSlot:    1,
			wantLate:    true,
			wantMinutes: 16,
		},
		{
			name:        "very late counts full delta",
			clock:       "08:45",
			wantMatched: true,
			wantSlot:    1,
			wantLate:    true,
			wantMinutes: 45,
		},
		{
			name:        "early within slack",
			clock:       "06:30",
			wantMatched: true,
			wantSlot:    1,
		},
		{
			name:        "before the slack window",
			clock:       "05:59",
			wantMatched: false,
		},
		{
			name:        "late morning targets the afternoon start",
			clock:       "11:40",
			wantMatched: true,
			wantSlot:    2,
		},
		{
			name:        "afternoon arrival on time",
			clock:       "14:10",
			wantMatched: true,
			wantSlot:    2,
		},
		{
			name:        "afternoon arrival past margin",
			clock:       "14:16",
			wantMatched: true,
			wantSlot:    2,
			wantLate:    true,
			wantMinutes: 16,
		},
		{
			name:        "between windows without slack",
			clock:       "13:00",
			wantMatched: true, // 13:00 is within the afternoon arrival slack
			wantSlot:    2,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			result, slot, matched := classifyFixed(&detail, models.EntryTypeArrival, minutes(tc.clock), 15, 10)
			if matched != tc.wantMatched {
				t.Fatalf("matched = %v, want %v", matched, tc.wantMatched)
			}
			if !matched {
				return
			}
			if slot != tc.wantSlot {
				t.Fatalf("slot = %d, want %d", slot, tc.wantSlot)
			}
			if result.IsLate != tc.wantLate {
				t.Fatalf("IsLate = %v, want %v", result.IsLate, tc.wantLate)
			}
			if result.LateMinutes != tc.wantMinutes {
				t.Fatalf("LateMinutes = %d, want %d", result.LateMinutes, tc.wantMinutes)
			}
		})
	}
}

func TestClassifyFixedDeparture(t *testing.T) {
	detail := fullDayDetail()
	tests := []struct {
		name        string
		clock       string
		wantMatched bool
		wantSlot    int
		wantEarly   bool
		wantMinutes uint
	}{
		{
			name:        "end of day on time",
			clock:       "17:00",
			wantMatched: true,
			wantSlot:    2,
		},
		{
			name:        "exactly at margin is tolerated",
			clock:       "16:50",
			wantMatched: true,
			wantSlot:    2,
		},
		{
			name:        "one minute past margin",
			clock:       "16:49",
			wantMatched: true,
			wantSlot:    2,
			wantEarly:   true,
			wantMinutes: 11,
		},
		{
			name:        "midday departure judged against morning end",
			clock:       "12:05",
			wantMatched: true,
			wantSlot:    1,
		},
		{
			name:        "early morning departure",
			clock:       "11:40",
			wantMatched: true,
			wantSlot:    1,
			wantEarly:   true,
			wantMinutes: 20,
		},
		{
			name:        "past the morning grace, judged against the day end",
			clock:       "12:31",
			wantMatched: true,
			wantSlot:    2,
			wantEarly:   true,
			wantMinutes: uint(minutes("17:00") - minutes("12:31")),
		},
		{
			name:        "before the first start",
			clock:       "07:59",
			wantMatched: false,
		},
		{
			name:        "within the trailing slack",
			clock:       "19:00",
			wantMatched: true,
			wantSlot:    2,
		},
		{
			name:        "past the trailing slack",
			clock:       "19:01",
			wantMatched: false,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			result, slot, matched := classifyFixed(&detail, models.EntryTypeDeparture, minutes(tc.clock), 15, 10)
			if matched != tc.wantMatched {
				t.Fatalf("matched = %v, want %v", matched, tc.wantMatched)
			}
			if !matched {
				return
			}
			if slot != tc.wantSlot {
				t.Fatalf("slot = %d, want %d", slot, tc.wantSlot)
			}
			if result.IsEarlyDeparture != tc.wantEarly {
				t.Fatalf("IsEarlyDeparture = %v, want %v", result.IsEarlyDeparture, tc.wantEarly)
			}
			if result.EarlyDepartureMinutes != tc.wantMinutes {
				t.Fatalf("EarlyDepartureMinutes = %d, want %d", result.EarlyDepartureMinutes, tc.wantMinutes)
			}
		})
	}
}

func TestClassifyFixedHalfDays(t *testing.T) {
	am := models.ScheduleDetail{
		DayType:    models.DayTypeAM,
		StartTime1: "08:00",
		EndTime1:   "12:00",
	}
	pm := models.ScheduleDetail{
		DayType:    models.DayTypePM,
		StartTime2: "14:00",
		EndTime2:   "17:00",
	}

	// AM: a 14:10 arrival has no window to land in
	if _, _, matched := classifyFixed(&am, models.EntryTypeArrival, minutes("14:10"), 15, 10); matched {
		t.Fatal("expected afternoon arrival unmatched on an AM day")
	}
	// AM: departure judged against the morning end
	result, _, matched := classifyFixed(&am, models.EntryTypeDeparture, minutes("11:30"), 15, 10)
	if !matched || !result.IsEarlyDeparture || result.EarlyDepartureMinutes != 30 {
		t.Fatalf("AM early departure = %+v, matched %v", result, matched)
	}
	// PM: arrival targets the afternoon start
	result, _, matched = classifyFixed(&pm, models.EntryTypeArrival, minutes("14:20"), 15, 10)
	if !matched || !result.IsLate || result.LateMinutes != 20 {
		t.Fatalf("PM late arrival = %+v, matched %v", result, matched)
	}
	// PM: no morning window at all
	if _, _, matched := classifyFixed(&pm, models.EntryTypeArrival, minutes("08:00"), 15, 10); matched {
		t.Fatal("expected morning arrival unmatched on a PM day")
	}
}

func TestMarginResolution(t *testing.T) {
	site := &models.Site{LateMargin: 12, EarlyDepartureMargin: 7, FrequencyTolerance: 20}
	override := uint(5)
	schedule := &models.Schedule{
		LateArrivalMargin:            &override,
		EarlyDepartureMargin:         &override,
		FrequencyTolerancePercentage: &override,
	}

	if got := LateMarginFor(schedule, site); got != 5 {
		t.Fatalf("schedule override ignored: %d", got)
	}
	if got := LateMarginFor(nil, site); got != 12 {
		t.Fatalf("site margin ignored: %d", got)
	}
	if got := LateMarginFor(nil, &models.Site{}); got != DefaultLateMargin {
		t.Fatalf("default late margin = %d", got)
	}
	if got := EarlyMarginFor(nil, site); got != 7 {
		t.Fatalf("site early margin ignored: %d", got)
	}
	if got := FrequencyToleranceFor(schedule, site); got != 5 {
		t.Fatalf("tolerance override ignored: %d", got)
	}
	if got := FrequencyToleranceFor(nil, &models.Site{}); got != DefaultFrequencyTolerance {
		t.Fatalf("default tolerance = %d", got)
	}
}

func TestShapeOf(t *testing.T) {
	fixed := &models.Schedule{ScheduleType: models.ScheduleTypeFixed}
	full := fullDayDetail()
	shape := ShapeOf(fixed, &full)
	if shape.ExpectedScans != 4 || !shape.Has1 || !shape.Has2 {
		t.Fatalf("full day shape = %+v", shape)
	}

	am := models.ScheduleDetail{DayType: models.DayTypeAM, StartTime1: "08:00", EndTime1: "12:00"}
	shape = ShapeOf(fixed, &am)
	if shape.ExpectedScans != 2 || !shape.Has1 || shape.Has2 {
		t.Fatalf("AM shape = %+v", shape)
	}

	freq := &models.Schedule{ScheduleType: models.ScheduleTypeFrequency}
	detail := models.ScheduleDetail{FrequencyDuration: 90}
	shape = ShapeOf(freq, &detail)
	if shape.ExpectedScans != 2 || shape.FrequencyDuration != 90 {
		t.Fatalf("frequency shape = %+v", shape)
	}
}

func TestMatcherClassifyAgainstDatabase(t *testing.T) {
	db := setupTestDB(t)
	fx := createFixture(t, db)
	matcher := NewMatcher()

	// 2025-03-10 is a Monday
	scan := createScan(t, db, fx.Employee.ID, fx.Site.ID, paris(t, 2025, 3, 10, 8, 30), models.EntryTypeArrival)
	classification, err := matcher.Classify(db, &fx.Site, &scan)
	if err != nil {
		t.Fatal(err)
	}
	if classification.Schedule == nil || classification.Schedule.ID != fx.Schedule.ID {
		t.Fatalf("expected schedule %d, got %+v", fx.Schedule.ID, classification.Schedule)
	}
	if !classification.IsLate || classification.LateMinutes != 30 {
		t.Fatalf("classification = %+v", classification)
	}
	if classification.IsAmbiguous {
		t.Fatal("single schedule must not be ambiguous")
	}

	if err := matcher.Apply(db, &scan, classification); err != nil {
		t.Fatal(err)
	}
	var stored models.Timesheet
	if err := db.First(&stored, scan.ID).Error; err != nil {
		t.Fatal(err)
	}
	if !stored.IsLate || stored.LateMinutes != 30 || stored.ScheduleID == nil {
		t.Fatalf("flags not persisted: %+v", stored)
	}
}

func TestMatcherAmbiguousTieBreak(t *testing.T) {
	db := setupTestDB(t)
	fx := createFixture(t, db)

	// Second concurrent assignment with an overlapping window
	second := createFixedSchedule(t, db, fx.Site.ID)
	assign(t, db, fx.Site.ID, fx.Employee.ID, second.ID)

	matcher := NewMatcher()
	scan := createScan(t, db, fx.Employee.ID, fx.Site.ID, paris(t, 2025, 3, 10, 8, 0), models.EntryTypeArrival)
	classification, err := matcher.Classify(db, &fx.Site, &scan)
	if err != nil {
		t.Fatal(err)
	}
	if !classification.IsAmbiguous {
		t.Fatal("expected ambiguous classification with two matching schedules")
	}
	if classification.Schedule.ID != fx.Schedule.ID {
		t.Fatalf("tie-break must pick the lowest schedule id, got %d", classification.Schedule.ID)
	}
}

func TestMatcherDistinctSlotsNotAmbiguous(t *testing.T) {
	db := setupTestDB(t)
	fx := createFixture(t, db)

	employee := models.User{
		Username:   "sbernard",
		Password:   "x",
		Email:      "sbernard@test.fr",
		Role:       models.RoleEmployee,
		EmployeeID: "U00002",
		IsActive:   true,
	}
	if err := db.Create(&employee).Error; err != nil {
		t.Fatal(err)
	}

	// Morning-only and afternoon-only schedules on the same site
	morning := models.Schedule{SiteID: fx.Site.ID, ScheduleType: models.ScheduleTypeFixed, IsActive: true}
	if err := db.Create(&morning).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&models.ScheduleDetail{
		ScheduleID: morning.ID, DayOfWeek: 0, DayType: models.DayTypeFull,
		StartTime1: "08:00", EndTime1: "12:00",
	}).Error; err != nil {
		t.Fatal(err)
	}
	afternoon := models.Schedule{SiteID: fx.Site.ID, ScheduleType: models.ScheduleTypeFixed, IsActive: true}
	if err := db.Create(&afternoon).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&models.ScheduleDetail{
		ScheduleID: afternoon.ID, DayOfWeek: 0, DayType: models.DayTypeFull,
		StartTime2: "13:00", EndTime2: "17:00",
	}).Error; err != nil {
		t.Fatal(err)
	}
	assign(t, db, fx.Site.ID, employee.ID, morning.ID)
	assign(t, db, fx.Site.ID, employee.ID, afternoon.ID)

	// 11:30 falls in the morning window of one schedule and the arrival
	// slack of the other's afternoon window
	matcher := NewMatcher()
	scan := createScan(t, db, employee.ID, fx.Site.ID, paris(t, 2025, 3, 10, 11, 30), models.EntryTypeArrival)
	classification, err := matcher.Classify(db, &fx.Site, &scan)
	if err != nil {
		t.Fatal(err)
	}
	if classification.IsAmbiguous {
		t.Fatal("schedules matched through different slots must not be ambiguous")
	}
	if classification.Schedule == nil || classification.Schedule.ID != morning.ID {
		t.Fatalf("expected lowest schedule id %d, got %+v", morning.ID, classification.Schedule)
	}
}

func TestActiveAssignmentsUsesLocalDate(t *testing.T) {
	db := setupTestDB(t)
	fx := createFixture(t, db)
	repo := NewRepository()

	start := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if err := db.Model(&models.Schedule{}).Where("id = ?", fx.Schedule.ID).
		Update("activation_start", start).Error; err != nil {
		t.Fatal(err)
	}

	// 00:30 local on the activation date is still the previous day in UTC
	at := paris(t, 2025, 3, 10, 0, 30)
	rows, err := repo.ActiveAssignments(db, fx.Employee.ID, fx.Site.ID, at)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("assignment inactive on its activation date, got %d rows", len(rows))
	}

	swept, err := repo.AssignmentsForSweep(db, at, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(swept) != 1 {
		t.Fatalf("sweep missed the assignment on its activation date, got %d rows", len(swept))
	}
}

func TestMatcherOutOfSchedule(t *testing.T) {
	db := setupTestDB(t)
	fx := createFixture(t, db)
	matcher := NewMatcher()

	// Sunday has no schedule detail
	scan := createScan(t, db, fx.Employee.ID, fx.Site.ID, paris(t, 2025, 3, 9, 10, 0), models.EntryTypeArrival)
	classification, err := matcher.Classify(db, &fx.Site, &scan)
	if err != nil {
		t.Fatal(err)
	}
	if !classification.IsOutOfSchedule {
		t.Fatal("expected out-of-schedule on a day without details")
	}
	if classification.Schedule != nil {
		t.Fatal("out-of-schedule scans keep no schedule link")
	}
}

func TestMatcherFrequencyNeverLate(t *testing.T) {
	db := setupTestDB(t)
	fx := createFixture(t, db)

	site2 := models.Site{
		Name:           "Site B",
		OrganizationID: fx.Org.ID,
		NfcID:          "TST-S0002",
		IsActive:       true,
	}
	if err := db.Create(&site2).Error; err != nil {
		t.Fatal(err)
	}
	freq := createFrequencySchedule(t, db, site2.ID, 90)
	assign(t, db, site2.ID, fx.Employee.ID, freq.ID)

	matcher := NewMatcher()
	scan := createScan(t, db, fx.Employee.ID, site2.ID, paris(t, 2025, 3, 10, 22, 45), models.EntryTypeArrival)
	classification, err := matcher.Classify(db, &site2, &scan)
	if err != nil {
		t.Fatal(err)
	}
	if classification.IsLate || classification.IsOutOfSchedule {
		t.Fatalf("frequency arrival misclassified: %+v", classification)
	}
	if classification.Schedule == nil || classification.Schedule.ID != freq.ID {
		t.Fatal("frequency schedule not linked")
	}
}
