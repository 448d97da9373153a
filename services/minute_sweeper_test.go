package services

import (
	"testing"
	"time"

	"github.com/eldertek/pg-pointage-sub001/models"
)

func testMinuteSweeper(at time.Time) *MinuteSweeper {
	s := NewMinuteSweeper()
	s.Clock = FixedClock(at)
	return s
}

func TestMinuteSweepDetectsMissingArrival(t *testing.T) {
	db := setupTestDB(t)
	fx := createFixture(t, db)

	// Monday 08:20, margin 15: the 08:00 arrival is overdue
	sweeper := testMinuteSweeper(paris(t, 2025, 3, 10, 8, 20))
	created, err := sweeper.Run(db, MinuteSweepOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}

	rows := anomaliesFor(t, db, fx.Employee.ID)
	if len(rows) != 1 || rows[0].AnomalyType != models.AnomalyTypeMissingArrival {
		t.Fatalf("unexpected anomalies: %+v", rows)
	}
	if rows[0].Description != "Pointage d'arrivée manquant détecté en temps réel" {
		t.Fatalf("description = %q", rows[0].Description)
	}
	if rows[0].ScheduleID == nil || *rows[0].ScheduleID != fx.Schedule.ID {
		t.Fatal("anomaly not linked to its schedule")
	}

	// Running again a minute later must not duplicate
	sweeper = testMinuteSweeper(paris(t, 2025, 3, 10, 8, 21))
	created, err = sweeper.Run(db, MinuteSweepOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 {
		t.Fatalf("second run created %d anomalies", created)
	}
}

func TestMinuteSweepWithinMargin(t *testing.T) {
	db := setupTestDB(t)
	createFixture(t, db)

	// 08:15 is still inside the late margin
	sweeper := testMinuteSweeper(paris(t, 2025, 3, 10, 8, 15))
	created, err := sweeper.Run(db, MinuteSweepOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 {
		t.Fatalf("created = %d inside the margin", created)
	}
}

func TestMinuteSweepSecondArrivalOfFullDay(t *testing.T) {
	db := setupTestDB(t)
	fx := createFixture(t, db)

	// Morning fully scanned, afternoon arrival overdue at 14:20
	createScan(t, db, fx.Employee.ID, fx.Site.ID, paris(t, 2025, 3, 10, 8, 0), models.EntryTypeArrival)
	createScan(t, db, fx.Employee.ID, fx.Site.ID, paris(t, 2025, 3, 10, 12, 0), models.EntryTypeDeparture)

	sweeper := testMinuteSweeper(paris(t, 2025, 3, 10, 14, 20))
	created, err := sweeper.Run(db, MinuteSweepOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}

	// With the morning only partially scanned, nothing fires
	db2 := setupTestDB(t)
	fx2 := createFixture(t, db2)
	createScan(t, db2, fx2.Employee.ID, fx2.Site.ID, paris(t, 2025, 3, 10, 8, 0), models.EntryTypeArrival)
	sweeper = testMinuteSweeper(paris(t, 2025, 3, 10, 14, 20))
	created, err = sweeper.Run(db2, MinuteSweepOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 {
		t.Fatalf("created = %d with one scan", created)
	}
}

func TestMinuteSweepSkipsFrequencySchedules(t *testing.T) {
	db := setupTestDB(t)
	fx := createFixture(t, db)

	site2 := models.Site{Name: "Site B", OrganizationID: fx.Org.ID, NfcID: "TST-S0002", IsActive: true}
	if err := db.Create(&site2).Error; err != nil {
		t.Fatal(err)
	}
	freq := createFrequencySchedule(t, db, site2.ID, 90)
	assign(t, db, site2.ID, fx.Employee.ID, freq.ID)

	sweeper := testMinuteSweeper(paris(t, 2025, 3, 10, 8, 20))
	siteID := site2.ID
	created, err := sweeper.Run(db, MinuteSweepOptions{SiteID: &siteID})
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 {
		t.Fatalf("frequency schedule raised %d minute anomalies", created)
	}
}

func TestMinuteSweepDryRun(t *testing.T) {
	db := setupTestDB(t)
	fx := createFixture(t, db)

	sweeper := testMinuteSweeper(paris(t, 2025, 3, 10, 8, 20))
	created, err := sweeper.Run(db, MinuteSweepOptions{DryRun: true})
	if err != nil {
		t.Fatal(err)
	}
	if created != 1 {
		t.Fatalf("dry run counted %d", created)
	}
	if rows := anomaliesFor(t, db, fx.Employee.ID); len(rows) != 0 {
		t.Fatalf("dry run wrote %d anomalies", len(rows))
	}
}

func TestMinuteSweepScopeFilters(t *testing.T) {
	db := setupTestDB(t)
	fx := createFixture(t, db)

	other := uint(99999)
	sweeper := testMinuteSweeper(paris(t, 2025, 3, 10, 8, 20))
	created, err := sweeper.Run(db, MinuteSweepOptions{EmployeeID: &other})
	if err != nil {
		t.Fatal(err)
	}
	if created != 0 {
		t.Fatalf("foreign employee scope created %d", created)
	}

	employeeID := fx.Employee.ID
	created, err = sweeper.Run(db, MinuteSweepOptions{EmployeeID: &employeeID})
	if err != nil {
		t.Fatal(err)
	}
	if created != 1 {
		t.Fatalf("scoped run created %d, want 1", created)
	}
}
