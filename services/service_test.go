package services

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/eldertek/pg-pointage-sub001/config"
	"github.com/eldertek/pg-pointage-sub001/database"
	"github.com/eldertek/pg-pointage-sub001/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testDBCounter int64

// setupTestDB opens an isolated in-memory database with the full schema
// and installs a test configuration.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Fatal(err)
	}
	config.AppConfig = &config.Config{
		Timezone:          "Europe/Paris",
		Location:          loc,
		DuplicateScanSecs: 60,
	}

	n := atomic.AddInt64(&testDBCounter, 1)
	dsn := fmt.Sprintf("file:svctest%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// paris returns a UTC instant for the given Europe/Paris wall time.
func paris(t *testing.T, y int, m time.Month, d, hour, minute int) time.Time {
	t.Helper()
	return time.Date(y, m, d, hour, minute, 0, 0, config.AppConfig.Location).UTC()
}

type fixture struct {
	Org      models.Organization
	Site     models.Site
	Employee models.User
	Schedule models.Schedule
}

// createFixture seeds one organization, site, employee and an active
// fixed schedule (Mon-Fri 08:00-12:00 / 14:00-17:00) with the employee
// assigned to it.
func createFixture(t *testing.T, db *gorm.DB) fixture {
	t.Helper()

	org := models.Organization{OrgID: "TST", Name: "Test Org", IsActive: true}
	if err := db.Create(&org).Error; err != nil {
		t.Fatal(err)
	}
	site := models.Site{
		Name:                 "Site A",
		OrganizationID:       org.ID,
		NfcID:                "TST-S0001",
		LateMargin:           15,
		EarlyDepartureMargin: 10,
		FrequencyTolerance:   10,
		AmbiguousMargin:      20,
		IsActive:             true,
	}
	if err := db.Create(&site).Error; err != nil {
		t.Fatal(err)
	}
	employee := models.User{
		Username:   "jmartin",
		Password:   "x",
		Email:      "jmartin@test.fr",
		Role:       models.RoleEmployee,
		EmployeeID: "U00001",
		IsActive:   true,
	}
	if err := db.Create(&employee).Error; err != nil {
		t.Fatal(err)
	}
	schedule := createFixedSchedule(t, db, site.ID)
	assign(t, db, site.ID, employee.ID, schedule.ID)

	return fixture{Org: org, Site: site, Employee: employee, Schedule: schedule}
}

func createFixedSchedule(t *testing.T, db *gorm.DB, siteID uint) models.Schedule {
	t.Helper()
	schedule := models.Schedule{SiteID: siteID, ScheduleType: models.ScheduleTypeFixed, IsActive: true}
	if err := db.Create(&schedule).Error; err != nil {
		t.Fatal(err)
	}
	for day := 0; day < 5; day++ {
		detail := models.ScheduleDetail{
			ScheduleID: schedule.ID,
			DayOfWeek:  day,
			DayType:    models.DayTypeFull,
			StartTime1: "08:00",
			EndTime1:   "12:00",
			StartTime2: "14:00",
			EndTime2:   "17:00",
		}
		if err := db.Create(&detail).Error; err != nil {
			t.Fatal(err)
		}
	}
	return schedule
}

func createFrequencySchedule(t *testing.T, db *gorm.DB, siteID uint, duration uint) models.Schedule {
	t.Helper()
	schedule := models.Schedule{SiteID: siteID, ScheduleType: models.ScheduleTypeFrequency, IsActive: true}
	if err := db.Create(&schedule).Error; err != nil {
		t.Fatal(err)
	}
	for day := 0; day < 5; day++ {
		detail := models.ScheduleDetail{
			ScheduleID:        schedule.ID,
			DayOfWeek:         day,
			FrequencyDuration: duration,
		}
		if err := db.Create(&detail).Error; err != nil {
			t.Fatal(err)
		}
	}
	return schedule
}

func assign(t *testing.T, db *gorm.DB, siteID, employeeID, scheduleID uint) {
	t.Helper()
	row := models.SiteEmployee{SiteID: siteID, EmployeeID: employeeID, ScheduleID: &scheduleID, IsActive: true}
	if err := db.Create(&row).Error; err != nil {
		t.Fatal(err)
	}
}

func createScan(t *testing.T, db *gorm.DB, employeeID, siteID uint, ts time.Time, entryType string) models.Timesheet {
	t.Helper()
	scan := models.Timesheet{
		EmployeeID: employeeID,
		SiteID:     siteID,
		Timestamp:  ts,
		EntryType:  entryType,
		ScanType:   models.ScanTypeQR,
	}
	if err := db.Create(&scan).Error; err != nil {
		t.Fatal(err)
	}
	return scan
}

func anomaliesFor(t *testing.T, db *gorm.DB, employeeID uint) []models.Anomaly {
	t.Helper()
	var rows []models.Anomaly
	if err := db.Where("employee_id = ?", employeeID).Order("id ASC").Find(&rows).Error; err != nil {
		t.Fatal(err)
	}
	return rows
}
