package services

import (
	"strings"
	"time"

	"github.com/eldertek/pg-pointage-sub001/config"
	"github.com/eldertek/pg-pointage-sub001/database"
	"github.com/eldertek/pg-pointage-sub001/models"

	"gorm.io/gorm"
)

// Repository is the persistence layer shared by the matcher, the
// reconciler and the sweepers. All methods take the *gorm.DB to run on so
// callers can pass a transaction handle.
type Repository struct {
	Loc *time.Location
}

func NewRepository() *Repository {
	return &Repository{Loc: config.AppConfig.Location}
}

// DefaultDB returns the process-wide connection.
func (r *Repository) DefaultDB() *gorm.DB {
	return database.DB
}

// DateKey normalizes a timestamp to its local calendar date, stored as a
// UTC midnight so date equality works across drivers.
func (r *Repository) DateKey(t time.Time) time.Time {
	y, m, d := t.In(r.Loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayBounds returns the UTC instants delimiting the local calendar day
// that contains day.
func (r *Repository) DayBounds(day time.Time) (time.Time, time.Time) {
	y, m, d := day.In(r.Loc).Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, r.Loc)
	return start.UTC(), start.AddDate(0, 0, 1).UTC()
}

// SiteByScanID resolves a site from the identifier carried by its NFC tag
// or QR code. Scan payloads may carry either the bare nfc id (S0001) or
// the org-prefixed form (TST-S0001).
func (r *Repository) SiteByScanID(db *gorm.DB, scanID string) (*models.Site, error) {
	candidates := []string{scanID}
	if idx := strings.LastIndex(scanID, "-"); idx >= 0 {
		candidates = append(candidates, scanID[idx+1:])
	}
	var site models.Site
	err := db.Preload("Manager").Where("nfc_id IN ?", candidates).First(&site).Error
	if err == gorm.ErrRecordNotFound {
		return nil, NewDomainError(ErrUnknownSite, "no site with scan id %q", scanID)
	}
	if err != nil {
		return nil, WrapDomainError(ErrTransientDb, err, "site lookup failed")
	}
	return &site, nil
}

// ActiveAssignments fetches the SiteEmployee rows for (employee, site)
// that are active on day, with the schedule and its details preloaded.
// Assignments whose schedule is inactive or out of window are dropped.
// Activation windows are judged on the local calendar date.
func (r *Repository) ActiveAssignments(db *gorm.DB, employeeID, siteID uint, day time.Time) ([]models.SiteEmployee, error) {
	day = day.In(r.Loc)
	var rows []models.SiteEmployee
	err := db.Preload("Schedule.Details").
		Where("employee_id = ? AND site_id = ? AND is_active = ?", employeeID, siteID, true).
		Find(&rows).Error
	if err != nil {
		return nil, WrapDomainError(ErrTransientDb, err, "assignment lookup failed")
	}
	var active []models.SiteEmployee
	for _, row := range rows {
		if row.Schedule == nil || !row.Schedule.ActiveAt(day) {
			continue
		}
		active = append(active, row)
	}
	return active, nil
}

// AssignmentsForSweep fetches every active assignment, optionally
// narrowed to one site or one employee, with employee, site and schedule
// details preloaded. Rows whose site, employee or schedule is inactive on
// day are dropped.
func (r *Repository) AssignmentsForSweep(db *gorm.DB, day time.Time, siteID, employeeID *uint) ([]models.SiteEmployee, error) {
	day = day.In(r.Loc)
	q := db.Preload("Site.Manager").Preload("Employee").Preload("Schedule.Details").
		Where("is_active = ?", true)
	if siteID != nil {
		q = q.Where("site_id = ?", *siteID)
	}
	if employeeID != nil {
		q = q.Where("employee_id = ?", *employeeID)
	}
	var rows []models.SiteEmployee
	if err := q.Find(&rows).Error; err != nil {
		return nil, WrapDomainError(ErrTransientDb, err, "sweep assignment lookup failed")
	}
	var active []models.SiteEmployee
	for _, row := range rows {
		if !row.Site.ActiveAt(day) || !row.Employee.ActiveAt(day) {
			continue
		}
		if row.Schedule == nil || !row.Schedule.ActiveAt(day) {
			continue
		}
		active = append(active, row)
	}
	return active, nil
}

// ScansFor loads the scans of one (employee, site, local date) tuple
// ordered by timestamp.
func (r *Repository) ScansFor(db *gorm.DB, employeeID, siteID uint, day time.Time) ([]models.Timesheet, error) {
	from, to := r.DayBounds(day)
	var scans []models.Timesheet
	err := db.Where("employee_id = ? AND site_id = ? AND timestamp >= ? AND timestamp < ?",
		employeeID, siteID, from, to).
		Order("timestamp ASC").
		Find(&scans).Error
	if err != nil {
		return nil, WrapDomainError(ErrTransientDb, err, "scan lookup failed")
	}
	return scans, nil
}

// LastScanOfDay returns the most recent scan of the tuple on the local
// day containing ts, or nil when the day holds none.
func (r *Repository) LastScanOfDay(db *gorm.DB, employeeID, siteID uint, ts time.Time) (*models.Timesheet, error) {
	from, to := r.DayBounds(ts)
	var scan models.Timesheet
	err := db.Where("employee_id = ? AND site_id = ? AND timestamp >= ? AND timestamp < ?",
		employeeID, siteID, from, to).
		Order("timestamp DESC").
		First(&scan).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, WrapDomainError(ErrTransientDb, err, "last scan lookup failed")
	}
	return &scan, nil
}

// HasRecentScan reports whether the tuple already holds a scan of the
// same entry type within window before ts. Used as the duplicate guard
// when Redis is unavailable.
func (r *Repository) HasRecentScan(db *gorm.DB, employeeID, siteID uint, entryType string, ts time.Time, window time.Duration) (bool, error) {
	var count int64
	err := db.Model(&models.Timesheet{}).
		Where("employee_id = ? AND site_id = ? AND entry_type = ? AND timestamp > ? AND timestamp <= ?",
			employeeID, siteID, entryType, ts.Add(-window), ts).
		Count(&count).Error
	if err != nil {
		return false, WrapDomainError(ErrTransientDb, err, "duplicate scan check failed")
	}
	return count > 0, nil
}

// NonIgnoredAnomalies loads the PENDING and RESOLVED anomalies of a
// tuple. Ignored rows are invisible to the reconciler.
func (r *Repository) NonIgnoredAnomalies(db *gorm.DB, employeeID, siteID uint, day time.Time) ([]models.Anomaly, error) {
	var rows []models.Anomaly
	err := db.Where("employee_id = ? AND site_id = ? AND date = ? AND status <> ?",
		employeeID, siteID, r.DateKey(day), models.AnomalyStatusIgnored).
		Find(&rows).Error
	if err != nil {
		return nil, WrapDomainError(ErrTransientDb, err, "anomaly lookup failed")
	}
	return rows, nil
}

// FindAnomalyByKey looks up the single non-ignored anomaly matching the
// uniqueness key (employee, site, date, kind, schedule). Returns nil when
// none exists.
func (r *Repository) FindAnomalyByKey(db *gorm.DB, employeeID, siteID uint, day time.Time, kind string, scheduleID *uint) (*models.Anomaly, error) {
	q := db.Where("employee_id = ? AND site_id = ? AND date = ? AND anomaly_type = ? AND status <> ?",
		employeeID, siteID, r.DateKey(day), kind, models.AnomalyStatusIgnored)
	if scheduleID != nil {
		q = q.Where("schedule_id = ?", *scheduleID)
	} else {
		q = q.Where("schedule_id IS NULL")
	}
	var row models.Anomaly
	err := q.First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, WrapDomainError(ErrTransientDb, err, "anomaly key lookup failed")
	}
	return &row, nil
}

// LockAssignment takes a row lock on one SiteEmployee row so that
// concurrent scans for the same tuple serialize. No-op on drivers without
// FOR UPDATE support.
func (r *Repository) LockAssignment(db *gorm.DB, employeeID, siteID uint) {
	if db.Dialector.Name() != "mysql" {
		return
	}
	var row models.SiteEmployee
	db.Raw("SELECT id FROM site_employees WHERE employee_id = ? AND site_id = ? LIMIT 1 FOR UPDATE",
		employeeID, siteID).Scan(&row)
}
