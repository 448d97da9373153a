package services

import (
	"time"

	"github.com/eldertek/pg-pointage-sub001/models"
	"github.com/eldertek/pg-pointage-sub001/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MinuteSweeper detects missing arrivals in near real time. It runs once
// per minute over every active assignment and raises a MissingArrival
// anomaly as soon as a planned arrival time plus the late margin has
// elapsed with no scan recorded. It never deletes anomalies; cleanup is
// owned by the reconciler.
type MinuteSweeper struct {
	Repo   *Repository
	Clock  Clock
	Alerts *AlertService
}

func NewMinuteSweeper() *MinuteSweeper {
	return &MinuteSweeper{Repo: NewRepository(), Clock: SystemClock(), Alerts: NewAlertService()}
}

// MinuteSweepOptions narrows a sweep to one site or employee.
type MinuteSweepOptions struct {
	SiteID     *uint
	EmployeeID *uint
	DryRun     bool
	Verbose    bool
}

// Run walks the active assignments once. Each assignment is its own
// short transaction so an interruption leaves the store consistent.
// Returns the number of anomalies created.
func (s *MinuteSweeper) Run(db *gorm.DB, opts MinuteSweepOptions) (int, error) {
	now := s.Clock.Now().In(s.Repo.Loc)
	weekday := utils.WeekdayIndex(now)
	nowMinutes := utils.MinutesOfDay(now)

	assignments, err := s.Repo.AssignmentsForSweep(db, now, opts.SiteID, opts.EmployeeID)
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range assignments {
		assignment := &assignments[i]
		schedule := assignment.Schedule

		// Frequency schedules never produce minute-level anomalies:
		// their missing scans only surface in the day sweep.
		if schedule.ScheduleType == models.ScheduleTypeFrequency {
			continue
		}
		detail, ok := detailFor(schedule, weekday)
		if !ok {
			continue
		}

		missing, expected, err := s.missingArrival(db, assignment, &detail, nowMinutes, now)
		if err != nil {
			return created, err
		}
		if !missing {
			continue
		}
		if opts.Verbose {
			logrus.WithFields(logrus.Fields{
				"employee_id": assignment.EmployeeID,
				"site_id":     assignment.SiteID,
				"expected":    expected,
			}).Info("missing arrival detected")
		}
		if opts.DryRun {
			created++
			continue
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			existing, err := s.Repo.FindAnomalyByKey(tx, assignment.EmployeeID, assignment.SiteID, now,
				models.AnomalyTypeMissingArrival, &schedule.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				return nil
			}
			employeeID := assignment.EmployeeID
			anomaly := models.Anomaly{
				EmployeeID:  &employeeID,
				SiteID:      assignment.SiteID,
				Date:        s.Repo.DateKey(now),
				AnomalyType: models.AnomalyTypeMissingArrival,
				Description: missingArrivalRealtime,
				Status:      models.AnomalyStatusPending,
				ScheduleID:  &schedule.ID,
			}
			if err := tx.Create(&anomaly).Error; err != nil {
				return WrapDomainError(ErrTransientDb, err, "missing arrival create failed")
			}
			created++
			return s.Alerts.EnqueueForAnomaly(tx, &assignment.Site, &assignment.Employee, &anomaly)
		})
		if err != nil {
			return created, err
		}
	}
	return created, nil
}

// missingArrival applies the per-day-type decision tree: a full day with
// zero scans checks the morning start, with exactly two scans the
// afternoon start; half days only their single start. Returns the
// expected clock time when an arrival is overdue.
func (s *MinuteSweeper) missingArrival(db *gorm.DB, assignment *models.SiteEmployee, detail *models.ScheduleDetail, nowMinutes int, now time.Time) (bool, string, error) {
	scans, err := s.Repo.ScansFor(db, assignment.EmployeeID, assignment.SiteID, now)
	if err != nil {
		return false, "", err
	}
	mLate := LateMarginFor(assignment.Schedule, &assignment.Site)
	start1, err1 := utils.ClockMinutes(detail.StartTime1)
	start2, err2 := utils.ClockMinutes(detail.StartTime2)

	switch detail.DayType {
	case models.DayTypeFull:
		if len(scans) == 0 && err1 == nil && nowMinutes > start1+mLate {
			return true, utils.FormatClock(start1), nil
		}
		if len(scans) == 2 && err2 == nil && nowMinutes > start2+mLate {
			return true, utils.FormatClock(start2), nil
		}
	case models.DayTypeAM:
		if len(scans) == 0 && err1 == nil && nowMinutes > start1+mLate {
			return true, utils.FormatClock(start1), nil
		}
	case models.DayTypePM:
		if len(scans) == 0 && err2 == nil && nowMinutes > start2+mLate {
			return true, utils.FormatClock(start2), nil
		}
	}
	return false, "", nil
}
