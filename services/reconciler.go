package services

import (
	"strconv"
	"time"

	"github.com/eldertek/pg-pointage-sub001/models"
	"github.com/eldertek/pg-pointage-sub001/utils"

	"gorm.io/gorm"
)

// ReconcileCounts summarizes one reconciliation pass.
type ReconcileCounts struct {
	Created int `json:"anomalies_created"`
	Updated int `json:"anomalies_updated"`
	Deleted int `json:"anomalies_deleted"`
}

func (c *ReconcileCounts) Add(other ReconcileCounts) {
	c.Created += other.Created
	c.Updated += other.Updated
	c.Deleted += other.Deleted
}

// Reconciler makes the anomaly set of an (employee, site, date) tuple a
// pure function of its scans and schedules. Running it twice in a row
// converges: no duplicates are created and anomalies whose condition no
// longer holds are deleted. Ignored anomalies are never touched and
// Resolved ones are preserved.
type Reconciler struct {
	Repo   *Repository
	Clock  Clock
	Alerts *AlertService
}

func NewReconciler() *Reconciler {
	return &Reconciler{Repo: NewRepository(), Clock: SystemClock(), Alerts: NewAlertService()}
}

// anomalyDraft is one entry of the freshly computed anomaly set.
type anomalyDraft struct {
	kind        string
	scheduleID  *uint
	minutes     uint
	description string
	timesheetID *uint
	related     []models.Timesheet
}

// ReconcileDay runs one reconciliation pass for the tuple. The caller
// owns the transaction; all reads and writes go through db.
func (r *Reconciler) ReconcileDay(db *gorm.DB, site *models.Site, employeeID uint, day time.Time) (ReconcileCounts, error) {
	var counts ReconcileCounts

	scans, err := r.Repo.ScansFor(db, employeeID, site.ID, day)
	if err != nil {
		return counts, err
	}
	assignments, err := r.Repo.ActiveAssignments(db, employeeID, site.ID, day)
	if err != nil {
		return counts, err
	}

	weekday := utils.WeekdayIndex(day.In(r.Repo.Loc))
	drafts, order := r.computeDrafts(site, scans, assignments, weekday, day)

	var employee models.User
	if err := db.First(&employee, employeeID).Error; err != nil && err != gorm.ErrRecordNotFound {
		return counts, WrapDomainError(ErrTransientDb, err, "employee lookup failed")
	}

	// Upsert the computed set against the uniqueness key
	for _, key := range order {
		d := drafts[key]
		existing, err := r.Repo.FindAnomalyByKey(db, employeeID, site.ID, day, d.kind, d.scheduleID)
		if err != nil {
			return counts, err
		}
		if existing == nil {
			if err := r.createAnomaly(db, site, &employee, employeeID, day, d); err != nil {
				return counts, err
			}
			counts.Created++
			continue
		}
		if existing.Status == models.AnomalyStatusResolved {
			continue
		}
		if updated, err := r.updateAnomaly(db, existing, d); err != nil {
			return counts, err
		} else if updated {
			counts.Updated++
		}
	}

	// Cleanup: delete pending anomalies the fresh set no longer contains
	existing, err := r.Repo.NonIgnoredAnomalies(db, employeeID, site.ID, day)
	if err != nil {
		return counts, err
	}
	for i := range existing {
		row := &existing[i]
		if row.Status != models.AnomalyStatusPending {
			continue
		}
		if _, ok := drafts[keyOf(row.AnomalyType, row.ScheduleID)]; ok {
			continue
		}
		if err := db.Delete(&models.Anomaly{}, row.ID).Error; err != nil {
			return counts, WrapDomainError(ErrTransientDb, err, "anomaly cleanup failed")
		}
		counts.Deleted++
	}

	return counts, nil
}

// computeDrafts derives the desired anomaly set of the tuple from the
// classified scans and the day's schedule shapes.
func (r *Reconciler) computeDrafts(site *models.Site, scans []models.Timesheet, assignments []models.SiteEmployee, weekday int, day time.Time) (map[string]*anomalyDraft, []string) {
	drafts := make(map[string]*anomalyDraft)
	var order []string
	add := func(d anomalyDraft) {
		key := keyOf(d.kind, d.scheduleID)
		if _, ok := drafts[key]; ok {
			return
		}
		drafts[key] = &d
		order = append(order, key)
	}

	scheduleByID := make(map[uint]*models.Schedule)
	for i := range assignments {
		if assignments[i].Schedule != nil {
			scheduleByID[assignments[i].Schedule.ID] = assignments[i].Schedule
		}
	}
	scheduleOf := func(s *models.Timesheet) *models.Schedule {
		if s.ScheduleID == nil {
			return nil
		}
		return scheduleByID[*s.ScheduleID]
	}

	var nArr, nDep int
	var outOfSchedule []models.Timesheet
	var firstArrival, lastDeparture *models.Timesheet
	for i := range scans {
		s := &scans[i]
		switch s.EntryType {
		case models.EntryTypeArrival:
			nArr++
			if firstArrival == nil {
				firstArrival = s
			}
		case models.EntryTypeDeparture:
			nDep++
			lastDeparture = s
		}
		if s.IsOutOfSchedule {
			outOfSchedule = append(outOfSchedule, *s)
		}

		schedule := scheduleOf(s)
		if s.EntryType == models.EntryTypeArrival && s.IsLate {
			mLate := LateMarginFor(schedule, site)
			if int(s.LateMinutes) > mLate {
				dayType := dayTypeOf(schedule, weekday)
				id := s.ID
				add(anomalyDraft{
					kind:        models.AnomalyTypeLate,
					scheduleID:  s.ScheduleID,
					minutes:     s.LateMinutes,
					description: lateDescription(s.LateMinutes, mLate, dayType),
					timesheetID: &id,
					related:     []models.Timesheet{*s},
				})
			}
		}
		if s.EntryType == models.EntryTypeDeparture && s.IsEarlyDeparture {
			if schedule == nil || schedule.ScheduleType != models.ScheduleTypeFrequency {
				id := s.ID
				add(anomalyDraft{
					kind:        models.AnomalyTypeEarlyDeparture,
					scheduleID:  s.ScheduleID,
					minutes:     s.EarlyDepartureMinutes,
					description: earlyDepartureDescription(s.EarlyDepartureMinutes),
					timesheetID: &id,
					related:     []models.Timesheet{*s},
				})
			}
		}
	}

	// Per-schedule shape checks: missing scans, insufficient duration
	for i := range assignments {
		schedule := assignments[i].Schedule
		detail, ok := detailFor(schedule, weekday)
		if !ok {
			continue
		}
		shape := ShapeOf(schedule, &detail)
		schedID := schedule.ID

		if shape.ScheduleType == models.ScheduleTypeFrequency {
			if shape.FrequencyDuration <= 0 {
				continue
			}
			if len(scans) == 0 {
				if r.dayOver(day) {
					add(anomalyDraft{
						kind:        models.AnomalyTypeMissingArrival,
						scheduleID:  &schedID,
						description: missingFrequencyDescription(shape.FrequencyDuration),
					})
				}
				continue
			}
			if firstArrival != nil && lastDeparture != nil && lastDeparture.Timestamp.After(firstArrival.Timestamp) {
				duration := lastDeparture.Timestamp.Sub(firstArrival.Timestamp).Minutes()
				tolerance := FrequencyToleranceFor(schedule, site)
				required := float64(shape.FrequencyDuration) * (1 - float64(tolerance)/100)
				if duration < required {
					id := lastDeparture.ID
					add(anomalyDraft{
						kind:        models.AnomalyTypeEarlyDeparture,
						scheduleID:  &schedID,
						minutes:     uint(required - duration),
						description: insufficientHoursDescription(duration, required),
						timesheetID: &id,
						related:     []models.Timesheet{*firstArrival, *lastDeparture},
					})
				}
			}
			continue
		}

		mLate := LateMarginFor(schedule, site)
		if nArr == 0 {
			expected := ""
			if shape.Has1 && r.elapsed(day, shape.Start1+mLate) {
				expected = utils.FormatClock(shape.Start1)
			} else if shape.Has2 && r.elapsed(day, shape.Start2+mLate) {
				expected = utils.FormatClock(shape.Start2)
			}
			if expected != "" {
				add(anomalyDraft{
					kind:        models.AnomalyTypeMissingArrival,
					scheduleID:  &schedID,
					description: withExpectedTime(missingArrivalPlanned, expected),
				})
			}
		}
		if nDep < nArr {
			end, has := shape.End1, shape.Has1
			if shape.Has2 && (nArr >= 2 || !shape.Has1) {
				end, has = shape.End2, true
			}
			if has && r.elapsed(day, end) {
				add(anomalyDraft{
					kind:        models.AnomalyTypeMissingDeparture,
					scheduleID:  &schedID,
					description: withExpectedTime(missingDeparturePlanned, utils.FormatClock(end)),
				})
			}
		}
	}

	// Multiple or consecutive same-type scans, judged against the primary
	// schedule (lowest id with a detail for the day)
	if primary := primaryAssignment(assignments, weekday); primary != nil {
		detail, _ := detailFor(primary.Schedule, weekday)
		shape := ShapeOf(primary.Schedule, &detail)
		if len(scans) > shape.ExpectedScans || hasConsecutiveSameType(scans) {
			schedID := primary.Schedule.ID
			add(anomalyDraft{
				kind:        models.AnomalyTypeConsecutiveSameType,
				scheduleID:  &schedID,
				description: consecutiveDescription(nArr, nDep, primary.Schedule.ScheduleType),
				related:     scans,
			})
		}
	}

	if len(outOfSchedule) > 0 {
		first := outOfSchedule[0]
		clock := first.Timestamp.In(r.Repo.Loc).Format("15:04")
		kind := models.AnomalyTypeOther
		desc := outOfScheduleDescription(first.EntryType, clock)
		if len(assignments) == 0 {
			kind = models.AnomalyTypeUnlinkedSchedule
			desc = unlinkedScheduleDescription(first.EntryType, clock)
		}
		id := first.ID
		add(anomalyDraft{
			kind:        kind,
			description: desc,
			timesheetID: &id,
			related:     outOfSchedule,
		})
	}

	return drafts, order
}

func (r *Reconciler) createAnomaly(db *gorm.DB, site *models.Site, employee *models.User, employeeID uint, day time.Time, d *anomalyDraft) error {
	anomaly := models.Anomaly{
		EmployeeID:  &employeeID,
		SiteID:      site.ID,
		TimesheetID: d.timesheetID,
		Date:        r.Repo.DateKey(day),
		AnomalyType: d.kind,
		Description: d.description,
		Status:      models.AnomalyStatusPending,
		Minutes:     d.minutes,
		ScheduleID:  d.scheduleID,
	}
	if err := db.Create(&anomaly).Error; err != nil {
		return WrapDomainError(ErrTransientDb, err, "anomaly create failed")
	}
	if len(d.related) > 0 {
		if err := db.Model(&anomaly).Association("RelatedTimesheets").Replace(d.related); err != nil {
			return WrapDomainError(ErrTransientDb, err, "related timesheets link failed")
		}
	}
	return r.Alerts.EnqueueForAnomaly(db, site, employee, &anomaly)
}

// updateAnomaly refreshes a pending anomaly in place. The realtime
// missing-scan descriptions written by the minute sweeper are kept as-is;
// only the measured minutes and the primary scan link are reconciled.
func (r *Reconciler) updateAnomaly(db *gorm.DB, existing *models.Anomaly, d *anomalyDraft) (bool, error) {
	keepDescription := d.kind == models.AnomalyTypeMissingArrival || d.kind == models.AnomalyTypeMissingDeparture
	description := d.description
	if keepDescription {
		description = existing.Description
	}

	changed := existing.Minutes != d.minutes || existing.Description != description
	if (existing.TimesheetID == nil) != (d.timesheetID == nil) {
		changed = true
	} else if existing.TimesheetID != nil && d.timesheetID != nil && *existing.TimesheetID != *d.timesheetID {
		changed = true
	}
	if !changed {
		return false, nil
	}

	updates := map[string]interface{}{
		"minutes":      d.minutes,
		"description":  description,
		"timesheet_id": d.timesheetID,
	}
	if err := db.Model(&models.Anomaly{}).Where("id = ?", existing.ID).Updates(updates).Error; err != nil {
		return false, WrapDomainError(ErrTransientDb, err, "anomaly update failed")
	}
	if len(d.related) > 0 {
		if err := db.Model(existing).Association("RelatedTimesheets").Replace(d.related); err != nil {
			return false, WrapDomainError(ErrTransientDb, err, "related timesheets link failed")
		}
	}
	return true, nil
}

// elapsed reports whether the given minute mark of the day has passed.
func (r *Reconciler) elapsed(day time.Time, minuteMark int) bool {
	now := r.Clock.Now().In(r.Repo.Loc)
	d := utils.DateOf(day.In(r.Repo.Loc))
	today := utils.DateOf(now)
	if d.Before(today) {
		return true
	}
	if d.After(today) {
		return false
	}
	return utils.MinutesOfDay(now) > minuteMark
}

// dayOver reports whether the local date of day is fully in the past.
func (r *Reconciler) dayOver(day time.Time) bool {
	now := r.Clock.Now().In(r.Repo.Loc)
	return utils.DateOf(day.In(r.Repo.Loc)).Before(utils.DateOf(now))
}

func dayTypeOf(schedule *models.Schedule, weekday int) string {
	detail, ok := detailFor(schedule, weekday)
	if !ok {
		return models.DayTypeFull
	}
	return detail.DayType
}

func primaryAssignment(assignments []models.SiteEmployee, weekday int) *models.SiteEmployee {
	var primary *models.SiteEmployee
	for i := range assignments {
		a := &assignments[i]
		if a.Schedule == nil {
			continue
		}
		if _, ok := detailFor(a.Schedule, weekday); !ok {
			continue
		}
		if primary == nil || a.Schedule.ID < primary.Schedule.ID {
			primary = a
		}
	}
	return primary
}

func hasConsecutiveSameType(scans []models.Timesheet) bool {
	for i := 1; i < len(scans); i++ {
		if scans[i].EntryType == scans[i-1].EntryType {
			return true
		}
	}
	return false
}

func keyOf(kind string, scheduleID *uint) string {
	if scheduleID == nil {
		return kind + "|"
	}
	return kind + "|" + strconv.FormatUint(uint64(*scheduleID), 10)
}
