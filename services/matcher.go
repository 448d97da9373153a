package services

import (
	"sort"

	"github.com/eldertek/pg-pointage-sub001/models"
	"github.com/eldertek/pg-pointage-sub001/utils"

	"gorm.io/gorm"
)

const (
	// Window slack around planned times, in minutes
	arrivalSlack      = 120
	departureSlack    = 120
	morningDepartures = 30
)

// Classification is the outcome of matching one scan against the
// employee's schedules.
type Classification struct {
	Schedule *models.Schedule
	Detail   *models.ScheduleDetail

	IsLate                bool
	LateMinutes           uint
	IsEarlyDeparture      bool
	EarlyDepartureMinutes uint
	IsOutOfSchedule       bool
	IsAmbiguous           bool
}

// Matcher attaches a scan to the most plausible schedule variant and
// computes its lateness or earliness.
type Matcher struct {
	Repo *Repository
}

func NewMatcher() *Matcher {
	return &Matcher{Repo: NewRepository()}
}

// DefaultLateMargin and DefaultEarlyMargin apply when neither the
// schedule nor the site configures one.
const (
	DefaultLateMargin         = 15
	DefaultEarlyMargin        = 10
	DefaultFrequencyTolerance = 10
)

// LateMarginFor resolves the late-arrival margin, schedule override first.
func LateMarginFor(schedule *models.Schedule, site *models.Site) int {
	if schedule != nil && schedule.LateArrivalMargin != nil {
		return int(*schedule.LateArrivalMargin)
	}
	if site != nil && site.LateMargin > 0 {
		return int(site.LateMargin)
	}
	return DefaultLateMargin
}

// EarlyMarginFor resolves the early-departure margin.
func EarlyMarginFor(schedule *models.Schedule, site *models.Site) int {
	if schedule != nil && schedule.EarlyDepartureMargin != nil {
		return int(*schedule.EarlyDepartureMargin)
	}
	if site != nil && site.EarlyDepartureMargin > 0 {
		return int(site.EarlyDepartureMargin)
	}
	return DefaultEarlyMargin
}

// FrequencyToleranceFor resolves the frequency tolerance percentage.
func FrequencyToleranceFor(schedule *models.Schedule, site *models.Site) int {
	if schedule != nil && schedule.FrequencyTolerancePercentage != nil {
		return int(*schedule.FrequencyTolerancePercentage)
	}
	if site != nil && site.FrequencyTolerance > 0 {
		return int(site.FrequencyTolerance)
	}
	return DefaultFrequencyTolerance
}

type candidate struct {
	schedule models.Schedule
	detail   models.ScheduleDetail
	result   Classification
	slot     int
}

// Classify matches scan against the active schedules of (employee, site)
// and returns the flags to apply. A scan with no matching schedule comes
// back flagged out-of-schedule, never as an error.
func (m *Matcher) Classify(db *gorm.DB, site *models.Site, scan *models.Timesheet) (*Classification, error) {
	local := scan.Timestamp.In(m.Repo.Loc)
	localMinutes := utils.MinutesOfDay(local)
	weekday := utils.WeekdayIndex(local)

	assignments, err := m.Repo.ActiveAssignments(db, scan.EmployeeID, site.ID, scan.Timestamp)
	if err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return &Classification{IsOutOfSchedule: true}, nil
	}

	var matching []candidate
	for _, assignment := range assignments {
		schedule := assignment.Schedule
		detail, ok := detailFor(schedule, weekday)
		if !ok {
			continue
		}
		mLate := LateMarginFor(schedule, site)
		mEarly := EarlyMarginFor(schedule, site)

		var result Classification
		var slot int
		var matched bool
		switch schedule.ScheduleType {
		case models.ScheduleTypeFrequency:
			// Frequency schedules have no planned times: arrivals are
			// never late and departures are judged on shift duration by
			// the reconciler.
			matched = true
		default:
			result, slot, matched = classifyFixed(&detail, scan.EntryType, localMinutes, mLate, mEarly)
		}
		if matched {
			matching = append(matching, candidate{schedule: *schedule, detail: detail, result: result, slot: slot})
		}
	}

	if len(matching) == 0 {
		return &Classification{IsOutOfSchedule: true}, nil
	}

	// Deterministic tie-break on lowest schedule id
	sort.Slice(matching, func(i, j int) bool {
		return matching[i].schedule.ID < matching[j].schedule.ID
	})
	chosen := matching[0]
	result := chosen.result
	result.Schedule = &chosen.schedule
	result.Detail = &chosen.detail
	// Ambiguous only when another schedule matched through the same time
	// slot; schedules matching through different slots are a clean pick.
	for _, other := range matching[1:] {
		if other.slot == chosen.slot {
			result.IsAmbiguous = true
			break
		}
	}
	return &result, nil
}

// Apply back-annotates the scan with the classification flags.
func (m *Matcher) Apply(db *gorm.DB, scan *models.Timesheet, c *Classification) error {
	var scheduleID *uint
	if c.Schedule != nil {
		id := c.Schedule.ID
		scheduleID = &id
	}
	updates := map[string]interface{}{
		"is_late":                 c.IsLate,
		"late_minutes":            c.LateMinutes,
		"is_early_departure":      c.IsEarlyDeparture,
		"early_departure_minutes": c.EarlyDepartureMinutes,
		"is_out_of_schedule":      c.IsOutOfSchedule,
		"is_ambiguous":            c.IsAmbiguous,
		"schedule_id":             scheduleID,
	}
	if err := db.Model(&models.Timesheet{}).Where("id = ?", scan.ID).Updates(updates).Error; err != nil {
		return WrapDomainError(ErrTransientDb, err, "scan flag update failed")
	}
	scan.IsLate = c.IsLate
	scan.LateMinutes = c.LateMinutes
	scan.IsEarlyDeparture = c.IsEarlyDeparture
	scan.EarlyDepartureMinutes = c.EarlyDepartureMinutes
	scan.IsOutOfSchedule = c.IsOutOfSchedule
	scan.IsAmbiguous = c.IsAmbiguous
	scan.ScheduleID = scheduleID
	return nil
}

func detailFor(schedule *models.Schedule, weekday int) (models.ScheduleDetail, bool) {
	if schedule == nil {
		return models.ScheduleDetail{}, false
	}
	for _, d := range schedule.Details {
		if d.DayOfWeek == weekday {
			return d, true
		}
	}
	return models.ScheduleDetail{}, false
}

// windows extracts the planned minute marks of a fixed-schedule detail.
// AM days only carry the first pair, PM days only the second.
func windows(detail *models.ScheduleDetail) (s1, e1, s2, e2 int, has1, has2 bool) {
	parse := func(v string) (int, bool) {
		n, err := utils.ClockMinutes(v)
		return n, err == nil
	}
	if detail.DayType != models.DayTypePM {
		var ok1, ok2 bool
		s1, ok1 = parse(detail.StartTime1)
		e1, ok2 = parse(detail.EndTime1)
		has1 = ok1 && ok2
	}
	if detail.DayType != models.DayTypeAM {
		var ok1, ok2 bool
		s2, ok1 = parse(detail.StartTime2)
		e2, ok2 = parse(detail.EndTime2)
		has2 = ok1 && ok2
	}
	return
}

// classifyFixed applies the fixed-schedule margin rules to one candidate.
// It reports matched = false when the scan falls outside every window of
// the day, leaving the out-of-schedule decision to the caller. The slot
// return names the window the classification anchored to (1 = morning,
// 2 = afternoon); two candidates are only ambiguous on the same slot.
func classifyFixed(detail *models.ScheduleDetail, entryType string, lt, mLate, mEarly int) (Classification, int, bool) {
	s1, e1, s2, e2, has1, has2 := windows(detail)
	if !has1 && !has2 {
		return Classification{}, 0, false
	}

	var result Classification
	slot := 1
	switch entryType {
	case models.EntryTypeArrival:
		inMorning := has1 && utils.InWindow(lt, s1-arrivalSlack, e1)
		inAfternoon := has2 && utils.InWindow(lt, s2-arrivalSlack, e2)
		if !inMorning && !inAfternoon {
			return Classification{}, 0, false
		}
		target := s1
		if !has1 || (has2 && lt > s1+arrivalSlack) {
			target = s2
			slot = 2
		}
		if lt > target+mLate {
			result.IsLate = true
			result.LateMinutes = uint(lt - target)
		}
	case models.EntryTypeDeparture:
		first, last := s1, e2
		if !has1 {
			first = s2
		}
		if !has2 {
			last = e1
		}
		if lt < first || lt > last+departureSlack {
			return Classification{}, 0, false
		}
		end := e2
		slot = 2
		if has1 && (!has2 || lt <= e1+morningDepartures) {
			end = e1
			slot = 1
		}
		if lt < end-mEarly {
			result.IsEarlyDeparture = true
			result.EarlyDepartureMinutes = uint(end - lt)
		}
	default:
		return Classification{}, 0, false
	}
	return result, slot, true
}

// ExpectedShape describes the planned scan count and times of one day.
type ExpectedShape struct {
	ScheduleType string
	DayType      string

	// Minute marks, valid per DayType
	Start1, End1, Start2, End2 int
	Has1, Has2                 bool

	// Frequency only
	FrequencyDuration int

	ExpectedScans int
}

// ShapeOf computes the expected shape of a day from its schedule detail.
func ShapeOf(schedule *models.Schedule, detail *models.ScheduleDetail) ExpectedShape {
	shape := ExpectedShape{ScheduleType: schedule.ScheduleType, DayType: detail.DayType}
	if schedule.ScheduleType == models.ScheduleTypeFrequency {
		shape.FrequencyDuration = int(detail.FrequencyDuration)
		shape.ExpectedScans = 2
		return shape
	}
	shape.Start1, shape.End1, shape.Start2, shape.End2, shape.Has1, shape.Has2 = windows(detail)
	if shape.Has1 {
		shape.ExpectedScans += 2
	}
	if shape.Has2 {
		shape.ExpectedScans += 2
	}
	return shape
}
