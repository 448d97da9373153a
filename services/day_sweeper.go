package services

import (
	"errors"
	"time"

	"github.com/eldertek/pg-pointage-sub001/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// DaySweeper re-evaluates a date range: it refreshes the classification
// of every scan and reconciles the anomaly ledger tuple by tuple. It
// backs the nightly sweep, the scan-anomalies endpoint and the repair
// command.
type DaySweeper struct {
	Repo       *Repository
	Matcher    *Matcher
	Reconciler *Reconciler
	Clock      Clock
}

func NewDaySweeper() *DaySweeper {
	return &DaySweeper{
		Repo:       NewRepository(),
		Matcher:    NewMatcher(),
		Reconciler: NewReconciler(),
		Clock:      SystemClock(),
	}
}

// DaySweepOptions selects the range and scope of a sweep.
type DaySweepOptions struct {
	StartDate time.Time
	EndDate   time.Time

	SiteID     *uint
	EmployeeID *uint

	// DryRun rolls every tuple transaction back and reports counts only.
	DryRun bool
	// IgnoreErrors logs per-tuple failures and continues.
	IgnoreErrors bool
	// SkipValidation keeps the existing schedule link of already
	// classified scans instead of re-running the matcher on them.
	SkipValidation bool
	// ForceUpdate re-classifies every scan even with SkipValidation set.
	ForceUpdate bool
}

// DaySweepSummary is the end-of-run report.
type DaySweepSummary struct {
	ReconcileCounts
	TuplesProcessed int `json:"tuples_processed"`
	Errors          int `json:"errors"`
}

// errDryRunRollback forces the tuple transaction to roll back in dry-run
// mode after counts have been captured.
var errDryRunRollback = errors.New("dry run rollback")

// Run sweeps every (employee, site, date) tuple in the range that has at
// least one active assignment. Each tuple commits independently.
func (s *DaySweeper) Run(db *gorm.DB, opts DaySweepOptions) (DaySweepSummary, error) {
	var summary DaySweepSummary

	if opts.StartDate.IsZero() || opts.EndDate.IsZero() {
		return summary, NewDomainError(ErrInvalidPayload, "start and end dates are required")
	}
	if opts.EndDate.Before(opts.StartDate) {
		return summary, NewDomainError(ErrInvalidPayload, "end date before start date")
	}

	for day := opts.StartDate; !day.After(opts.EndDate); day = day.AddDate(0, 0, 1) {
		assignments, err := s.Repo.AssignmentsForSweep(db, day, opts.SiteID, opts.EmployeeID)
		if err != nil {
			if opts.IgnoreErrors {
				logrus.WithError(err).WithField("date", day.Format("2006-01-02")).Warn("sweep day skipped")
				summary.Errors++
				continue
			}
			return summary, err
		}

		type tupleKey struct{ employeeID, siteID uint }
		seen := make(map[tupleKey]bool)
		for i := range assignments {
			assignment := &assignments[i]
			key := tupleKey{assignment.EmployeeID, assignment.SiteID}
			if seen[key] {
				continue
			}
			seen[key] = true

			counts, err := s.sweepTuple(db, &assignment.Site, assignment.EmployeeID, day, opts)
			if err != nil {
				if opts.IgnoreErrors {
					logrus.WithError(err).WithFields(logrus.Fields{
						"employee_id": assignment.EmployeeID,
						"site_id":     assignment.SiteID,
						"date":        day.Format("2006-01-02"),
					}).Warn("tuple sweep failed, continuing")
					summary.Errors++
					continue
				}
				return summary, err
			}
			summary.TuplesProcessed++
			summary.Add(counts)
		}
	}

	logrus.WithFields(logrus.Fields{
		"tuples":  summary.TuplesProcessed,
		"created": summary.Created,
		"updated": summary.Updated,
		"deleted": summary.Deleted,
		"errors":  summary.Errors,
		"dry_run": opts.DryRun,
	}).Info("day sweep finished")
	return summary, nil
}

// sweepTuple refreshes one (employee, site, date) tuple inside a single
// transaction.
func (s *DaySweeper) sweepTuple(db *gorm.DB, site *models.Site, employeeID uint, day time.Time, opts DaySweepOptions) (ReconcileCounts, error) {
	var counts ReconcileCounts
	run := func(tx *gorm.DB) error {
		scans, err := s.Repo.ScansFor(tx, employeeID, site.ID, day)
		if err != nil {
			return err
		}
		for i := range scans {
			scan := &scans[i]
			if opts.SkipValidation && !opts.ForceUpdate && scan.ScheduleID != nil {
				continue
			}
			classification, err := s.Matcher.Classify(tx, site, scan)
			if err != nil {
				return err
			}
			if err := s.Matcher.Apply(tx, scan, classification); err != nil {
				return err
			}
		}
		counts, err = s.Reconciler.ReconcileDay(tx, site, employeeID, day)
		if err != nil {
			return err
		}
		if opts.DryRun {
			return errDryRunRollback
		}
		return nil
	}

	err := withRetry(func() error { return db.Transaction(run) })
	if errors.Is(err, errDryRunRollback) {
		return counts, nil
	}
	return counts, err
}
