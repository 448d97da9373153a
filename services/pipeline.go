package services

import (
	"context"
	"fmt"
	"time"

	"github.com/eldertek/pg-pointage-sub001/config"
	"github.com/eldertek/pg-pointage-sub001/database"
	"github.com/eldertek/pg-pointage-sub001/models"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ScanRequest is the payload of one clock-in or clock-out submission.
type ScanRequest struct {
	SiteID    string    `json:"site_id" validate:"required"`
	Timestamp time.Time `json:"timestamp" validate:"required"`
	EntryType string    `json:"entry_type" validate:"required,oneof=ARRIVAL DEPARTURE"`
	ScanType  string    `json:"scan_type" validate:"required,oneof=NFC QR_CODE"`
	Latitude  *float64  `json:"latitude"`
	Longitude *float64  `json:"longitude"`
}

// ScanPipeline is the synchronous scan path: resolve the site, guard
// against duplicates, insert the scan, classify it and reconcile the
// day's anomalies.
type ScanPipeline struct {
	Repo            *Repository
	Matcher         *Matcher
	Reconciler      *Reconciler
	Clock           Clock
	Redis           *redis.Client
	DuplicateWindow time.Duration
}

func NewScanPipeline() *ScanPipeline {
	return &ScanPipeline{
		Repo:            NewRepository(),
		Matcher:         NewMatcher(),
		Reconciler:      NewReconciler(),
		Clock:           SystemClock(),
		Redis:           database.GetRedisClient(),
		DuplicateWindow: time.Duration(config.AppConfig.DuplicateScanSecs) * time.Second,
	}
}

// SubmitScan records a scan for the employee and runs the matcher and
// the reconciler on it. The scan itself is append-only: if anything
// fails after the insert, the scan is kept with default flags and the
// day sweeper re-classifies it on its next run.
func (p *ScanPipeline) SubmitScan(ctx context.Context, db *gorm.DB, employeeID uint, req *ScanRequest) (*models.Timesheet, error) {
	site, err := p.Repo.SiteByScanID(db, req.SiteID)
	if err != nil {
		return nil, err
	}
	if !site.ActiveAt(req.Timestamp.In(p.Repo.Loc)) {
		return nil, NewDomainError(ErrSiteInactive, "site %s is not active", site.NfcID)
	}

	if err := p.guardDuplicate(ctx, db, employeeID, site.ID, req); err != nil {
		return nil, err
	}
	if err := p.guardSequence(db, employeeID, site.ID, req); err != nil {
		return nil, err
	}

	scan := models.Timesheet{
		EmployeeID: employeeID,
		SiteID:     site.ID,
		Timestamp:  req.Timestamp.UTC(),
		EntryType:  req.EntryType,
		ScanType:   req.ScanType,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		p.Repo.LockAssignment(tx, employeeID, site.ID)
		if err := tx.Create(&scan).Error; err != nil {
			return WrapDomainError(ErrTransientDb, err, "scan insert failed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Classification and reconciliation run in their own transaction so
	// a failure here never loses the scan.
	err = withRetry(func() error {
		return db.Transaction(func(tx *gorm.DB) error {
			classification, err := p.Matcher.Classify(tx, site, &scan)
			if err != nil {
				return err
			}
			if err := p.Matcher.Apply(tx, &scan, classification); err != nil {
				return err
			}
			_, err = p.Reconciler.ReconcileDay(tx, site, employeeID, scan.Timestamp)
			return err
		})
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"scan_id":     scan.ID,
			"employee_id": employeeID,
			"site_id":     site.ID,
		}).WithError(err).Warn("scan classification failed, deferred to day sweep")
	}

	return &scan, nil
}

// guardSequence rejects a scan repeating the entry type of the day's last
// scan: an arrival must be closed by a departure before the next arrival,
// and vice versa. A lone departure opening the day is let through; the
// gap surfaces as a missing-arrival anomaly instead. The message is
// user-facing.
func (p *ScanPipeline) guardSequence(db *gorm.DB, employeeID, siteID uint, req *ScanRequest) error {
	last, err := p.Repo.LastScanOfDay(db, employeeID, siteID, req.Timestamp)
	if err != nil {
		return err
	}
	if last == nil || last.EntryType != req.EntryType {
		return nil
	}
	if req.EntryType == models.EntryTypeArrival {
		return NewDomainError(ErrConsecutiveScan, consecutiveArrivalMessage)
	}
	return NewDomainError(ErrConsecutiveScan, consecutiveDepartureMessage)
}

// guardDuplicate rejects a second scan of the same tuple and entry type
// within the duplicate window. Redis holds the guard key; when Redis is
// unavailable the check falls back to the scan table.
func (p *ScanPipeline) guardDuplicate(ctx context.Context, db *gorm.DB, employeeID, siteID uint, req *ScanRequest) error {
	if p.Redis != nil {
		key := fmt.Sprintf("pointage:scan:%d:%d:%s", employeeID, siteID, req.EntryType)
		ok, err := p.Redis.SetNX(ctx, key, req.Timestamp.Unix(), p.DuplicateWindow).Result()
		if err == nil {
			if !ok {
				return NewDomainError(ErrDuplicateScan, "scan already recorded within %s", p.DuplicateWindow)
			}
			return nil
		}
		logrus.WithError(err).Warn("redis duplicate guard unavailable, using database check")
	}
	recent, err := p.Repo.HasRecentScan(db, employeeID, siteID, req.EntryType, req.Timestamp.UTC(), p.DuplicateWindow)
	if err != nil {
		return err
	}
	if recent {
		return NewDomainError(ErrDuplicateScan, "scan already recorded within %s", p.DuplicateWindow)
	}
	return nil
}
