package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/eldertek/pg-pointage-sub001/models"
)

func testPipeline() *ScanPipeline {
	p := NewScanPipeline()
	p.Redis = nil // exercise the database duplicate guard
	return p
}

func TestSubmitScanUnknownSite(t *testing.T) {
	db := setupTestDB(t)
	fx := createFixture(t, db)
	p := testPipeline()

	_, err := p.SubmitScan(context.Background(), db, fx.Employee.ID, &ScanRequest{
		SiteID:    "TST-S9999",
		Timestamp: paris(t, 2025, 3, 10, 8, 0),
		EntryType: models.EntryTypeArrival,
		ScanType:  models.ScanTypeQR,
	})
	if KindOf(err) != ErrUnknownSite {
		t.Fatalf("expected ErrUnknownSite, got %v", err)
	}
}

func TestSubmitScanInactiveSite(t *testing.T) {
	db := setupTestDB(t)
	fx := createFixture(t, db)
	p := testPipeline()

	if err := db.Model(&models.Site{}).Where("id = ?", fx.Site.ID).
		Update("is_active", false).Error; err != nil {
		t.Fatal(err)
	}

	_, err := p.SubmitScan(context.Background(), db, fx.Employee.ID, &ScanRequest{
		SiteID:    fx.Site.NfcID,
		Timestamp: paris(t, 2025, 3, 10, 8, 0),
		EntryType: models.EntryTypeArrival,
		ScanType:  models.ScanTypeQR,
	})
	if KindOf(err) != ErrSiteInactive {
		t.Fatalf("expected ErrSiteInactive, got %v", err)
	}
}

func TestSubmitScanClassifiesAndReconciles(t *testing.T) {
	db := setupTestDB(t)
	fx := createFixture(t, db)
	p := testPipeline()
	p.Reconciler.Clock = FixedClock(paris(t, 2025, 3, 10, 8, 30))

	scan, err := p.SubmitScan(context.Background(), db, fx.Employee.ID, &ScanRequest{
		SiteID:    fx.Site.NfcID,
		Timestamp: paris(t, 2025, 3, 10, 8, 30),
		EntryType: models.EntryTypeArrival,
		ScanType:  models.ScanTypeNFC,
	})
	if err != nil {
		t.Fatal(err)
	}
	if scan.ID == 0 {
		t.Fatal("scan not persisted")
	}
	if !scan.IsLate || scan.LateMinutes != 30 {
		t.Fatalf("scan not classified: %+v", scan)
	}

	rows := anomaliesFor(t, db, fx.Employee.ID)
	late := findAnomaly(rows, models.AnomalyTypeLate)
	if late == nil {
		t.Fatalf("no LATE anomaly after scan, got %+v", rows)
	}
	if late.TimesheetID == nil || *late.TimesheetID != scan.ID {
		t.Fatal("anomaly not linked to the scan")
	}
}

func TestSubmitScanDuplicateGuard(t *testing.T) {
	db := setupTestDB(t)
	fx := createFixture(t, db)
	p := testPipeline()
	p.Reconciler.Clock = FixedClock(paris(t, 2025, 3, 10, 8, 1))

	first := &ScanRequest{
		SiteID:    fx.Site.NfcID,
		Timestamp: paris(t, 2025, 3, 10, 8, 0),
		EntryType: models.EntryTypeArrival,
		ScanType:  models.ScanTypeQR,
	}
	if _, err := p.SubmitScan(context.Background(), db, fx.Employee.ID, first); err != nil {
		t.Fatal(err)
	}

	// Same entry type 30 seconds later: rejected
	dup := *first
	dup.Timestamp = first.Timestamp.Add(30 * time.Second)
	if _, err := p.SubmitScan(context.Background(), db, fx.Employee.ID, &dup); KindOf(err) != ErrDuplicateScan {
		t.Fatalf("expected ErrDuplicateScan, got %v", err)
	}

	// A departure in the same window is a different guard key
	departure := *first
	departure.Timestamp = first.Timestamp.Add(30 * time.Second)
	departure.EntryType = models.EntryTypeDeparture
	if _, err := p.SubmitScan(context.Background(), db, fx.Employee.ID, &departure); err != nil {
		t.Fatalf("departure wrongly rejected: %v", err)
	}
}

func TestSubmitScanRejectsConsecutiveSameType(t *testing.T) {
	db := setupTestDB(t)
	fx := createFixture(t, db)
	p := testPipeline()
	p.Reconciler.Clock = FixedClock(paris(t, 2025, 3, 10, 14, 1))

	submit := func(hour, minute int, entryType string) error {
		_, err := p.SubmitScan(context.Background(), db, fx.Employee.ID, &ScanRequest{
			SiteID:    fx.Site.NfcID,
			Timestamp: paris(t, 2025, 3, 10, hour, minute),
			EntryType: entryType,
			ScanType:  models.ScanTypeNFC,
		})
		return err
	}

	if err := submit(8, 0, models.EntryTypeArrival); err != nil {
		t.Fatal(err)
	}

	// A second arrival hours later, well past the duplicate window
	err := submit(10, 0, models.EntryTypeArrival)
	if KindOf(err) != ErrConsecutiveScan {
		t.Fatalf("expected ErrConsecutiveScan, got %v", err)
	}
	var de *DomainError
	if !errors.As(err, &de) || de.Message != "Vous avez déjà pointé votre arrivée. Vous devez d'abord pointer votre départ." {
		t.Fatalf("wrong rejection message: %v", err)
	}

	// The departure closes the arrival and is accepted
	if err := submit(12, 0, models.EntryTypeDeparture); err != nil {
		t.Fatal(err)
	}

	// A second departure is rejected with the mirrored message
	err = submit(14, 0, models.EntryTypeDeparture)
	if KindOf(err) != ErrConsecutiveScan {
		t.Fatalf("expected ErrConsecutiveScan, got %v", err)
	}
	if !errors.As(err, &de) || de.Message != "Vous avez déjà pointé votre départ. Vous devez d'abord pointer votre arrivée." {
		t.Fatalf("wrong rejection message: %v", err)
	}

	var count int64
	if err := db.Model(&models.Timesheet{}).Where("employee_id = ?", fx.Employee.ID).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("rejected scans were persisted, got %d rows", count)
	}
}

func TestSubmitScanDepartureOpeningDayAccepted(t *testing.T) {
	db := setupTestDB(t)
	fx := createFixture(t, db)
	p := testPipeline()
	p.Reconciler.Clock = FixedClock(paris(t, 2025, 3, 10, 12, 1))

	// A lone departure is let through; the missing arrival is reported
	// by the reconciler rather than by a rejection
	scan, err := p.SubmitScan(context.Background(), db, fx.Employee.ID, &ScanRequest{
		SiteID:    fx.Site.NfcID,
		Timestamp: paris(t, 2025, 3, 10, 12, 0),
		EntryType: models.EntryTypeDeparture,
		ScanType:  models.ScanTypeQR,
	})
	if err != nil {
		t.Fatal(err)
	}
	if scan.ID == 0 {
		t.Fatal("scan not persisted")
	}
}

func TestSubmitScanResolvesPrefixedSiteID(t *testing.T) {
	db := setupTestDB(t)
	fx := createFixture(t, db)
	p := testPipeline()
	p.Reconciler.Clock = FixedClock(paris(t, 2025, 3, 10, 8, 1))

	// Legacy tags carry the bare id; scans may send the prefixed form
	bare := models.Site{Name: "Legacy", OrganizationID: fx.Org.ID, NfcID: "S0005", IsActive: true}
	if err := db.Create(&bare).Error; err != nil {
		t.Fatal(err)
	}
	assign(t, db, bare.ID, fx.Employee.ID, fx.Schedule.ID)

	scan, err := p.SubmitScan(context.Background(), db, fx.Employee.ID, &ScanRequest{
		SiteID:    "TST-S0005",
		Timestamp: paris(t, 2025, 3, 10, 8, 0),
		EntryType: models.EntryTypeArrival,
		ScanType:  models.ScanTypeQR,
	})
	if err != nil {
		t.Fatal(err)
	}
	if scan.SiteID != bare.ID {
		t.Fatalf("scan attached to site %d, want %d", scan.SiteID, bare.ID)
	}
}
