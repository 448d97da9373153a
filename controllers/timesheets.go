package controllers

import (
	"errors"
	"time"

	"github.com/eldertek/pg-pointage-sub001/config"
	"github.com/eldertek/pg-pointage-sub001/database"
	"github.com/eldertek/pg-pointage-sub001/middleware"
	"github.com/eldertek/pg-pointage-sub001/models"
	"github.com/eldertek/pg-pointage-sub001/services"

	"github.com/gofiber/fiber/v2"
)

type TimesheetController struct {
	Pipeline *services.ScanPipeline
	Sweeper  *services.DaySweeper
}

func NewTimesheetController() *TimesheetController {
	return &TimesheetController{
		Pipeline: services.NewScanPipeline(),
		Sweeper:  services.NewDaySweeper(),
	}
}

// CreateTimesheet records a clock-in or clock-out scan for the current
// user and runs it through the matcher and the anomaly reconciler.
func (tc *TimesheetController) CreateTimesheet(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	var req services.ScanRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
			"kind":  services.ErrInvalidPayload,
		})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
			"kind":  services.ErrInvalidPayload,
		})
	}

	scan, err := tc.Pipeline.SubmitScan(c.Context(), database.DB, user.ID, &req)
	if err != nil {
		var domainErr *services.DomainError
		if errors.As(err, &domainErr) {
			return c.Status(services.HTTPStatus(domainErr.Kind)).JSON(fiber.Map{
				"error": domainErr.Message,
				"kind":  domainErr.Kind,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to record scan",
		})
	}

	middleware.LogActivity(user.ID, "SCAN", "timesheets", scan.ID, fiber.Map{
		"site_id":    req.SiteID,
		"entry_type": req.EntryType,
		"scan_type":  req.ScanType,
	}, c)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":   "Scan recorded",
		"timesheet": scan,
	})
}

// ScanAnomaliesRequest narrows an on-demand anomaly sweep.
type ScanAnomaliesRequest struct {
	StartDate  string `json:"start_date"`
	EndDate    string `json:"end_date"`
	SiteID     *uint  `json:"site_id"`
	EmployeeID *uint  `json:"employee_id"`
	DryRun     bool   `json:"dry_run"`
	ForceAll   bool   `json:"force_all"`
}

// ScanAnomalies re-runs the day sweep over a date range and returns the
// anomaly delta. Defaults to the current day when no range is given.
func (tc *TimesheetController) ScanAnomalies(c *fiber.Ctx) error {
	var req ScanAnomaliesRequest
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
			"kind":  services.ErrInvalidPayload,
		})
	}

	loc := config.AppConfig.Location
	today := time.Now().In(loc)
	start, end := today, today
	if req.StartDate != "" {
		var err error
		if start, err = time.ParseInLocation("2006-01-02", req.StartDate, loc); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid start_date, expected YYYY-MM-DD",
				"kind":  services.ErrInvalidPayload,
			})
		}
	}
	if req.EndDate != "" {
		var err error
		if end, err = time.ParseInLocation("2006-01-02", req.EndDate, loc); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid end_date, expected YYYY-MM-DD",
				"kind":  services.ErrInvalidPayload,
			})
		}
	} else if req.StartDate != "" {
		end = start
	}

	summary, err := tc.Sweeper.Run(database.DB, services.DaySweepOptions{
		StartDate:    start,
		EndDate:      end,
		SiteID:       req.SiteID,
		EmployeeID:   req.EmployeeID,
		DryRun:       req.DryRun,
		ForceUpdate:  req.ForceAll,
		IgnoreErrors: true,
	})
	if err != nil {
		var domainErr *services.DomainError
		if errors.As(err, &domainErr) {
			return c.Status(services.HTTPStatus(domainErr.Kind)).JSON(fiber.Map{
				"error": domainErr.Message,
				"kind":  domainErr.Kind,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Anomaly sweep failed",
		})
	}

	if user, err := middleware.GetCurrentUser(c); err == nil {
		middleware.LogActivity(user.ID, "SCAN_ANOMALIES", "timesheets", 0, fiber.Map{
			"start_date":        start.Format("2006-01-02"),
			"end_date":          end.Format("2006-01-02"),
			"anomalies_created": summary.Created,
			"anomalies_updated": summary.Updated,
			"anomalies_deleted": summary.Deleted,
		}, c)
	}

	return c.JSON(fiber.Map{
		"anomalies_created": summary.Created,
		"anomalies_updated": summary.Updated,
		"anomalies_deleted": summary.Deleted,
		"tuples_processed":  summary.TuplesProcessed,
		"errors":            summary.Errors,
	})
}

// GetTimesheets lists scans. Employees only see their own; managers and
// admins can filter by employee and site.
func (tc *TimesheetController) GetTimesheets(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	query := database.DB.Model(&models.Timesheet{}).Preload("Site")

	if user.Role == models.RoleEmployee {
		query = query.Where("employee_id = ?", user.ID)
	} else {
		if employeeID := c.QueryInt("employee_id"); employeeID > 0 {
			query = query.Where("employee_id = ?", employeeID)
		}
		if siteID := c.QueryInt("site_id"); siteID > 0 {
			query = query.Where("site_id = ?", siteID)
		}
	}

	loc := config.AppConfig.Location
	if date := c.Query("date"); date != "" {
		day, err := time.ParseInLocation("2006-01-02", date, loc)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid date, expected YYYY-MM-DD",
			})
		}
		start := day.UTC()
		query = query.Where("timestamp >= ? AND timestamp < ?", start, day.AddDate(0, 0, 1).UTC())
	}

	var scans []models.Timesheet
	if err := query.Order("timestamp DESC").Limit(500).Find(&scans).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch timesheets",
		})
	}

	return c.JSON(fiber.Map{"timesheets": scans, "total": len(scans)})
}
