package controllers

import (
	"errors"

	"github.com/eldertek/pg-pointage-sub001/database"
	"github.com/eldertek/pg-pointage-sub001/middleware"
	"github.com/eldertek/pg-pointage-sub001/models"
	"github.com/eldertek/pg-pointage-sub001/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type SiteController struct{}

// CreateSiteRequest represents the site creation request body
type CreateSiteRequest struct {
	Name                 string `json:"name" validate:"required,max=100"`
	Address              string `json:"address"`
	PostalCode           string `json:"postal_code" validate:"omitempty,len=5"`
	City                 string `json:"city"`
	OrganizationID       uint   `json:"organization_id" validate:"required"`
	ManagerID            *uint  `json:"manager_id"`
	LateMargin           *uint  `json:"late_margin"`
	EarlyDepartureMargin *uint  `json:"early_departure_margin"`
	FrequencyTolerance   *uint  `json:"frequency_tolerance"`
	AlertEmails          string `json:"alert_emails"`
}

// CreateSite creates a work site and issues its scan identifier
func (sc *SiteController) CreateSite(c *fiber.Ctx) error {
	var req CreateSiteRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var org models.Organization
	if err := database.DB.First(&org, req.OrganizationID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Organization not found"})
	}

	site := models.Site{
		Name:           req.Name,
		Address:        req.Address,
		PostalCode:     req.PostalCode,
		City:           req.City,
		OrganizationID: org.ID,
		ManagerID:      req.ManagerID,
		AlertEmails:    req.AlertEmails,
		IsActive:       true,
	}
	if req.LateMargin != nil {
		site.LateMargin = *req.LateMargin
	}
	if req.EarlyDepartureMargin != nil {
		site.EarlyDepartureMargin = *req.EarlyDepartureMargin
	}
	if req.FrequencyTolerance != nil {
		site.FrequencyTolerance = *req.FrequencyTolerance
	}

	err := database.DB.Transaction(func(tx *gorm.DB) error {
		nfcID, err := services.NextSiteNfcID(tx, &org)
		if err != nil {
			return err
		}
		site.NfcID = nfcID
		return tx.Create(&site).Error
	})
	if err != nil {
		var domainErr *services.DomainError
		if errors.As(err, &domainErr) {
			return c.Status(services.HTTPStatus(domainErr.Kind)).JSON(fiber.Map{
				"error": domainErr.Message,
				"kind":  domainErr.Kind,
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create site"})
	}

	if user, err := middleware.GetCurrentUser(c); err == nil {
		middleware.LogActivity(user.ID, "CREATE", "sites", site.ID, fiber.Map{
			"name":   site.Name,
			"nfc_id": site.NfcID,
		}, c)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Site created successfully",
		"site":    site,
	})
}

// GetSites lists sites, optionally filtered by organization
func (sc *SiteController) GetSites(c *fiber.Ctx) error {
	query := database.DB.Model(&models.Site{}).Preload("Manager")

	if orgID := c.QueryInt("organization_id"); orgID > 0 {
		query = query.Where("organization_id = ?", orgID)
	}
	if c.Query("active") == "true" {
		query = query.Where("is_active = ?", true)
	}

	var sites []models.Site
	if err := query.Order("nfc_id ASC").Find(&sites).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch sites"})
	}

	return c.JSON(fiber.Map{"sites": sites, "total": len(sites)})
}

// GetSite returns one site with its schedules
func (sc *SiteController) GetSite(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid site ID"})
	}

	var site models.Site
	if err := database.DB.
		Preload("Manager").
		Preload("Organization").
		Preload("Schedules.Details").
		First(&site, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Site not found"})
	}

	return c.JSON(fiber.Map{"site": site})
}

// AssignEmployeeRequest links an employee to a site schedule
type AssignEmployeeRequest struct {
	EmployeeID uint  `json:"employee_id" validate:"required"`
	ScheduleID *uint `json:"schedule_id"`
}

// AssignEmployee creates a site assignment for an employee
func (sc *SiteController) AssignEmployee(c *fiber.Ctx) error {
	siteID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid site ID"})
	}

	var req AssignEmployeeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var site models.Site
	if err := database.DB.First(&site, siteID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Site not found"})
	}
	var employee models.User
	if err := database.DB.First(&employee, req.EmployeeID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Employee not found"})
	}
	if req.ScheduleID != nil {
		var schedule models.Schedule
		if err := database.DB.Where("id = ? AND site_id = ?", *req.ScheduleID, site.ID).First(&schedule).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Schedule not found on this site"})
		}
	}

	dup := database.DB.Where("site_id = ? AND employee_id = ? AND is_active = ?", site.ID, employee.ID, true)
	if req.ScheduleID == nil {
		dup = dup.Where("schedule_id IS NULL")
	} else {
		dup = dup.Where("schedule_id = ?", *req.ScheduleID)
	}
	var existing models.SiteEmployee
	err = dup.First(&existing).Error
	if err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Assignment already exists"})
	}

	assignment := models.SiteEmployee{
		SiteID:     site.ID,
		EmployeeID: employee.ID,
		ScheduleID: req.ScheduleID,
		IsActive:   true,
	}
	if err := database.DB.Create(&assignment).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to create assignment"})
	}

	if user, err := middleware.GetCurrentUser(c); err == nil {
		middleware.LogActivity(user.ID, "ASSIGN", "sites", site.ID, fiber.Map{
			"employee_id": employee.ID,
			"schedule_id": req.ScheduleID,
		}, c)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":    "Employee assigned",
		"assignment": assignment,
	})
}

// UnassignEmployee deactivates an assignment
func (sc *SiteController) UnassignEmployee(c *fiber.Ctx) error {
	siteID, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid site ID"})
	}
	assignmentID, err := c.ParamsInt("assignment_id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid assignment ID"})
	}

	var assignment models.SiteEmployee
	if err := database.DB.Where("id = ? AND site_id = ?", assignmentID, siteID).First(&assignment).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Assignment not found"})
	}

	if err := database.DB.Model(&assignment).Update("is_active", false).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to deactivate assignment"})
	}

	if user, err := middleware.GetCurrentUser(c); err == nil {
		middleware.LogActivity(user.ID, "UNASSIGN", "sites", uint(siteID), fiber.Map{
			"assignment_id": assignment.ID,
		}, c)
	}

	return c.JSON(fiber.Map{"message": "Assignment deactivated"})
}
