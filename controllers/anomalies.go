package controllers

import (
	"time"

	"github.com/eldertek/pg-pointage-sub001/config"
	"github.com/eldertek/pg-pointage-sub001/database"
	"github.com/eldertek/pg-pointage-sub001/middleware"
	"github.com/eldertek/pg-pointage-sub001/models"

	"github.com/gofiber/fiber/v2"
)

type AnomalyController struct{}

// GetAnomalies lists anomalies. Employees only see their own; managers
// and admins can filter by employee, site, status, type and date.
func (ac *AnomalyController) GetAnomalies(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	query := database.DB.Model(&models.Anomaly{}).
		Preload("Employee").
		Preload("Site").
		Preload("Schedule")

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

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if anomalyType := c.Query("type"); anomalyType != "" {
		query = query.Where("anomaly_type = ?", anomalyType)
	}
	if date := c.Query("date"); date != "" {
		day, err := time.ParseInLocation("2006-01-02", date, config.AppConfig.Location)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid date, expected YYYY-MM-DD",
			})
		}
		key := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		query = query.Where("date = ?", key)
	}

	var anomalies []models.Anomaly
	if err := query.Order("date DESC, id DESC").Limit(500).Find(&anomalies).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch anomalies",
		})
	}

	return c.JSON(fiber.Map{"anomalies": anomalies, "total": len(anomalies)})
}

// GetAnomaly returns one anomaly with its related scans
func (ac *AnomalyController) GetAnomaly(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid anomaly ID"})
	}

	var anomaly models.Anomaly
	if err := database.DB.
		Preload("Employee").
		Preload("Site").
		Preload("Schedule").
		Preload("RelatedTimesheets").
		Preload("CorrectedBy").
		First(&anomaly, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Anomaly not found"})
	}

	return c.JSON(fiber.Map{"anomaly": anomaly})
}

// UpdateAnomalyStatusRequest represents a manual anomaly correction
type UpdateAnomalyStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=PENDING RESOLVED IGNORED"`
	Note   string `json:"note"`
}

// UpdateAnomalyStatus resolves or ignores an anomaly. Resolved and
// ignored rows are left alone by the sweepers from then on.
func (ac *AnomalyController) UpdateAnomalyStatus(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid anomaly ID"})
	}

	var req UpdateAnomalyStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var anomaly models.Anomaly
	if err := database.DB.First(&anomaly, id).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Anomaly not found"})
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":          req.Status,
		"corrected_by_id": user.ID,
		"correction_date": now,
		"correction_note": req.Note,
	}
	if err := database.DB.Model(&anomaly).Updates(updates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update anomaly",
		})
	}

	middleware.LogActivity(user.ID, "UPDATE_STATUS", "anomalies", anomaly.ID, fiber.Map{
		"status": req.Status,
		"note":   req.Note,
	}, c)

	return c.JSON(fiber.Map{"message": "Anomaly updated", "anomaly": anomaly})
}
