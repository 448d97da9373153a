package services

import (
	"fmt"
	"strings"

	"github.com/eldertek/pg-pointage-sub001/models"

	"gorm.io/gorm"
)

// AlertService enqueues Pending alert rows when an anomaly is raised.
// Delivery is owned by the external mailer.
type AlertService struct{}

func NewAlertService() *AlertService { return &AlertService{} }

var anomalyLabels = map[string]string{
	models.AnomalyTypeLate:                "Retard",
	models.AnomalyTypeEarlyDeparture:      "Départ anticipé",
	models.AnomalyTypeMissingArrival:      "Arrivée manquante",
	models.AnomalyTypeMissingDeparture:    "Départ manquant",
	models.AnomalyTypeInsufficientHours:   "Durée insuffisante",
	models.AnomalyTypeConsecutiveSameType: "Pointages consécutifs du même type",
	models.AnomalyTypeUnlinkedSchedule:    "Pointage hors planning",
	models.AnomalyTypeOther:               "Anomalie",
}

// EnqueueForAnomaly writes one Pending alert for a freshly created
// anomaly. Recipients are the site's configured emails plus the site
// manager, deduplicated.
func (s *AlertService) EnqueueForAnomaly(db *gorm.DB, site *models.Site, employee *models.User, anomaly *models.Anomaly) error {
	label := anomalyLabels[anomaly.AnomalyType]
	if label == "" {
		label = "Anomalie"
	}
	employeeName := ""
	var employeeID uint
	if employee != nil {
		employeeName = employee.FullName()
		employeeID = employee.ID
	}
	message := fmt.Sprintf("Anomalie détectée : %s\nEmployé : %s\nSite : %s\nDate : %s\nDescription : %s",
		label, employeeName, site.Name, anomaly.Date.Format("2006-01-02"), anomaly.Description)

	alert := models.Alert{
		EmployeeID: employeeID,
		SiteID:     site.ID,
		AnomalyID:  &anomaly.ID,
		AlertType:  anomaly.AnomalyType,
		Message:    message,
		Recipients: strings.Join(site.AlertEmailList(), ","),
		Status:     models.AlertStatusPending,
	}
	if err := db.Create(&alert).Error; err != nil {
		return WrapDomainError(ErrTransientDb, err, "alert enqueue failed")
	}
	return nil
}
