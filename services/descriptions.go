package services

import (
	"fmt"

	"github.com/eldertek/pg-pointage-sub001/models"
)

// User-visible anomaly descriptions. These strings are part of the API:
// the mobile app and the managers' inbox match on them, so changes here
// must stay coordinated with the frontend.

const (
	missingArrivalRealtime  = "Pointage d'arrivée manquant détecté en temps réel"
	missingArrivalPlanned   = "Arrivée manquante selon le planning"
	missingDeparturePlanned = "Départ manquant selon le planning"
	outOfSchedulePrefix     = "Pointage hors planning"

	halfDayMorningLabel   = "Planning demi-journée matin"
	halfDayAfternoonLabel = "Planning demi-journée après-midi"

	consecutiveArrivalMessage   = "Vous avez déjà pointé votre arrivée. Vous devez d'abord pointer votre départ."
	consecutiveDepartureMessage = "Vous avez déjà pointé votre départ. Vous devez d'abord pointer votre arrivée."
)

func lateDescription(minutes uint, margin int, dayType string) string {
	desc := fmt.Sprintf("Retard de %d minutes (marge: %d minutes).", minutes, margin)
	switch dayType {
	case models.DayTypeAM:
		desc += " " + halfDayMorningLabel
	case models.DayTypePM:
		desc += " " + halfDayAfternoonLabel
	}
	return desc
}

func earlyDepartureDescription(minutes uint) string {
	return fmt.Sprintf("Départ anticipé de %d minutes.", minutes)
}

func insufficientHoursDescription(actual, required float64) string {
	return fmt.Sprintf("Durée insuffisante: %.1f minutes (minimum %.1f minutes).", actual, required)
}

func missingFrequencyDescription(duration int) string {
	return fmt.Sprintf("Pointage manquant selon le planning fréquence (durée prévue: %d minutes)", duration)
}

// withExpectedTime appends the planned clock time to a missing-scan
// description.
func withExpectedTime(desc, clock string) string {
	if clock == "" {
		return desc
	}
	return fmt.Sprintf("%s (heure prévue: %s)", desc, clock)
}

func consecutiveDescription(arrivals, departures int, scheduleType string) string {
	return fmt.Sprintf("Scan multiple: %d arrivée(s) et %d départ(s) sur planning %s",
		arrivals, departures, scheduleKindLabel(scheduleType))
}

func scheduleKindLabel(scheduleType string) string {
	if scheduleType == models.ScheduleTypeFrequency {
		return "fréquence"
	}
	return "fixe"
}

func unlinkedScheduleDescription(entryType, clock string) string {
	return fmt.Sprintf("%s: l'employé n'est pas rattaché à ce site. (%s à %s)",
		outOfSchedulePrefix, entryTypeLabel(entryType), clock)
}

func outOfScheduleDescription(entryType, clock string) string {
	return fmt.Sprintf("%s: l'heure %s (%s) ne correspond à aucune plage horaire définie dans les plannings de l'employé.",
		outOfSchedulePrefix, clock, entryTypeLabel(entryType))
}

func entryTypeLabel(entryType string) string {
	if entryType == models.EntryTypeDeparture {
		return "Départ"
	}
	return "Arrivée"
}
