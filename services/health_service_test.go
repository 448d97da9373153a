package services

import (
	"testing"
	"time"

	"github.com/eldertek/pg-pointage-sub001/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHealthReport(t *testing.T) {
	db := setupTestDB(t)
	prev := database.DB
	database.DB = db
	t.Cleanup(func() { database.DB = prev })

	svc := NewHealthService("", "")
	report := svc.GetHealthReport()

	assert.Equal(t, "Pointage API", report.Service)
	assert.Equal(t, "1.0.0", report.Version)
	assert.Equal(t, "Europe/Paris", report.Timezone)

	// Database up, Redis absent: degraded but serving
	assert.Equal(t, "degraded", report.Status)
	assert.Equal(t, 200, svc.HTTPStatusForOverall(report.Status))

	require.Len(t, report.Dependencies, 2)
	byName := map[string]DependencyStatus{}
	for _, dep := range report.Dependencies {
		byName[dep.Name] = dep
	}
	assert.Equal(t, "up", byName["mysql"].Status)
	assert.Equal(t, "disabled", byName["redis"].Status)

	require.NotNil(t, report.Metrics.Database)
	assert.Greater(t, report.Metrics.Goroutines, 0)
}

func TestGetHealthReportWithoutDatabase(t *testing.T) {
	setupTestDB(t)
	prev := database.DB
	database.DB = nil
	t.Cleanup(func() { database.DB = prev })

	svc := NewHealthService("Pointage API", "test")
	report := svc.GetHealthReport()

	assert.Equal(t, "critical", report.Status)
	assert.Equal(t, 503, svc.HTTPStatusForOverall(report.Status))
}

func TestCombineStatus(t *testing.T) {
	assert.Equal(t, "ok", combineStatus("ok", "ok"))
	assert.Equal(t, "degraded", combineStatus("ok", "degraded"))
	assert.Equal(t, "critical", combineStatus("degraded", "critical"))
	assert.Equal(t, "critical", combineStatus("critical", "ok"))
	assert.Equal(t, "ok", combineStatus("bogus", "ok"))
}

func TestHumanizeDuration(t *testing.T) {
	assert.Equal(t, "0s", humanizeDuration(0))
	assert.Equal(t, "45s", humanizeDuration(45*time.Second))
	assert.Equal(t, "2m 5s", humanizeDuration(125*time.Second))
	assert.Equal(t, "1d 1h 1m 1s", humanizeDuration(25*time.Hour+61*time.Second))
}
