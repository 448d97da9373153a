package controllers

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/eldertek/pg-pointage-sub001/database"
	"github.com/eldertek/pg-pointage-sub001/middleware"
	"github.com/eldertek/pg-pointage-sub001/models"
	"github.com/eldertek/pg-pointage-sub001/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// ScheduleImportController imports plannings from CSV/XLSX exports. One
// row describes one weekday of a schedule; rows sharing the same site
// and schedule label end up in the same schedule.
type ScheduleImportController struct{}

// Import parses the uploaded file and creates schedules with their
// weekday details.
func (sic *ScheduleImportController) Import(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}

	file, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cannot open file"})
	}
	defer file.Close()

	filename := strings.ToLower(fileHeader.Filename)
	var rows [][]string
	var parseErr error

	if strings.HasSuffix(filename, ".csv") {
		rows, parseErr = readCSV(file)
	} else if strings.HasSuffix(filename, ".xlsx") || strings.HasSuffix(filename, ".xls") {
		tmpDir, _ := os.MkdirTemp("", "pgschedule-")
		tmp := filepath.Join(tmpDir, fmt.Sprintf("%d_%s", time.Now().UnixNano(), sanitizeFilename(fileHeader.Filename)))
		if err := c.SaveFile(fileHeader, tmp); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "failed to buffer upload"})
		}
		rows, parseErr = readXLSX(tmp)
		_ = os.Remove(tmp)
	} else {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported file type (csv, xlsx)"})
	}
	if parseErr != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": parseErr.Error()})
	}
	if len(rows) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is empty"})
	}

	colIndex := buildColumnIndex(rows[0])
	required := []string{"site", "type", "jour"}
	for _, key := range required {
		if _, ok := colIndex[key]; !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": fmt.Sprintf("missing column: %s", key)})
		}
	}

	parsed := make([]scheduleImportRow, 0, len(rows)-1)
	var parseErrors []string
	for i := 1; i < len(rows); i++ {
		raw := rows[i]
		if isRowEmpty(raw) {
			continue
		}
		r, err := parseScheduleRow(raw, colIndex, i+1)
		if err != nil {
			parseErrors = append(parseErrors, err.Error())
			continue
		}
		parsed = append(parsed, r)
	}
	if len(parsed) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "no valid data rows found", "parse_errors": parseErrors})
	}

	stats := &scheduleImportStats{TotalRows: len(parsed)}
	err = database.DB.Transaction(func(tx *gorm.DB) error {
		return processScheduleRows(tx, parsed, stats)
	})
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error(), "stats": stats})
	}

	if user, err := middleware.GetCurrentUser(c); err == nil {
		middleware.LogActivity(user.ID, "IMPORT", "schedules", 0, fiber.Map{
			"file_name":         fileHeader.Filename,
			"schedules_created": stats.SchedulesCreated,
			"details_created":   stats.DetailsCreated,
		}, c)
	}

	return c.JSON(fiber.Map{
		"success":           true,
		"file_name":         fileHeader.Filename,
		"total_rows":        stats.TotalRows,
		"schedules_created": stats.SchedulesCreated,
		"schedules_reused":  stats.SchedulesReused,
		"details_created":   stats.DetailsCreated,
		"details_updated":   stats.DetailsUpdated,
		"unknown_sites":     stats.UnknownSites,
		"parse_errors":      parseErrors,
	})
}

type scheduleImportRow struct {
	RowNumber         int
	SiteScanID        string
	ScheduleType      string
	DayOfWeek         int
	DayType           string
	StartTime1        string
	EndTime1          string
	StartTime2        string
	EndTime2          string
	FrequencyDuration uint
}

type scheduleImportStats struct {
	TotalRows        int
	SchedulesCreated int
	SchedulesReused  int
	DetailsCreated   int
	DetailsUpdated   int
	UnknownSites     []string
}

func buildColumnIndex(header []string) map[string]int {
	col := map[string]int{}
	for idx, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if key == "" {
			continue
		}
		col[key] = idx
		// allow alternate spellings
		switch key {
		case "site_id", "nfc_id":
			col["site"] = idx
		case "schedule_type":
			col["type"] = idx
		case "day", "day_of_week":
			col["jour"] = idx
		case "day_type", "demi-journee":
			col["plage"] = idx
		case "debut_1", "start_1", "heure_debut_1":
			col["debut1"] = idx
		case "fin_1", "end_1", "heure_fin_1":
			col["fin1"] = idx
		case "debut_2", "start_2", "heure_debut_2":
			col["debut2"] = idx
		case "fin_2", "end_2", "heure_fin_2":
			col["fin2"] = idx
		case "duree", "duration", "frequency_duration":
			col["duree_minutes"] = idx
		}
	}
	return col
}

func isRowEmpty(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func getValue(row []string, col map[string]int, key string) string {
	if idx, ok := col[key]; ok && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

var frenchDays = map[string]int{
	"lundi": 0, "mardi": 1, "mercredi": 2, "jeudi": 3,
	"vendredi": 4, "samedi": 5, "dimanche": 6,
	"monday": 0, "tuesday": 1, "wednesday": 2, "thursday": 3,
	"friday": 4, "saturday": 5, "sunday": 6,
}

func parseDayOfWeek(value string) (int, error) {
	lower := strings.ToLower(strings.TrimSpace(value))
	if day, ok := frenchDays[lower]; ok {
		return day, nil
	}
	if n, err := strconv.Atoi(lower); err == nil && n >= 0 && n <= 6 {
		return n, nil
	}
	return 0, fmt.Errorf("unrecognized day: %s", value)
}

func parseScheduleRow(row []string, col map[string]int, rowNum int) (scheduleImportRow, error) {
	siteID := getValue(row, col, "site")
	if siteID == "" {
		return scheduleImportRow{}, fmt.Errorf("row %d: missing site", rowNum)
	}

	scheduleType := strings.ToUpper(getValue(row, col, "type"))
	switch scheduleType {
	case "FIXE", "FIXED", "":
		scheduleType = models.ScheduleTypeFixed
	case "FREQUENCE", "FREQUENCY":
		scheduleType = models.ScheduleTypeFrequency
	default:
		return scheduleImportRow{}, fmt.Errorf("row %d: unknown schedule type: %s", rowNum, scheduleType)
	}

	day, err := parseDayOfWeek(getValue(row, col, "jour"))
	if err != nil {
		return scheduleImportRow{}, fmt.Errorf("row %d: %v", rowNum, err)
	}

	parsed := scheduleImportRow{
		RowNumber:    rowNum,
		SiteScanID:   siteID,
		ScheduleType: scheduleType,
		DayOfWeek:    day,
		DayType:      models.DayTypeFull,
	}

	if scheduleType == models.ScheduleTypeFrequency {
		raw := getValue(row, col, "duree_minutes")
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			return scheduleImportRow{}, fmt.Errorf("row %d: invalid duration: %s", rowNum, raw)
		}
		parsed.FrequencyDuration = uint(minutes)
		return parsed, nil
	}

	switch strings.ToUpper(getValue(row, col, "plage")) {
	case "AM", "MATIN":
		parsed.DayType = models.DayTypeAM
	case "PM", "APRES-MIDI", "APRÈS-MIDI":
		parsed.DayType = models.DayTypePM
	}

	start1, err := normalizeClock(getValue(row, col, "debut1"))
	if err != nil {
		return scheduleImportRow{}, fmt.Errorf("row %d: invalid start time: %v", rowNum, err)
	}
	end1, err := normalizeClock(getValue(row, col, "fin1"))
	if err != nil {
		return scheduleImportRow{}, fmt.Errorf("row %d: invalid end time: %v", rowNum, err)
	}
	start2, err := normalizeClock(getValue(row, col, "debut2"))
	if err != nil {
		return scheduleImportRow{}, fmt.Errorf("row %d: invalid start time: %v", rowNum, err)
	}
	end2, err := normalizeClock(getValue(row, col, "fin2"))
	if err != nil {
		return scheduleImportRow{}, fmt.Errorf("row %d: invalid end time: %v", rowNum, err)
	}

	switch parsed.DayType {
	case models.DayTypeAM:
		parsed.StartTime1, parsed.EndTime1 = start1, end1
		if parsed.StartTime1 == "" || parsed.EndTime1 == "" {
			return scheduleImportRow{}, fmt.Errorf("row %d: missing morning time window", rowNum)
		}
	case models.DayTypePM:
		// Single-window sheets put the afternoon times in the first columns
		parsed.StartTime2, parsed.EndTime2 = start2, end2
		if parsed.StartTime2 == "" || parsed.EndTime2 == "" {
			parsed.StartTime2, parsed.EndTime2 = start1, end1
		}
		if parsed.StartTime2 == "" || parsed.EndTime2 == "" {
			return scheduleImportRow{}, fmt.Errorf("row %d: missing afternoon time window", rowNum)
		}
	default:
		parsed.StartTime1, parsed.EndTime1 = start1, end1
		parsed.StartTime2, parsed.EndTime2 = start2, end2
		if parsed.StartTime1 == "" || parsed.EndTime1 == "" {
			return scheduleImportRow{}, fmt.Errorf("row %d: missing first time window", rowNum)
		}
	}
	return parsed, nil
}

// normalizeClock reparses a cell value into canonical HH:MM, accepting
// the spreadsheet formats the time parser knows about. Empty stays empty.
func normalizeClock(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	minutes, err := utils.ClockMinutes(value)
	if err != nil {
		return "", err
	}
	return utils.FormatClock(minutes), nil
}

func processScheduleRows(tx *gorm.DB, rows []scheduleImportRow, stats *scheduleImportStats) error {
	// One schedule per (site, type) bucket within a single import.
	schedules := map[string]*models.Schedule{}

	for _, r := range rows {
		var site models.Site
		if err := tx.Where("nfc_id = ?", r.SiteScanID).First(&site).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				stats.UnknownSites = appendUnique(stats.UnknownSites, r.SiteScanID)
				continue
			}
			return err
		}

		bucketKey := fmt.Sprintf("%d|%s", site.ID, r.ScheduleType)
		schedule, ok := schedules[bucketKey]
		if !ok {
			var existing models.Schedule
			err := tx.Where("site_id = ? AND schedule_type = ? AND is_active = ?", site.ID, r.ScheduleType, true).
				First(&existing).Error
			switch {
			case err == nil:
				schedule = &existing
				stats.SchedulesReused++
			case err == gorm.ErrRecordNotFound:
				schedule = &models.Schedule{
					SiteID:       site.ID,
					ScheduleType: r.ScheduleType,
					IsActive:     true,
				}
				if err := tx.Create(schedule).Error; err != nil {
					return err
				}
				stats.SchedulesCreated++
			default:
				return err
			}
			schedules[bucketKey] = schedule
		}

		var detail models.ScheduleDetail
		err := tx.Where("schedule_id = ? AND day_of_week = ?", schedule.ID, r.DayOfWeek).First(&detail).Error
		if err == gorm.ErrRecordNotFound {
			detail = models.ScheduleDetail{
				ScheduleID:        schedule.ID,
				DayOfWeek:         r.DayOfWeek,
				DayType:           r.DayType,
				StartTime1:        r.StartTime1,
				EndTime1:          r.EndTime1,
				StartTime2:        r.StartTime2,
				EndTime2:          r.EndTime2,
				FrequencyDuration: r.FrequencyDuration,
			}
			if err := tx.Create(&detail).Error; err != nil {
				return err
			}
			stats.DetailsCreated++
			continue
		} else if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"day_type":           r.DayType,
			"start_time1":        r.StartTime1,
			"end_time1":          r.EndTime1,
			"start_time2":        r.StartTime2,
			"end_time2":          r.EndTime2,
			"frequency_duration": r.FrequencyDuration,
		}
		if err := tx.Model(&detail).Updates(updates).Error; err != nil {
			return err
		}
		stats.DetailsUpdated++
	}
	return nil
}

func appendUnique(slice []string, value string) []string {
	if value == "" {
		return slice
	}
	for _, v := range slice {
		if strings.EqualFold(v, value) {
			return slice
		}
	}
	return append(slice, value)
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sht := f.GetSheetName(0)
	if sht == "" {
		sht = "Sheet1"
	}
	return f.GetRows(sht)
}

func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "..", "_")
	return name
}
