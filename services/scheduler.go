package services

import (
	"github.com/eldertek/pg-pointage-sub001/config"
	"github.com/eldertek/pg-pointage-sub001/database"
	"github.com/eldertek/pg-pointage-sub001/models"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// SweepScheduler drives the periodic jobs: the minute sweep, the nightly
// day sweep over the previous day, the weekly anomaly summary and the
// activity log archiving.
type SweepScheduler struct {
	cron    *cron.Cron
	minute  *MinuteSweeper
	day     *DaySweeper
	archive *LogArchiveService
	clock   Clock
}

func NewSweepScheduler() *SweepScheduler {
	return &SweepScheduler{
		cron:    cron.New(cron.WithLocation(config.AppConfig.Location)),
		minute:  NewMinuteSweeper(),
		day:     NewDaySweeper(),
		archive: NewLogArchiveService(),
		clock:   SystemClock(),
	}
}

// Start registers the jobs and launches the dispatcher. It returns after
// scheduling; the cron runs on its own goroutine.
func (s *SweepScheduler) Start() {
	s.cron.AddFunc("* * * * *", s.runMinuteSweep)
	s.cron.AddFunc("30 0 * * *", s.runNightlySweep)
	s.cron.AddFunc("0 7 * * 1", s.runWeeklySummary)
	s.cron.AddFunc("0 2 * * *", s.runLogArchive)
	s.cron.Start()
	logrus.Info("sweep scheduler started")
}

// Stop halts the dispatcher, waiting for running jobs.
func (s *SweepScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *SweepScheduler) runMinuteSweep() {
	created, err := s.minute.Run(database.DB, MinuteSweepOptions{})
	if err != nil {
		logrus.WithError(err).Error("minute sweep failed")
		return
	}
	if created > 0 {
		logrus.WithField("created", created).Info("minute sweep raised anomalies")
	}
}

func (s *SweepScheduler) runNightlySweep() {
	yesterday := s.clock.Now().In(config.AppConfig.Location).AddDate(0, 0, -1)
	summary, err := s.day.Run(database.DB, DaySweepOptions{
		StartDate:    yesterday,
		EndDate:      yesterday,
		IgnoreErrors: true,
	})
	if err != nil {
		logrus.WithError(err).Error("nightly sweep failed")
		return
	}
	logrus.WithFields(logrus.Fields{
		"created": summary.Created,
		"updated": summary.Updated,
		"deleted": summary.Deleted,
	}).Info("nightly sweep finished")
}

// runWeeklySummary logs the per-site anomaly totals of the past week for
// the monday morning report.
func (s *SweepScheduler) runWeeklySummary() {
	since := s.clock.Now().AddDate(0, 0, -7)
	type row struct {
		SiteID uint
		Total  int64
	}
	var rows []row
	err := database.DB.Model(&models.Anomaly{}).
		Select("site_id, COUNT(*) AS total").
		Where("created_at >= ?", since).
		Group("site_id").
		Scan(&rows).Error
	if err != nil {
		logrus.WithError(err).Error("weekly summary failed")
		return
	}
	for _, r := range rows {
		logrus.WithFields(logrus.Fields{
			"site_id":   r.SiteID,
			"anomalies": r.Total,
			"since":     since.Format("2006-01-02"),
		}).Info("weekly anomaly summary")
	}
}

func (s *SweepScheduler) runLogArchive() {
	if err := s.archive.FlushCachedLogsToDatabase(); err != nil {
		logrus.WithError(err).Warn("cached log flush failed")
	}
	if err := s.archive.ArchiveOldLogs(30); err != nil {
		logrus.WithError(err).Error("log archive failed")
	}
}
