package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/bakery/internal/config"
	"github.com/mamadbah2/bakery/internal/domain/models"
	"github.com/mamadbah2/bakery/internal/service/production"
	"github.com/mamadbah2/bakery/internal/service/reporting"
)

// SummaryProvider builds the daily summary sent in reports.
type SummaryProvider interface {
	DailySummary(ctx context.Context, day time.Time) (models.DailySummary, error)
}

// Resetter runs the end of day settlement.
type Resetter interface {
	DailyReset(ctx context.Context) (production.ResetResult, error)
}

// Notifier delivers a text report.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Exporter archives a daily summary.
type Exporter interface {
	ExportDailySummary(ctx context.Context, summary models.DailySummary) error
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	cfg      config.ReportingConfig
	summary  SummaryProvider
	resetter Resetter
	notifier Notifier
	exporter Exporter
	logger   *zap.Logger
	now      func() time.Time
}

// NewScheduler creates a new scheduler instance. notifier and exporter may be
// nil, in which case the daily report only gets logged.
func NewScheduler(cfg config.ReportingConfig, loc *time.Location, summary SummaryProvider, resetter Resetter, notifier Notifier, exporter Exporter, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}

	return &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		cfg:      cfg,
		summary:  summary,
		resetter: resetter,
		notifier: notifier,
		exporter: exporter,
		logger:   logger,
		now:      time.Now,
	}
}

// Start registers the jobs and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler")

	if _, err := s.cron.AddFunc(s.cfg.CronSchedule, s.dailyReportJob); err != nil {
		return fmt.Errorf("schedule daily report %q: %w", s.cfg.CronSchedule, err)
	}

	if s.cfg.DailyResetSchedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.DailyResetSchedule, s.dailyResetJob); err != nil {
			return fmt.Errorf("schedule daily reset %q: %w", s.cfg.DailyResetSchedule, err)
		}
		s.logger.Info("daily reset scheduled", zap.String("schedule", s.cfg.DailyResetSchedule))
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) dailyReportJob() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := s.RunDailyReport(ctx); err != nil {
		s.logger.Error("daily report failed", zap.Error(err))
	}
}

func (s *Scheduler) dailyResetJob() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if _, err := s.resetter.DailyReset(ctx); err != nil {
		s.logger.Error("scheduled daily reset failed", zap.Error(err))
	}
}

// RunDailyReport builds today's summary, exports it and sends it. Every sink
// is attempted; their failures are joined.
func (s *Scheduler) RunDailyReport(ctx context.Context) error {
	s.logger.Info("generating daily report")

	summary, err := s.summary.DailySummary(ctx, s.now())
	if err != nil {
		return fmt.Errorf("build daily summary: %w", err)
	}

	var errs []error
	if s.exporter != nil {
		if err := s.exporter.ExportDailySummary(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("export daily summary: %w", err))
		}
	}

	message := reporting.FormatDailyReport(summary)
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, message); err != nil {
			errs = append(errs, fmt.Errorf("send daily report: %w", err))
		}
	} else {
		s.logger.Info("daily report", zap.String("report", message))
	}

	if len(errs) == 0 {
		s.logger.Info("daily report completed", zap.String("date", summary.Date))
	}
	return errors.Join(errs...)
}
