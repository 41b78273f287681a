package cron

import (
	"context"
	"sync"

	"github.com/caarlos0/env/v6"
	cronv3 "github.com/robfig/cron/v3"

	"github.com/customeros/dmarcwatch/config"
	"github.com/customeros/dmarcwatch/interfaces"
	cron_config "github.com/customeros/dmarcwatch/internal/cron/config"
	"github.com/customeros/dmarcwatch/internal/logger"
	"github.com/customeros/dmarcwatch/internal/tracing"
)

// CONSTANTS
const (
	// GroupDmarcwatch is the group for report processing jobs
	GroupDmarcwatch = "dmarcwatch"
)

// LOCK MANAGEMENT
var jobLocks = struct {
	sync.Mutex
	locks map[string]*sync.Mutex
}{
	locks: map[string]*sync.Mutex{
		GroupDmarcwatch: new(sync.Mutex),
	},
}

type CronManager struct {
	cfg     *config.Config
	log     logger.Logger
	cron    *cronv3.Cron
	stopCh  chan struct{}
	jobIDs  map[string]cronv3.EntryID
	monitor interfaces.MonitorService
	reports interfaces.ReportRepository
}

func NewCronManager(cfg *config.Config, log logger.Logger, monitor interfaces.MonitorService, reports interfaces.ReportRepository) *CronManager {
	return &CronManager{
		cfg:     cfg,
		log:     log,
		stopCh:  make(chan struct{}),
		jobIDs:  make(map[string]cronv3.EntryID),
		monitor: monitor,
		reports: reports,
	}
}

// Start initializes and starts the cron scheduler. With RunOnStart set
// a mailbox check fires immediately instead of waiting for the first
// scheduled slot.
func (cm *CronManager) Start() error {
	cm.StartCron()
	if cm.cfg.MonitorConfig.RunOnStart {
		go func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupDmarcwatch].Lock()
			defer jobLocks.locks[GroupDmarcwatch].Unlock()
			cm.runMonitor()
		}()
	}
	return nil
}

// Stop gracefully stops the cron manager
func (cm *CronManager) Stop() {
	if cm.cron != nil {
		cm.log.Info("Stopping cron manager")
		ctx := cm.cron.Stop()
		// Wait for jobs to finish
		<-ctx.Done()
	}
	close(cm.stopCh)
}

// registerJobs adds all cron jobs to the scheduler
func (cm *CronManager) registerJobs(c *cronv3.Cron) {
	var cronConfig cron_config.Config
	if err := env.Parse(&cronConfig); err != nil {
		cm.log.Fatalf("Failed to parse cron config from environment: %v", err)
	}

	// Register heartbeat job
	if cronConfig.CronScheduleHeartbeat != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleHeartbeat, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			cm.log.Debug("Cron heartbeat")
		})
		if err != nil {
			cm.log.Fatalf("Could not add heartbeat cron job: %v", err)
		}
		cm.jobIDs["heartbeat"] = id
		cm.log.Infof("Registered heartbeat job with schedule: %s", cronConfig.CronScheduleHeartbeat)
	}

	// Mailbox check and report processing job
	if cm.cfg.MonitorConfig.Schedule != "" {
		id, err := c.AddFunc(cm.cfg.MonitorConfig.Schedule, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupDmarcwatch].Lock()
			defer jobLocks.locks[GroupDmarcwatch].Unlock()
			cm.runMonitor()
		})
		if err != nil {
			cm.log.Fatalf("Could not add monitor cron job: %v", err)
		}
		cm.jobIDs["monitor"] = id
		cm.log.Infof("Registered monitor job with schedule: %s", cm.cfg.MonitorConfig.Schedule)
	}

	// Retention sweep job
	if cronConfig.CronScheduleRetentionPurge != "" {
		id, err := c.AddFunc(cronConfig.CronScheduleRetentionPurge, func() {
			defer tracing.RecoverAndLogToJaeger(cm.log)
			jobLocks.locks[GroupDmarcwatch].Lock()
			defer jobLocks.locks[GroupDmarcwatch].Unlock()
			cm.runRetentionPurge()
		})
		if err != nil {
			cm.log.Fatalf("Could not add retention purge cron job: %v", err)
		}
		cm.jobIDs["retention_purge"] = id
		cm.log.Infof("Registered retention purge job with schedule: %s", cronConfig.CronScheduleRetentionPurge)
	}
}

// StartCron initializes and starts the cron scheduler
func (cm *CronManager) StartCron() {
	cm.log.Info("Starting cron manager")
	cronOptions := []cronv3.Option{
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	}
	c := cronv3.New(cronOptions...)
	cm.registerJobs(c)
	c.Start()
	cm.cron = c
}

func (cm *CronManager) runMonitor() {
	cm.log.Info("Running scheduled mailbox check")

	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.runMonitor")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	summary, err := cm.monitor.Run(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Scheduled mailbox check failed: %v", err)
		return
	}

	cm.log.Infof("Scheduled mailbox check complete: %d reports processed, %d with issues", summary.ReportsParsed, summary.IssueCount)
}

func (cm *CronManager) runRetentionPurge() {
	cm.log.Info("Running retention sweep")

	ctx := context.Background()

	span, ctx := tracing.StartTracerSpan(ctx, "CronManager.runRetentionPurge")
	defer span.Finish()
	tracing.TagComponentCronJob(span)

	stats, err := cm.reports.Purge(ctx, cm.cfg.RetentionConfig.RetentionDays)
	if err != nil {
		tracing.TraceErr(span, err)
		cm.log.Errorf("Retention sweep failed: %v", err)
		return
	}

	cm.log.Infof("Retention sweep removed %d reports, %d records, %d analyses, %d alert rows",
		stats.ReportsDeleted, stats.RecordsDeleted, stats.AnalysesDeleted, stats.AlertsDeleted)
}
