package backup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ramonehamilton/deckvault/internal/storage/repository"
)

// ScheduleSettingsKey is the settings row holding the backup schedule.
const ScheduleSettingsKey = "backup.schedule"

// ErrInvalidSchedule is returned for a schedule that fails validation.
var ErrInvalidSchedule = errors.New("invalid backup schedule")

// ScheduleConfig is the persisted backup schedule.
type ScheduleConfig struct {
	Enabled   bool   `json:"enabled"`
	Cron      string `json:"cron"`
	Retention int    `json:"retention"`
}

// DefaultScheduleConfig is a disabled nightly schedule keeping a week.
func DefaultScheduleConfig() ScheduleConfig {
	return ScheduleConfig{Enabled: false, Cron: "0 3 * * *", Retention: 7}
}

// Validate checks the cron expression and retention.
func (c ScheduleConfig) Validate() error {
	if _, err := cron.ParseStandard(c.Cron); err != nil {
		return fmt.Errorf("%w: cron %q: %v", ErrInvalidSchedule, c.Cron, err)
	}
	if c.Retention < 1 {
		return fmt.Errorf("%w: retention must be at least 1", ErrInvalidSchedule)
	}
	return nil
}

// SchedulerStatus contains information about the scheduler state.
type SchedulerStatus struct {
	ScheduleConfig
	Running      bool       `json:"running"`
	NextBackup   *time.Time `json:"next_backup,omitempty"`
	LastBackup   *time.Time `json:"last_backup,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	BackupCount  int        `json:"backup_count"`
	FailureCount int        `json:"failure_count"`
	SyncCron     string     `json:"sync_cron,omitempty"`
	NextSync     *time.Time `json:"next_sync,omitempty"`
}

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	Manager  *Manager
	Settings repository.SettingsRepository
	// Defaults apply until a schedule is saved.
	Defaults ScheduleConfig
	// SyncCron schedules SyncJob. Empty disables the catalog job.
	SyncCron string
	SyncJob  func(ctx context.Context) error
	Logger   *zap.Logger
}

// Scheduler runs the scheduled backup and catalog sync jobs. A job still
// running when its next tick fires is skipped.
type Scheduler struct {
	cron     *cron.Cron
	manager  *Manager
	settings repository.SettingsRepository
	syncCron string
	syncJob  func(ctx context.Context) error
	logger   *zap.Logger

	mu           sync.Mutex
	ctx          context.Context
	config       ScheduleConfig
	running      bool
	backupEntry  cron.EntryID
	syncEntry    cron.EntryID
	lastBackup   *time.Time
	lastError    string
	backupCount  int
	failureCount int
}

// NewScheduler creates a stopped scheduler.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Defaults.Cron == "" {
		opts.Defaults = DefaultScheduleConfig()
	}
	logger := cronLogger{logger: opts.Logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		manager:  opts.Manager,
		settings: opts.Settings,
		syncCron: opts.SyncCron,
		syncJob:  opts.SyncJob,
		logger:   opts.Logger,
		ctx:      context.Background(),
		config:   opts.Defaults,
	}
}

// Start loads the saved schedule, registers the jobs and starts the cron
// loop. Jobs run with ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	if s.settings != nil {
		var saved ScheduleConfig
		found, err := s.settings.GetTyped(ctx, ScheduleSettingsKey, &saved)
		if err != nil {
			return err
		}
		if found {
			if err := saved.Validate(); err != nil {
				s.logger.Warn("ignoring saved backup schedule", zap.Error(err))
			} else {
				s.config = saved
			}
		}
	}

	if s.syncJob != nil && s.syncCron != "" {
		id, err := s.cron.AddFunc(s.syncCron, s.runSync)
		if err != nil {
			return fmt.Errorf("invalid catalog sync schedule %q: %w", s.syncCron, err)
		}
		s.syncEntry = id
	}
	if err := s.scheduleBackupLocked(); err != nil {
		return err
	}

	s.ctx = ctx
	s.running = true
	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.Bool("backup_enabled", s.config.Enabled),
		zap.String("backup_cron", s.config.Cron),
		zap.String("sync_cron", s.syncCron))
	return nil
}

// Stop stops the cron loop and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) scheduleBackupLocked() error {
	if s.backupEntry != 0 {
		s.cron.Remove(s.backupEntry)
		s.backupEntry = 0
	}
	if !s.config.Enabled {
		return nil
	}
	id, err := s.cron.AddFunc(s.config.Cron, s.runScheduledBackup)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
	}
	s.backupEntry = id
	return nil
}

// Config returns the active backup schedule.
func (s *Scheduler) Config() ScheduleConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// UpdateConfig validates, saves and applies a new backup schedule.
func (s *Scheduler) UpdateConfig(ctx context.Context, cfg ScheduleConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if s.settings != nil {
		if err := s.settings.Set(ctx, ScheduleSettingsKey, cfg); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
	if err := s.scheduleBackupLocked(); err != nil {
		return err
	}
	s.logger.Info("backup schedule updated",
		zap.Bool("enabled", cfg.Enabled),
		zap.String("cron", cfg.Cron),
		zap.Int("retention", cfg.Retention))
	return nil
}

// Status returns the current scheduler status.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := SchedulerStatus{
		ScheduleConfig: s.config,
		Running:        s.running,
		LastBackup:     s.lastBackup,
		LastError:      s.lastError,
		BackupCount:    s.backupCount,
		FailureCount:   s.failureCount,
		SyncCron:       s.syncCron,
	}
	if s.backupEntry != 0 {
		status.NextBackup = s.next(s.backupEntry, s.config.Cron)
	}
	if s.syncEntry != 0 {
		status.NextSync = s.next(s.syncEntry, s.syncCron)
	}
	return status
}

// next reads the entry's next run; before Start it is computed from spec.
func (s *Scheduler) next(id cron.EntryID, spec string) *time.Time {
	next := s.cron.Entry(id).Next
	if next.IsZero() {
		schedule, err := cron.ParseStandard(spec)
		if err != nil {
			return nil
		}
		next = schedule.Next(time.Now())
	}
	return &next
}

func (s *Scheduler) jobContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Scheduler) runScheduledBackup() {
	_ = s.RunBackup(s.jobContext())
}

// RunBackup takes a scheduled backup and prunes old ones. It is the body of
// the backup job.
func (s *Scheduler) RunBackup(ctx context.Context) error {
	info, err := s.manager.Create(ctx, TypeScheduled)
	if errors.Is(err, ErrBackupInProgress) {
		s.logger.Info("scheduled backup skipped, another backup is running")
		return err
	}

	now := time.Now().UTC()
	s.mu.Lock()
	s.lastBackup = &now
	retention := s.config.Retention
	if err != nil {
		s.failureCount++
		s.lastError = err.Error()
	} else {
		s.backupCount++
		s.lastError = ""
	}
	s.mu.Unlock()

	if err != nil {
		return err
	}

	removed, err := s.manager.Prune(ctx, retention)
	if err != nil {
		s.logger.Warn("failed to prune backups", zap.Error(err))
		return nil
	}
	s.logger.Info("scheduled backup complete",
		zap.String("file", info.Filename),
		zap.Int("pruned", removed))
	return nil
}

func (s *Scheduler) runSync() {
	if err := s.syncJob(s.jobContext()); err != nil {
		s.logger.Warn("scheduled catalog sync failed", zap.Error(err))
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		l.logger.Sugar().Infow("cron job skipped, previous run still active", keysAndValues...)
		return
	}
	l.logger.Sugar().Debugw("cron "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw("cron "+msg, append(keysAndValues, "error", err)...)
}
