package service

import (
	"context"
	"errors"
	"os"

	"go.uber.org/zap"

	"github.com/ramonehamilton/deckvault/internal/backup"
	"github.com/ramonehamilton/deckvault/internal/catalog"
	"github.com/ramonehamilton/deckvault/internal/storage/repository"
)

// CatalogSyncer runs catalog syncs. *catalog.Syncer implements it.
type CatalogSyncer interface {
	Run(ctx context.Context, triggeredBy string) (*catalog.ImportStats, error)
	Status() catalog.Status
}

// BackupStore manages backup files. *backup.Manager implements it.
type BackupStore interface {
	Create(ctx context.Context, typ backup.Type) (*backup.Info, error)
	List() ([]*backup.Info, error)
	Open(name string) (*os.File, error)
	Delete(ctx context.Context, name string) error
	Restore(ctx context.Context, name string, overwrite bool) (*backup.RestoreResult, error)
}

// BackupScheduler owns the backup schedule. *backup.Scheduler implements it.
type BackupScheduler interface {
	Status() backup.SchedulerStatus
	UpdateConfig(ctx context.Context, cfg backup.ScheduleConfig) error
}

// AdminService exposes catalog sync and backup management to administrators.
type AdminService struct {
	services  *Services
	syncer    CatalogSyncer
	backups   BackupStore
	scheduler BackupScheduler
}

// NewAdminService creates a new AdminService. scheduler may be nil.
func NewAdminService(services *Services, syncer CatalogSyncer, backups BackupStore, scheduler BackupScheduler) *AdminService {
	return &AdminService{services: services, syncer: syncer, backups: backups, scheduler: scheduler}
}

// Sync runs a catalog sync and blocks until it finishes.
func (a *AdminService) Sync(ctx context.Context, triggeredBy string) (*catalog.ImportStats, error) {
	stats, err := a.syncer.Run(ctx, triggeredBy)
	if errors.Is(err, catalog.ErrSyncInProgress) {
		return nil, conflict(err)
	}
	if err != nil {
		a.services.logger().Error("catalog sync failed", zap.String("triggered_by", triggeredBy), zap.Error(err))
		return nil, err
	}
	return stats, nil
}

// CatalogStatus is the sync state plus the size of the stored catalog.
type CatalogStatus struct {
	catalog.Status
	Sets      int `json:"sets"`
	Cards     int `json:"cards"`
	Printings int `json:"printings"`
}

// SyncStatus returns the sync state.
func (a *AdminService) SyncStatus(ctx context.Context) (*CatalogStatus, error) {
	status := &CatalogStatus{Status: a.syncer.Status()}
	var err error
	status.Sets, status.Cards, status.Printings, err = repository.NewCatalogRepository(a.services.conn()).Counts(ctx)
	if err != nil {
		return nil, err
	}
	return status, nil
}

// ListBackups returns the stored backups, newest first.
func (a *AdminService) ListBackups() ([]*backup.Info, error) {
	return a.backups.List()
}

// CreateBackup takes a manual backup.
func (a *AdminService) CreateBackup(ctx context.Context) (*backup.Info, error) {
	info, err := a.backups.Create(ctx, backup.TypeManual)
	if err != nil {
		return nil, backupError(err)
	}
	return info, nil
}

// OpenBackup opens a backup file for download. The caller closes it.
func (a *AdminService) OpenBackup(name string) (*os.File, error) {
	f, err := a.backups.Open(name)
	if err != nil {
		return nil, backupError(err)
	}
	return f, nil
}

// DeleteBackup removes a backup file.
func (a *AdminService) DeleteBackup(ctx context.Context, name string) error {
	return backupError(a.backups.Delete(ctx, name))
}

// RestoreBackup restores a backup file. Overwrite wipes every account first;
// otherwise the backup is merged into the existing data.
func (a *AdminService) RestoreBackup(ctx context.Context, name string, overwrite bool) (*backup.RestoreResult, error) {
	result, err := a.backups.Restore(ctx, name, overwrite)
	if err != nil {
		return nil, backupError(err)
	}
	return result, nil
}

// Schedule returns the backup schedule and scheduler state.
func (a *AdminService) Schedule() (*backup.SchedulerStatus, error) {
	if a.scheduler == nil {
		return nil, newError(ErrNotFound, "backup scheduler is not running")
	}
	status := a.scheduler.Status()
	return &status, nil
}

// UpdateSchedule validates, stores and applies a new schedule.
func (a *AdminService) UpdateSchedule(ctx context.Context, cfg backup.ScheduleConfig) (*backup.SchedulerStatus, error) {
	if a.scheduler == nil {
		return nil, newError(ErrNotFound, "backup scheduler is not running")
	}
	if err := a.scheduler.UpdateConfig(ctx, cfg); err != nil {
		if errors.Is(err, backup.ErrInvalidSchedule) {
			return nil, validationError("%s", err.Error())
		}
		return nil, err
	}
	return a.Schedule()
}

func backupError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, backup.ErrBackupInProgress):
		return conflict(err)
	case errors.Is(err, backup.ErrInvalidName):
		return &AppError{Message: err.Error(), Err: errors.Join(ErrValidation, err)}
	case errors.Is(err, backup.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return &AppError{Message: err.Error(), Err: errors.Join(ErrNotFound, err)}
	default:
		return err
	}
}
