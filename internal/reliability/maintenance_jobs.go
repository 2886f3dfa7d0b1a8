package reliability

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/aristath/qaoa/internal/database"
)

const (
	backupPrefix = "runs-"
	backupSuffix = ".db"
	// DefaultBackupsKept is the number of local backups retained.
	DefaultBackupsKept = 7
	// criticalFreeBytes halts maintenance before a backup fills the disk.
	criticalFreeBytes = 500 << 20
	lowFreeBytes      = 5 << 30
)

// DailyMaintenanceJob checks the run database, backs it up and ships the backup to
// object storage when one is configured.
type DailyMaintenanceJob struct {
	db        *database.DB
	backupDir string
	store     ObjectStore
	keep      int
	timeout   time.Duration
	log       zerolog.Logger

	// freeBytes reports free space on the backup volume.
	freeBytes func(path string) (uint64, error)
	now       func() time.Time
}

// NewDailyMaintenanceJob creates the maintenance job. store may be nil.
func NewDailyMaintenanceJob(db *database.DB, backupDir string, store ObjectStore, log zerolog.Logger) *DailyMaintenanceJob {
	return &DailyMaintenanceJob{
		db:        db,
		backupDir: backupDir,
		store:     store,
		keep:      DefaultBackupsKept,
		timeout:   10 * time.Minute,
		log:       log.With().Str("job", "daily_maintenance").Logger(),
		freeBytes: diskFree,
		now:       time.Now,
	}
}

func diskFree(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// Name returns the job name for scheduler
func (j *DailyMaintenanceJob) Name() string {
	return "daily_maintenance"
}

// Run executes the daily maintenance job
func (j *DailyMaintenanceJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	j.log.Info().Msg("Starting daily maintenance")
	startTime := time.Now()

	// Step 1: integrity check
	if err := j.db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("CRITICAL: run database unhealthy: %w", err)
	}

	// Step 2: WAL checkpoint (not critical)
	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint failed")
	}

	if err := os.MkdirAll(j.backupDir, 0755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	// Step 3: disk space
	if err := j.checkDiskSpace(); err != nil {
		return err
	}

	// Step 4: backup, verify, ship
	backupPath, err := j.backup(ctx)
	if err != nil {
		return err
	}
	if j.store != nil {
		if err := j.upload(ctx, backupPath); err != nil {
			return err
		}
	}

	// Step 5: retention
	j.prune()

	j.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("backup", backupPath).
		Msg("Daily maintenance completed successfully")
	return nil
}

// checkDiskSpace verifies sufficient disk space is available
func (j *DailyMaintenanceJob) checkDiskSpace() error {
	free, err := j.freeBytes(j.backupDir)
	if err != nil {
		j.log.Warn().Err(err).Msg("Disk usage unavailable")
		return nil
	}
	availableGB := float64(free) / 1e9
	j.log.Debug().Float64("available_gb", availableGB).Msg("Disk space check")

	if free < criticalFreeBytes {
		j.log.Error().Float64("available_gb", availableGB).Msg("CRITICAL: Insufficient disk space")
		return fmt.Errorf("CRITICAL: only %.2f GB free, skipping backup", availableGB)
	}
	if free < lowFreeBytes {
		j.log.Warn().Float64("available_gb", availableGB).Msg("Disk space running low")
	}
	return nil
}

func (j *DailyMaintenanceJob) backup(ctx context.Context) (string, error) {
	name := backupPrefix + j.now().UTC().Format("2006-01-02-150405") + backupSuffix
	path := filepath.Join(j.backupDir, name)
	if err := j.db.BackupTo(ctx, path); err != nil {
		return "", fmt.Errorf("failed to back up run database: %w", err)
	}
	if err := verifyBackup(ctx, path); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

// verifyBackup runs an integrity check on a backup file.
func verifyBackup(ctx context.Context, path string) error {
	backupDB, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer backupDB.Close()

	var result string
	if err := backupDB.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("backup integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("backup integrity check failed: %s", result)
	}
	return nil
}

func (j *DailyMaintenanceJob) upload(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()
	return j.store.Upload(ctx, "backups/"+filepath.Base(path), f, "application/vnd.sqlite3")
}

// Backups lists local backup files, newest first.
func (j *DailyMaintenanceJob) Backups() ([]string, error) {
	entries, err := os.ReadDir(j.backupDir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), backupPrefix) && strings.HasSuffix(e.Name(), backupSuffix) {
			names = append(names, e.Name())
		}
	}
	// timestamps sort lexically
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

func (j *DailyMaintenanceJob) prune() {
	names, err := j.Backups()
	if err != nil {
		j.log.Warn().Err(err).Msg("Failed to list backups")
		return
	}
	for i := j.keep; i < len(names); i++ {
		path := filepath.Join(j.backupDir, names[i])
		if err := os.Remove(path); err != nil {
			j.log.Warn().Err(err).Str("path", path).Msg("Failed to remove old backup")
			continue
		}
		j.log.Debug().Str("path", path).Msg("Old backup removed")
	}
}
