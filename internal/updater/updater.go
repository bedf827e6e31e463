// Package updater replaces the running ffview binary with the latest
// GitHub release and keeps a backup of the previous one for rollback.
package updater

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/creativeprojects/go-selfupdate"

	"github.com/smazurov/ffview/internal/logging"
	"github.com/smazurov/ffview/internal/version"
)

// Updater checks for and applies releases.
type Updater struct {
	repository selfupdate.Repository
	updater    *selfupdate.Updater
	backup     *backupManager
	logger     *slog.Logger
}

// New creates an updater for opts.Repository.
func New(opts Options) (*Updater, error) {
	logger := logging.GetLogger("updater")

	slug := opts.Repository
	if slug == "" {
		slug = DefaultRepository
	}

	source, err := selfupdate.NewGitHubSource(selfupdate.GitHubConfig{})
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub source: %w", err)
	}
	updater, err := selfupdate.NewUpdater(selfupdate.Config{
		Source:     source,
		Prerelease: opts.Prerelease,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create updater: %w", err)
	}

	backupDir := opts.BackupDir
	if backupDir == "" {
		if backupDir, err = defaultBackupDir(); err != nil {
			logger.Warn("Backups disabled", "error", err)
		}
	}
	var backup *backupManager
	if backupDir != "" {
		if backup, err = newBackupManager(backupDir, logger); err != nil {
			logger.Warn("Backups disabled", "error", err)
		}
	}

	return &Updater{
		repository: selfupdate.ParseSlug(slug),
		updater:    updater,
		backup:     backup,
		logger:     logger,
	}, nil
}

// Check looks up the latest release without downloading it.
func (u *Updater) Check(ctx context.Context) (*UpdateInfo, error) {
	_, info, err := u.detect(ctx)
	return info, err
}

// Apply downloads the latest release over the running binary. The old
// binary is backed up first and restored when the replacement fails. The
// process keeps running the old code until it is restarted.
func (u *Updater) Apply(ctx context.Context) (*UpdateInfo, error) {
	release, info, err := u.detect(ctx)
	if err != nil {
		return nil, err
	}
	if !info.UpdateAvailable {
		return info, newError(ErrCodeNoUpdate, "already running "+info.CurrentVersion, nil)
	}

	exe, err := selfupdate.ExecutablePath()
	if err != nil {
		return nil, newError(ErrCodeApplyFailed, "failed to get executable path", err)
	}
	if err := checkWritePermission(filepath.Dir(exe)); err != nil {
		return nil, newError(ErrCodeNoPermission, "cannot replace "+exe, err)
	}

	if u.backup != nil {
		if err := u.backup.createBackup(exe); err != nil {
			return nil, newError(ErrCodeBackupFailed, "failed to create backup", err)
		}
	}

	u.logger.Info("Applying update", "from", info.CurrentVersion, "to", info.LatestVersion)
	if err := u.updater.UpdateTo(ctx, release, exe); err != nil {
		u.attemptRollback()
		return nil, newError(ErrCodeApplyFailed, "failed to apply update", err)
	}

	info.Applied = true
	u.logger.Info("Update applied, restart ffview to use it", "version", info.LatestVersion)
	return info, nil
}

// Rollback restores the binary saved by the last Apply.
func (u *Updater) Rollback() (string, error) {
	if u.backup == nil || !u.backup.hasBackup() {
		return "", newError(ErrCodeNoBackup, "no backup available for rollback", nil)
	}
	if err := u.backup.restore(); err != nil {
		return "", newError(ErrCodeRollbackFailed, "failed to restore backup", err)
	}
	return u.backup.backupVersion(), nil
}

func (u *Updater) detect(ctx context.Context) (*selfupdate.Release, *UpdateInfo, error) {
	current := version.String()

	release, found, err := u.updater.DetectLatest(ctx, u.repository)
	if err != nil {
		return nil, nil, newError(ErrCodeCheckFailed, "failed to check for updates", err)
	}
	if !found {
		return nil, nil, newError(ErrCodeNotFound, "repository not found or has no releases", nil)
	}

	// dev builds are always outdated
	newer := current == "dev" || release.GreaterThan(current)
	info := &UpdateInfo{
		CurrentVersion:  current,
		LatestVersion:   release.Version(),
		UpdateAvailable: newer,
	}
	if newer {
		info.ReleaseNotes = release.ReleaseNotes
		info.ReleaseURL = release.URL
		info.PublishedAt = release.PublishedAt
		info.AssetSize = release.AssetByteSize
	}
	return release, info, nil
}

func (u *Updater) attemptRollback() {
	if u.backup == nil || !u.backup.hasBackup() {
		u.logger.Error("No backup available for automatic rollback")
		return
	}
	if err := u.backup.restore(); err != nil {
		u.logger.Error("Failed to restore backup", "error", err)
		return
	}
	u.logger.Info("Automatic rollback completed")
}

// checkWritePermission tries to create a file next to the binary.
func checkWritePermission(dir string) error {
	f, err := os.CreateTemp(dir, ".ffview.update.*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
