package updater

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/smazurov/ffview/internal/version"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBackupRoundTrip(t *testing.T) {
	dir := t.TempDir()
	exe := filepath.Join(dir, "ffview")
	if err := os.WriteFile(exe, []byte("v1 binary"), 0o755); err != nil {
		t.Fatal(err)
	}

	old := version.Version
	version.Version = "v1.0.0"
	defer func() { version.Version = old }()

	m, err := newBackupManager(filepath.Join(dir, "backup"), testLogger())
	if err != nil {
		t.Fatalf("newBackupManager() error = %v", err)
	}
	if m.hasBackup() {
		t.Fatal("hasBackup() = true before any backup")
	}
	if err := m.restore(); err == nil {
		t.Error("restore() without backup error = nil")
	}

	if err := m.createBackup(exe); err != nil {
		t.Fatalf("createBackup() error = %v", err)
	}
	if got := m.backupVersion(); got != "v1.0.0" {
		t.Errorf("backupVersion() = %q, want v1.0.0", got)
	}

	// Replace the binary, then roll back.
	if err := os.WriteFile(exe, []byte("v2 binary"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := m.restore(); err != nil {
		t.Fatalf("restore() error = %v", err)
	}
	data, err := os.ReadFile(exe)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "v1 binary" {
		t.Errorf("restored binary = %q, want v1 binary", data)
	}
	if st, err := os.Stat(exe); err != nil || st.Mode().Perm()&0o100 == 0 {
		t.Errorf("restored binary not executable: %v %v", st.Mode(), err)
	}

	// A new manager picks the backup up from disk.
	reloaded, err := newBackupManager(filepath.Join(dir, "backup"), testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if !reloaded.hasBackup() || reloaded.backupVersion() != "v1.0.0" {
		t.Errorf("reloaded backup = %v %q", reloaded.hasBackup(), reloaded.backupVersion())
	}
}

func TestBackupInfoWithoutFile(t *testing.T) {
	dir := t.TempDir()
	info := `{"version":"v1.0.0","exec_path":"/usr/bin/ffview"}`
	if err := os.WriteFile(filepath.Join(dir, backupInfoFilename), []byte(info), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := newBackupManager(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if m.hasBackup() {
		t.Error("hasBackup() = true with the backup binary missing")
	}
}

func TestRollbackWithoutBackup(t *testing.T) {
	u := &Updater{logger: testLogger()}
	_, err := u.Rollback()
	if !errors.Is(err, &Error{Code: ErrCodeNoBackup}) {
		t.Errorf("Rollback() error = %v, want %s", err, ErrCodeNoBackup)
	}
}

func TestError(t *testing.T) {
	cause := errors.New("rate limited")
	err := newError(ErrCodeCheckFailed, "failed to check for updates", cause)

	if got, want := err.Error(), "CHECK_FAILED: failed to check for updates: rate limited"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is(err, cause) = false")
	}
	if !errors.Is(err, &Error{Code: ErrCodeCheckFailed}) {
		t.Error("errors.Is by code = false")
	}
	if errors.Is(err, &Error{Code: ErrCodeNoUpdate}) {
		t.Error("errors.Is matched a different code")
	}
	if got := newError(ErrCodeNoBackup, "none", nil).Error(); got != "NO_BACKUP: none" {
		t.Errorf("Error() = %q", got)
	}
}

func TestCheckWritePermission(t *testing.T) {
	dir := t.TempDir()
	if err := checkWritePermission(dir); err != nil {
		t.Errorf("checkWritePermission(tempdir) error = %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("probe file left behind: %v", entries)
	}
	if err := checkWritePermission(filepath.Join(dir, "missing")); err == nil {
		t.Error("checkWritePermission(missing) error = nil")
	}
}
