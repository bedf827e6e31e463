package updater

import "time"

// DefaultRepository is the GitHub repository releases are fetched from.
const DefaultRepository = "smazurov/ffview"

// UpdateInfo describes the latest release relative to the running binary.
type UpdateInfo struct {
	CurrentVersion  string    `json:"current_version" yaml:"current_version"`
	LatestVersion   string    `json:"latest_version" yaml:"latest_version"`
	ReleaseNotes    string    `json:"release_notes,omitempty" yaml:"release_notes,omitempty"`
	ReleaseURL      string    `json:"release_url,omitempty" yaml:"release_url,omitempty"`
	PublishedAt     time.Time `json:"published_at,omitzero" yaml:"published_at,omitempty"`
	AssetSize       int       `json:"asset_size,omitempty" yaml:"asset_size,omitempty"`
	UpdateAvailable bool      `json:"update_available" yaml:"update_available"`
	Applied         bool      `json:"applied" yaml:"applied"`
}

// Options configures an Updater.
type Options struct {
	// Repository is the GitHub slug, DefaultRepository when empty.
	Repository string
	// Prerelease includes prereleases.
	Prerelease bool
	// BackupDir holds the copy of the replaced binary. Empty uses
	// ~/.cache/ffview/backup.
	BackupDir string
}
