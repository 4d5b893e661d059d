package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the settings of the deployment updater.
type Config struct {
	// ReleaseAPI is the URL of the latest-release endpoint of the release service.
	ReleaseAPI string `yaml:"release_api"`
	// ArchiveSuffix marks the release asset to download (archive format marker).
	ArchiveSuffix string `yaml:"archive_suffix"`
	// ArchiveFile is the well-known filename the archive is downloaded to.
	ArchiveFile string `yaml:"archive_file"`
	// VersionFile is the local record holding the deployed release tag.
	VersionFile string `yaml:"version_file"`
	// StagingDir is the directory name used to stage the extracted release.
	StagingDir string `yaml:"staging_dir"`
	// MigrationsDirName is the reserved directory name discovered and preserved
	// across updates (schema-migration history folders).
	MigrationsDirName string `yaml:"migrations_dir_name"`
	// Preserve lists additional relative paths carried across updates unmodified.
	Preserve []string `yaml:"preserve"`
	// ComposeService is the compose service migrations and admin commands run in.
	ComposeService string `yaml:"compose_service"`
	// MigrateCommand is executed inside ComposeService to apply schema migrations.
	MigrateCommand []string `yaml:"migrate_command"`
	// AdminCommand is executed inside ComposeService to reconcile the
	// privileged administrative account.
	AdminCommand []string `yaml:"admin_command"`
	// AdminEnvFile supplies the administrative account credentials.
	AdminEnvFile string `yaml:"admin_env_file"`
	// Timeout bounds a single network operation.
	Timeout time.Duration `yaml:"timeout"`
}

const (
	// DefaultConfigFilename is the default filename for updater settings.
	DefaultConfigFilename = "stack-updater-settings.yaml"

	// DefaultArchiveSuffix is the recognized release archive format marker.
	DefaultArchiveSuffix = ".tar.gz"

	// DefaultArchiveFilename is where the release archive is downloaded to.
	DefaultArchiveFilename = "release.tar.gz"

	// DefaultVersionFilename is the default local version record.
	DefaultVersionFilename = "version.txt"

	// DefaultStagingDirname is the default staging directory name.
	DefaultStagingDirname = "staging"

	// DefaultMigrationsDirName is the reserved migration-history folder name.
	DefaultMigrationsDirName = "migrations"

	// DefaultComposeService is the compose service hosting the application.
	DefaultComposeService = "backend"

	// DefaultAdminEnvFilename is the default privileged credentials file.
	DefaultAdminEnvFilename = ".env"

	// DefaultTimeout is the default duration for a single network operation.
	DefaultTimeout = 5 * time.Minute

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errReleaseAPIRequired is returned when the release endpoint is missing.
	errReleaseAPIRequired = errors.New("release API endpoint must be provided")
	// errBadArchiveSuffix is returned when the archive suffix has no format marker.
	errBadArchiveSuffix = errors.New("archive suffix must start with a dot")
)

// defaultMigrateCommand applies pending schema migrations inside the service.
func defaultMigrateCommand() []string {
	return []string{"python", "manage.py", "migrate"}
}

// defaultAdminCommand reconciles the privileged administrative account.
func defaultAdminCommand() []string {
	return []string{"python", "manage.py", "createsuperuser", "--noinput"}
}

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks the provided settings for required fields and fills defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.ReleaseAPI == "" {
		return errReleaseAPIRequired
	}

	if _, err := url.ParseRequestURI(cfg.ReleaseAPI); err != nil {
		return fmt.Errorf("invalid release API endpoint: %w", err)
	}

	if cfg.ArchiveSuffix == "" {
		cfg.ArchiveSuffix = DefaultArchiveSuffix
	}

	if !strings.HasPrefix(cfg.ArchiveSuffix, ".") {
		return fmt.Errorf("%q: %w", cfg.ArchiveSuffix, errBadArchiveSuffix)
	}

	if cfg.ArchiveFile == "" {
		cfg.ArchiveFile = DefaultArchiveFilename
	}

	if cfg.VersionFile == "" {
		cfg.VersionFile = DefaultVersionFilename
	}

	if cfg.StagingDir == "" {
		cfg.StagingDir = DefaultStagingDirname
	}

	if cfg.MigrationsDirName == "" {
		cfg.MigrationsDirName = DefaultMigrationsDirName
	}

	if cfg.ComposeService == "" {
		cfg.ComposeService = DefaultComposeService
	}

	if len(cfg.MigrateCommand) == 0 {
		cfg.MigrateCommand = defaultMigrateCommand()
	}

	if len(cfg.AdminCommand) == 0 {
		cfg.AdminCommand = defaultAdminCommand()
	}

	if cfg.AdminEnvFile == "" {
		cfg.AdminEnvFile = DefaultAdminEnvFilename
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return nil
}
