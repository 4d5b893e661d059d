package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oshokin/stack-updater/internal/apperr"
	"github.com/oshokin/stack-updater/internal/logger"
)

// Options are the inputs required to build an Engine for one update run.
type Options struct {
	// Root is the live deployment tree being updated.
	Root string
	// StagingDirName is the directory name (under Root) staging the new release.
	StagingDirName string
	// ArchiveFilename is the downloaded archive name (under Root).
	ArchiveFilename string
	// MigrationsDirName is the reserved directory name discovered recursively
	// and preserved across the update.
	MigrationsDirName string
	// ExtraPreserve lists additional relative paths to preserve.
	ExtraPreserve []string
	// Spare lists additional top-level entry names left alone by the clear
	// phase (for example the updater's own settings file).
	Spare []string
	// SelfName is the basename of the running executable, spared during the
	// clear phase. Derived from os.Executable when empty.
	SelfName string
}

// Relocation maps a preserved path to its temporary parking location.
type Relocation struct {
	// Original is the path relative to the deployment root.
	Original string
	// Temporary is the absolute parking location inside the staging tree.
	Temporary string
}

// Engine performs the preserve/replace/restore surgery that swaps a staged
// release into the live deployment root. It runs seven strictly ordered
// phases; a fatal failure in phases 1-6 aborts the remainder.
type Engine struct {
	root           string
	stagingName    string
	archiveName    string
	migrationsName string
	extraPreserve  []string
	spare          map[string]struct{}
	selfName       string
	// parkName is the run-unique directory (under staging) parking preserved
	// paths while the deployment root is cleared.
	parkName string
}

var (
	errRootRequired    = errors.New("deployment root must be provided")
	errStagingRequired = errors.New("staging directory name must be provided")
	errArchiveRequired = errors.New("archive filename must be provided")
)

// NewEngine builds an engine for a single update run.
func NewEngine(opts *Options) (*Engine, error) {
	if opts == nil || opts.Root == "" {
		return nil, errRootRequired
	}

	if opts.StagingDirName == "" {
		return nil, errStagingRequired
	}

	if opts.ArchiveFilename == "" {
		return nil, errArchiveRequired
	}

	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve deployment root: %w", err)
	}

	selfName := opts.SelfName
	if selfName == "" {
		if executable, execErr := os.Executable(); execErr == nil {
			selfName = filepath.Base(executable)
		}
	}

	spare := make(map[string]struct{}, len(opts.Spare))
	for _, name := range opts.Spare {
		spare[name] = struct{}{}
	}

	return &Engine{
		root:           root,
		stagingName:    opts.StagingDirName,
		archiveName:    opts.ArchiveFilename,
		migrationsName: opts.MigrationsDirName,
		extraPreserve:  opts.ExtraPreserve,
		spare:          spare,
		selfName:       selfName,
		parkName:       fmt.Sprintf(".preserved-%d", time.Now().UnixNano()),
	}, nil
}

// Run executes all seven phases in order. The staging directory and the
// downloaded archive are released on both success and failure, except when
// preserved content is still parked inside staging: removing it then would
// destroy the very data the run set out to keep.
func (e *Engine) Run(ctx context.Context) error {
	ctx = logger.WithName(ctx, "deploy")

	var parked bool

	defer func() {
		if parked {
			logger.WarnKV(ctx, "Preserved content is still parked, keeping run artifacts for manual recovery",
				"staging", e.stagingName, "parked", e.parkName)

			return
		}

		e.cleanupArtifacts(ctx)
	}()

	logger.Info(ctx, "Discovering paths to preserve across the update")

	preservationSet, err := e.discoverPreservationSet(ctx)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Staging the new release", "staging", e.stagingName)

	if err = e.stage(ctx); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Relocating preserved paths", "count", len(preservationSet))

	// A relocate failure may leave some members already parked.
	parked = true

	relocations, err := e.relocate(ctx, preservationSet)
	if err != nil {
		return err
	}

	parked = len(relocations) > 0

	logger.Info(ctx, "Clearing the deployment root")

	if err = e.clear(ctx); err != nil {
		return err
	}

	logger.Info(ctx, "Promoting staged content")

	if err = e.promote(ctx); err != nil {
		return err
	}

	logger.Info(ctx, "Restoring preserved paths")

	if err = e.restore(ctx, relocations); err != nil {
		return err
	}

	parked = false

	return nil
}

// stagingPath returns the absolute staging directory location.
func (e *Engine) stagingPath() string {
	return filepath.Join(e.root, e.stagingName)
}

// relocate moves every existing preservation-set member into a uniquely named
// parking location inside the staging tree and records the ordered mapping.
// A member that no longer exists is logged and skipped, not fatal.
func (e *Engine) relocate(ctx context.Context, preservationSet []string) ([]Relocation, error) {
	if len(preservationSet) == 0 {
		return nil, nil
	}

	parkDir := filepath.Join(e.stagingPath(), e.parkName)
	if err := os.MkdirAll(parkDir, 0o755); err != nil {
		return nil, apperr.Filesystem(fmt.Errorf("create parking directory: %w", err))
	}

	relocations := make([]Relocation, 0, len(preservationSet))

	for i, relative := range preservationSet {
		source := filepath.Join(e.root, relative)

		if _, err := os.Lstat(source); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logger.WarnKV(ctx, "Preserved path is missing, skipping", "path", relative)
				continue
			}

			return nil, apperr.Filesystem(fmt.Errorf("inspect %s: %w", relative, err))
		}

		// The ordinal keeps names unique even when two distinct paths encode
		// to the same flattened form.
		temporary := filepath.Join(parkDir, fmt.Sprintf("%03d-%s", i, encodePath(relative)))

		if err := os.Rename(source, temporary); err != nil {
			return nil, apperr.Filesystem(fmt.Errorf("relocate %s: %w", relative, err))
		}

		relocations = append(relocations, Relocation{
			Original:  relative,
			Temporary: temporary,
		})
	}

	return relocations, nil
}

// clear deletes every top-level entry under the deployment root except the
// staging directory, the downloaded archive, the running executable and
// dotfiles. Dotfiles are a deliberate coarse guard for credential files.
func (e *Engine) clear(ctx context.Context) error {
	entries, err := os.ReadDir(e.root)
	if err != nil {
		return apperr.Filesystem(fmt.Errorf("list deployment root: %w", err))
	}

	for _, entry := range entries {
		name := entry.Name()
		if name == e.stagingName || name == e.archiveName || name == e.selfName ||
			strings.HasPrefix(name, ".") {
			continue
		}

		if _, keep := e.spare[name]; keep {
			continue
		}

		if err = os.RemoveAll(filepath.Join(e.root, name)); err != nil {
			return apperr.Filesystem(fmt.Errorf("remove %s: %w", name, err))
		}

		logger.DebugKV(ctx, "Removed old entry", "name", name)
	}

	return nil
}

// promote moves every entry from the staging root into the deployment root,
// including hidden entries. Parked preserved paths stay behind for restore.
// Precedence for dotfiles: an entry already present at the root wins over
// the staged one, which is discarded with the staging tree, so root-level
// credential files are never overwritten by shipped copies.
func (e *Engine) promote(ctx context.Context) error {
	staging := e.stagingPath()

	entries, err := os.ReadDir(staging)
	if err != nil {
		return apperr.Filesystem(fmt.Errorf("list staging directory: %w", err))
	}

	for _, entry := range entries {
		name := entry.Name()
		if name == e.parkName {
			continue
		}

		destination := filepath.Join(e.root, name)

		if strings.HasPrefix(name, ".") {
			if _, statErr := os.Lstat(destination); statErr == nil {
				logger.WarnKV(ctx, "Keeping existing dotfile over staged one", "name", name)
				continue
			}
		}

		if err = os.Rename(filepath.Join(staging, name), destination); err != nil {
			return apperr.Filesystem(fmt.Errorf("promote %s: %w", name, err))
		}
	}

	return nil
}

// restore moves every recorded relocation back to its original relative path.
// A relocation whose parking location has vanished is logged and skipped.
func (e *Engine) restore(ctx context.Context, relocations []Relocation) error {
	for _, relocation := range relocations {
		if _, err := os.Lstat(relocation.Temporary); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logger.WarnKV(ctx, "Parked content vanished, skipping restore",
					"path", relocation.Original)

				continue
			}

			return apperr.Filesystem(fmt.Errorf("inspect parked %s: %w", relocation.Original, err))
		}

		destination := filepath.Join(e.root, relocation.Original)

		if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
			return apperr.Filesystem(fmt.Errorf("prepare parent of %s: %w", relocation.Original, err))
		}

		// The new release may ship its own copy of a preserved path;
		// the preserved content wins.
		if _, err := os.Lstat(destination); err == nil {
			if err = os.RemoveAll(destination); err != nil {
				return apperr.Filesystem(fmt.Errorf("drop staged %s: %w", relocation.Original, err))
			}
		}

		if err := os.Rename(relocation.Temporary, destination); err != nil {
			return apperr.Filesystem(fmt.Errorf("restore %s: %w", relocation.Original, err))
		}
	}

	return nil
}

// cleanupArtifacts removes the staging directory and the downloaded archive.
// Failures here do not affect the already-completed deployment state.
func (e *Engine) cleanupArtifacts(ctx context.Context) {
	if err := os.RemoveAll(e.stagingPath()); err != nil {
		logger.WarnKV(ctx, "Unable to remove staging directory", "error", err)
	}

	archivePath := filepath.Join(e.root, e.archiveName)
	if err := os.Remove(archivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Unable to remove downloaded archive", "error", err)
	}
}

// encodePath flattens a relative path into a single filesystem-safe name.
func encodePath(relative string) string {
	return strings.ReplaceAll(relative, string(os.PathSeparator), "__")
}
