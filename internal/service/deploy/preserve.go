package deploy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/oshokin/stack-updater/internal/apperr"
	"github.com/oshokin/stack-updater/internal/logger"
)

var (
	errEmptyPreservePath = errors.New("empty preserve path")
	errPathEscapesRoot   = errors.New("path escapes the deployment root")
)

// discoverPreservationSet walks the deployment root collecting every directory
// named after the reserved migration-history name (excluding the staging
// tree), then appends the statically configured preserve list. Paths are
// returned relative to the root, deduplicated, in discovery order.
func (e *Engine) discoverPreservationSet(ctx context.Context) ([]string, error) {
	var (
		set  []string
		seen = make(map[string]struct{})
	)

	add := func(relative string) {
		if _, found := seen[relative]; found {
			return
		}

		seen[relative] = struct{}{}
		set = append(set, relative)
	}

	stagingPath := e.stagingPath()

	walkErr := filepath.WalkDir(e.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !entry.IsDir() {
			return nil
		}

		if path == stagingPath {
			return filepath.SkipDir
		}

		if path == e.root || entry.Name() != e.migrationsName {
			return nil
		}

		relative, relErr := filepath.Rel(e.root, path)
		if relErr != nil {
			return relErr
		}

		add(relative)
		logger.DebugKV(ctx, "Discovered migration-history folder", "path", relative)

		return nil
	})
	if walkErr != nil {
		return nil, apperr.Filesystem(fmt.Errorf("scan deployment root: %w", walkErr))
	}

	for _, configured := range e.extraPreserve {
		relative, err := normalizeRelative(configured)
		if err != nil {
			return nil, apperr.Filesystem(fmt.Errorf("preserve entry %q: %w", configured, err))
		}

		add(relative)
	}

	return set, nil
}

// normalizeRelative cleans a configured path into a root-relative form with no
// leading separator noise, rejecting traversal outside the deployment root.
func normalizeRelative(configured string) (string, error) {
	cleaned := strings.TrimSpace(configured)
	cleaned = strings.TrimPrefix(cleaned, "./")
	cleaned = strings.TrimLeft(cleaned, string(os.PathSeparator))
	cleaned = filepath.Clean(cleaned)

	if cleaned == "" || cleaned == "." {
		return "", errEmptyPreservePath
	}

	if filepath.IsAbs(cleaned) {
		return "", errPathEscapesRoot
	}

	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(os.PathSeparator)) {
		return "", errPathEscapesRoot
	}

	return cleaned, nil
}
