package deploy

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/oshokin/stack-updater/internal/apperr"
	"github.com/oshokin/stack-updater/internal/logger"
)

// stage creates an empty staging directory, extracts the downloaded archive
// into it and flattens the archive's single top-level wrapper directory away,
// so the staging root's immediate children match the deployment layout.
func (e *Engine) stage(ctx context.Context) error {
	staging := e.stagingPath()

	if err := os.RemoveAll(staging); err != nil {
		return apperr.Filesystem(fmt.Errorf("reset staging directory: %w", err))
	}

	if err := os.MkdirAll(staging, 0o755); err != nil {
		return apperr.Filesystem(fmt.Errorf("create staging directory: %w", err))
	}

	archivePath := filepath.Join(e.root, e.archiveName)

	wrapper, err := extractArchive(ctx, archivePath, staging)
	if err != nil {
		return err
	}

	return flattenWrapper(staging, wrapper)
}

// extractArchive unpacks a gzip-compressed tar archive into destination and
// returns the single top-level wrapper directory name learned from the
// archive's entries. Traversal-hostile entries are rejected.
func extractArchive(ctx context.Context, archivePath, destination string) (string, error) {
	archiveFile, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return "", apperr.Archive(fmt.Errorf("open archive: %w", err))
	}

	defer func() {
		_ = archiveFile.Close()
	}()

	gzipReader, err := gzip.NewReader(archiveFile)
	if err != nil {
		return "", apperr.Archive(fmt.Errorf("read gzip stream: %w", err))
	}

	defer func() {
		_ = gzipReader.Close()
	}()

	var (
		tarReader = tar.NewReader(gzipReader)
		wrapper   string
		extracted int
	)

	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return "", apperr.Archive(fmt.Errorf("read archive entry: %w", err))
		}

		// Tag archives carry a global pax header; it is not a tree entry.
		if header.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		name := path.Clean(strings.TrimPrefix(header.Name, "./"))
		if name == "." || name == "" {
			continue
		}

		top, _, _ := strings.Cut(name, "/")
		if wrapper == "" {
			wrapper = top
		} else if top != wrapper {
			return "", apperr.Archivef("unexpected second top-level entry %q (wrapper is %q)", top, wrapper)
		}

		target, err := secureJoin(destination, name)
		if err != nil {
			return "", apperr.Archive(fmt.Errorf("entry %q: %w", header.Name, err))
		}

		if err = writeEntry(ctx, tarReader, header, target); err != nil {
			return "", err
		}

		extracted++
	}

	if extracted == 0 {
		return "", apperr.Archivef("%s lists no entries", archivePath)
	}

	if wrapper == "" {
		return "", apperr.Archivef("%s: cannot determine wrapper directory", archivePath)
	}

	return wrapper, nil
}

// writeEntry materializes one archive entry at target.
func writeEntry(ctx context.Context, tarReader *tar.Reader, header *tar.Header, target string) error {
	mode := header.FileInfo().Mode().Perm()

	switch header.Typeflag {
	case tar.TypeDir:
		if err := os.MkdirAll(target, mode|0o700); err != nil {
			return apperr.Filesystem(fmt.Errorf("create directory %s: %w", target, err))
		}
	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return apperr.Filesystem(fmt.Errorf("prepare parent of %s: %w", target, err))
		}

		outputFile, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
		if err != nil {
			return apperr.Filesystem(fmt.Errorf("create file %s: %w", target, err))
		}

		if _, err = io.Copy(outputFile, tarReader); err != nil {
			_ = outputFile.Close()

			return apperr.Filesystem(fmt.Errorf("write file %s: %w", target, err))
		}

		if err = outputFile.Close(); err != nil {
			return apperr.Filesystem(fmt.Errorf("close file %s: %w", target, err))
		}
	case tar.TypeSymlink:
		if path.IsAbs(header.Linkname) || strings.HasPrefix(path.Clean(header.Linkname), "..") {
			return apperr.Archivef("symlink %s points outside the archive", header.Name)
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return apperr.Filesystem(fmt.Errorf("prepare parent of %s: %w", target, err))
		}

		if err := os.Symlink(header.Linkname, target); err != nil {
			return apperr.Filesystem(fmt.Errorf("create symlink %s: %w", target, err))
		}
	default:
		logger.WarnKV(ctx, "Skipping unsupported archive entry",
			"name", header.Name, "type", header.Typeflag)
	}

	return nil
}

// flattenWrapper moves the wrapper's immediate children up to the staging root
// and removes the then-empty wrapper directory.
func flattenWrapper(staging, wrapper string) error {
	wrapperPath := filepath.Join(staging, wrapper)

	info, err := os.Stat(wrapperPath)
	if err != nil || !info.IsDir() {
		return apperr.Archivef("wrapper directory %q is missing after extraction", wrapper)
	}

	children, err := os.ReadDir(wrapperPath)
	if err != nil {
		return apperr.Filesystem(fmt.Errorf("list wrapper directory: %w", err))
	}

	for _, child := range children {
		source := filepath.Join(wrapperPath, child.Name())
		destination := filepath.Join(staging, child.Name())

		if err = os.Rename(source, destination); err != nil {
			return apperr.Filesystem(fmt.Errorf("flatten %s: %w", child.Name(), err))
		}
	}

	if err = os.Remove(wrapperPath); err != nil {
		return apperr.Filesystem(fmt.Errorf("remove wrapper directory: %w", err))
	}

	return nil
}

// secureJoin joins an archive entry name (slash-separated) onto root,
// rejecting absolute names and traversal outside root.
func secureJoin(root, name string) (string, error) {
	if path.IsAbs(name) {
		return "", errPathEscapesRoot
	}

	cleaned := path.Clean(name)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errPathEscapesRoot
	}

	return filepath.Join(root, filepath.FromSlash(cleaned)), nil
}
