package versionrec

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Repository defines persistence operations for the local release record.
type Repository interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, tag string) error
}

// FileRepository persists the deployed release tag as a single text line
// `Release tag: <identifier>` on disk.
type FileRepository struct {
	// path is the filesystem location of the version record.
	path string
	// mu protects concurrent access to the record file.
	mu sync.Mutex
}

// recordPrefix introduces the release identifier inside the record file.
const recordPrefix = "Release tag:"

// recordPermissions keeps the record world-readable; it holds no secrets.
const recordPermissions = 0o644

var (
	// ErrNotFound is returned when the version record does not exist yet.
	ErrNotFound = errors.New("version record not found")
	// ErrMalformed is returned when the record carries no parseable identifier.
	ErrMalformed = errors.New("version record is malformed")
)

// NewFileRepository creates a repository that reads/writes the record at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the release tag from disk.
func (r *FileRepository) Load(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}

		return "", fmt.Errorf("read version record: %w", err)
	}

	for _, line := range strings.Split(string(contents), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, recordPrefix) {
			continue
		}

		tag := strings.TrimSpace(strings.TrimPrefix(line, recordPrefix))
		if tag == "" {
			return "", fmt.Errorf("%s: %w", r.path, ErrMalformed)
		}

		return tag, nil
	}

	return "", fmt.Errorf("%s: %w", r.path, ErrMalformed)
}

// Save writes the release tag to disk in the record format.
func (r *FileRepository) Save(_ context.Context, tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ErrMalformed
	}

	contents := fmt.Sprintf("%s %s\n", recordPrefix, tag)
	if err := os.WriteFile(r.path, []byte(contents), recordPermissions); err != nil {
		return fmt.Errorf("write version record: %w", err)
	}

	return nil
}
