package deploy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeFile creates a file with parents.
func writeFile(t *testing.T, path, body string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

// newReleaseArchive writes a release fixture with a single wrapper directory.
func newReleaseArchive(t *testing.T, root string, extra ...archiveEntry) {
	t.Helper()

	entries := []archiveEntry{
		{name: "stack-1.3.0/", dir: true},
		{name: "stack-1.3.0/app/", dir: true},
		{name: "stack-1.3.0/app/main.py", body: "print('new')"},
		{name: "stack-1.3.0/newfile.txt", body: "brand new"},
	}
	entries = append(entries, extra...)

	writeTarGz(t, filepath.Join(root, "release.tar.gz"), entries)
}

// TestEngine_Run_PreservesAcrossSwap runs all seven phases on a synthetic tree
// and checks that preserved content survives the full clear and repopulate.
func TestEngine_Run_PreservesAcrossSwap(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	writeFile(t, filepath.Join(root, "app", "db", "migrations", "0001.sql"), "select 1;")
	writeFile(t, filepath.Join(root, "app", "main.py"), "print('old')")
	writeFile(t, filepath.Join(root, "old-file.txt"), "obsolete")
	writeFile(t, filepath.Join(root, ".env"), "ADMIN_PASSWORD=s3cret")
	newReleaseArchive(t, root)

	engine := newTestEngine(t, root)
	require.NoError(t, engine.Run(context.Background()))

	// Preserved migration history is byte-identical at the same relative path.
	contents, err := os.ReadFile(filepath.Join(root, "app", "db", "migrations", "0001.sql"))
	require.NoError(t, err)
	require.Equal(t, "select 1;", string(contents))

	// The rest of the tree reflects the new release.
	contents, err = os.ReadFile(filepath.Join(root, "app", "main.py"))
	require.NoError(t, err)
	require.Equal(t, "print('new')", string(contents))

	contents, err = os.ReadFile(filepath.Join(root, "newfile.txt"))
	require.NoError(t, err)
	require.Equal(t, "brand new", string(contents))

	_, err = os.Stat(filepath.Join(root, "old-file.txt"))
	require.True(t, os.IsNotExist(err))

	// Dotfiles at the root are untouched.
	contents, err = os.ReadFile(filepath.Join(root, ".env"))
	require.NoError(t, err)
	require.Equal(t, "ADMIN_PASSWORD=s3cret", string(contents))

	// Run artifacts are cleaned up.
	_, err = os.Stat(filepath.Join(root, "staging"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "release.tar.gz"))
	require.True(t, os.IsNotExist(err))
}

// TestEngine_Run_PreservedContentWinsOverShipped ensures a migration folder
// shipped inside the release does not clobber the preserved history.
func TestEngine_Run_PreservedContentWinsOverShipped(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	writeFile(t, filepath.Join(root, "app", "db", "migrations", "0001.sql"), "select 1;")
	newReleaseArchive(t, root,
		archiveEntry{name: "stack-1.3.0/app/db/", dir: true},
		archiveEntry{name: "stack-1.3.0/app/db/migrations/", dir: true},
		archiveEntry{name: "stack-1.3.0/app/db/migrations/9999.sql", body: "drop table;"},
	)

	engine := newTestEngine(t, root)
	require.NoError(t, engine.Run(context.Background()))

	contents, err := os.ReadFile(filepath.Join(root, "app", "db", "migrations", "0001.sql"))
	require.NoError(t, err)
	require.Equal(t, "select 1;", string(contents))

	_, err = os.Stat(filepath.Join(root, "app", "db", "migrations", "9999.sql"))
	require.True(t, os.IsNotExist(err))
}

// TestEngine_Run_MissingPreserveMemberIsWarning verifies a configured preserve
// path that does not exist is skipped, not fatal.
func TestEngine_Run_MissingPreserveMemberIsWarning(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	writeFile(t, filepath.Join(root, "somefile.txt"), "x")
	newReleaseArchive(t, root)

	engine := newTestEngine(t, root, "media/uploads")
	require.NoError(t, engine.Run(context.Background()))

	_, err := os.Stat(filepath.Join(root, "newfile.txt"))
	require.NoError(t, err)
}

// TestEngine_Run_ExtraPreserveList verifies operator-declared paths survive.
func TestEngine_Run_ExtraPreserveList(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	writeFile(t, filepath.Join(root, "media", "uploads", "photo.jpg"), "jpeg-bytes")
	newReleaseArchive(t, root)

	engine := newTestEngine(t, root, "./media/uploads")
	require.NoError(t, engine.Run(context.Background()))

	contents, err := os.ReadFile(filepath.Join(root, "media", "uploads", "photo.jpg"))
	require.NoError(t, err)
	require.Equal(t, "jpeg-bytes", string(contents))
}

// TestEngine_DiscoverPreservationSet verifies recursive discovery excludes the
// staging tree and deduplicates against the configured list.
func TestEngine_DiscoverPreservationSet(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	writeFile(t, filepath.Join(root, "a", "migrations", "0001.sql"), "a")
	writeFile(t, filepath.Join(root, "b", "nested", "migrations", "0001.sql"), "b")
	writeFile(t, filepath.Join(root, "staging", "migrations", "ignored.sql"), "s")

	engine := newTestEngine(t, root, "a/migrations", "media")

	set, err := engine.discoverPreservationSet(context.Background())
	require.NoError(t, err)
	require.ElementsMatch(t, []string{
		filepath.Join("a", "migrations"),
		filepath.Join("b", "nested", "migrations"),
		"media",
	}, set)
}

// TestEngine_Run_ExistingDotfileWinsOverStaged verifies a release shipping a
// dotfile does not overwrite the one already present at the root.
func TestEngine_Run_ExistingDotfileWinsOverStaged(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	writeFile(t, filepath.Join(root, ".env"), "ADMIN_PASSWORD=s3cret")
	newReleaseArchive(t, root,
		archiveEntry{name: "stack-1.3.0/.env", body: "ADMIN_PASSWORD=shipped-placeholder"},
	)

	engine := newTestEngine(t, root)
	require.NoError(t, engine.Run(context.Background()))

	contents, err := os.ReadFile(filepath.Join(root, ".env"))
	require.NoError(t, err)
	require.Equal(t, "ADMIN_PASSWORD=s3cret", string(contents))
}

// TestEngine_Run_ReleasesArtifactsOnFailure verifies a failed staging phase
// still removes the staging directory and the downloaded archive.
func TestEngine_Run_ReleasesArtifactsOnFailure(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	writeFile(t, filepath.Join(root, "release.tar.gz"), "not a gzip stream")

	engine := newTestEngine(t, root)
	require.Error(t, engine.Run(context.Background()))

	_, err := os.Stat(filepath.Join(root, "staging"))
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "release.tar.gz"))
	require.True(t, os.IsNotExist(err))
}

// TestEngine_Clear_SparesProtectedEntries verifies the clear-phase guard list.
func TestEngine_Clear_SparesProtectedEntries(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	writeFile(t, filepath.Join(root, "doomed.txt"), "x")
	writeFile(t, filepath.Join(root, ".env"), "secret")
	writeFile(t, filepath.Join(root, "release.tar.gz"), "archive")
	writeFile(t, filepath.Join(root, "stack-updater"), "self")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "staging"), 0o755))

	engine := newTestEngine(t, root)
	require.NoError(t, engine.clear(context.Background()))

	_, err := os.Stat(filepath.Join(root, "doomed.txt"))
	require.True(t, os.IsNotExist(err))

	for _, kept := range []string{".env", "release.tar.gz", "stack-updater", "staging"} {
		_, err = os.Stat(filepath.Join(root, kept))
		require.NoError(t, err, kept)
	}
}

// TestEngine_Clear_SpareListKeepsNamedEntries verifies operator-supplied names
// survive the clear phase alongside the built-in guard list.
func TestEngine_Clear_SpareListKeepsNamedEntries(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	writeFile(t, filepath.Join(root, "doomed.txt"), "x")
	writeFile(t, filepath.Join(root, "stack-updater.yaml"), "release_api: http://x")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "staging"), 0o755))

	engine, err := NewEngine(&Options{
		Root:              root,
		StagingDirName:    "staging",
		ArchiveFilename:   "release.tar.gz",
		MigrationsDirName: "migrations",
		Spare:             []string{"stack-updater.yaml"},
		SelfName:          "stack-updater",
	})
	require.NoError(t, err)

	require.NoError(t, engine.clear(context.Background()))

	_, err = os.Stat(filepath.Join(root, "doomed.txt"))
	require.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(root, "stack-updater.yaml"))
	require.NoError(t, err)
}
