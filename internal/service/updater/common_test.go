package updater

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestAcquireLock_CreatesAndReleases verifies the basic lock lifecycle.
func TestAcquireLock_CreatesAndReleases(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	ctx := context.Background()

	require.NoError(t, acquireLock(ctx, root))

	_, err := os.Stat(filepath.Join(root, LockFilename))
	require.NoError(t, err)

	releaseLock(ctx, root)

	_, err = os.Stat(filepath.Join(root, LockFilename))
	require.True(t, os.IsNotExist(err))
}

// TestAcquireLock_ReclaimsStaleLock verifies a lock without a live updater
// process behind it is reclaimed. The test binary is not named like the
// updater executable, so the existing lock counts as stale.
func TestAcquireLock_ReclaimsStaleLock(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(root, LockFilename), nil, 0o644))

	require.NoError(t, acquireLock(ctx, root))

	_, err := os.Stat(filepath.Join(root, LockFilename))
	require.NoError(t, err)
}

// TestStateString covers the state names used in pipeline logs.
func TestStateString(t *testing.T) {
	t.Parallel()

	names := map[State]string{
		StateCheckingVersion: "checking-version",
		StateDownloading:     "downloading",
		StateDeploying:       "deploying",
		StateMigrating:       "migrating",
		StateRestarting:      "restarting",
		StateDone:            "done",
		StateFailed:          "failed",
		State(99):            "unknown",
	}
	for state, want := range names {
		require.Equal(t, want, state.String())
	}
}
