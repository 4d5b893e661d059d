package updater

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mitchellh/go-ps"

	"github.com/oshokin/stack-updater/internal/logger"
)

// LockFilename marks that an update run is in flight against this deployment
// root. It is a dotfile so the clear phase's dotfile guard spares it.
const LockFilename = ".stack-updater.lock"

// baseExecutableName is the updater binary name without platform extension.
const baseExecutableName = "stack-updater"

// ErrAlreadyRunning is returned when another update run holds the lock.
var ErrAlreadyRunning = errors.New("an update run is already in progress")

// acquireLock takes the run lock under root. A lock left behind by a dead
// process is reclaimed after confirming no other updater process is alive.
func acquireLock(ctx context.Context, root string) error {
	lockPath := filepath.Join(root, LockFilename)

	if _, err := os.Stat(lockPath); err == nil {
		running, psErr := anotherUpdaterRunning()
		if psErr != nil || running {
			return ErrAlreadyRunning
		}

		logger.Info(ctx, "Reclaiming lock left by a dead updater process")

		if err = os.Remove(lockPath); err != nil {
			return ErrAlreadyRunning
		}
	}

	lockFile, err := os.Create(lockPath)
	if err != nil {
		return err
	}

	return lockFile.Close()
}

// releaseLock removes the run lock; a failure is not fatal.
func releaseLock(ctx context.Context, root string) {
	lockPath := filepath.Join(root, LockFilename)
	if err := os.Remove(lockPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WarnKV(ctx, "Unable to remove run lock", "error", err)
	}
}

// anotherUpdaterRunning reports whether an updater process other than this
// one is currently alive.
func anotherUpdaterRunning() (bool, error) {
	processList, err := ps.Processes()
	if err != nil {
		return false, err
	}

	var (
		thisProcessID = os.Getpid()
		name          = updaterExecutable()
	)

	for _, process := range processList {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() == name {
			return true, nil
		}
	}

	return false, nil
}

// getExecutableExtension returns ".exe" on Windows and "" elsewhere.
func getExecutableExtension() string {
	if strings.Contains(strings.ToLower(runtime.GOOS), "windows") {
		return ".exe"
	}

	return ""
}

func updaterExecutable() string {
	return baseExecutableName + getExecutableExtension()
}
