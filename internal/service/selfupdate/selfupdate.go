package selfupdate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	goupdate "github.com/doitdistributed/go-update"

	"github.com/oshokin/stack-updater/internal/logger"
)

// executableMode is applied to the replaced updater binary.
const executableMode os.FileMode = 0o755

// AssetName returns the release asset name of the updater binary for the
// current platform.
func AssetName() string {
	return fmt.Sprintf("stack-updater_%s_%s", runtime.GOOS, runtime.GOARCH)
}

// Apply replaces the running executable with the binary at source.
// The previous binary is restored when the swap fails half-way.
func Apply(ctx context.Context, source string) error {
	binary, err := os.Open(filepath.Clean(source))
	if err != nil {
		return fmt.Errorf("open downloaded binary: %w", err)
	}

	defer func() {
		_ = binary.Close()
	}()

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate running executable: %w", err)
	}

	options := goupdate.Options{
		TargetPath: executable,
		TargetMode: executableMode,
	}

	if err = goupdate.Apply(binary, options); err != nil {
		if rollbackErr := goupdate.RollbackError(err); rollbackErr != nil {
			return fmt.Errorf("apply self-update: %w (rollback also failed: %v)", err, rollbackErr)
		}

		return fmt.Errorf("apply self-update: %w", err)
	}

	oldBinary := executable + ".old"
	if _, err = os.Stat(oldBinary); err == nil {
		_ = os.Remove(oldBinary)
	}

	logger.InfoKV(ctx, "Updater binary replaced", "path", executable)

	return nil
}
