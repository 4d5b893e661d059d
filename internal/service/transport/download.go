package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/stack-updater/internal/apperr"
	"github.com/oshokin/stack-updater/internal/logger"
)

// Downloader fetches release artifacts onto the local disk.
type Downloader struct {
	httpClient *http.Client
}

// NewDownloader creates a downloader whose requests are bounded by timeout.
func NewDownloader(timeout time.Duration) *Downloader {
	return &Downloader{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Download streams the artifact at url into destination, overwriting any
// leftover from a previous failed run. The destination must exist and be
// non-empty afterwards; anything else is a transport error.
func (d *Downloader) Download(ctx context.Context, url, destination string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return apperr.Transport(fmt.Errorf("build download request: %w", err))
	}

	response, err := d.httpClient.Do(req)
	if err != nil {
		return apperr.Transport(fmt.Errorf("download %s: %w", url, err))
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return apperr.Transportf("%s: unexpected status %s", url, response.Status)
	}

	destination = filepath.Clean(destination)

	outputFile, err := os.Create(destination)
	if err != nil {
		return apperr.Transport(fmt.Errorf("create %s: %w", destination, err))
	}

	written, err := io.Copy(outputFile, response.Body)
	if err != nil {
		_ = outputFile.Close()

		return apperr.Transport(fmt.Errorf("write %s: %w", destination, err))
	}

	if err = outputFile.Close(); err != nil {
		return apperr.Transport(fmt.Errorf("close %s: %w", destination, err))
	}

	// A reported-successful transfer must leave a non-empty file behind.
	info, err := os.Stat(destination)
	if err != nil {
		return apperr.Transport(fmt.Errorf("stat %s after download: %w", destination, err))
	}

	if info.Size() == 0 {
		return apperr.Transportf("%s: downloaded file is empty", destination)
	}

	logger.InfoKV(ctx, "Downloaded release artifact",
		"url", url, "path", destination, "bytes", written)

	return nil
}
