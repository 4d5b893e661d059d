package release

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/oshokin/stack-updater/internal/apperr"
)

// Release mirrors the latest-release response of the release service.
type Release struct {
	// TagName is the published release identifier.
	TagName string `json:"tag_name"`
	// Assets lists the downloadable files attached to the release.
	Assets []Asset `json:"assets"`
}

// Asset is one downloadable file attached to a release.
type Asset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Client queries the release service for the latest published release.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

// NewClient creates a release service client for the provided latest-release endpoint.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Latest fetches and decodes the latest-release metadata.
// Any network or decoding failure is an upstream error.
func (c *Client) Latest(ctx context.Context) (*Release, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, http.NoBody)
	if err != nil {
		return nil, apperr.Upstream(fmt.Errorf("build release request: %w", err))
	}

	req.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Upstream(fmt.Errorf("query release service: %w", err))
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, apperr.Upstreamf("%s: unexpected status %s", c.endpoint, response.Status)
	}

	var latest Release
	if err = json.NewDecoder(response.Body).Decode(&latest); err != nil {
		return nil, apperr.Upstream(fmt.Errorf("decode release metadata: %w", err))
	}

	return &latest, nil
}
