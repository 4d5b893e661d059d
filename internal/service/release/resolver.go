package release

import (
	"context"
	"fmt"
	"strings"

	goversion "github.com/hashicorp/go-version"

	"github.com/oshokin/stack-updater/internal/apperr"
	"github.com/oshokin/stack-updater/internal/logger"
	"github.com/oshokin/stack-updater/internal/repository/versionrec"
)

// Status classifies the local deployment against the latest published release.
type Status int

const (
	// StatusUpToDate means local and remote identifiers are equal.
	StatusUpToDate Status = iota
	// StatusLocalAhead means the local identifier sorts after the remote one.
	// It is a warning state supporting pre-release and dev builds.
	StatusLocalAhead
	// StatusUpdateAvailable means the remote release is newer than the local one.
	StatusUpdateAvailable
)

// String returns a human-readable status name.
func (s Status) String() string {
	switch s {
	case StatusUpToDate:
		return "up-to-date"
	case StatusLocalAhead:
		return "local-ahead"
	case StatusUpdateAvailable:
		return "update-available"
	default:
		return "unknown"
	}
}

// Artifact references a downloadable release archive.
type Artifact struct {
	// Tag is the release identifier the artifact belongs to.
	Tag string
	// Name is the asset filename.
	Name string
	// URL is the asset download location.
	URL string
}

// Decision is the resolver verdict for one update run.
type Decision struct {
	// Status is the classification outcome.
	Status Status
	// Local is the locally recorded release identifier.
	Local string
	// Remote is the latest published release identifier.
	Remote string
	// Archive references the release archive. Set only on StatusUpdateAvailable.
	Archive *Artifact
	// UpdaterBinary references a platform binary of the updater itself,
	// when the release ships one. May be nil.
	UpdaterBinary *Artifact
}

// Resolver compares the local release record against the release service.
type Resolver struct {
	client        *Client
	records       versionrec.Repository
	archiveSuffix string
	selfAssetName string
}

// NewResolver wires a resolver from its collaborators.
// selfAssetName may be empty when self-update discovery is not wanted.
func NewResolver(client *Client, records versionrec.Repository, archiveSuffix, selfAssetName string) *Resolver {
	return &Resolver{
		client:        client,
		records:       records,
		archiveSuffix: archiveSuffix,
		selfAssetName: selfAssetName,
	}
}

// Resolve classifies the local deployment against the latest published release.
// A missing or malformed local record is a configuration error; service
// failures and malformed metadata are upstream errors.
func (r *Resolver) Resolve(ctx context.Context) (*Decision, error) {
	localTag, err := r.records.Load(ctx)
	if err != nil {
		return nil, apperr.Configuration(fmt.Errorf("local version record: %w", err))
	}

	localVersion, err := parseVersion(localTag)
	if err != nil {
		return nil, apperr.Configuration(fmt.Errorf("local version %q: %w", localTag, err))
	}

	latest, err := r.client.Latest(ctx)
	if err != nil {
		return nil, err
	}

	remoteTag := strings.TrimSpace(latest.TagName)
	if remoteTag == "" || remoteTag == "null" {
		return nil, apperr.Upstreamf("release service returned no tag")
	}

	remoteVersion, err := parseVersion(remoteTag)
	if err != nil {
		return nil, apperr.Upstream(fmt.Errorf("remote version %q: %w", remoteTag, err))
	}

	decision := &Decision{
		Local:  localTag,
		Remote: remoteTag,
	}

	switch {
	case remoteVersion.Equal(localVersion):
		decision.Status = StatusUpToDate
		return decision, nil
	case remoteVersion.LessThan(localVersion):
		decision.Status = StatusLocalAhead
		return decision, nil
	}

	decision.Status = StatusUpdateAvailable

	decision.Archive, err = r.selectArchiveAsset(ctx, latest, remoteTag)
	if err != nil {
		return nil, err
	}

	decision.UpdaterBinary = r.selectUpdaterAsset(latest, remoteTag)

	return decision, nil
}

// selectArchiveAsset picks the release archive by the configured suffix.
// When several assets match, the first one wins; upstream publishes a single
// source archive per release and the looseness is kept on purpose.
func (r *Resolver) selectArchiveAsset(ctx context.Context, latest *Release, tag string) (*Artifact, error) {
	var (
		selected *Artifact
		matches  int
	)

	for _, asset := range latest.Assets {
		if !strings.HasSuffix(asset.Name, r.archiveSuffix) {
			continue
		}

		matches++
		if selected == nil {
			selected = &Artifact{
				Tag:  tag,
				Name: asset.Name,
				URL:  asset.BrowserDownloadURL,
			}
		}
	}

	if selected == nil {
		return nil, apperr.Upstreamf("release %s has no asset matching %q", tag, r.archiveSuffix)
	}

	if matches > 1 {
		logger.DebugKV(ctx, "Multiple archive assets matched, first one wins",
			"matches", matches, "selected", selected.Name)
	}

	return selected, nil
}

// selectUpdaterAsset looks for a platform binary of the updater itself.
func (r *Resolver) selectUpdaterAsset(latest *Release, tag string) *Artifact {
	if r.selfAssetName == "" {
		return nil
	}

	for _, asset := range latest.Assets {
		if asset.Name != r.selfAssetName {
			continue
		}

		return &Artifact{
			Tag:  tag,
			Name: asset.Name,
			URL:  asset.BrowserDownloadURL,
		}
	}

	return nil
}

// parseVersion parses a release identifier tolerating a leading v/V prefix.
func parseVersion(tag string) (*goversion.Version, error) {
	tag = strings.TrimSpace(tag)
	tag = strings.TrimPrefix(tag, "v")
	tag = strings.TrimPrefix(tag, "V")

	return goversion.NewVersion(tag)
}
