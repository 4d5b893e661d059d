package updater

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/oshokin/stack-updater/internal/apperr"
	"github.com/oshokin/stack-updater/internal/config"
	"github.com/oshokin/stack-updater/internal/logger"
	"github.com/oshokin/stack-updater/internal/repository/versionrec"
	"github.com/oshokin/stack-updater/internal/service/compose"
	"github.com/oshokin/stack-updater/internal/service/deploy"
	"github.com/oshokin/stack-updater/internal/service/release"
	"github.com/oshokin/stack-updater/internal/service/selfupdate"
	"github.com/oshokin/stack-updater/internal/service/transport"
)

// Options are inputs accepted by the updater entry points.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Root is the deployment root; the current working directory when empty.
	Root string
	// Executor overrides container-orchestration command execution.
	// Used by tests; the real collaborator is used when nil.
	Executor compose.Executor
}

// runner holds the collaborators and the pipeline state of a single update run.
// It is intentionally unexported; call Run(ctx, Options) from callers.
type runner struct {
	cfg          *config.Config
	root         string
	configPath   string
	state        State
	records      *versionrec.FileRepository
	resolver     *release.Resolver
	downloader   *transport.Downloader
	orchestrator *compose.Orchestrator
}

// Run executes the full update pipeline and is the public entry point for the CLI.
// It returns nil both on a completed update and on a clean no-op.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "stack-updater")

	r, err := newRunner(ctx, opts)
	if err != nil {
		return err
	}

	defer r.cleanup(ctx)

	if err = r.run(ctx); err != nil {
		r.state = StateFailed
		logger.ErrorKV(ctx, "Update run failed",
			"state", r.state.String(), "kind", string(apperr.KindOf(err)), "error", err)

		return err
	}

	logger.Info(ctx, "Update run completed")

	return nil
}

// Check resolves the local deployment against the release service and reports
// the outcome without mutating anything.
func Check(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "stack-updater")

	root, _, cfg, err := loadEnvironment(opts)
	if err != nil {
		return err
	}

	resolver, _ := buildResolver(root, cfg)

	decision, err := resolver.Resolve(ctx)
	if err != nil {
		return err
	}

	switch decision.Status {
	case release.StatusUpToDate:
		logger.InfoKV(ctx, "Deployment is up to date", "version", decision.Local)
	case release.StatusLocalAhead:
		logger.WarnKV(ctx, "Local version is ahead of the latest release",
			"local", decision.Local, "remote", decision.Remote)
	case release.StatusUpdateAvailable:
		logger.InfoKV(ctx, "Update available",
			"local", decision.Local, "remote", decision.Remote,
			"asset", decision.Archive.Name)
	}

	return nil
}

// newRunner resolves the deployment root, takes the run lock and wires the
// pipeline collaborators.
func newRunner(ctx context.Context, opts *Options) (*runner, error) {
	root, configPath, cfg, err := loadEnvironment(opts)
	if err != nil {
		return nil, err
	}

	if err = acquireLock(ctx, root); err != nil {
		return nil, err
	}

	resolver, records := buildResolver(root, cfg)

	composeOpts := make([]compose.Option, 0, 1)
	if opts != nil && opts.Executor != nil {
		composeOpts = append(composeOpts, compose.WithExecutor(opts.Executor))
	}

	return &runner{
		cfg:        cfg,
		root:       root,
		configPath: configPath,
		state:      StateCheckingVersion,
		records:    records,
		resolver:   resolver,
		downloader: transport.NewDownloader(cfg.Timeout),
		orchestrator: compose.NewOrchestrator(
			cfg.ComposeService, cfg.MigrateCommand, cfg.AdminCommand, composeOpts...),
	}, nil
}

// loadEnvironment resolves the deployment root and loads the settings.
func loadEnvironment(opts *Options) (string, string, *config.Config, error) {
	if opts == nil {
		opts = &Options{}
	}

	root := opts.Root
	if root == "" {
		workingDir, err := os.Getwd()
		if err != nil {
			return "", "", nil, apperr.Configuration(fmt.Errorf("resolve working directory: %w", err))
		}

		root = workingDir
	}

	// The root is compared against other absolutized paths downstream,
	// so a relative one is normalized here once.
	root, err := filepath.Abs(root)
	if err != nil {
		return "", "", nil, apperr.Configuration(fmt.Errorf("resolve deployment root: %w", err))
	}

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = filepath.Join(root, config.DefaultConfigFilename)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return "", "", nil, apperr.Configuration(err)
	}

	return root, configPath, cfg, nil
}

// buildResolver wires the version resolver and the local record repository.
func buildResolver(root string, cfg *config.Config) (*release.Resolver, *versionrec.FileRepository) {
	records := versionrec.NewFileRepository(filepath.Join(root, cfg.VersionFile))
	client := release.NewClient(cfg.ReleaseAPI, cfg.Timeout)

	return release.NewResolver(client, records, cfg.ArchiveSuffix, selfupdate.AssetName()), records
}

// run drives the state machine over one update.
func (r *runner) run(ctx context.Context) error {
	r.transition(ctx, StateCheckingVersion)

	decision, err := r.resolver.Resolve(ctx)
	if err != nil {
		return err
	}

	switch decision.Status {
	case release.StatusUpToDate:
		logger.InfoKV(ctx, "Deployment is up to date, nothing to do", "version", decision.Local)
		r.state = StateDone

		return nil
	case release.StatusLocalAhead:
		logger.WarnKV(ctx, "Local version is ahead of the latest release, nothing to do",
			"local", decision.Local, "remote", decision.Remote)
		r.state = StateDone

		return nil
	case release.StatusUpdateAvailable:
		logger.InfoKV(ctx, "Update available",
			"local", decision.Local, "remote", decision.Remote)
	}

	r.transition(ctx, StateDownloading)

	archivePath := filepath.Join(r.root, r.cfg.ArchiveFile)
	if err = r.downloader.Download(ctx, decision.Archive.URL, archivePath); err != nil {
		return err
	}

	r.transition(ctx, StateDeploying)

	if err = r.deploy(ctx); err != nil {
		return err
	}

	r.transition(ctx, StateMigrating)

	if err = r.migrate(ctx); err != nil {
		return err
	}

	r.transition(ctx, StateRestarting)

	if err = r.orchestrator.RebuildAndRestart(ctx); err != nil {
		return err
	}

	// Rewrite the local record so a re-run reports up-to-date even when the
	// release archive ships no version record of its own.
	if err = r.records.Save(ctx, decision.Remote); err != nil {
		logger.WarnKV(ctx, "Unable to rewrite local version record", "error", err)
	}

	r.maybeSelfUpdate(ctx, decision)

	r.state = StateDone

	return nil
}

// deploy runs the tree preservation and replacement engine.
func (r *runner) deploy(ctx context.Context) error {
	// The settings file is spared from the clear phase when it lives
	// directly under the deployment root.
	var spare []string
	if absConfig, err := filepath.Abs(r.configPath); err == nil &&
		filepath.Dir(absConfig) == r.root {
		spare = append(spare, filepath.Base(absConfig))
	}

	engine, err := deploy.NewEngine(&deploy.Options{
		Root:              r.root,
		StagingDirName:    r.cfg.StagingDir,
		ArchiveFilename:   r.cfg.ArchiveFile,
		MigrationsDirName: r.cfg.MigrationsDirName,
		ExtraPreserve:     r.cfg.Preserve,
		Spare:             spare,
	})
	if err != nil {
		return apperr.Configuration(err)
	}

	return engine.Run(ctx)
}

// migrate applies schema migrations and reconciles the administrative account.
// Missing admin credentials are fatal for this phase only.
func (r *runner) migrate(ctx context.Context) error {
	creds, err := config.ReadAdminEnv(filepath.Join(r.root, r.cfg.AdminEnvFile))
	if err != nil {
		return apperr.Configuration(err)
	}

	if err = r.orchestrator.MigrateDatabase(ctx); err != nil {
		return err
	}

	return r.orchestrator.EnsureAdminAccount(ctx, creds)
}

// maybeSelfUpdate replaces the updater binary when the release ships one.
// Failures are warnings; the deployment itself already succeeded.
func (r *runner) maybeSelfUpdate(ctx context.Context, decision *release.Decision) {
	if decision.UpdaterBinary == nil {
		return
	}

	logger.InfoKV(ctx, "Release ships a new updater binary, applying self-update",
		"asset", decision.UpdaterBinary.Name)

	temporaryFile, err := os.CreateTemp("", "stack-updater-self-*")
	if err != nil {
		logger.WarnKV(ctx, "Self-update skipped", "error", err)
		return
	}

	temporaryPath := temporaryFile.Name()

	defer func() {
		_ = os.Remove(temporaryPath)
	}()

	if err = temporaryFile.Close(); err != nil {
		logger.WarnKV(ctx, "Self-update skipped", "error", err)
		return
	}

	if err = r.downloader.Download(ctx, decision.UpdaterBinary.URL, temporaryPath); err != nil {
		logger.WarnKV(ctx, "Self-update download failed", "error", err)
		return
	}

	if err = selfupdate.Apply(ctx, temporaryPath); err != nil {
		logger.WarnKV(ctx, "Self-update failed", "error", err)
	}
}

// transition advances the state machine with a log line per state.
func (r *runner) transition(ctx context.Context, state State) {
	r.state = state
	logger.InfoKV(ctx, "Pipeline state changed", "state", state.String())
}

// cleanup releases the run lock.
func (r *runner) cleanup(ctx context.Context) {
	releaseLock(ctx, r.root)
}
