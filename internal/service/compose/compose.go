package compose

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/oshokin/stack-updater/internal/apperr"
	"github.com/oshokin/stack-updater/internal/config"
	"github.com/oshokin/stack-updater/internal/logger"
)

// composeBinary is the container-orchestration entry point.
const composeBinary = "docker"

// Executor runs one external command and reports only success or failure.
// The engine never parses collaborator output.
type Executor interface {
	Run(ctx context.Context, name string, args []string) error
}

// execRunner executes commands on the host, streaming their output through.
type execRunner struct{}

// Run implements Executor via os/exec.
func (execRunner) Run(ctx context.Context, name string, args []string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	return cmd.Run()
}

// Orchestrator drives the container-orchestration collaborator with fixed
// subcommands for migration, admin reconciliation and restart.
type Orchestrator struct {
	executor       Executor
	service        string
	migrateCommand []string
	adminCommand   []string
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithExecutor overrides command execution; used by tests.
func WithExecutor(executor Executor) Option {
	return func(o *Orchestrator) {
		o.executor = executor
	}
}

// NewOrchestrator creates an orchestrator targeting the named compose service.
func NewOrchestrator(service string, migrateCommand, adminCommand []string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		executor:       execRunner{},
		service:        service,
		migrateCommand: migrateCommand,
		adminCommand:   adminCommand,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// MigrateDatabase executes the schema-migration command inside the service.
func (o *Orchestrator) MigrateDatabase(ctx context.Context) error {
	logger.InfoKV(ctx, "Running schema migrations", "service", o.service)

	args := append([]string{"compose", "exec", "-T", o.service}, o.migrateCommand...)
	if err := o.executor.Run(ctx, composeBinary, args); err != nil {
		return apperr.Orchestration(fmt.Errorf("schema migration: %w", err))
	}

	return nil
}

// EnsureAdminAccount reconciles the privileged administrative account inside
// the service. A failure (typically account-already-exists) is tolerated
// unconditionally and reported as a warning.
func (o *Orchestrator) EnsureAdminAccount(ctx context.Context, creds *config.AdminCredentials) error {
	logger.InfoKV(ctx, "Reconciling administrative account", "service", o.service)

	args := []string{
		"compose", "exec", "-T",
		"-e", config.AdminUsernameKey + "=" + creds.Username,
		"-e", config.AdminEmailKey + "=" + creds.Email,
		"-e", config.AdminPasswordKey + "=" + creds.Password,
		o.service,
	}
	args = append(args, o.adminCommand...)

	if err := o.executor.Run(ctx, composeBinary, args); err != nil {
		logger.WarnKV(ctx, "Administrative account reconciliation failed, assuming it already exists",
			"error", err)
	}

	return nil
}

// RebuildAndRestart rebuilds and restarts all managed containers.
func (o *Orchestrator) RebuildAndRestart(ctx context.Context) error {
	logger.Info(ctx, "Rebuilding and restarting containers")

	args := []string{"compose", "up", "-d", "--build"}
	if err := o.executor.Run(ctx, composeBinary, args); err != nil {
		return apperr.Orchestration(fmt.Errorf("rebuild and restart: %w", err))
	}

	return nil
}
