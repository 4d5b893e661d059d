package compose

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/stack-updater/internal/apperr"
	"github.com/oshokin/stack-updater/internal/config"
)

// recordingExecutor captures invocations and fails on request.
type recordingExecutor struct {
	calls [][]string
	err   error
}

func (r *recordingExecutor) Run(_ context.Context, name string, args []string) error {
	r.calls = append(r.calls, append([]string{name}, args...))
	return r.err
}

// TestMigrateDatabase verifies the migration argv shape.
func TestMigrateDatabase(t *testing.T) {
	t.Parallel()

	executor := &recordingExecutor{}
	orchestrator := NewOrchestrator(
		"backend",
		[]string{"python", "manage.py", "migrate"},
		[]string{"python", "manage.py", "createsuperuser", "--noinput"},
		WithExecutor(executor),
	)

	require.NoError(t, orchestrator.MigrateDatabase(context.Background()))
	require.Len(t, executor.calls, 1)
	require.Equal(t, []string{
		"docker", "compose", "exec", "-T", "backend", "python", "manage.py", "migrate",
	}, executor.calls[0])
}

// TestMigrateDatabase_Failure verifies a failed migration is an orchestration error.
func TestMigrateDatabase_Failure(t *testing.T) {
	t.Parallel()

	executor := &recordingExecutor{err: errors.New("exit status 1")}
	orchestrator := NewOrchestrator("backend", []string{"migrate"}, nil, WithExecutor(executor))

	err := orchestrator.MigrateDatabase(context.Background())
	require.ErrorIs(t, err, apperr.ErrOrchestration)
}

// TestEnsureAdminAccount verifies credential injection and unconditional tolerance.
func TestEnsureAdminAccount(t *testing.T) {
	t.Parallel()

	executor := &recordingExecutor{err: errors.New("account already exists")}
	orchestrator := NewOrchestrator(
		"backend",
		nil,
		[]string{"python", "manage.py", "createsuperuser", "--noinput"},
		WithExecutor(executor),
	)

	creds := &config.AdminCredentials{
		Username: "admin",
		Email:    "admin@example.com",
		Password: "s3cret",
	}

	// The collaborator failed, yet reconciliation reports success.
	require.NoError(t, orchestrator.EnsureAdminAccount(context.Background(), creds))
	require.Len(t, executor.calls, 1)
	require.Equal(t, []string{
		"docker", "compose", "exec", "-T",
		"-e", "ADMIN_USERNAME=admin",
		"-e", "ADMIN_EMAIL=admin@example.com",
		"-e", "ADMIN_PASSWORD=s3cret",
		"backend", "python", "manage.py", "createsuperuser", "--noinput",
	}, executor.calls[0])
}

// TestRebuildAndRestart verifies the restart argv and error mapping.
func TestRebuildAndRestart(t *testing.T) {
	t.Parallel()

	executor := &recordingExecutor{}
	orchestrator := NewOrchestrator("backend", nil, nil, WithExecutor(executor))

	require.NoError(t, orchestrator.RebuildAndRestart(context.Background()))
	require.Equal(t, []string{"docker", "compose", "up", "-d", "--build"}, executor.calls[0])

	executor.err = errors.New("exit status 17")
	err := orchestrator.RebuildAndRestart(context.Background())
	require.ErrorIs(t, err, apperr.ErrOrchestration)
}
