package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestKindOf verifies that wrapped errors keep their failure class.
func TestKindOf(t *testing.T) {
	t.Parallel()

	cases := map[Kind]error{
		KindConfiguration: Configurationf("version file %s is missing", "version.txt"),
		KindUpstream:      Upstream(errors.New("connection refused")),
		KindTransport:     Transportf("empty download"),
		KindArchive:       Archive(nil),
		KindFilesystem:    Filesystem(errors.New("permission denied")),
		KindOrchestration: Orchestrationf("exit status %d", 1),
	}
	for want, err := range cases {
		require.Equal(t, want, KindOf(err))
	}

	require.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	require.Equal(t, KindUnknown, KindOf(nil))
}

// TestWrappingPreservesCause ensures the original cause stays reachable through the kind.
func TestWrappingPreservesCause(t *testing.T) {
	t.Parallel()

	cause := errors.New("boom")
	err := Filesystem(fmt.Errorf("clear deployment root: %w", cause))

	require.ErrorIs(t, err, ErrFilesystem)
	require.ErrorIs(t, err, cause)
}
