package updater

// State identifies a stage of the update pipeline. The pipeline is linear:
// each state is entered at most once per run and any fatal error jumps
// straight to StateFailed.
type State int

const (
	// StateCheckingVersion resolves local against remote release identifiers.
	StateCheckingVersion State = iota
	// StateDownloading fetches the release archive.
	StateDownloading
	// StateDeploying runs the tree preservation and replacement engine.
	StateDeploying
	// StateMigrating applies schema migrations and reconciles the admin account.
	StateMigrating
	// StateRestarting rebuilds and restarts all managed containers.
	StateRestarting
	// StateDone is the terminal success state (including clean no-ops).
	StateDone
	// StateFailed is the terminal failure state.
	StateFailed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCheckingVersion:
		return "checking-version"
	case StateDownloading:
		return "downloading"
	case StateDeploying:
		return "deploying"
	case StateMigrating:
		return "migrating"
	case StateRestarting:
		return "restarting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
