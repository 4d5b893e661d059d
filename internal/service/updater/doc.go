// Package updater drives the update pipeline end to end.
//
// A run is a linear state machine: resolve versions, download the release
// archive, replace the deployment tree while preserving migration history,
// run schema migrations, reconcile the administrative account, and restart
// all containers. Any fatal error halts the pipeline; nothing is retried.
// A marker-file lock guards against two runs mutating the same deployment
// root concurrently.
package updater
