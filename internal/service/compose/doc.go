// Package compose invokes the container-orchestration collaborator.
//
// The collaborator is driven with fixed subcommands: schema migration and
// privileged-account reconciliation run inside a named service, and a final
// rebuild-and-restart covers all services. Only the exit status is
// interpreted; account reconciliation failures are tolerated unconditionally.
package compose
