// Package apperr defines the failure taxonomy of the update pipeline.
//
// Each fatal failure is wrapped with exactly one of the sentinel kinds
// (configuration, upstream, transport, archive, filesystem, orchestration)
// so that callers and tests can match on the class with errors.Is without
// parsing messages. Libraries never terminate the process; only the CLI
// maps a failure to an exit code.
package apperr
