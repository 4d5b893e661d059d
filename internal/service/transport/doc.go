// Package transport downloads release artifacts to well-known local paths.
//
// There are no retries beyond what the HTTP client guarantees; a failed or
// empty download is fatal to the update run. Stale leftovers from previous
// failed runs are overwritten, never trusted.
package transport
