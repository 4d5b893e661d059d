// Package selfupdate replaces the running updater binary with a release
// asset built for the current platform. The swap is rollback-aware and is
// attempted only after a successful pipeline run; its failure never fails
// the update.
package selfupdate
