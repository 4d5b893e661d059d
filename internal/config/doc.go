// Package config defines the updater settings and provides helpers to load,
// validate and save them in YAML format.
//
// The Config type holds the release service endpoint, the archive and staging
// names, the preservation list and the compose collaborator settings. The
// package also reads the privileged env-style file supplying administrative
// account credentials for the migration phase.
package config
