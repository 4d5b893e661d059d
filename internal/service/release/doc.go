// Package release resolves the local deployment version against the release
// service.
//
// The Client fetches latest-release metadata (tag plus asset list) and the
// Resolver classifies the pair of identifiers into up-to-date, local-ahead or
// update-available, selecting the archive asset to download. Comparison is
// version-aware, not lexicographic.
package release
