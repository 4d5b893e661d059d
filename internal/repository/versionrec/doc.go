// Package versionrec implements persistence for the local release record.
//
// The FileRepository stores and loads the deployed release tag as a single
// `Release tag: <identifier>` line and exposes a Repository interface that
// the version resolver depends on.
package versionrec
