package apperr

import (
	"errors"
	"fmt"
)

// Kind names a failure class for reporting purposes.
type Kind string

// Failure classes of the update pipeline.
const (
	KindConfiguration Kind = "configuration"
	KindUpstream      Kind = "upstream"
	KindTransport     Kind = "transport"
	KindArchive       Kind = "archive"
	KindFilesystem    Kind = "filesystem"
	KindOrchestration Kind = "orchestration"
	KindUnknown       Kind = "unknown"
)

// Sentinel errors, one per failure class. Callers match them with errors.Is.
var (
	// ErrConfiguration marks missing or malformed local inputs.
	ErrConfiguration = errors.New("configuration error")
	// ErrUpstream marks an unreachable release service or a malformed response.
	ErrUpstream = errors.New("upstream error")
	// ErrTransport marks a failed or empty download.
	ErrTransport = errors.New("transport error")
	// ErrArchive marks a malformed or empty release archive.
	ErrArchive = errors.New("archive error")
	// ErrFilesystem marks a failed tree operation during deployment.
	ErrFilesystem = errors.New("filesystem error")
	// ErrOrchestration marks a failed external container command.
	ErrOrchestration = errors.New("orchestration error")
)

// Configuration wraps err as a configuration error.
func Configuration(err error) error {
	return wrap(ErrConfiguration, err)
}

// Configurationf formats a configuration error.
func Configurationf(format string, args ...any) error {
	return wrapf(ErrConfiguration, format, args...)
}

// Upstream wraps err as an upstream error.
func Upstream(err error) error {
	return wrap(ErrUpstream, err)
}

// Upstreamf formats an upstream error.
func Upstreamf(format string, args ...any) error {
	return wrapf(ErrUpstream, format, args...)
}

// Transport wraps err as a transport error.
func Transport(err error) error {
	return wrap(ErrTransport, err)
}

// Transportf formats a transport error.
func Transportf(format string, args ...any) error {
	return wrapf(ErrTransport, format, args...)
}

// Archive wraps err as an archive error.
func Archive(err error) error {
	return wrap(ErrArchive, err)
}

// Archivef formats an archive error.
func Archivef(format string, args ...any) error {
	return wrapf(ErrArchive, format, args...)
}

// Filesystem wraps err as a filesystem error.
func Filesystem(err error) error {
	return wrap(ErrFilesystem, err)
}

// Filesystemf formats a filesystem error.
func Filesystemf(format string, args ...any) error {
	return wrapf(ErrFilesystem, format, args...)
}

// Orchestration wraps err as an orchestration error.
func Orchestration(err error) error {
	return wrap(ErrOrchestration, err)
}

// Orchestrationf formats an orchestration error.
func Orchestrationf(format string, args ...any) error {
	return wrapf(ErrOrchestration, format, args...)
}

// KindOf reports the failure class of err, or KindUnknown for foreign errors.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrUpstream):
		return KindUpstream
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrArchive):
		return KindArchive
	case errors.Is(err, ErrFilesystem):
		return KindFilesystem
	case errors.Is(err, ErrOrchestration):
		return KindOrchestration
	default:
		return KindUnknown
	}
}

func wrap(kind, err error) error {
	if err == nil {
		return kind
	}

	return fmt.Errorf("%w: %w", kind, err)
}

func wrapf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
