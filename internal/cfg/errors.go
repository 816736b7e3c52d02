// internal/cfg/errors.go
//
// The single error kind surfaced by the configuration engine.
//
// Context
// -------
// Every fatal condition in this package—raw/file source conflict, an
// unreadable explicit path list, alias cycles, dangling alias targets,
// alias sections carrying extra options, malformed file content—reports
// the same kind, ConfigException.  Callers branch on "is this a config
// problem" and nothing finer, so one type with a wrapped cause is enough.
//
// Non-fatal conditions (unknown environment names, deprecated variable
// usage) are never represented here; see resolver.go.
//
// Notes
// -----
//   • Oxford commas, two spaces after periods.

package cfg

import (
	"errors"
	"fmt"
)

// ConfigException is the one fatal error kind raised by source loading and
// environment resolution.  Match with errors.As or IsConfigException.
type ConfigException struct {
	msg   string
	cause error
}

// Errorf builds a ConfigException with fmt semantics.  A %w verb wraps the
// cause so errors.Is/As keep working through it.
func Errorf(format string, args ...any) *ConfigException {
	wrapped := fmt.Errorf(format, args...)
	return &ConfigException{msg: wrapped.Error(), cause: errors.Unwrap(wrapped)}
}

func (e *ConfigException) Error() string { return e.msg }

func (e *ConfigException) Unwrap() error { return e.cause }

// IsConfigException reports whether any error in err's chain is a
// ConfigException.
func IsConfigException(err error) bool {
	var ce *ConfigException
	return errors.As(err, &ce)
}
