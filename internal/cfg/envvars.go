// internal/cfg/envvars.go
//
// Injected environment-variable capability.
//
// Context
// -------
// The resolver never reads the process environment ambiently.  It is
// constructed with an EnvSource—a function returning a name→value map—and
// snapshots it exactly once, on the first environment resolution.  Later
// lookups reuse the snapshot even if the real process environment has
// changed, which is what makes the "resolve twice, get identical results"
// guarantee testable without mutating os.Environ.
//
// Notes
// -----
//   • OSEnviron is the production source; tests use StaticEnviron.
//   • Oxford commas, two spaces after periods.

package cfg

import (
	"os"
	"strings"
)

// EnvSource supplies environment variables as a flat name→value map.  It is
// called at most once per Resolver.
type EnvSource func() map[string]string

// OSEnviron snapshots the real process environment.
func OSEnviron() map[string]string {
	raw := os.Environ()
	m := make(map[string]string, len(raw))
	for _, kv := range raw {
		if i := strings.IndexByte(kv, '='); i > 0 {
			m[kv[:i]] = kv[i+1:]
		}
	}
	return m
}

// StaticEnviron wraps a map as an EnvSource.  The map is copied when the
// source is invoked, not when it is built, so tests can mutate it up to the
// moment the resolver takes its one snapshot.
func StaticEnviron(vars map[string]string) EnvSource {
	return func() map[string]string {
		m := make(map[string]string, len(vars))
		for k, v := range vars {
			m[k] = v
		}
		return m
	}
}
