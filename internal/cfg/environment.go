// internal/cfg/environment.go
//
// The resolved environment: a flat, immutable option mapping with typed
// accessors, plus PostgreSQL URL construction.
//
// Context
// -------
// An Environment is what get_environment hands back: alias indirection
// already chased, environment-variable overrides already merged, defaults
// already applied.  It never changes after the resolver builds it, so the
// accessors need no locking.
//
// PsqlURL reproduces the URL logic database drivers expect: an explicit
// db_url wins outright; otherwise the URL is assembled from the decomposed
// fields, and an empty hostname means the local socket.
//
// Validation
// ----------
// A small tagged struct is checked with go-playground/validator right after
// resolution.  Port range and timeout sign are hard failures; an unknown
// index driver is only warned about, since driver plug-ins may register
// names this package has never heard of.

package cfg

import (
	"fmt"
	"net/url"
	"sort"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Environment is one fully-resolved configuration environment.  Instances
// are immutable; share them freely.
type Environment struct {
	name    string
	aliases []string
	dynamic bool
	options map[string]any
}

// Name returns the canonical (post-alias) environment name.
func (e *Environment) Name() string { return e.name }

// Aliases returns the alias names that point at this environment, in
// lexicographic order.
func (e *Environment) Aliases() []string {
	out := make([]string, len(e.aliases))
	copy(out, e.aliases)
	return out
}

// Dynamic reports whether this environment had no section in the source and
// was synthesized from environment variables or pure defaults.
func (e *Environment) Dynamic() bool { return e.dynamic }

// Option returns a raw option value and whether it was present.
func (e *Environment) Option(name string) (any, bool) {
	v, ok := e.options[name]
	return v, ok
}

// OptionNames returns all option names present, sorted.
func (e *Environment) OptionNames() []string {
	names := make([]string, 0, len(e.options))
	for k := range e.options {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (e *Environment) str(name string) string {
	if v, ok := e.options[name].(string); ok {
		return v
	}
	return ""
}

func (e *Environment) num(name string) int {
	if v, ok := e.options[name].(int); ok {
		return v
	}
	return 0
}

func (e *Environment) IndexDriver() string     { return e.str(OptIndexDriver) }
func (e *Environment) DBURL() string           { return e.str(OptDBURL) }
func (e *Environment) DBHostname() string      { return e.str(OptDBHostname) }
func (e *Environment) DBPort() int             { return e.num(OptDBPort) }
func (e *Environment) DBDatabase() string      { return e.str(OptDBDatabase) }
func (e *Environment) DBUsername() string      { return e.str(OptDBUsername) }
func (e *Environment) DBPassword() string      { return e.str(OptDBPassword) }
func (e *Environment) ConnectionTimeout() int  { return e.num(OptDBConnTimeout) }
func (e *Environment) IAMTimeout() int         { return e.num(OptDBIAMTimeout) }

func (e *Environment) IAMAuthentication() bool {
	v, _ := e.options[OptDBIAMAuth].(bool)
	return v
}

// PsqlURL builds the PostgreSQL connection URL for this environment.  An
// explicit db_url takes precedence over the decomposed fields.  An empty
// db_hostname yields a host-less URL, which libpq interprets as the local
// Unix socket.
func (e *Environment) PsqlURL() string {
	if u := e.DBURL(); u != "" {
		return u
	}

	var userinfo string
	if user := e.DBUsername(); user != "" {
		userinfo = url.QueryEscape(user)
		if pass := e.DBPassword(); pass != "" {
			userinfo += ":" + url.QueryEscape(pass)
		}
		userinfo += "@"
	}

	host := e.DBHostname()
	if host == "" {
		return fmt.Sprintf("postgresql://%s/%s", userinfo, e.DBDatabase())
	}
	return fmt.Sprintf("postgresql://%s%s:%d/%s", userinfo, host, e.DBPort(), e.DBDatabase())
}

/*──────────────────────────── validation ──────────────────────────────────*/

var validate = validator.New()

// environmentModel mirrors the typed options validator can check.
type environmentModel struct {
	Name              string `validate:"required"`
	DBPort            int    `validate:"gte=0,lte=65535"`
	ConnectionTimeout int    `validate:"gte=0"`
	IAMTimeout        int    `validate:"gte=0"`
}

// checkEnvironment runs structural validation and warns on unrecognized
// index drivers.  Hard failures come back as ConfigException.
func checkEnvironment(e *Environment) error {
	m := environmentModel{
		Name:              e.name,
		DBPort:            e.DBPort(),
		ConnectionTimeout: e.ConnectionTimeout(),
		IAMTimeout:        e.IAMTimeout(),
	}
	if err := validate.Struct(&m); err != nil {
		return Errorf("environment %q: %w", e.name, err)
	}
	if drv := e.IndexDriver(); drv != "" && !knownDrivers[drv] {
		zap.S().Warnw("unrecognized index driver", "environment", e.name, "index_driver", drv)
	}
	return nil
}
