// internal/cfg/resolver.go
//
// Environment resolution: alias chasing, override overlay, lazy caching.
//
// Context
// -------
// A Resolver is built once per session against exactly one source.  Each
// environment name resolves lazily, and the result is cached for the life
// of the instance.  Resolution walks the alias graph with a visited-set
// cycle guard, overlays ODC_<NAME>_<OPTION> environment variables (unless
// the source is raw config), applies option defaults, and validates.
//
// The process environment is snapshotted exactly once per Resolver, the
// first time anything needs it.  Mutating the real environment afterwards
// has no effect on this instance.
//
// Concurrency
// -----------
// First-time resolution of a name is deduplicated through singleflight, the
// same pattern our tenant-style caches use, so sharing a resolver across
// goroutines is safe.  Cached lookups take only a read lock.
//
// Override precedence per option, highest first:
//
//   1. ODC_<CANONICAL>_<OPTION>
//   2. ODC_<ALIAS>_<OPTION> for any alias of the canonical environment,
//      aliases considered in lexicographic order (deterministic tie-break)
//   3. deprecated unprefixed variables (DB_*, DATACUBE_DB_URL), global to
//      all environments, warned on use
//   4. the value from the configuration source
//   5. the option's built-in default
//
// Notes
// -----
//   • ODC_CONFIG, ODC_CONFIG_PATH, and ODC_ENVIRONMENT are control
//     variables, never option overrides.
//   • Oxford commas, two spaces after periods.

package cfg

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/opendatacube/odc-config/internal/metrics"
)

// reserved control variables, excluded from override scanning.
var reservedVars = map[string]bool{
	"ODC_CONFIG":      true,
	"ODC_CONFIG_PATH": true,
	"ODC_ENVIRONMENT": true,
}

// SecretResolver resolves secret references (values like
// "vault:secret/odc#db_password") into plain strings.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretRefPrefix marks an option value as a secret reference.
const SecretRefPrefix = "vault:"

// Resolver resolves environment names into Environments.  Construct with
// New; the zero value is unusable.
type Resolver struct {
	src       *source
	envSource EnvSource
	secrets   SecretResolver

	envOnce sync.Once
	envSnap map[string]string

	sfg    singleflight.Group
	mu     sync.RWMutex
	cache  map[string]*Environment // canonical name → environment
	byName map[string]string       // requested or alias name → canonical
	failed map[string]error        // terminal failures, per requested name
}

// ResolverOption tunes Resolver construction.
type ResolverOption func(*Resolver)

// WithEnvSource injects the environment-variable capability.  Defaults to
// OSEnviron.
func WithEnvSource(src EnvSource) ResolverOption {
	return func(r *Resolver) { r.envSource = src }
}

// WithSecrets attaches a secret-reference resolver.  Without one, values
// carrying the vault: prefix pass through verbatim with a warning.
func WithSecrets(sr SecretResolver) ResolverOption {
	return func(r *Resolver) { r.secrets = sr }
}

// New loads the active configuration source and returns a ready Resolver.
// Source-level conflicts (raw plus file, unreadable explicit paths,
// malformed content) fail here, before any lookup.
func New(spec SourceSpec, opts ...ResolverOption) (*Resolver, error) {
	r := &Resolver{
		envSource: OSEnviron,
		cache:     map[string]*Environment{},
		byName:    map[string]string{},
		failed:    map[string]error{},
	}
	for _, opt := range opts {
		opt(r)
	}

	src, err := loadSource(spec, r.environ)
	if err != nil {
		return nil, err
	}
	r.src = src
	return r, nil
}

// environ returns the one-per-instance environment snapshot.
func (r *Resolver) environ() map[string]string {
	r.envOnce.Do(func() { r.envSnap = r.envSource() })
	return r.envSnap
}

/*──────────────────────────── public lookups ──────────────────────────────*/

// GetEnvironment resolves name into a cached Environment.  An empty name
// falls back to $ODC_ENVIRONMENT, the deprecated $DATACUBE_ENVIRONMENT, and
// finally "default".  Unknown names never fail; they synthesize a dynamic
// environment from overrides or pure defaults.
func (r *Resolver) GetEnvironment(name string) (*Environment, error) {
	if name == "" {
		name = r.defaultName()
	}
	name = strings.ToLower(name)

	r.mu.RLock()
	if err, ok := r.failed[name]; ok {
		r.mu.RUnlock()
		return nil, err
	}
	if canonical, ok := r.byName[name]; ok {
		env := r.cache[canonical]
		r.mu.RUnlock()
		metrics.CacheHitsTotal.Inc()
		return env, nil
	}
	r.mu.RUnlock()

	v, err, _ := r.sfg.Do(name, func() (any, error) {
		// Double-check after the singleflight barrier.
		r.mu.RLock()
		if err, ok := r.failed[name]; ok {
			r.mu.RUnlock()
			return nil, err
		}
		if canonical, ok := r.byName[name]; ok {
			env := r.cache[canonical]
			r.mu.RUnlock()
			return env, nil
		}
		r.mu.RUnlock()

		metrics.ResolveTotal.Inc()
		env, chain, err := r.resolve(name)
		r.mu.Lock()
		defer r.mu.Unlock()
		if err != nil {
			r.failed[name] = err
			metrics.ResolveErrorsTotal.Inc()
			return nil, err
		}
		if _, seen := r.cache[env.name]; !seen {
			metrics.CachedEnvironments.Inc()
			if env.dynamic {
				metrics.DynamicEnvironmentsTotal.Inc()
			}
		}
		r.cache[env.name] = env
		r.byName[env.name] = env.name
		r.byName[name] = env.name
		for _, link := range chain {
			r.byName[link] = env.name
		}
		return env, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Environment), nil
}

// defaultName applies the documented fallback order for an omitted name.
func (r *Resolver) defaultName() string {
	env := r.environ()
	if n := env["ODC_ENVIRONMENT"]; n != "" {
		return n
	}
	if n := env["DATACUBE_ENVIRONMENT"]; n != "" {
		r.warnDeprecated("DATACUBE_ENVIRONMENT", "ODC_ENVIRONMENT")
		return n
	}
	return "default"
}

// SourceOrigin describes where the active configuration came from.
func (r *Resolver) SourceOrigin() string { return r.src.origin }

// SourcePath returns the winning config file, or "" for raw and built-in
// sources.
func (r *Resolver) SourcePath() string { return r.src.path }

// SourceCandidates returns the path list that was searched, if any.
func (r *Resolver) SourceCandidates() []string {
	out := make([]string, len(r.src.candidates))
	copy(out, r.src.candidates)
	return out
}

// Sections lists the concrete environment sections and the alias sections
// (alias → immediate target) present in the source.  It does not resolve
// anything.
func (r *Resolver) Sections() (concrete []string, aliases map[string]string) {
	aliases = map[string]string{}
	for name, sec := range r.src.tree {
		if target, ok := sec[OptAlias]; ok {
			aliases[name] = asString(target)
			continue
		}
		concrete = append(concrete, name)
	}
	sort.Strings(concrete)
	return concrete, aliases
}

/*──────────────────────────── resolution core ─────────────────────────────*/

// resolve walks the alias graph and builds the Environment for name.  The
// returned chain holds every alias name traversed, so the cache can map
// them all to the canonical entry.
func (r *Resolver) resolve(name string) (*Environment, []string, error) {
	canonical, chain, err := r.chase(name)
	if err != nil {
		return nil, nil, err
	}

	section, defined := r.src.tree[canonical]
	dynamic := !defined

	aliases := r.aliasesOf(canonical)
	opts := map[string]any{}

	// 1. Values from the source.
	for opt, raw := range section {
		val, err := coerceOption(opt, raw)
		if err != nil {
			return nil, nil, Errorf("environment %q: %w", canonical, err)
		}
		opts[opt] = val
	}

	// 2. Environment-variable overlay.  Raw sources protect their own
	// environments; dynamic environments have nothing to protect.
	if r.src.allowOverrides || dynamic {
		if err := r.applyOverrides(canonical, aliases, opts); err != nil {
			return nil, nil, err
		}
	}

	// 3. Defaults for recognized options still unset.
	for opt, def := range optionDefs {
		if _, set := opts[opt]; !set && def.hasDefault {
			opts[opt] = def.defValue()
		}
	}
	if iam, _ := opts[OptDBIAMAuth].(bool); iam {
		if _, set := opts[OptDBIAMTimeout]; !set {
			opts[OptDBIAMTimeout] = iamTimeoutDefault
		}
	}

	env := &Environment{name: canonical, aliases: aliases, dynamic: dynamic, options: opts}

	// 4. Secret references.
	if err := r.resolveSecrets(env); err != nil {
		return nil, nil, err
	}

	if err := checkEnvironment(env); err != nil {
		return nil, nil, err
	}

	zap.S().Debugw("environment resolved",
		"environment", canonical, "dynamic", dynamic, "index_driver", env.IndexDriver())
	return env, chain, nil
}

// chase follows alias links from name to a terminal name.  A terminal name
// either has a concrete section or no section at all; the latter is only
// legal when no alias was traversed (a dynamic environment), otherwise the
// last alias dangles.
func (r *Resolver) chase(name string) (string, []string, error) {
	visited := map[string]bool{}
	var chain []string
	cur := name
	for {
		section, ok := r.src.tree[cur]
		if !ok {
			// The legacy "datacube" section stands in for a missing
			// "default" one, with a removal warning.
			if cur == "default" {
				if _, legacy := r.src.tree["datacube"]; legacy {
					r.warnDeprecated(`section "datacube" as the default environment`, `a section or alias named "default"`)
					visited[cur] = true
					chain = append(chain, cur)
					cur = "datacube"
					continue
				}
			}
			if len(chain) > 0 {
				return "", nil, Errorf("alias %q points at undefined environment %q", chain[len(chain)-1], cur)
			}
			// No section and no alias traversed: a dynamic environment.
			return cur, chain, nil
		}

		target, isAlias := section[OptAlias]
		if !isAlias {
			return cur, chain, nil
		}
		if len(section) > 1 {
			return "", nil, Errorf("environment %q is an alias and must not carry other options", cur)
		}
		next := strings.ToLower(asString(target))
		if next == "" {
			return "", nil, Errorf("environment %q has an empty alias target", cur)
		}
		if visited[next] || next == cur {
			return "", nil, Errorf("alias cycle detected at environment %q", next)
		}
		visited[cur] = true
		chain = append(chain, cur)
		cur = next
	}
}

// aliasesOf returns every alias section whose chain terminates at
// canonical, sorted lexicographically.  Broken chains are skipped here;
// they fail on their own resolution.
func (r *Resolver) aliasesOf(canonical string) []string {
	var out []string
	for name, sec := range r.src.tree {
		if _, isAlias := sec[OptAlias]; !isAlias {
			continue
		}
		cur, visited := name, map[string]bool{}
		for {
			section, ok := r.src.tree[cur]
			if !ok {
				break
			}
			target, isAlias := section[OptAlias]
			if !isAlias {
				break
			}
			next := strings.ToLower(asString(target))
			if next == "" || visited[next] {
				cur = ""
				break
			}
			visited[cur] = true
			cur = next
		}
		if cur == canonical && name != canonical {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// applyOverrides merges environment-variable values into opts, following
// the documented precedence.
func (r *Resolver) applyOverrides(canonical string, aliases []string, opts map[string]any) error {
	env := r.environ()

	// Candidate option names: everything recognized, everything already
	// present, and everything any matching prefixed variable names.
	candidates := map[string]bool{}
	for opt := range optionDefs {
		candidates[opt] = true
	}
	for opt := range opts {
		candidates[opt] = true
	}
	prefixes := []string{"ODC_" + strings.ToUpper(canonical) + "_"}
	for _, alias := range aliases {
		prefixes = append(prefixes, "ODC_"+strings.ToUpper(alias)+"_")
	}
	for varName := range env {
		if reservedVars[varName] {
			continue
		}
		for _, prefix := range prefixes {
			if strings.HasPrefix(varName, prefix) {
				candidates[strings.ToLower(strings.TrimPrefix(varName, prefix))] = true
			}
		}
	}

	for opt := range candidates {
		if opt == OptAlias || opt == "" {
			continue
		}
		raw, found := r.lookupOverride(env, canonical, aliases, opt)
		if !found {
			continue
		}
		val, err := coerceOption(opt, raw)
		if err != nil {
			return Errorf("environment %q: override %w", canonical, err)
		}
		opts[opt] = val
	}
	return nil
}

// lookupOverride finds the highest-precedence variable for one option.
func (r *Resolver) lookupOverride(env map[string]string, canonical string, aliases []string, opt string) (string, bool) {
	suffix := strings.ToUpper(opt)

	if name := "ODC_" + strings.ToUpper(canonical) + "_" + suffix; !reservedVars[name] {
		if v, ok := env[name]; ok {
			return v, true
		}
	}
	for _, alias := range aliases {
		if name := "ODC_" + strings.ToUpper(alias) + "_" + suffix; !reservedVars[name] {
			if v, ok := env[name]; ok {
				return v, true
			}
		}
	}
	for _, legacy := range legacyGlobalVars {
		if legacy.option != opt {
			continue
		}
		if v, ok := env[legacy.envvar]; ok {
			r.warnDeprecated(legacy.envvar, legacy.replacement)
			return v, true
		}
	}
	return "", false
}

// resolveSecrets rewrites vault: references in place.
func (r *Resolver) resolveSecrets(env *Environment) error {
	for opt, raw := range env.options {
		val, ok := raw.(string)
		if !ok || !strings.HasPrefix(val, SecretRefPrefix) {
			continue
		}
		if r.secrets == nil {
			zap.S().Warnw("secret reference present but no secret resolver attached",
				"environment", env.name, "option", opt)
			continue
		}
		plain, err := r.secrets.ResolveSecret(context.Background(), val)
		if err != nil {
			return Errorf("environment %q: option %s: %w", env.name, opt, err)
		}
		env.options[opt] = plain
	}
	return nil
}

func (r *Resolver) warnDeprecated(what, use string) {
	metrics.DeprecationsTotal.Inc()
	zap.S().Warnw("deprecated configuration mechanism in use", "deprecated", what, "use", use)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
