// internal/cfg/resolver_test.go
//
// Unit-tests for alias resolution, override precedence, and caching.
//
// Workflow / Structure
// --------------------
// fileResolver ── writes the given YAML to a temp file and builds a
// resolver over it with an injected environment, so override behaviour
// (which raw sources suppress) is observable.
//
// The override-precedence tests mirror the documented ladder: canonical
// ODC_<NAME>_* first, then alias-keyed variables in lexicographic order,
// then the deprecated unprefixed globals, then file values, then defaults.

package cfg

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func fileResolver(t *testing.T, yaml string, vars map[string]string, opts ...ResolverOption) *Resolver {
	t.Helper()
	path := writeConfig(t, "datacube.yaml", yaml)
	opts = append(opts, WithEnvSource(StaticEnviron(vars)))
	r, err := New(SourceSpec{Paths: []string{path}}, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return r
}

const aliasedConfig = `
default:
  alias: main
common:
  alias: main
main:
  db_url: postgresql://u:p@h:5432/main
`

func TestAliasResolvesToConcrete(t *testing.T) {
	r := fileResolver(t, aliasedConfig, nil)

	viaAlias, err := r.GetEnvironment("default")
	if err != nil {
		t.Fatalf("GetEnvironment(default): %v", err)
	}
	direct, err := r.GetEnvironment("main")
	if err != nil {
		t.Fatalf("GetEnvironment(main): %v", err)
	}
	if viaAlias != direct {
		t.Fatal("alias and concrete name should share one cached environment")
	}
	if viaAlias.Name() != "main" {
		t.Fatalf("canonical name = %q, want main", viaAlias.Name())
	}
	if got := viaAlias.Aliases(); len(got) != 2 || got[0] != "common" || got[1] != "default" {
		t.Fatalf("aliases = %v, want [common default]", got)
	}
}

func TestAliasCycleFails(t *testing.T) {
	config := "a:\n  alias: b\nb:\n  alias: a\n"
	for _, name := range []string{"a", "b"} {
		r := fileResolver(t, config, nil)
		if _, err := r.GetEnvironment(name); !IsConfigException(err) {
			t.Errorf("GetEnvironment(%s): want ConfigException for cycle, got %v", name, err)
		}
	}
}

func TestSelfAliasFails(t *testing.T) {
	r := fileResolver(t, "a:\n  alias: a\n", nil)
	if _, err := r.GetEnvironment("a"); !IsConfigException(err) {
		t.Fatalf("want ConfigException, got %v", err)
	}
}

func TestDanglingAliasFails(t *testing.T) {
	r := fileResolver(t, "a:\n  alias: nowhere\n", nil)
	_, err := r.GetEnvironment("a")
	if !IsConfigException(err) {
		t.Fatalf("want ConfigException for dangling alias, got %v", err)
	}
}

func TestAliasWithExtraOptionsFails(t *testing.T) {
	r := fileResolver(t, "a:\n  alias: b\n  db_port: 5433\nb:\n  index_driver: memory\n", nil)
	if _, err := r.GetEnvironment("a"); !IsConfigException(err) {
		t.Fatalf("want ConfigException for alias with options, got %v", err)
	}
}

func TestFailureIsTerminalPerName(t *testing.T) {
	r := fileResolver(t, "a:\n  alias: nowhere\n", nil)
	_, first := r.GetEnvironment("a")
	_, second := r.GetEnvironment("a")
	if first == nil || second == nil {
		t.Fatal("both lookups should fail")
	}
	if !errors.Is(second, first) && second.Error() != first.Error() {
		t.Fatalf("second failure %q should repeat first %q", second, first)
	}
}

func TestUnknownEnvironmentNeverFails(t *testing.T) {
	r := fileResolver(t, "main:\n  index_driver: memory\n", nil)
	env, err := r.GetEnvironment("nosuch")
	if err != nil {
		t.Fatalf("GetEnvironment(nosuch): %v", err)
	}
	if !env.Dynamic() {
		t.Error("unknown environment should be dynamic")
	}
	if env.DBDatabase() != "datacube" || env.DBPort() != 5432 {
		t.Errorf("defaults not applied: db=%q port=%d", env.DBDatabase(), env.DBPort())
	}
}

func TestDynamicEnvironmentFromVariables(t *testing.T) {
	r := fileResolver(t, "main:\n  index_driver: memory\n", map[string]string{
		"ODC_AUX_DB_URL":       "postgresql:///auxdb",
		"ODC_AUX_INDEX_DRIVER": "postgis",
	})
	env, err := r.GetEnvironment("aux")
	if err != nil {
		t.Fatalf("GetEnvironment(aux): %v", err)
	}
	if !env.Dynamic() {
		t.Error("aux should be dynamic")
	}
	if env.DBURL() != "postgresql:///auxdb" {
		t.Errorf("db_url = %q", env.DBURL())
	}
	if env.IndexDriver() != "postgis" {
		t.Errorf("index_driver = %q", env.IndexDriver())
	}
}

func TestSnapshotOnceIdempotence(t *testing.T) {
	vars := map[string]string{"ODC_MAIN_DB_DATABASE": "before"}
	r := fileResolver(t, "main:\n  index_driver: postgres\n", vars)

	first, err := r.GetEnvironment("main")
	if err != nil {
		t.Fatalf("GetEnvironment: %v", err)
	}
	if first.DBDatabase() != "before" {
		t.Fatalf("db_database = %q, want before", first.DBDatabase())
	}

	// Mutate the backing map after the snapshot was taken.
	vars["ODC_MAIN_DB_DATABASE"] = "after"
	vars["ODC_AUX_DB_DATABASE"] = "after"

	second, err := r.GetEnvironment("main")
	if err != nil {
		t.Fatalf("GetEnvironment: %v", err)
	}
	if second.DBDatabase() != "before" {
		t.Fatalf("cached lookup saw %q, want before", second.DBDatabase())
	}

	// Even a first-time resolution of another name uses the snapshot.
	aux, err := r.GetEnvironment("aux")
	if err != nil {
		t.Fatalf("GetEnvironment(aux): %v", err)
	}
	if aux.DBDatabase() != "datacube" {
		t.Fatalf("aux db_database = %q, want default (snapshot predates mutation)", aux.DBDatabase())
	}
}

func TestAliasVariablePrecedence(t *testing.T) {
	cases := []struct {
		name string
		vars map[string]string
		want string
	}{
		{
			name: "alias variable honored",
			vars: map[string]string{"ODC_COMMON_DB_URL": "postgresql:///viacommon"},
			want: "postgresql:///viacommon",
		},
		{
			name: "canonical variable wins over alias",
			vars: map[string]string{
				"ODC_COMMON_DB_URL": "postgresql:///viacommon",
				"ODC_MAIN_DB_URL":   "postgresql:///viamain",
			},
			want: "postgresql:///viamain",
		},
		{
			name: "two alias variables: lexicographically first alias wins",
			vars: map[string]string{
				"ODC_COMMON_DB_URL":  "postgresql:///viacommon",
				"ODC_DEFAULT_DB_URL": "postgresql:///viadefault",
			},
			want: "postgresql:///viacommon",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := fileResolver(t, aliasedConfig, tc.vars)
			env, err := r.GetEnvironment("default")
			if err != nil {
				t.Fatalf("GetEnvironment: %v", err)
			}
			if env.DBURL() != tc.want {
				t.Fatalf("db_url = %q, want %q", env.DBURL(), tc.want)
			}
		})
	}
}

func TestRawMappingSuppressesOverridesButAllowsDynamic(t *testing.T) {
	r, err := New(SourceSpec{
		RawMapping: map[string]any{
			"default": map[string]any{
				"index_driver": "postgres",
				"db_url":       "postgresql:///mydb",
			},
		},
	}, WithEnvSource(StaticEnviron(map[string]string{
		"ODC_DEFAULT_DB_URL": "postgresql:///hijacked",
		"ODC_AUX_DB_URL":     "postgresql:///auxdb",
	})))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	def, err := r.GetEnvironment("default")
	if err != nil {
		t.Fatalf("GetEnvironment(default): %v", err)
	}
	if def.DBURL() != "postgresql:///mydb" {
		t.Fatalf("raw-config environment overridden: db_url = %q", def.DBURL())
	}

	aux, err := r.GetEnvironment("aux")
	if err != nil {
		t.Fatalf("GetEnvironment(aux): %v", err)
	}
	if aux.DBURL() != "postgresql:///auxdb" {
		t.Fatalf("dynamic environment should honor variables: db_url = %q", aux.DBURL())
	}
}

func TestLegacyGlobalVariables(t *testing.T) {
	config := "one:\n  index_driver: postgres\ntwo:\n  index_driver: postgis\n"
	vars := map[string]string{
		"DB_PORT":        "7001",
		"ODC_TWO_DB_PORT": "7002",
	}

	r := fileResolver(t, config, vars)

	one, err := r.GetEnvironment("one")
	if err != nil {
		t.Fatalf("GetEnvironment(one): %v", err)
	}
	if one.DBPort() != 7001 {
		t.Errorf("one db_port = %d, want legacy 7001", one.DBPort())
	}

	two, err := r.GetEnvironment("two")
	if err != nil {
		t.Fatalf("GetEnvironment(two): %v", err)
	}
	if two.DBPort() != 7002 {
		t.Errorf("two db_port = %d, want prefixed 7002 over legacy", two.DBPort())
	}
}

func TestDatacubeSectionAsLegacyDefault(t *testing.T) {
	r := fileResolver(t, "datacube:\n  db_database: legacydb\n", nil)
	env, err := r.GetEnvironment("")
	if err != nil {
		t.Fatalf("GetEnvironment: %v", err)
	}
	if env.Name() != "datacube" {
		t.Fatalf("canonical = %q, want datacube", env.Name())
	}
	if env.DBDatabase() != "legacydb" {
		t.Fatalf("db_database = %q, want legacydb", env.DBDatabase())
	}
}

func TestEnvironmentNameFromVariable(t *testing.T) {
	config := "main:\n  db_database: picked\ndefault:\n  db_database: notpicked\n"
	r := fileResolver(t, config, map[string]string{"ODC_ENVIRONMENT": "main"})
	env, err := r.GetEnvironment("")
	if err != nil {
		t.Fatalf("GetEnvironment: %v", err)
	}
	if env.DBDatabase() != "picked" {
		t.Fatalf("db_database = %q, want picked", env.DBDatabase())
	}
}

func TestBadOverrideValueFails(t *testing.T) {
	r := fileResolver(t, "main:\n  index_driver: postgres\n", map[string]string{
		"ODC_MAIN_DB_PORT": "not-a-number",
	})
	if _, err := r.GetEnvironment("main"); !IsConfigException(err) {
		t.Fatalf("want ConfigException for bad port, got %v", err)
	}
}

func TestPortRangeValidation(t *testing.T) {
	r := fileResolver(t, "main:\n  db_port: 70000\n", nil)
	if _, err := r.GetEnvironment("main"); !IsConfigException(err) {
		t.Fatalf("want ConfigException for out-of-range port, got %v", err)
	}
}

type fakeSecrets struct{ calls int }

func (f *fakeSecrets) ResolveSecret(_ context.Context, ref string) (string, error) {
	f.calls++
	if ref == "vault:secret/odc#db_password" {
		return "s3cret", nil
	}
	return "", fmt.Errorf("unknown ref %q", ref)
}

func TestSecretReferenceResolution(t *testing.T) {
	sr := &fakeSecrets{}
	r := fileResolver(t, "main:\n  db_password: vault:secret/odc#db_password\n", nil,
		WithSecrets(sr))
	env, err := r.GetEnvironment("main")
	if err != nil {
		t.Fatalf("GetEnvironment: %v", err)
	}
	if env.DBPassword() != "s3cret" {
		t.Fatalf("db_password = %q, want resolved secret", env.DBPassword())
	}
	if sr.calls != 1 {
		t.Fatalf("secret resolver called %d times, want 1", sr.calls)
	}
}

func TestSecretReferenceFailureIsFatal(t *testing.T) {
	r := fileResolver(t, "main:\n  db_password: vault:secret/odc#missing\n", nil,
		WithSecrets(&fakeSecrets{}))
	if _, err := r.GetEnvironment("main"); !IsConfigException(err) {
		t.Fatalf("want ConfigException for secret failure, got %v", err)
	}
}
