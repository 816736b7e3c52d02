// internal/cfg/environment_test.go
//
// Unit-tests for PsqlURL construction and option typing.

package cfg

import "testing"

func TestPsqlURL(t *testing.T) {
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "explicit db_url wins",
			yaml: "main:\n  db_url: postgresql://u:p@h:5432/main\n  db_hostname: ignored\n",
			want: "postgresql://u:p@h:5432/main",
		},
		{
			name: "decomposed fields",
			yaml: "main:\n  db_hostname: db.example.com\n  db_port: 6432\n  db_database: odc\n  db_username: reader\n  db_password: pw\n",
			want: "postgresql://reader:pw@db.example.com:6432/odc",
		},
		{
			name: "empty hostname means local socket",
			yaml: "main:\n  db_hostname: ''\n  db_database: odc\n  db_username: reader\n",
			want: "postgresql://reader@/odc",
		},
		{
			name: "credentials are url-escaped",
			yaml: "main:\n  db_hostname: h\n  db_database: odc\n  db_username: 'read er'\n  db_password: 'p@ss'\n",
			want: "postgresql://read+er:p%40ss@h:5432/odc",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := fileResolver(t, tc.yaml, nil)
			env, err := r.GetEnvironment("main")
			if err != nil {
				t.Fatalf("GetEnvironment: %v", err)
			}
			if got := env.PsqlURL(); got != tc.want {
				t.Fatalf("PsqlURL() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestBooleanSpellings(t *testing.T) {
	for raw, want := range map[string]bool{
		"yes": true, "no": false,
		"on": true, "off": false,
		"1": true, "0": false,
		"true": true, "false": false,
		"Y": true, "N": false,
	} {
		got, err := parseBool(raw)
		if err != nil {
			t.Errorf("parseBool(%q): %v", raw, err)
			continue
		}
		if got != want {
			t.Errorf("parseBool(%q) = %v, want %v", raw, got, want)
		}
	}

	if _, err := parseBool("maybe"); err == nil {
		t.Error("parseBool(maybe) should fail")
	}
}

func TestUnknownOptionsPassThrough(t *testing.T) {
	r := fileResolver(t, "main:\n  index_driver: memory\n  custom_flag: hello\n", nil)
	env, err := r.GetEnvironment("main")
	if err != nil {
		t.Fatalf("GetEnvironment: %v", err)
	}
	v, ok := env.Option("custom_flag")
	if !ok || v != "hello" {
		t.Fatalf("custom_flag = %v (present=%v), want hello", v, ok)
	}
}
