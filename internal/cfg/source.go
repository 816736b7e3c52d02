// internal/cfg/source.go
//
// Configuration-source discovery: raw text, raw mapping, explicit paths,
// environment-supplied paths, or the default search path.
//
// Context
// -------
// Exactly one source is active per resolver, decided once at construction:
//
//   1. Explicit raw config (string or mapping).  Mutually exclusive with
//      explicit paths; supplying both is a ConfigException.
//   2. Explicit path list from the caller.
//   3. $ODC_CONFIG — raw inline config text.
//   4. $ODC_CONFIG_PATH — colon-separated path list (then the deprecated
//      $DATACUBE_CONFIG_PATH).
//   5. A CLI-supplied path list.
//   6. The fixed default search path.
//
// For 2, 4, and 5 the list is "explicit": if none of its entries is
// readable, that is a ConfigException.  Only the default search path (6)
// falls back silently to the built-in single-environment configuration.
//
// The winning file is read exactly once, here.  No file I/O happens later.
//
// Notes
// -----
//   • Raw sources (1 and 3) disable environment-variable overrides for
//     environments defined in them; see resolver.go.
//   • Oxford commas, two spaces after periods.

package cfg

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/providers/file"
	"go.uber.org/zap"
)

// SourceSpec carries the caller-supplied configuration inputs.  The zero
// value means "discover via environment and defaults".
type SourceSpec struct {
	// RawText is explicit inline configuration.  Exclusive with Paths.
	RawText string

	// RawMapping is explicit in-memory configuration.  Exclusive with
	// RawText and Paths.
	RawMapping map[string]any

	// Paths is an explicit file list; the first readable entry wins, and
	// an all-unreadable list is fatal.
	Paths []string

	// CLIPaths come from command-line flags.  They rank below
	// $ODC_CONFIG_PATH but above the default search path.
	CLIPaths []string

	// Format declares the syntax of RawText or the winning file.  Leave
	// as FormatAuto to sniff.
	Format Format
}

// DefaultSearchPath is consulted when no other source method specifies
// anything.  The home entry is expanded at load time.
var DefaultSearchPath = []string{
	"./datacube.conf",
	"~/.datacube.conf",
	"/etc/default/datacube.conf",
	"/etc/datacube.conf",
}

type sourceKind int

const (
	sourceFile sourceKind = iota
	sourceRaw
	sourceBuiltin
)

// source is the loaded, normalized configuration plus provenance.
type source struct {
	kind       sourceKind
	origin     string   // description for logs and the paths command
	path       string   // winning file, when kind == sourceFile
	candidates []string // the path list that was searched, if any
	tree       sectionTree

	// allowOverrides is false for raw sources: their environments are
	// protected from ODC_<NAME>_* variables.
	allowOverrides bool
}

// loadSource resolves the active source per the precedence above.  environ
// is called only when discovery actually needs the process environment.
func loadSource(spec SourceSpec, environ func() map[string]string) (*source, error) {
	explicitRaw := spec.RawText != "" || spec.RawMapping != nil
	if spec.RawText != "" && spec.RawMapping != nil {
		return nil, Errorf("raw config supplied as both text and mapping")
	}
	if explicitRaw && len(spec.Paths) > 0 {
		return nil, Errorf("both raw config and a config path were supplied; they are mutually exclusive")
	}

	if spec.RawMapping != nil {
		tree, err := parseMapping(spec.RawMapping)
		if err != nil {
			return nil, err
		}
		return &source{kind: sourceRaw, origin: "raw mapping", tree: tree}, nil
	}
	if spec.RawText != "" {
		tree, err := parseBytes([]byte(spec.RawText), spec.Format, "raw config")
		if err != nil {
			return nil, err
		}
		return &source{kind: sourceRaw, origin: "raw config", tree: tree}, nil
	}
	if len(spec.Paths) > 0 {
		return loadFirstReadable(spec.Paths, spec.Format, "explicit paths", true)
	}

	env := environ()
	if raw, ok := env["ODC_CONFIG"]; ok && raw != "" {
		tree, err := parseBytes([]byte(raw), spec.Format, "$ODC_CONFIG")
		if err != nil {
			return nil, err
		}
		return &source{kind: sourceRaw, origin: "$ODC_CONFIG", tree: tree}, nil
	}
	if list, ok := env["ODC_CONFIG_PATH"]; ok && list != "" {
		return loadFirstReadable(splitPathList(list), spec.Format, "$ODC_CONFIG_PATH", true)
	}
	if list, ok := env["DATACUBE_CONFIG_PATH"]; ok && list != "" {
		zap.S().Warnw("deprecated environment variable in use",
			"var", "DATACUBE_CONFIG_PATH", "use", "ODC_CONFIG_PATH")
		return loadFirstReadable(splitPathList(list), spec.Format, "$DATACUBE_CONFIG_PATH", true)
	}
	if len(spec.CLIPaths) > 0 {
		return loadFirstReadable(spec.CLIPaths, spec.Format, "command line", true)
	}

	src, err := loadFirstReadable(expandHome(DefaultSearchPath), spec.Format, "default search path", false)
	if err != nil {
		return nil, err
	}
	if src != nil {
		return src, nil
	}

	// Nothing specified anything, and no default file exists: the
	// built-in single-environment configuration applies.
	zap.S().Debugw("no config file found, using built-in defaults")
	return &source{
		kind:           sourceBuiltin,
		origin:         "built-in defaults",
		candidates:     expandHome(DefaultSearchPath),
		tree:           builtinDefaultTree(),
		allowOverrides: true,
	}, nil
}

// loadFirstReadable reads the first readable path in the list.  When the
// list is explicit an all-unreadable list is a ConfigException; otherwise
// (nil, nil) signals "fall back".
func loadFirstReadable(paths []string, format Format, origin string, explicit bool) (*source, error) {
	for _, p := range paths {
		data, err := file.Provider(p).ReadBytes()
		if err != nil {
			continue
		}
		tree, err := parseBytes(data, format, p)
		if err != nil {
			return nil, err
		}
		zap.S().Debugw("config file loaded", "file", p, "via", origin)
		return &source{
			kind:           sourceFile,
			origin:         origin,
			path:           p,
			candidates:     paths,
			tree:           tree,
			allowOverrides: true,
		}, nil
	}
	if explicit {
		return nil, Errorf("no readable config file among %s: %s", origin, strings.Join(paths, ", "))
	}
	return nil, nil
}

func splitPathList(list string) []string {
	var out []string
	for _, p := range strings.Split(list, ":") {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func expandHome(paths []string) []string {
	home, err := os.UserHomeDir()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.HasPrefix(p, "~/") {
			if err != nil {
				continue
			}
			p = filepath.Join(home, p[2:])
		}
		out = append(out, p)
	}
	return out
}

// builtinDefaultTree is the configuration of last resort: one environment
// pointing at a local postgres socket.
func builtinDefaultTree() sectionTree {
	return sectionTree{
		"default": {
			OptDBHostname:    "",
			OptDBDatabase:    "datacube",
			OptIndexDriver:   "default",
			OptDBConnTimeout: 60,
		},
	}
}
