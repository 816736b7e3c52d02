// internal/cfg/parse.go
//
// Format-polymorphic parsing: INI, YAML, and JSON into one canonical tree.
//
// Context
// -------
// Config may arrive as an INI/YAML/JSON file, as raw text, or as an
// in-memory mapping.  Whatever the origin, this file normalizes it into a
// single shape—section name → option name → scalar value—so the resolution
// and override layers never branch on format.  YAML and JSON go through
// Koanf parsers; INI goes through ini.v1 (one level of nesting, a DEFAULT
// section merged into every other section, `%(name)s` interpolation) and is
// then fed back through Koanf's confmap provider so every origin exits
// through the same koanf tree.
//
// Format selection: an explicit Format wins, then the file extension, then
// a cheap content sniff (leading "{" is JSON, a leading "[" is an INI
// section header, anything else is YAML).
//
// Notes
// -----
//   • Section names are validated against the environment-name charset
//     here, at the loader boundary.
//   • Oxford commas, two spaces after periods.

package cfg

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	kjson "github.com/knadh/koanf/parsers/json"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/rawbytes"
	koanf "github.com/knadh/koanf/v2"
	"gopkg.in/ini.v1"
)

// Format declares the origin syntax of a configuration source.
type Format string

const (
	FormatAuto Format = ""
	FormatINI  Format = "ini"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// sectionTree is the canonical parsed shape: environment section → option →
// scalar (string, int, or bool).
type sectionTree map[string]map[string]any

var envNameRe = regexp.MustCompile(`^[a-z][a-z0-9]*$`)

// detectFormat picks a Format from the declared value, the origin file
// extension, or the content itself.
func detectFormat(declared Format, origin string, data []byte) Format {
	if declared != FormatAuto {
		return declared
	}
	switch strings.ToLower(filepath.Ext(origin)) {
	case ".ini", ".conf", ".cfg":
		return FormatINI
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	trimmed := strings.TrimSpace(string(data))
	switch {
	case strings.HasPrefix(trimmed, "{"):
		return FormatJSON
	case strings.HasPrefix(trimmed, "["):
		return FormatINI
	default:
		return FormatYAML
	}
}

// parseBytes parses data in the given (or detected) format into the
// canonical section tree.  origin is used for error messages and extension
// sniffing only.
func parseBytes(data []byte, declared Format, origin string) (sectionTree, error) {
	format := detectFormat(declared, origin, data)

	k := koanf.New(".")
	var err error
	switch format {
	case FormatINI:
		var sections map[string]any
		sections, err = parseINI(data)
		if err == nil {
			err = k.Load(confmap.Provider(sections, "."), nil)
		}
	case FormatJSON:
		err = k.Load(rawbytes.Provider(data), kjson.Parser())
	default:
		err = k.Load(rawbytes.Provider(data), kyaml.Parser())
	}
	if err != nil {
		return nil, Errorf("config source %s: parse as %s: %w", origin, format, err)
	}

	return normalize(k.Raw(), origin)
}

// parseMapping normalizes an in-memory raw mapping through the same confmap
// path files take, so typed values are coerced identically.
func parseMapping(m map[string]any) (sectionTree, error) {
	k := koanf.New(".")
	if err := k.Load(confmap.Provider(m, "."), nil); err != nil {
		return nil, Errorf("raw config mapping: %w", err)
	}
	return normalize(k.Raw(), "raw mapping")
}

// parseINI reads one level of sections, merging DEFAULT keys into every
// other section.  Values stay strings; typing happens at option handling.
func parseINI(data []byte) (map[string]any, error) {
	f, err := ini.Load(data)
	if err != nil {
		return nil, err
	}

	defaults := map[string]string{}
	if def := f.Section(ini.DefaultSection); def != nil {
		for _, key := range def.Keys() {
			defaults[key.Name()] = key.String()
		}
	}

	out := map[string]any{}
	for _, sec := range f.Sections() {
		if sec.Name() == ini.DefaultSection {
			continue
		}
		opts := map[string]any{}
		for name, val := range defaults {
			opts[strings.ToLower(name)] = val
		}
		for _, key := range sec.Keys() {
			opts[strings.ToLower(key.Name())] = key.String()
		}
		out[strings.ToLower(sec.Name())] = opts
	}
	return out, nil
}

// normalize checks the two-level shape and scalar leaves, and validates
// section names against the environment-name charset.
func normalize(raw map[string]any, origin string) (sectionTree, error) {
	tree := make(sectionTree, len(raw))
	for name, v := range raw {
		if !envNameRe.MatchString(name) {
			return nil, Errorf("config source %s: invalid environment name %q (must match [a-z][a-z0-9]*)", origin, name)
		}
		section, ok := v.(map[string]any)
		if !ok {
			return nil, Errorf("config source %s: environment %q is not a mapping", origin, name)
		}
		opts := make(map[string]any, len(section))
		for opt, val := range section {
			scalar, err := asScalar(val)
			if err != nil {
				return nil, Errorf("config source %s: %s.%s: %w", origin, name, opt, err)
			}
			opts[strings.ToLower(opt)] = scalar
		}
		tree[name] = opts
	}
	return tree, nil
}

// asScalar accepts string, bool, and integer leaves.  JSON numbers arrive
// as float64 and are folded back to int when integral.
func asScalar(v any) (any, error) {
	switch t := v.(type) {
	case string, bool, int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		if t == float64(int(t)) {
			return int(t), nil
		}
		return nil, fmt.Errorf("non-integer number %v", t)
	case nil:
		return "", nil
	default:
		return nil, fmt.Errorf("option values must be scalar, got %T", v)
	}
}
