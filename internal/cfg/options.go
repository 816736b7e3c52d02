// internal/cfg/options.go
//
// Option registry: names, types, and defaults for environment options.
//
// Context
// -------
// Every recognized option has a declared type so values can arrive as YAML
// scalars, INI strings, or environment-variable strings and still coerce to
// the same Go value.  Unrecognized options pass through untouched—drivers
// read their own extras from the resolved mapping.
//
// Booleans accept yes/no, on/off, and 1/0 in addition to true/false since
// INI files and shell exports spell them every which way.
//
// Notes
// -----
//   • db_username defaults to the OS user, resolved once at first use.
//   • db_iam_timeout's default only applies when IAM auth is on; that rule
//     lives in resolver.go, not here.

package cfg

import (
	"fmt"
	"os/user"
	"strconv"
	"strings"
	"sync"
)

// Option names recognized by the resolver.
const (
	OptAlias             = "alias"
	OptIndexDriver       = "index_driver"
	OptDBURL             = "db_url"
	OptDBHostname        = "db_hostname"
	OptDBPort            = "db_port"
	OptDBDatabase        = "db_database"
	OptDBUsername        = "db_username"
	OptDBPassword        = "db_password"
	OptDBConnTimeout     = "db_connection_timeout"
	OptDBIAMAuth         = "db_iam_authentication"
	OptDBIAMTimeout      = "db_iam_timeout"
)

type optionKind int

const (
	kindString optionKind = iota
	kindInt
	kindBool
)

type optionDef struct {
	kind optionKind

	// hasDefault distinguishes "defaults to zero value" from "no default
	// at all" (db_url, db_password, db_iam_timeout).
	hasDefault bool
	defValue   func() any
}

var optionDefs = map[string]optionDef{
	OptIndexDriver:   {kind: kindString, hasDefault: true, defValue: func() any { return "default" }},
	OptDBURL:         {kind: kindString},
	OptDBHostname:    {kind: kindString, hasDefault: true, defValue: func() any { return "localhost" }},
	OptDBPort:        {kind: kindInt, hasDefault: true, defValue: func() any { return 5432 }},
	OptDBDatabase:    {kind: kindString, hasDefault: true, defValue: func() any { return "datacube" }},
	OptDBUsername:    {kind: kindString, hasDefault: true, defValue: osUsername},
	OptDBPassword:    {kind: kindString},
	OptDBConnTimeout: {kind: kindInt, hasDefault: true, defValue: func() any { return 60 }},
	OptDBIAMAuth:     {kind: kindBool, hasDefault: true, defValue: func() any { return false }},
	OptDBIAMTimeout:  {kind: kindInt},
}

// iamTimeoutDefault applies only when db_iam_authentication is true.
const iamTimeoutDefault = 600

// Index drivers known to the ecosystem.  "default" and "legacy" are the
// historical names of the postgres driver.
var knownDrivers = map[string]bool{
	"default": true,
	"legacy":  true,
	"postgres": true,
	"postgis":  true,
	"memory":   true,
	"null":     true,
}

var osUserOnce = sync.OnceValue(func() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return ""
})

func osUsername() any { return osUserOnce() }

// coerceOption converts a raw scalar (file value or env-var string) into the
// option's declared Go type.  Unknown options pass through unchanged.
func coerceOption(name string, raw any) (any, error) {
	def, known := optionDefs[name]
	if !known {
		return raw, nil
	}
	switch def.kind {
	case kindInt:
		switch v := raw.(type) {
		case int:
			return v, nil
		case string:
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, fmt.Errorf("option %s: %q is not an integer", name, v)
			}
			return n, nil
		}
	case kindBool:
		switch v := raw.(type) {
		case bool:
			return v, nil
		case string:
			b, err := parseBool(v)
			if err != nil {
				return nil, fmt.Errorf("option %s: %w", name, err)
			}
			return b, nil
		case int:
			return v != 0, nil
		}
	case kindString:
		switch v := raw.(type) {
		case string:
			return v, nil
		case int:
			return strconv.Itoa(v), nil
		case bool:
			return strconv.FormatBool(v), nil
		}
	}
	return nil, fmt.Errorf("option %s: unsupported value %v (%T)", name, raw, raw)
}

// parseBool is deliberately looser than strconv.ParseBool.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "on", "1":
		return true, nil
	case "false", "no", "n", "off", "0", "":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a boolean", s)
}

// legacyGlobalVars maps deprecated unprefixed variables to the option they
// override in every environment.  Order matters only for log stability.
var legacyGlobalVars = []struct {
	envvar, option, replacement string
}{
	{"DATACUBE_DB_URL", OptDBURL, "ODC_<ENVIRONMENT>_DB_URL"},
	{"DB_DATABASE", OptDBDatabase, "ODC_<ENVIRONMENT>_DB_DATABASE"},
	{"DB_HOSTNAME", OptDBHostname, "ODC_<ENVIRONMENT>_DB_HOSTNAME"},
	{"DB_PORT", OptDBPort, "ODC_<ENVIRONMENT>_DB_PORT"},
	{"DB_USERNAME", OptDBUsername, "ODC_<ENVIRONMENT>_DB_USERNAME"},
	{"DB_PASSWORD", OptDBPassword, "ODC_<ENVIRONMENT>_DB_PASSWORD"},
}
