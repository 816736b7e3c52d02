// cmd/odc-config/root.go
//
// Root cobra command and the flags shared by every subcommand.
//
// Flag → source precedence
// ------------------------
// --raw feeds explicit raw config (overrides disabled for environments it
// defines).  --config paths are "CLI-supplied": they rank below
// $ODC_CONFIG and $ODC_CONFIG_PATH but above the default search path.
// --env picks the environment and outranks $ODC_ENVIRONMENT.
//

package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/opendatacube/odc-config/internal/cfg"
	"github.com/opendatacube/odc-config/internal/vault"
)

var (
	flagConfigPaths []string
	flagEnvName     string
	flagRaw         string
	flagFormat      string
)

var rootCmd = &cobra.Command{
	Use:   "odc-config",
	Short: "Inspect and serve datacube configuration environments",
	Long: `odc-config resolves datacube configuration the same way the indexing
tools do: file or raw sources, environment aliases, ODC_* variable
overrides, and built-in defaults.  Use it to answer "what will environment
X actually connect to" without starting a datacube process.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringSliceVarP(&flagConfigPaths, "config", "c", nil,
		"config file path (repeatable; first readable wins)")
	pf.StringVarP(&flagEnvName, "env", "E", "",
		"environment name (default: $ODC_ENVIRONMENT, then \"default\")")
	pf.StringVar(&flagRaw, "raw", "",
		"inline raw configuration (disables ODC_* overrides for its environments)")
	pf.StringVar(&flagFormat, "format", "",
		"declare source format: ini, yaml, or json (default: auto-detect)")
}

// newResolver builds the session resolver from the shared flags.  A Vault
// secret resolver is attached when VAULT_ADDR is configured.
func newResolver() (*cfg.Resolver, error) {
	spec := cfg.SourceSpec{
		RawText:  flagRaw,
		CLIPaths: flagConfigPaths,
		Format:   cfg.Format(flagFormat),
	}

	opts := []cfg.ResolverOption{}
	if os.Getenv("VAULT_ADDR") != "" {
		cli, err := vault.New()
		if err != nil {
			zap.S().Warnw("vault unavailable, secret references will not resolve", "err", err)
		} else {
			opts = append(opts, cfg.WithSecrets(cli))
		}
	}

	return cfg.New(spec, opts...)
}
