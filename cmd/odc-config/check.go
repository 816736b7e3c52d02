// cmd/odc-config/check.go
//
// `odc-config check` – resolve one environment and print it.
//
// Secrets are masked in the output; pass --connect to additionally open the
// database (postgres/postgis drivers only) and run a liveness probe, which
// is the quickest way to confirm an environment end to end.
//

package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"github.com/opendatacube/odc-config/internal/cfg"
	"github.com/opendatacube/odc-config/internal/database"
	"github.com/opendatacube/odc-config/internal/server"
)

var flagConnect bool

var checkCmd = &cobra.Command{
	Use:   "check [environment]",
	Short: "Resolve an environment and print its options",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newResolver()
		if err != nil {
			return err
		}

		name := flagEnvName
		if len(args) == 1 {
			name = args[0]
		}
		env, err := res.GetEnvironment(name)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "environment: %s\n", env.Name())
		if aliases := env.Aliases(); len(aliases) > 0 {
			fmt.Fprintf(out, "aliases:     %v\n", aliases)
		}
		if env.Dynamic() {
			fmt.Fprintln(out, "dynamic:     true (no section in source)")
		}
		fmt.Fprintf(out, "source:      %s\n\n", res.SourceOrigin())

		masked := server.MaskedOptions(env)
		names := make([]string, 0, len(masked))
		for n := range masked {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			fmt.Fprintf(out, "  %-24s %v\n", n, masked[n])
		}

		if flagConnect {
			return connectProbe(out, env)
		}
		return nil
	},
}

func connectProbe(out io.Writer, env *cfg.Environment) error {
	switch env.IndexDriver() {
	case "postgres", "postgis", "default", "legacy":
	default:
		fmt.Fprintf(out, "\ndriver %q has no database to probe\n", env.IndexDriver())
		return nil
	}

	db, err := database.Open(env)
	if err != nil {
		return fmt.Errorf("connect %s: %w", env.Name(), err)
	}
	defer db.Close()

	if err := database.Check(db); err != nil {
		return fmt.Errorf("probe %s: %w", env.Name(), err)
	}
	fmt.Fprintf(out, "\ndatabase reachable: %s\n", env.DBDatabase())
	return nil
}

func init() {
	checkCmd.Flags().BoolVar(&flagConnect, "connect", false,
		"open the database and run a liveness probe")
	rootCmd.AddCommand(checkCmd)
}
