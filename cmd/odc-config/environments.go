// cmd/odc-config/environments.go
//
// `odc-config environments` – list what the active source defines.
//

package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

var environmentsCmd = &cobra.Command{
	Use:     "environments",
	Aliases: []string{"envs"},
	Short:   "List environment sections and aliases in the active source",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, err := newResolver()
		if err != nil {
			return err
		}

		concrete, aliases := res.Sections()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "source: %s\n\n", res.SourceOrigin())
		for _, name := range concrete {
			fmt.Fprintf(out, "  %s\n", name)
		}

		if len(aliases) > 0 {
			names := make([]string, 0, len(aliases))
			for a := range aliases {
				names = append(names, a)
			}
			sort.Strings(names)
			fmt.Fprintln(out)
			for _, a := range names {
				fmt.Fprintf(out, "  %s -> %s\n", a, aliases[a])
			}
		}
		return nil
	},
}

func init() { rootCmd.AddCommand(environmentsCmd) }
