// cmd/odc-config/paths.go
//
// `odc-config paths` – show how the active source was chosen.
//
// Handy when a deployment has config files scattered across $ODC_CONFIG_PATH
// entries and the default search path, and the question is "which one won".
//

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var pathsCmd = &cobra.Command{
	Use:   "paths",
	Short: "Show the config search path and the winning source",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		res, err := newResolver()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "source: %s\n", res.SourceOrigin())

		candidates := res.SourceCandidates()
		winner := res.SourcePath()
		for _, p := range candidates {
			marker := " "
			if p == winner && winner != "" {
				marker = "*"
			}
			fmt.Fprintf(out, "  %s %s\n", marker, p)
		}
		if winner == "" && len(candidates) == 0 {
			fmt.Fprintln(out, "  (no file search performed)")
		}
		return nil
	},
}

func init() { rootCmd.AddCommand(pathsCmd) }
