package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/devblac/event-listener/internal/chains"
)

var chainsCmd = &cobra.Command{
	Use:   "chains",
	Short: "List supported chain ids and the environment variable holding each RPC URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CHAIN ID\tNAME\tRPC ENV VAR")
		for _, c := range chains.All() {
			fmt.Fprintf(w, "%d\t%s\t%s\n", c.ID, c.Name, c.EnvVar)
		}
		fmt.Fprintf(w, "other\tChain <id>\t%s\n", "CHAIN_<id>_RPC_URL")
		return w.Flush()
	},
}
