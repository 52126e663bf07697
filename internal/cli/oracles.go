package cli

import (
	"github.com/spf13/cobra"
)

var oraclesChain int64

var oraclesCmd = &cobra.Command{
	Use:   "oracles",
	Short: "List configured chains, or the feeds and prices of one chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Oracles(cmd.Context(), oraclesChain)
	},
}

func init() {
	oraclesCmd.Flags().Int64Var(&oraclesChain, "chain", 0, "Chain id to list feeds for (0 lists chains)")
}
