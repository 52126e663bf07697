package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"price-predicates/internal/app"
)

var (
	historyOwner string
	historyLimit int
	historyPage  int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Display an owner's predicates, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyOwner == "" {
			return fmt.Errorf("--owner must be provided")
		}

		opts := app.HistoryOptions{
			Owner: historyOwner,
			Limit: historyLimit,
			Page:  historyPage,
		}

		return getApp().History(cmd.Context(), opts)
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyOwner, "owner", "", "Owner address")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "Page size (defaults to config)")
	historyCmd.Flags().IntVar(&historyPage, "page", 1, "1-based page number")
}
