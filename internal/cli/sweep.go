package cli

import (
	"github.com/spf13/cobra"

	"price-predicates/internal/app"
)

var sweepRevalidate bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire overdue predicates once and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Sweep(cmd.Context(), app.SweepOptions{Revalidate: sweepRevalidate})
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepRevalidate, "revalidate", false, "Also revalidate every open predicate against its oracle")
}
