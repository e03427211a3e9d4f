package cli

import (
	"github.com/spf13/cobra"

	"github.com/umarmk/mcp-server/internal/bootstrap"
)

func newBootstrapCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap",
		Short: "Create the demonstration tables and seed rows",
		Long: `Create items, users, products, orders and order_items with a few sample rows.
Existing tables and rows are left alone, so the command can be re-run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			pool, err := openPool(ctx, configFrom(ctx))
			if err != nil {
				return err
			}
			defer pool.Close()

			report, err := bootstrap.Run(ctx, pool, loggerFrom(ctx))
			if err != nil {
				return err
			}
			bootstrap.Render(cmd.OutOrStdout(), report)
			return nil
		},
	}
}
