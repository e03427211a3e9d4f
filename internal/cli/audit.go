package cli

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newAuditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the write audit archive",
		Long: `Inspect audit entries archived to object storage. Requires AUDIT_BUCKET and
the AUDIT_S3_* connection settings.`,
	}
	cmd.AddCommand(newAuditListCommand())
	cmd.AddCommand(newAuditShowCommand())
	return cmd
}

func newAuditListCommand() *cobra.Command {
	var (
		prefix string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived audit entries, newest first",
		Example: `  mcp-server audit list
  mcp-server audit list --prefix 2026/10/ --limit 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rec, closeRecorder, err := openRecorder(ctx, configFrom(ctx), loggerFrom(ctx))
			if err != nil {
				return err
			}
			defer closeRecorder()

			objs, err := rec.List(ctx, prefix, limit)
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Key", "Size", "Written"})
			for _, o := range objs {
				t.AppendRow(table.Row{o.Key, humanize.Bytes(uint64(o.Size)), humanize.Time(o.LastModified)})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Key prefix below audit/, e.g. 2026/10/19/")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum entries to list (0 for all)")
	return cmd
}

func newAuditShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <key>",
		Short: "Print one archived audit entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rec, closeRecorder, err := openRecorder(ctx, configFrom(ctx), loggerFrom(ctx))
			if err != nil {
				return err
			}
			defer closeRecorder()

			entry, err := rec.Get(ctx, args[0])
			if err != nil {
				return err
			}
			b, err := json.MarshalIndent(entry, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
}
