package cli

import "github.com/spf13/cobra"

func newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long:  `Print the merged configuration as YAML. Passwords and keys are masked.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return configFrom(cmd.Context()).WriteYAML(cmd.OutOrStdout())
		},
	}
}
