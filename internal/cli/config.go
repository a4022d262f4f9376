package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"appbuilder/pkg/config"
	"appbuilder/pkg/version"
)

func (a *App) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err //nolint:wrapcheck // marshal error carries context
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err //nolint:wrapcheck // stdout write error
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "models",
		Short: "List known models and their providers",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, name := range config.ModelNames() {
				info := config.KnownModels[name]
				fmt.Fprintf(cmd.OutOrStdout(), "%-28s %-10s %d\n", name, info.Provider, info.MaxOutTokens)
			}
		},
	})
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprint(cmd.OutOrStdout(), version.String())
		},
	}
}
