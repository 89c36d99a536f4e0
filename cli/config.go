package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/compozy/taskref/pkg/config"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/cobra"
)

// ConfigCmd shows the effective configuration and where each value came from.
func ConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration and its sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			manager := config.ManagerFromContext(cmd.Context())
			cfg := manager.Get()
			if cfg == nil {
				return fmt.Errorf("configuration not loaded")
			}
			k := koanf.New(".")
			if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
				return fmt.Errorf("failed to flatten configuration: %w", err)
			}
			out := newPrinter(cmd.OutOrStdout(), cfg)
			if cfg.CLI.Format != OutputFormatText {
				return out.JSON(k.Raw(), "")
			}
			keys := k.Keys()
			sort.Strings(keys)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KEY\tVALUE\tSOURCE\tENV")
			for _, key := range keys {
				fmt.Fprintf(tw, "%s\t%v\t%s\t%s\n", key, k.Get(key), manager.Service.GetSource(key),
					config.GetEnvVarForConfigPath(key))
			}
			return tw.Flush()
		},
	}
}
