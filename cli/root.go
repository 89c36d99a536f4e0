package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/compozy/taskref/pkg/config"
	"github.com/compozy/taskref/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	defaultConfigFile = "taskref.yaml"
	defaultEnvFile    = ".env"
)

// RootCmd builds the taskref command tree.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "taskref",
		Short:         "Resolve task references in pipeline files",
		Long:          "taskref resolves compound task names and task expressions across a directory of pipeline JSON files.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupCommand(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return config.ManagerFromContext(cmd.Context()).Close(cmd.Context())
		},
	}
	addGlobalFlags(root.PersistentFlags())
	root.AddCommand(
		ResolveCmd(),
		ExpandCmd(),
		ParseCmd(),
		CheckCmd(),
		ListCmd(),
		ReplCmd(),
		WatchCmd(),
		ConfigCmd(),
	)
	return root
}

func addGlobalFlags(flags *pflag.FlagSet) {
	def := config.Default()
	flags.String("config", defaultConfigFile, "Path to the config file")
	flags.String("env-file", defaultEnvFile, "Path to a .env file")
	flags.String("log-level", def.Runtime.LogLevel, "Log level (debug, info, warn, error, disabled)")
	flags.Bool("log-json", false, "Log in JSON format")
	flags.Bool("log-source", false, "Include source locations in logs")
	flags.String("root", def.Autoload.Root, "Directory containing pipeline files")
	flags.StringSlice("include", def.Autoload.Include, "Glob patterns of pipeline files")
	flags.StringSlice("exclude", nil, "Glob patterns to skip")
	flags.Bool("strict", false, "Fail on the first invalid pipeline file")
	flags.Int("max-expansion", def.Resolver.MaxExpansion, "Largest list an expression may expand to")
	flags.Int("parse-cache-size", def.Resolver.ParseCacheSize, "Parsed expression cache size (0 disables)")
	flags.Duration("debounce", def.Autoload.Debounce, "Delay before reloading after a file change")
	flags.StringP("format", "f", def.CLI.Format, "Output format (pretty, json, text)")
	flags.Bool("no-color", false, "Disable colored output")
	flags.Int("workers", def.CLI.Workers, "Parallel workers for check")
}

// setupCommand loads the layered configuration, configures logging and
// attaches both to the command context.
func setupCommand(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	envFile, err := cmd.Flags().GetString("env-file")
	if err != nil {
		return fmt.Errorf("failed to get env-file flag: %w", err)
	}
	manager := config.NewManager(config.NewService())
	cfg, err := manager.Load(ctx,
		config.NewYAMLProvider(configFile),
		config.NewDotEnvProvider(envFile),
		config.NewCLIProvider(changedFlags(cmd.Flags())),
	)
	if err != nil {
		return err
	}
	logger.SetupLogger(logger.LogLevel(cfg.Runtime.LogLevel), cfg.Runtime.LogJSON, cfg.Runtime.LogSource)
	ctx = logger.ContextWithLogger(ctx, logger.GetDefault())
	ctx = config.ContextWithManager(ctx, manager)
	cmd.SetContext(ctx)
	logger.FromContext(ctx).Debug("Configuration loaded", "root", cfg.Autoload.Root, "format", cfg.CLI.Format)
	return nil
}

// changedFlags collects the flags set on the command line, keyed by name.
func changedFlags(flags *pflag.FlagSet) map[string]any {
	out := make(map[string]any)
	flags.Visit(func(f *pflag.Flag) {
		switch f.Value.Type() {
		case "stringSlice":
			if v, err := flags.GetStringSlice(f.Name); err == nil {
				out[f.Name] = v
			}
		case "bool":
			if v, err := flags.GetBool(f.Name); err == nil {
				out[f.Name] = v
			}
		case "int":
			if v, err := flags.GetInt(f.Name); err == nil {
				out[f.Name] = v
			}
		case "duration":
			if v, err := flags.GetDuration(f.Name); err == nil {
				out[f.Name] = v.String()
			}
		default:
			out[f.Name] = f.Value.String()
		}
	})
	return out
}

// commandConfig returns the configuration attached by setupCommand.
func commandConfig(cmd *cobra.Command) *config.Config {
	return config.FromContext(cmd.Context())
}

// debounceOf keeps a zero debounce meaningful for the watcher.
func debounceOf(cfg *config.Config) time.Duration {
	if cfg.Autoload.Debounce == 0 {
		return time.Nanosecond
	}
	return cfg.Autoload.Debounce
}
