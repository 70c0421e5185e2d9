// -- cmd/root.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/migrator/internal/config"
	"github.com/xkilldash9x/migrator/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	cfgFile   string
	workspace string
	cache     bool
}

// NewRootCommand builds a fresh command tree. Each call returns independent
// flag state.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "migrator",
		Short:         "Migrator applies LLM-driven fixes to static-analysis incidents.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			if err := initializeConfig(v, opts.cfgFile); err != nil {
				observability.InitializeLogger(fallbackLoggerConfig())
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(fallbackLoggerConfig())
				return fmt.Errorf("failed to load or validate config: %w", err)
			}
			if cmd.Flags().Changed("workspace") {
				cfg.SetWorkspaceRoot(opts.workspace)
			}
			if cmd.Flags().Changed("cache") {
				cfg.SetCacheEnabled(opts.cache)
			}

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting migrator.", zap.String("version", Version))

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, configKey, cfg))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	cmd.PersistentFlags().StringVarP(&opts.workspace, "workspace", "w", "", "root of the project being migrated (overrides workspace.root)")
	cmd.PersistentFlags().BoolVar(&opts.cache, "cache", false, "record and replay model responses and dependency lookups")
	cmd.SetVersionTemplate(`{{printf "migrator version %s\n" .Version}}`)

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCacheCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the command tree against os.Args.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	defer observability.Sync()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		observability.GetLogger().Info("Command canceled.")
		return err
	}
	observability.GetLogger().Error("Command execution failed.", zap.Error(err))
	fmt.Fprintln(os.Stderr, "Error:", err)
	return err
}

// initializeConfig points v at the config file and the MIGRATOR_ environment.
// A missing default config file is not an error.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("MIGRATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func fallbackLoggerConfig() config.LoggerConfig {
	return config.LoggerConfig{Level: "info", Format: "console", ServiceName: "migrator"}
}

// configFromContext returns the config stored by the root command.
func configFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}
