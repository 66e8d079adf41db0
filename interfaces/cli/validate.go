package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NatureBlueee/Towow-sub004/infrastructure/config"
)

// validateOptions holds options for the validate command.
type validateOptions struct {
	configPath string
	strictEnv  bool
	verbose    bool
}

// newValidateCmd creates the validate command.
func (a *App) newValidateCmd() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Validate a configuration file without running anything.

Checks the file parses, every referenced environment variable resolves when
--strict-env is set, and the resulting bounds and policies are consistent.

Examples:
  towow validate -c config.yaml
  towow validate -c config.yaml --strict-env`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.validateConfig(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file (required)")
	cmd.Flags().BoolVar(&opts.strictEnv, "strict-env", false, "Fail on unresolved environment variables")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Print the effective configuration")

	_ = cmd.MarkFlagRequired("config")

	return cmd
}

// validateConfig loads and validates the configuration file.
func (a *App) validateConfig(opts *validateOptions) error {
	loader := config.NewLoaderWithOptions(
		config.WithStrictEnv(opts.strictEnv),
	)

	cfg, err := loader.LoadFile(opts.configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	_, _ = fmt.Fprintf(a.stdout, "Configuration is valid: %s\n", opts.configPath)

	if opts.verbose {
		_, _ = fmt.Fprintf(a.stdout, "  Max rounds: %d\n", cfg.Engine.MaxRounds)
		_, _ = fmt.Fprintf(a.stdout, "  Max depth: %d\n", cfg.Engine.MaxDepth)
		_, _ = fmt.Fprintf(a.stdout, "  Max children: %d\n", cfg.Engine.MaxChildren)
		_, _ = fmt.Fprintf(a.stdout, "  Barrier deadline: %s\n", cfg.Engine.BarrierDeadline)
		_, _ = fmt.Fprintf(a.stdout, "  Confirmation timeout: %s\n", cfg.Engine.ConfirmationTimeout)
		_, _ = fmt.Fprintf(a.stdout, "  Cascade keep ratio: %.2f (min %d, max %d)\n",
			cfg.Cascade.KeepRatio, cfg.Cascade.MinKeep, cfg.Cascade.MaxKeep)
		_, _ = fmt.Fprintf(a.stdout, "  Storage backend: %s\n", cfg.Storage.Backend)
	}

	return nil
}
