// Package commands holds the segreader subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"

	"segreader/internal/config"
	"segreader/internal/logging"
	"segreader/internal/vault"

	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once the root has run.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

func (a *app) openVault(ctx context.Context) (*vault.Vault, error) {
	return vault.Open(ctx, vault.Config{
		Dir:         a.cfg.Dir,
		Concurrency: a.cfg.Concurrency,
		Logger:      a.logger,
	})
}

// NewRootCommand builds the segreader command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "segreader",
		Short:         "Write and read sealed log chunks",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default: .segreader.yaml in the working directory or $HOME)")
	flags.String("dir", "", "chunk directory (overrides config)")
	flags.String("log-level", "", "log level: debug, info, warn or error (overrides config)")
	flags.String("log-format", "", "log format: text or json (overrides config)")

	root.AddCommand(
		newWriteCommand(a),
		newListCommand(a),
		newCatCommand(a),
		newSourcesCommand(a),
		newCompressCommand(a),
		newPruneCommand(a),
		newVersionCommand(version),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("dir") {
		cfg.Dir, _ = flags.GetString("dir")
	}
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Log.Format, _ = flags.GetString("log-format")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate flags: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	handler, err := logging.NewHandler(cmd.ErrOrStderr(), cfg.Log.Format, level)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = slog.New(handler)
	return nil
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
