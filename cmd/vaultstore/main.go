package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/systmms/vaultstore/cmd/vaultstore/commands"
	"github.com/systmms/vaultstore/internal/config"
	dserrors "github.com/systmms/vaultstore/internal/errors"
	"github.com/systmms/vaultstore/internal/logging"
	"github.com/systmms/vaultstore/internal/metrics"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	memguard.CatchInterrupt()
	err := run()
	memguard.Purge()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", dserrors.SimplifyError(err))
		os.Exit(1)
	}
}

func run() error {
	var (
		noColor     bool
		debug       bool
		metricsAddr string
	)

	app := &commands.App{}
	var metricsServer *metrics.Server

	rootCmd := &cobra.Command{
		Use:   "vaultstore",
		Short: "Hierarchical key storage on a Vault KV mount",
		Long: `vaultstore browses and edits keys kept in a HashiCorp Vault KV engine
as a tree of directories and resources.

Secrets written by other tools show up as well: a secret with several
fields reads as a directory whose entries are its fields.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			app.Logger = logging.New(debug, noColor)

			if metricsAddr == "" {
				return nil
			}
			metricsServer = metrics.NewServer(metrics.DefaultServerConfig(metricsAddr), app.Logger)
			return metricsServer.Start()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if metricsServer == nil {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Stop(ctx)
		},
	}

	rootCmd.PersistentFlags().StringVar(&app.ConfigPath, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")

	rootCmd.AddCommand(
		commands.NewListCommand(app),
		commands.NewGetCommand(app),
		commands.NewPutCommand(app),
		commands.NewRemoveCommand(app),
		commands.NewStatCommand(app),
		commands.NewCheckCommand(app),
	)

	return rootCmd.Execute()
}
