package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/systmms/vaultstore/internal/vault"
	"github.com/systmms/vaultstore/pkg/storage"
)

func NewCheckCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check configuration, login and mount access",
		Long: `Load the configuration, log in and list the configured prefix.

Prints the session TTL and the renewal margin derived from the client
timeouts; the session is renewed once the TTL drops to that margin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := app.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			entries, err := env.Store.ListDirectory(cmd.Context(), storage.Path{})
			if err != nil {
				return err
			}

			state := env.Session.State()
			cfg := env.Config

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Address:\t%s\n", cfg.Address)
			if cfg.Namespace != "" {
				fmt.Fprintf(w, "Namespace:\t%s\n", cfg.Namespace)
			}
			fmt.Fprintf(w, "Auth:\t%s\n", cfg.Auth.Method)
			fmt.Fprintf(w, "Storage:\t%s (kv v%d, mode %s)\n", env.Store.Translator().Address(storage.Path{}), cfg.EngineVersion, env.Store.Mode())
			fmt.Fprintf(w, "Token TTL:\t%s\n", formatTTL(state.TTL))
			fmt.Fprintf(w, "Renewal margin:\t%s\n", state.GuaranteedValidity)
			fmt.Fprintf(w, "Top-level entries:\t%d\n", len(entries))
			if err := w.Flush(); err != nil {
				return err
			}

			app.Logger.Info("Vault reachable and session valid")
			return nil
		},
	}

	return cmd
}

func formatTTL(ttl time.Duration) string {
	if ttl == vault.NoExpiry {
		return "no expiry"
	}
	return ttl.String()
}
