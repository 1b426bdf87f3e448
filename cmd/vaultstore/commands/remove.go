package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/vaultstore/pkg/storage"
)

func NewRemoveCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rm <path>",
		Aliases: []string{"delete"},
		Short:   "Delete a resource",
		Long: `Delete the resource at a path. Deleting a field of a multi-field secret
rewrites the secret without it; the secret goes away with its last field.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := app.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			path := storage.PathOf(args[0])
			if err := env.Store.DeleteResource(cmd.Context(), path); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", path)
			return nil
		},
	}

	return cmd
}
