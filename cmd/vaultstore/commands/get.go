package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/systmms/vaultstore/pkg/storage"
)

func NewGetCommand(app *App) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "get <path>",
		Short: "Print the content of a resource",
		Long: `Print the content of a resource to stdout, unchanged.

Examples:
  vaultstore get project/ssh/deploy.pub
  vaultstore get db/pass --json
  export TOKEN=$(vaultstore get ci/token)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := app.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			res, err := env.Store.GetResource(cmd.Context(), storage.PathOf(args[0]))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !jsonOutput {
				_, err := out.Write(res.Content())
				return err
			}

			output := map[string]interface{}{
				"path":         res.Path.String(),
				"content_type": res.Meta.ContentType,
				"size":         res.Meta.ContentLength,
				"meta":         res.Meta.Meta,
				"value":        string(res.Content()),
			}
			if !res.Meta.CreationTime.IsZero() {
				output["created"] = storage.FormatTime(res.Meta.CreationTime)
			}
			if !res.Meta.ModificationTime.IsZero() {
				output["modified"] = storage.FormatTime(res.Meta.ModificationTime)
			}

			encoder := json.NewEncoder(out)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(output); err != nil {
				return fmt.Errorf("failed to encode JSON: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format with metadata")

	return cmd
}
