package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	dserrors "github.com/systmms/vaultstore/internal/errors"
	"github.com/systmms/vaultstore/internal/keystore"
	"github.com/systmms/vaultstore/pkg/storage"
)

func NewPutCommand(app *App) *cobra.Command {
	var (
		file        string
		contentType string
	)

	cmd := &cobra.Command{
		Use:   "put <path> [value]",
		Short: "Create or replace a resource",
		Long: `Store a value at a path. The value comes from the argument, from --file,
or from stdin when neither is given. Existing resources are replaced and keep
their creation time; fields of an existing multi-field secret are updated in
place.

Examples:
  vaultstore put ci/token s3cr3t
  vaultstore put project/ssh/deploy --file ~/.ssh/id_ed25519 --content-type application/octet-stream
  echo -n hunter2 | vaultstore put db/pass`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 2 && file != "" {
				return dserrors.UserError{
					Message:    "A value argument and --file cannot be combined",
					Suggestion: "Pass the value either inline or with --file",
				}
			}

			data, err := readValue(cmd, args, file)
			if err != nil {
				return err
			}

			env, err := app.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			ctx := cmd.Context()
			path := storage.PathOf(args[0])
			content := storage.NewContent(data, contentType, time.Now())

			var res *storage.Resource
			if env.Store.Resolve(ctx, path).Kind == keystore.KindMissing {
				res, err = env.Store.CreateResource(ctx, path, content)
			} else {
				res, err = env.Store.UpdateResource(ctx, path, content)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s (%d bytes)\n", res.Path, len(res.Content()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the value from a file")
	cmd.Flags().StringVar(&contentType, "content-type", "", "MIME type stored with the value in managed mode")

	return cmd
}

func readValue(cmd *cobra.Command, args []string, file string) ([]byte, error) {
	switch {
	case len(args) == 2:
		return []byte(args[1]), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, dserrors.UserError{
				Message:    fmt.Sprintf("Failed to read %s", file),
				Details:    err.Error(),
				Suggestion: "Check the file path and permissions",
				Err:        err,
			}
		}
		return data, nil
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
}
