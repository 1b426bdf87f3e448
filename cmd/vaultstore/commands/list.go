package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	dserrors "github.com/systmms/vaultstore/internal/errors"
	"github.com/systmms/vaultstore/pkg/storage"
)

func NewListCommand(app *App) *cobra.Command {
	var (
		dirsOnly  bool
		filesOnly bool
		long      bool
	)

	cmd := &cobra.Command{
		Use:     "ls [path]",
		Aliases: []string{"list"},
		Short:   "List the entries of a directory",
		Long: `List the children of a path. Directories end with a slash.

Examples:
  vaultstore ls
  vaultstore ls project/ssh --files
  vaultstore ls -l db`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dirsOnly && filesOnly {
				return dserrors.UserError{
					Message:    "--dirs and --files cannot be combined",
					Suggestion: "Drop both flags to list everything",
				}
			}

			var path storage.Path
			if len(args) == 1 {
				path = storage.PathOf(args[0])
			}

			env, err := app.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			list := env.Store.ListDirectory
			switch {
			case dirsOnly:
				list = env.Store.ListDirectorySubdirs
			case filesOnly:
				list = env.Store.ListDirectoryResources
			}

			entries, err := list(cmd.Context(), path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !long {
				for _, entry := range entries {
					fmt.Fprintln(out, displayName(entry, path))
				}
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, entry := range entries {
				if entry.Directory {
					fmt.Fprintf(w, "dir\t-\t-\t%s\n", displayName(entry, path))
					continue
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n",
					orDash(entry.Meta.ContentType),
					entry.Meta.ContentLength,
					formatTime(entry.Meta.ModificationTime),
					displayName(entry, path))
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&dirsOnly, "dirs", false, "Only list directories")
	cmd.Flags().BoolVar(&filesOnly, "files", false, "Only list resources")
	cmd.Flags().BoolVarP(&long, "long", "l", false, "Show content type, size and modification time")

	return cmd
}
