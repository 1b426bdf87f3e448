package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	dserrors "github.com/systmms/vaultstore/internal/errors"
	"github.com/systmms/vaultstore/internal/keystore"
	"github.com/systmms/vaultstore/pkg/storage"
)

func NewStatCommand(app *App) *cobra.Command {
	var byAddress bool

	cmd := &cobra.Command{
		Use:   "stat <path>",
		Short: "Show how a path maps onto Vault",
		Long: `Show what a path resolves to: the kind of object, the Vault address it
reads and the field names involved. Values are never printed.

With --address the argument is a Vault address such as secret/keys/db and
is translated back to a path first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := app.Open(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			path := storage.PathOf(args[0])
			if byAddress {
				var ok bool
				path, ok = env.Store.Translator().Path(args[0])
				if !ok {
					return dserrors.UserError{
						Message:    fmt.Sprintf("'%s' is outside the configured mount and prefix", args[0]),
						Suggestion: fmt.Sprintf("Addresses start with '%s'", env.Store.Translator().Address(storage.Path{})),
					}
				}
			}

			obj := env.Store.Resolve(cmd.Context(), path)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Path:\t%s\n", orDash(path.String()))
			fmt.Fprintf(w, "Kind:\t%s\n", describe(obj))
			fmt.Fprintf(w, "Address:\t%s\n", orDash(obj.Address))
			switch obj.Kind {
			case keystore.KindField:
				fmt.Fprintf(w, "Field:\t%s\n", obj.FieldName)
				fmt.Fprintf(w, "Siblings:\t%s\n", strings.Join(obj.Parent.FieldNames(), ", "))
			case keystore.KindManaged, keystore.KindRaw:
				fmt.Fprintf(w, "Fields:\t%s\n", strings.Join(obj.FieldNames(), ", "))
			case keystore.KindMissing:
				if msg := obj.ErrorMessage(); msg != "" {
					fmt.Fprintf(w, "Error:\t%s\n", msg)
				}
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&byAddress, "address", false, "Treat the argument as a Vault address")

	return cmd
}

func describe(obj *keystore.Object) string {
	switch {
	case obj.IsDirectory():
		return "raw secret (directory of fields)"
	case obj.Kind == keystore.KindField && !obj.Exists():
		return "field (not set)"
	case obj.Kind == keystore.KindRaw:
		return "raw secret"
	case obj.Kind == keystore.KindManaged:
		return "managed resource"
	default:
		return obj.Kind.String()
	}
}
