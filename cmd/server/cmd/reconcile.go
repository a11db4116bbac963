package cmd

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"
)

var reconcileCompact bool

// reconcileCmd prints one report as JSON
var reconcileCmd = &cobra.Command{
	Use:   "reconcile <url>",
	Short: "Reconcile one page and print its report",
	Long: `Probe both analytics backends for a page, then print the joined report as JSON.

The URL may be absolute or a site-relative path. A backend without credentials
is reported as not found with reason "source not connected"; the command still
succeeds.

Examples:
  # Reconcile by path
  server reconcile /en/housing/

  # Reconcile an absolute URL with single-line output
  server reconcile https://example.org/fr/logement/ --compact`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		report := a.service.Reconcile(ctx, args[0], a.search, a.behavior)
		return writeJSON(cmd.OutOrStdout(), report, reconcileCompact)
	},
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileCompact, "compact", false, "print JSON on a single line")
}

func writeJSON(w io.Writer, v any, compact bool) error {
	enc := json.NewEncoder(w)
	if !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
