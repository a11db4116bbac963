package cmd

import (
	"context"
	"fmt"

	"github.com/Togather-Foundation/sitelens/internal/pagetree"
	"github.com/Togather-Foundation/sitelens/internal/reconcile"
	"github.com/spf13/cobra"
)

var (
	treeMaxPages    int
	treeConcurrency int
	treeCompact     bool
)

// treeCmd reconciles a page and every same-site page it links to
var treeCmd = &cobra.Command{
	Use:   "tree <page-url>",
	Short: "Reconcile a page and the pages it links to",
	Long: `Fetch a page, extract its canonical URL and same-site links, and print a
report for each page as JSON.

The page fetch honours robots.txt. Reports are printed in tree order: the
root page first, then linked pages in document order.

Examples:
  # Reconcile a section landing page and its children
  server tree https://example.org/en/services/

  # Limit the tree and the number of pages probed at once
  server tree https://example.org/en/ --max-pages 20 --concurrency 2`,
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

		tree, err := pagetree.NewLoader(
			pagetree.WithMaxPages(treeMaxPages),
			pagetree.WithUserAgent(userAgent()),
		).Load(ctx, args[0])
		if err != nil {
			return fmt.Errorf("load page tree: %w", err)
		}
		a.logger.Info().Str("root", tree.Root).Int("pages", len(tree.Pages)).Msg("page tree loaded")

		concurrency := treeConcurrency
		if concurrency <= 0 {
			concurrency = a.cfg.Probe.Concurrency
		}
		reports := a.service.ReconcileAll(ctx, tree.URLs(), a.search, a.behavior, concurrency)

		return writeJSON(cmd.OutOrStdout(), treeOutput{Root: tree.Root, Reports: reports}, treeCompact)
	},
}

type treeOutput struct {
	Root    string             `json:"root"`
	Reports []reconcile.Report `json:"reports"`
}

func init() {
	treeCmd.Flags().IntVar(&treeMaxPages, "max-pages", pagetree.DefaultMaxPages, "maximum pages to reconcile, root included")
	treeCmd.Flags().IntVar(&treeConcurrency, "concurrency", 0, "pages probed at once (default: PROBE_CONCURRENCY)")
	treeCmd.Flags().BoolVar(&treeCompact, "compact", false, "print JSON on a single line")
}
