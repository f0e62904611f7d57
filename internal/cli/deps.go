package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/typeq/internal/config"
	"github.com/mvp-joe/typeq/internal/depgraph"
	"github.com/mvp-joe/typeq/internal/packages"
	"github.com/mvp-joe/typeq/internal/world"
)

var depsOfflineFlag bool

// depsCmd represents the deps command
var depsCmd = &cobra.Command{
	Use:   "deps <entry.typ> [root]",
	Short: "Show which files a Typst document imports and includes",
	Long: `Deps follows the literal #import and #include paths of a document and
prints each file with the files it links to, then lists include cycles.

Example:
  typeq deps thesis/main.typ`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runDeps,
}

func init() {
	rootCmd.AddCommand(depsCmd)
	depsCmd.Flags().BoolVar(&depsOfflineFlag, "offline", false, "Never download packages from the registry")
}

func runDeps(cmd *cobra.Command, args []string) error {
	entry, root := projectArgs(args)

	cfg, err := config.LoadConfigFromDir(root)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cmd.Flags().Changed("offline") {
		cfg.Packages.Offline = depsOfflineFlag
	}

	return executeDeps(cmd.Context(), cmd.OutOrStdout(), entry, root, cfg)
}

func executeDeps(ctx context.Context, out io.Writer, entry, root string, cfg *config.Config) error {
	locator := packages.NewLocator(cfg.ToPackagesConfig(), packages.NewHTTPDownloader(true))
	w, err := world.Open(ctx, entry, root, locator)
	if err != nil {
		return err
	}
	g, err := depgraph.Build(ctx, w)
	if err != nil {
		return err
	}
	return g.Write(out)
}
