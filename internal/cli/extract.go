package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/typeq/internal/config"
	"github.com/mvp-joe/typeq/internal/explore"
	"github.com/mvp-joe/typeq/internal/extract"
	"github.com/mvp-joe/typeq/internal/packages"
	"github.com/mvp-joe/typeq/internal/syntax"
	"github.com/mvp-joe/typeq/internal/watcher"
	"github.com/mvp-joe/typeq/internal/world"
)

var (
	strategyFlag string
	targetFlag   string
	formatFlag   string
	textsFlag    bool
	offlineFlag  bool
	watchFlag    bool
	quietFlag    bool
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <entry.typ> [root]",
	Short: "Extract equations from a Typst document",
	Long: `Extract prints every equation reachable from the entry file, in reading
order, with the file it was found in.

Strategies:
  syntax  follow literal #import and #include paths through the parse trees
  eval    evaluate the document; also finds equations built by functions,
          computed includes and eval() strings

Equations whose source cannot be recovered under the eval strategy are
printed as plain text prefixed with "[fallback] ".

Settings come from .typeq/config.yml in the project root and TYPEQ_*
environment variables; flags override both.

Examples:
  # Equations of a document, root = its directory
  typeq extract main.typ

  # JSON for scripts
  typeq extract main.typ --format json

  # Only the texts, as a JSON array of strings
  typeq extract main.typ --texts

  # Re-run whenever a .typ file changes
  typeq extract main.typ --watch
`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	addExtractFlags(extractCmd)
}

func addExtractFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&strategyFlag, "strategy", "", "Extraction strategy: syntax or eval (default from config, syntax)")
	f.StringVar(&targetFlag, "target", "", "Node kind to extract: equation or raw (default from config, equation)")
	f.StringVarP(&formatFlag, "format", "f", "", "Output format: text or json (default from config, text)")
	f.BoolVar(&textsFlag, "texts", false, "Print only the texts as a JSON array of strings")
	f.BoolVar(&offlineFlag, "offline", false, "Never download packages from the registry")
	f.BoolVarP(&watchFlag, "watch", "w", false, "Extract again whenever project files change")
	f.BoolVarP(&quietFlag, "quiet", "q", false, "Suppress progress output")
}

// extractOptions holds everything one extraction run needs.
type extractOptions struct {
	Entry  string
	Root   string
	Config *config.Config
	Texts  bool
	Quiet  bool
	Parses *world.ParseCache // reused across watch runs; nil parses afresh
}

func runExtract(cmd *cobra.Command, args []string) error {
	entry, root := projectArgs(args)

	cfg, err := config.LoadConfigFromDir(root)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := applyExtractFlags(cmd, cfg); err != nil {
		return err
	}

	opts := extractOptions{
		Entry:  entry,
		Root:   root,
		Config: cfg,
		Texts:  textsFlag,
		Quiet:  quietFlag,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if watchFlag {
		return watchExtract(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
	}
	return executeExtract(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
}

// projectArgs returns the entry file and the project root, which defaults
// to the entry's directory.
func projectArgs(args []string) (entry, root string) {
	entry = args[0]
	if len(args) > 1 {
		root = args[1]
	}
	if root == "" {
		root = filepath.Dir(entry)
	}
	return entry, root
}

// applyExtractFlags overrides configuration with explicitly set flags.
func applyExtractFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("strategy") {
		cfg.Extract.Strategy = strategyFlag
	}
	if flags.Changed("target") {
		cfg.Extract.Target = targetFlag
	}
	if flags.Changed("format") {
		cfg.Output.Format = formatFlag
	}
	if flags.Changed("offline") {
		cfg.Packages.Offline = offlineFlag
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

// executeExtract runs one extraction and prints the result to stdout.
// Progress goes to stderr.
func executeExtract(ctx context.Context, stdout, stderr io.Writer, opts extractOptions) error {
	res, err := extractOnce(ctx, stderr, opts)
	if err != nil {
		return err
	}
	kind, _ := opts.Config.TargetKind()
	return printResult(stdout, res, kind, opts)
}

func extractOnce(ctx context.Context, progressOut io.Writer, opts extractOptions) (*extract.Result, error) {
	cfg := opts.Config
	kind, ok := cfg.TargetKind()
	if !ok {
		return nil, fmt.Errorf("%w: %q", extract.ErrUnsupportedTarget, cfg.Extract.Target)
	}
	strategy, err := extract.StrategyByName(cfg.Extract.Strategy)
	if err != nil {
		return nil, err
	}

	progress := NewCLIProgressReporter(opts.Quiet, progressOut)
	if s, ok := strategy.(*extract.SyntaxStrategy); ok {
		s.OnEdge = func(e explore.Edge) { progress.OnFile(e.To.String()) }
	}
	locator := packages.NewLocator(cfg.ToPackagesConfig(), packages.NewHTTPDownloader(opts.Quiet))

	progress.OnStart(opts.Entry, strategy.Name())
	w, err := world.Open(ctx, opts.Entry, opts.Root, locator, world.WithParseCache(opts.Parses))
	if err != nil {
		progress.OnAbort()
		return nil, err
	}
	res, err := strategy.Extract(ctx, w, kind)
	if err != nil {
		progress.OnAbort()
		return nil, err
	}
	progress.OnComplete(len(res.Items), len(res.Files))
	return res, nil
}

// jsonItem is one element of --format json output.
type jsonItem struct {
	Index int    `json:"index"`
	File  string `json:"file"`
	Text  string `json:"text"`
	Exact bool   `json:"exact"`
}

func printResult(out io.Writer, res *extract.Result, kind syntax.Kind, opts extractOptions) error {
	switch {
	case opts.Texts:
		return writeJSON(out, res.Texts())
	case opts.Config.Output.Format == config.FormatJSON:
		items := make([]jsonItem, len(res.Items))
		for i, it := range res.Items {
			items[i] = jsonItem{Index: i + 1, File: it.Display, Text: it.Text, Exact: it.Exact}
		}
		return writeJSON(out, items)
	}

	singular, label := targetNouns(kind)
	if len(res.Items) == 0 {
		_, err := fmt.Fprintf(out, "No %ss found.\n", singular)
		return err
	}
	if _, err := fmt.Fprintf(out, "Found %d %s(s) in %d file(s):\n\n", len(res.Items), singular, len(res.Files)); err != nil {
		return err
	}
	for i, it := range res.Items {
		if _, err := fmt.Fprintf(out, "%s %d (from %s):\n%s\n\n", label, i+1, it.Display, it.Text); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func targetNouns(kind syntax.Kind) (singular, label string) {
	if kind == syntax.Raw {
		return "raw block", "Raw block"
	}
	return "equation", "Equation"
}

// watchExtract extracts once, then again whenever project files change,
// until ctx is cancelled. Failed runs are reported and watching continues.
func watchExtract(ctx context.Context, stdout, stderr io.Writer, opts extractOptions) error {
	parses, err := world.NewParseCache(world.DefaultParseCacheSize)
	if err != nil {
		return fmt.Errorf("failed to create parse cache: %w", err)
	}
	defer parses.Close()
	opts.Parses = parses

	fw, err := watcher.NewFileWatcher(opts.Root, watcher.Options{
		Ignore:   opts.Config.Watch.Ignore,
		Debounce: opts.Config.Debounce(),
	})
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", opts.Root, err)
	}

	coordinator := watcher.NewWatchCoordinator(fw, func(ctx context.Context, changed []string) error {
		if len(changed) > 0 {
			fmt.Fprintf(stderr, "\n%d file(s) changed, extracting again...\n", len(changed))
		}
		return executeExtract(ctx, stdout, stderr, opts)
	})

	fmt.Fprintf(stderr, "Watching %s for changes (Ctrl+C to stop)...\n", opts.Root)
	if err := coordinator.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
