package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command. Without a subcommand it extracts
// equations, like the extract command.
var rootCmd = &cobra.Command{
	Use:   "typeq <entry.typ> [root]",
	Short: "Extract equations from Typst documents",
	Long: `typeq finds the equations of a Typst document, following its imports
and includes, and prints the exact source text of each one in reading order.

The project root defaults to the directory of the entry file. References may
not escape it.

Examples:
  typeq thesis/main.typ
  typeq thesis/chapters/intro.typ thesis --format json
  typeq deps thesis/main.typ`,
	Args:          cobra.RangeArgs(1, 2),
	RunE:          runExtract,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	addExtractFlags(rootCmd)
}
