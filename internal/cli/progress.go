package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// CLIProgressReporter reports extraction progress on a side channel,
// normally stderr, so that stdout carries only results.
type CLIProgressReporter struct {
	quiet     bool
	out       io.Writer
	fileBar   *progressbar.ProgressBar
	startTime time.Time
	files     int
}

// NewCLIProgressReporter creates a new CLI progress reporter.
func NewCLIProgressReporter(quiet bool, out io.Writer) *CLIProgressReporter {
	return &CLIProgressReporter{
		quiet: quiet,
		out:   out,
	}
}

func (c *CLIProgressReporter) OnStart(entry, strategy string) {
	c.startTime = time.Now()
	c.files = 0
	if c.quiet {
		return
	}
	fmt.Fprintf(c.out, "Extracting from %s (%s strategy)...\n", entry, strategy)

	c.fileBar = progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(c.out),
		progressbar.OptionSetDescription("Reading files"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionShowCount(),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// OnFile is called for every linked file as it is reached.
func (c *CLIProgressReporter) OnFile(name string) {
	c.files++
	if c.quiet || c.fileBar == nil {
		return
	}
	c.fileBar.Describe("Reading " + name)
	c.fileBar.Add(1)
}

func (c *CLIProgressReporter) OnComplete(items, files int) {
	if c.quiet {
		return
	}
	if c.fileBar != nil {
		c.fileBar.Finish()
		c.fileBar = nil
	}
	fmt.Fprintf(c.out, "✓ Extracted %d item(s) from %d file(s) in %s\n",
		items, files, time.Since(c.startTime).Round(time.Millisecond))
}

// OnAbort clears the progress display after a failed extraction.
func (c *CLIProgressReporter) OnAbort() {
	if c.fileBar != nil {
		c.fileBar.Finish()
		c.fileBar = nil
	}
}
