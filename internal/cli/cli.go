// Package cli implements the mdbook-diagrams command-line interface.
//
// Run without a subcommand, the binary is an mdbook preprocessor: it reads
// the [context, book] JSON from stdin and writes the processed book to
// stdout. Subcommands cover standalone use and cache maintenance.
//
// # Commands
//
// The main commands are:
//   - supports: Tell mdbook whether a renderer is supported
//   - process: Render the diagrams of a single markdown file
//   - serve: Run a caching Kroki-compatible proxy
//   - cache: Inspect and clear the artifact directory
//
// # Logging
//
// Logs always go to stderr (stdout carries the book). All commands support
// --verbose (-v) for debug-level logging and --log-file to write logs to a
// rotating file instead. Loggers are passed through context.Context.
package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/mdbook-diagrams/pkg/buildinfo"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for display.
	appName = "mdbook-diagrams"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	flags   configFlags
	logFile string
	closer  io.Closer
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// Close releases the log file, if any.
func (c *CLI) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

// RootCommand creates the root cobra command with all subcommands registered.
// The root command itself runs the mdbook preprocessor.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "mdbook preprocessor that renders diagrams through Kroki",
		Long: `mdbook-diagrams replaces fenced diagram blocks (mermaid, graphviz, plantuml, d2, ...)
in an mdbook with images rendered by a Kroki-compatible service.

Without a subcommand it runs as an mdbook preprocessor, reading the book from
stdin and writing the processed book to stdout. Add it to book.toml:

  [preprocessor.diagrams]
  command = "mdbook-diagrams"`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.logFile != "" && c.closer == nil {
				f := newLogFile(c.logFile)
				c.Logger.SetOutput(f)
				c.closer = f
			}
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.preprocess(cmd, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.logFile, "log-file", "", "write logs to a rotating file instead of stderr")
	c.flags.register(root.PersistentFlags())

	// Register all subcommands
	root.AddCommand(c.supportsCommand())
	root.AddCommand(c.processCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Paths
// =============================================================================

// bookConfigFile is looked up in the working directory when no --config is
// given.
const bookConfigFile = "book.toml"

// defaultConfigPath returns book.toml in the working directory when it exists.
func defaultConfigPath() string {
	if _, err := os.Stat(bookConfigFile); err == nil {
		return bookConfigFile
	}
	return ""
}
