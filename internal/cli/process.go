package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mdbook-diagrams/pkg/errors"
	"github.com/matzehuels/mdbook-diagrams/pkg/pipeline"
)

// processFlags holds flags for the process command.
type processFlags struct {
	output   string
	renderer string
}

// processCommand creates the process command for single markdown files.
func (c *CLI) processCommand() *cobra.Command {
	flags := processFlags{}

	cmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Render the diagrams of a markdown file",
		Long: `Render the diagrams of a markdown file outside of mdbook.

The processed document is written to stdout, or to --output. Use "-" to read
from stdin. The --renderer flag selects inline or file-reference output the
same way the mdbook renderer name does.`,
		Example: `  # Embed diagrams as data URIs
  mdbook-diagrams process README.md -o README.rendered.md

  # Link to PNG files instead
  mdbook-diagrams process doc.md --renderer markdown --format png --files-path img`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runProcess(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVarP(&flags.renderer, "renderer", "r", "html", "renderer the output is for")

	return cmd
}

func (c *CLI) runProcess(cmd *cobra.Command, input string, flags processFlags) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	content, name, err := readInput(cmd.InOrStdin(), input)
	if err != nil {
		return err
	}
	cfg, err := c.flags.load()
	if err != nil {
		return err
	}

	runner, err := pipeline.New(ctx, &cfg, flags.renderer, logger)
	if err != nil {
		return err
	}
	defer runner.Close()

	res, err := runner.ProcessChapter(ctx, name, content)
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	for _, d := range res.Diagnostics {
		printWarning(stderr, "%s", d)
	}

	if flags.output == "" {
		_, err = io.WriteString(cmd.OutOrStdout(), res.Content)
		return err
	}
	if err := os.WriteFile(flags.output, []byte(res.Content), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "write %s", flags.output)
	}
	printSuccess(stderr, "Processed %s", name)
	printStats(stderr, res.Stats.Blocks, res.CacheInfo.FileHits+res.CacheInfo.SharedHits, res.Stats.Failed)
	printFile(stderr, flags.output)
	return nil
}

// readInput reads the named file, or r when name is "-".
func readInput(r io.Reader, name string) (string, string, error) {
	if name == "-" {
		data, err := io.ReadAll(r)
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), "stdin", nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", "", errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", name)
	}
	return string(data), filepath.Base(name), nil
}
