package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mdbook-diagrams/pkg/errors"
	"github.com/matzehuels/mdbook-diagrams/pkg/mdbook"
	"github.com/matzehuels/mdbook-diagrams/pkg/pipeline"
)

// preprocess runs one mdbook preprocessing request: the [context, book]
// JSON is read from in and the processed book written to out.
//
// Configuration comes from [preprocessor.diagrams] in the book context;
// command-line flags override it. A --config file is ignored here since
// mdbook already forwards book.toml.
func (c *CLI) preprocess(cmd *cobra.Command, in io.Reader, out io.Writer) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx).With("run", newRunID())

	data, err := io.ReadAll(in)
	if err != nil {
		return errors.Wrap(errors.ErrCodeProtocol, err, "read preprocessor input")
	}
	input, err := mdbook.ParseInput(data)
	if err != nil {
		return err
	}

	version := input.Context.MdbookVersion
	if ok, err := mdbook.CheckVersion(version); err != nil {
		logger.Warn("cannot check mdbook version", "err", err)
	} else if !ok {
		logger.Warn("mdbook version mismatch, this may not work",
			"built_against", mdbook.BuiltAgainst,
			"called_from", version)
	}

	cfg, err := input.Context.Config()
	if err != nil {
		return err
	}
	if cfg, err = c.flags.finish(cfg); err != nil {
		return err
	}

	renderer := input.Context.Renderer
	runner, err := pipeline.New(ctx, &cfg, renderer, logger)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(logger)
	var total, cached, kept int
	book, err := mdbook.Process(ctx, input.Book, func(ctx context.Context, ch mdbook.Chapter) (string, error) {
		res, err := runner.ProcessChapter(ctx, chapterName(ch), ch.Content)
		if err != nil {
			return "", err
		}
		total += res.Stats.Blocks
		cached += res.CacheInfo.FileHits + res.CacheInfo.SharedHits
		kept += len(res.Diagnostics)
		return res.Content, nil
	})
	if err != nil {
		return err
	}
	if _, err := out.Write(book); err != nil {
		return errors.Wrap(errors.ErrCodeProtocol, err, "write processed book")
	}

	if kept > 0 {
		logger.Warn("some diagrams were left unrendered", "count", kept)
	}
	prog.done(fmt.Sprintf("Processed %d diagrams for %s (%d cached)", total, renderer, cached))
	return nil
}

// chapterName identifies a chapter in logs and errors.
func chapterName(ch mdbook.Chapter) string {
	if ch.Path != "" {
		return ch.Path
	}
	return ch.Name
}

// supportsCommand creates the "supports" subcommand that mdbook calls to
// check renderer support.
func (c *CLI) supportsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "supports <renderer>",
		Short: "Check whether a renderer is supported (always true)",
		Long: `Check whether a renderer is supported.

mdbook calls this before running the preprocessor. Every renderer is
supported: renderers listed in inline_renderers get embedded images, all
others get links to artifact files.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !mdbook.SupportsRenderer(args[0]) {
				return errors.New(errors.ErrCodeUnsupported, "renderer %q is not supported", args[0])
			}
			return nil
		},
	}
}
