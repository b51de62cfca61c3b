package cli

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/mdbook-diagrams/pkg/cache"
	"github.com/matzehuels/mdbook-diagrams/pkg/errors"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the rendered diagram cache",
		Long: `Manage the artifact directory (files_path) where rendered diagrams are cached.

The directory and filename prefix are taken from --config, ./book.toml or the
--files-path flag.`,
	}

	cmd.AddCommand(c.cachePathCommand())
	cmd.AddCommand(c.cacheListCommand())
	cmd.AddCommand(c.cacheClearCommand())

	return cmd
}

// openStore opens the artifact directory of the effective configuration.
func (c *CLI) openStore() (*cache.FileStore, error) {
	cfg, err := c.flags.load()
	if err != nil {
		return nil, err
	}
	store, err := cache.NewFileStore(cfg.FilesPath, cfg.FilenamePrefix)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCacheIO, err, "open %s", cfg.FilesPath)
	}
	return store, nil
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the artifact directory path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), store.Dir())
			return nil
		},
	}
}

// cacheListCommand creates the "cache list" subcommand.
func (c *CLI) cacheListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached diagrams, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore()
			if err != nil {
				return err
			}
			entries, err := store.List()
			if err != nil {
				return errors.Wrap(errors.ErrCodeCacheIO, err, "list %s", store.Dir())
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				printInfo(out, "Cache is empty")
				printDetail(out, "Directory: %s", store.Dir())
				return nil
			}

			rows := make([][]string, 0, len(entries))
			var total int64
			for _, e := range entries {
				rows = append(rows, []string{
					e.Name,
					e.Format.String(),
					formatSize(e.Size),
					e.ModTime.Format(time.DateTime),
				})
				total += e.Size
			}
			fmt.Fprintln(out, StyleTitle.Render("Cached diagrams"))
			fmt.Fprintln(out, renderTable([]string{"File", "Format", "Size", "Modified"}, rows))
			fmt.Fprintf(out, "  %s %s\n", StyleNumber.Render(strconv.Itoa(len(entries))),
				StyleDim.Render(fmt.Sprintf("diagrams, %s in %s", formatSize(total), store.Dir())))
			return nil
		},
	}
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached diagrams",
		Long: `Remove all cached diagrams from the artifact directory.

Only files matching the artifact naming scheme ({filename_prefix}{sha1}.{svg,png})
are removed, so clearing is safe when files_path is a shared directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			count, err := store.Clear()
			if err != nil {
				printError(out, "Cleared %d cached diagrams before failing", count)
				return errors.Wrap(errors.ErrCodeCacheIO, err, "clear %s", store.Dir())
			}
			printSuccess(out, "Cleared %d cached diagrams", count)
			printDetail(out, "Directory: %s", filepath.Clean(store.Dir()))
			return nil
		},
	}
}

// formatSize renders a byte count for humans.
func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
