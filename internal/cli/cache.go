package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/waveguide/internal/store"
)

// CacheOptions holds flags for the cache runs command.
type CacheOptions struct {
	*RootOptions
	Program string // program hash filter
	Limit   int    // most recent runs to show, 0 for all
}

// CacheClearResult reports how many artifacts were removed.
type CacheClearResult struct {
	Removed int64 `json:"removed"`
}

// NewCacheCommand creates the cache command and its subcommands.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the artifact cache and run log",
		Long: `Inspect the SQLite database selected with --cache.

Examples:
  waveguide cache list --cache ./waveguide.db
  waveguide cache runs --cache ./waveguide.db --limit 10
  waveguide cache clear --cache ./waveguide.db`,
	}

	cmd.AddCommand(newCacheListCommand(rootOpts))
	cmd.AddCommand(newCacheRunsCommand(rootOpts))
	cmd.AddCommand(newCacheClearCommand(rootOpts))

	return cmd
}

func newCacheListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List cached native code",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(rootOpts, cmd, func(f *OutputFormatter, st *store.Store) error {
				artifacts, err := st.ListArtifacts(cmd.Context())
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeCacheFailed, err.Error())
				}
				if f.JSON() {
					return f.Success(artifacts)
				}
				if len(artifacts) == 0 {
					fmt.Fprintln(f.Writer, "No cached artifacts.")
					return nil
				}
				for _, a := range artifacts {
					fmt.Fprintf(f.Writer, "%s  %s  %d bytes  %d hit(s)\n", a.Hash, a.Backend, a.CodeSize, a.Hits)
				}
				return nil
			})
		},
	}
}

func newCacheRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "runs",
		Short:         "List logged runs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(rootOpts, cmd, func(f *OutputFormatter, st *store.Store) error {
				runs, err := st.ListRuns(cmd.Context(), opts.Program, opts.Limit)
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeCacheFailed, err.Error())
				}
				if f.JSON() {
					return f.Success(runs)
				}
				if len(runs) == 0 {
					fmt.Fprintln(f.Writer, "No runs logged.")
					return nil
				}
				for _, run := range runs {
					fmt.Fprintf(f.Writer, "%d  %s  %s  %s  result %d\n", run.Seq, run.ID, run.ProgramHash, run.Source, run.Result)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.Program, "program", "", "only runs of this program hash")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show only the most recent runs")

	return cmd
}

func newCacheClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear",
		Short:         "Remove all cached native code",
		Long:          "Remove all cached native code. The run log is kept.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(rootOpts, cmd, func(f *OutputFormatter, st *store.Store) error {
				n, err := st.ClearArtifacts(cmd.Context())
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeCacheFailed, err.Error())
				}
				if f.JSON() {
					return f.Success(CacheClearResult{Removed: n})
				}
				fmt.Fprintf(f.Writer, "✓ Removed %d artifact(s)\n", n)
				return nil
			})
		},
	}
}

// withCache opens the --cache database for the duration of fn.
func withCache(opts *RootOptions, cmd *cobra.Command, fn func(*OutputFormatter, *store.Store) error) error {
	formatter := newFormatter(opts, cmd)
	if opts.Cache == "" {
		return formatter.Fail(ExitCommandError, ErrCodeCacheFailed, "no cache database given (use --cache)")
	}

	st, err := store.Open(opts.Cache)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeCacheFailed, err.Error())
	}
	defer st.Close()

	slog.Debug("using cache", "path", opts.Cache)
	return fn(formatter, st)
}
