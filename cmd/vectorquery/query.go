package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/vectorquery/internal/reranker"
	"github.com/dshills/vectorquery/internal/searcher"
	"github.com/dshills/vectorquery/pkg/types"
)

type queryFlags struct {
	number     int
	include    []string
	multiplier float64
	exclude    []string
	absolute   bool
	pipe       bool
	reranker   string
}

func newQueryCmd(global *globalFlags) *cobra.Command {
	flags := &queryFlags{}

	cmd := &cobra.Command{
		Use:   "query QUERY...",
		Short: "Query the project's index",
		Long: `Embed the query, retrieve the closest records from the project's collection and
print them in reranked order. Each argument is a separate query message.

Examples:
  vectorquery query "database migrations"
  vectorquery query -n 3 --include path "token refresh" "oauth"
  vectorquery query --include chunk,path --exclude "vendor/**" --pipe "error wrapping"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, global, flags, args)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&flags.number, "number", "n", 0, "number of results (default from config, 1)")
	f.StringSliceVar(&flags.include, "include", nil, "fields to return: path, document, chunk (default path,document)")
	f.Float64Var(&flags.multiplier, "multiplier", 0, "candidate oversampling factor for whole-file queries; negative retrieves everything")
	f.StringSliceVar(&flags.exclude, "exclude", nil, "glob patterns of files to leave out")
	f.BoolVar(&flags.absolute, "absolute", false, "print absolute paths")
	f.BoolVar(&flags.pipe, "pipe", false, "print results as a JSON array")
	f.StringVar(&flags.reranker, "reranker", "", "reranker: "+strings.Join(reranker.Names(), ", "))
	return cmd
}

func runQuery(cmd *cobra.Command, global *globalFlags, flags *queryFlags, args []string) error {
	include := types.DefaultIncludeSet()
	if len(flags.include) > 0 {
		var err error
		if include, err = types.ParseIncludeSet(flags.include); err != nil {
			return err
		}
	}
	// Checked before anything is opened.
	if err := include.Validate(); err != nil {
		return err
	}

	a, err := newApp(cmd, global)
	if err != nil {
		return err
	}
	defer a.Close()

	req := searcher.Request{
		Query:           args,
		ProjectRoot:     a.root,
		NResult:         a.cfg.NResult,
		Include:         include,
		Multiplier:      a.cfg.QueryMultiplier,
		Exclude:         flags.exclude,
		UseAbsolutePath: a.cfg.UseAbsolutePath,
		Reranker:        a.cfg.Reranker,
	}
	if cmd.Flags().Changed("number") {
		req.NResult = flags.number
	}
	if cmd.Flags().Changed("multiplier") {
		req.Multiplier = flags.multiplier
	}
	if cmd.Flags().Changed("absolute") {
		req.UseAbsolutePath = flags.absolute
	}
	if cmd.Flags().Changed("reranker") {
		req.Reranker = flags.reranker
	}
	if !flags.pipe {
		req.Progress = cmd.ErrOrStderr()
	}

	if code := searcher.Run(cmd.Context(), a.searcher, req, cmd.OutOrStdout(), flags.pipe); code != 0 {
		return errReported
	}
	return nil
}
