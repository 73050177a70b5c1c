package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/vectorquery/internal/pathutil"
	"github.com/dshills/vectorquery/internal/searcher"
)

type collectionJSON struct {
	Name        string `json:"name"`
	ProjectRoot string `json:"project_root"`
	Provider    string `json:"embedding_provider"`
	Model       string `json:"embedding_model"`
	Dimension   int    `json:"dimension"`
}

func newCollectionsCmd(global *globalFlags) *cobra.Command {
	var pipe bool

	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List indexed projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}
			defer a.Close()

			infos, err := a.searcher.Collections(cmd.Context())
			if err != nil {
				a.logger.Error("listing collections failed", zap.String("kind", searcher.KindOf(err).String()), zap.Error(err))
				return errReported
			}

			out := make([]collectionJSON, 0, len(infos))
			for _, info := range infos {
				out = append(out, collectionJSON{
					Name:        info.Name,
					ProjectRoot: pathutil.Cleanup(info.ProjectRoot),
					Provider:    info.EmbeddingProvider,
					Model:       info.EmbeddingModel,
					Dimension:   info.Dimension,
				})
			}

			if pipe {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetEscapeHTML(false)
				return enc.Encode(out)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PROJECT\tEMBEDDING\tDIMENSION")
			for _, c := range out {
				fmt.Fprintf(tw, "%s\t%s/%s\t%d\n", c.ProjectRoot, c.Provider, c.Model, c.Dimension)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&pipe, "pipe", false, "print collections as JSON")
	return cmd
}
