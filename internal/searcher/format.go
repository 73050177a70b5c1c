package searcher

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/dshills/vectorquery/pkg/types"
)

var headerColor = color.New(color.FgCyan, color.Bold)

// WriteJSON writes results as a single JSON array followed by a newline.
// An empty result set is written as [].
func WriteJSON(w io.Writer, results []types.StructuredResult) error {
	if results == nil {
		results = []types.StructuredResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}
	return nil
}

// WriteHuman writes one block per result with one labelled line per
// included field, in include order. Blocks are separated by a blank line.
// Headers are coloured when w is a terminal that supports it.
func WriteHuman(w io.Writer, results []types.StructuredResult, include types.IncludeSet) error {
	for i := range results {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		for _, item := range include {
			value, _ := results[i].Field(item)
			if _, err := fmt.Fprintf(w, "%s%s\n", headerColor.Sprint(item.Header()), value); err != nil {
				return err
			}
		}
	}
	return nil
}
