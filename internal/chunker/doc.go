// Package chunker splits query strings into pieces small enough to embed.
//
// Queries can be arbitrarily long (a whole source file pasted as a query is
// common), so each query is cut into fixed-size windows that overlap by a
// configurable ratio. Every window is embedded separately and the retrieval
// results are merged later by the reranker.
//
// # Basic Usage
//
//	c, err := chunker.New(2500, 0.2)
//	if err != nil {
//	    return err
//	}
//	texts := c.Segment([]string{"parse config file", longSnippet})
//
// # Window Sizing
//
// Sizes are measured in runes. The step between windows is
// floor(ChunkSize * (1 - OverlapRatio)), never less than one. A ChunkSize of
// zero or less turns splitting off.
package chunker
