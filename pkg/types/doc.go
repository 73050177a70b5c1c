// Package types provides shared type definitions for vectorquery.
//
// # Core Types
//
// QueryInclude and IncludeSet describe which fields a query returns. An
// IncludeSet is ordered; human-readable output prints fields in that order:
//
//	include, err := types.ParseIncludeSet([]string{"path", "chunk"})
//	if err := include.Validate(); err != nil {
//	    // chunk and document cannot be combined
//	}
//
// StructuredResult is the fixed-shape record produced for every hit. Fields
// are pointers so that JSON output only contains the keys that apply:
//
//	r := types.StructuredResult{Path: types.StringPtr("main.go")}
//	// {"path":"main.go"}
//
// Chunk is a piece of a segmented query string.
package types
