// Package filter builds metadata filters for similarity queries.
//
// Filters are small expression trees (Equals, NotIn, GreaterEqual, And).
// Index backends either compile them to their own query language or
// evaluate them in process with Match. Marshal renders the Chroma-style
// where grammar, which is also the form shown in debug logs:
//
//	{"$and":[{"path":{"$nin":["/repo/gen.go"]}},{"start":{"$gte":0}}]}
//
// BuildRetrievalFilter combines user exclusions with the line-range
// requirement of chunk output. ResolveExclusions turns user-supplied glob
// patterns into the absolute file paths to exclude.
package filter
