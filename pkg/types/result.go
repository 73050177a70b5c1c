package types

// StructuredResult is one query result. Only the fields that apply to the
// requested include set are populated; unset fields are omitted from JSON.
type StructuredResult struct {
	Path      *string `json:"path,omitempty"`
	Document  *string `json:"document,omitempty"`
	Chunk     *string `json:"chunk,omitempty"`
	ChunkID   *string `json:"chunk_id,omitempty"`
	StartLine *int    `json:"start_line,omitempty"`
	EndLine   *int    `json:"end_line,omitempty"`
}

// Field returns the value of the field named by q and whether it is set.
func (r *StructuredResult) Field(q QueryInclude) (string, bool) {
	var v *string
	switch q {
	case IncludePath:
		v = r.Path
	case IncludeDocument:
		v = r.Document
	case IncludeChunk:
		v = r.Chunk
	}
	if v == nil {
		return "", false
	}
	return *v, true
}

// Project keeps only the path and document fields named in include.
// Chunk-specific fields are left as they are.
func (r StructuredResult) Project(include IncludeSet) StructuredResult {
	if !include.Has(IncludePath) {
		r.Path = nil
	}
	if !include.Has(IncludeDocument) {
		r.Document = nil
	}
	return r
}

// Validate checks that a result carries at least one field and that chunk
// line numbers are ordered.
func (r *StructuredResult) Validate() error {
	if r.Path == nil && r.Document == nil && r.Chunk == nil {
		return ErrEmptyResult
	}
	if r.StartLine != nil && r.EndLine != nil && *r.StartLine > *r.EndLine {
		return ErrInvalidLineRange
	}
	return nil
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// IntPtr returns a pointer to n.
func IntPtr(n int) *int { return &n }
