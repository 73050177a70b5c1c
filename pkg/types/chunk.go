package types

// Chunk is a contiguous piece of a query string. Start and End are rune
// offsets into the original string, End exclusive.
type Chunk struct {
	Text  string
	Start int
	End   int
}

// String returns the chunk text so chunks can be embedded directly.
func (c Chunk) String() string {
	return c.Text
}

// Len returns the chunk length in runes.
func (c Chunk) Len() int {
	return c.End - c.Start
}
