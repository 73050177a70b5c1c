package filter

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Metadata field names understood by the index backends.
const (
	FieldPath  = "path"
	FieldStart = "start"
	FieldEnd   = "end"
)

// Expr is a node of a metadata filter. The set of node types is closed:
// Equals, NotIn, GreaterEqual and And.
type Expr interface {
	json.Marshaler
	// Match evaluates the expression against a record's metadata.
	Match(meta map[string]any) bool
	isExpr()
}

// Equals matches records whose field equals Value.
type Equals struct {
	Field string
	Value any
}

// NotIn matches records whose field is absent or not one of Values.
type NotIn struct {
	Field  string
	Values []string
}

// GreaterEqual matches records whose field is numeric and >= Value.
type GreaterEqual struct {
	Field string
	Value int
}

// And matches records that satisfy every clause.
type And struct {
	Clauses []Expr
}

func (Equals) isExpr()       {}
func (NotIn) isExpr()        {}
func (GreaterEqual) isExpr() {}
func (And) isExpr()          {}

// Match implements Expr.
func (e Equals) Match(meta map[string]any) bool {
	v, ok := meta[e.Field]
	if !ok {
		return false
	}
	if a, aok := toFloat(v); aok {
		if b, bok := toFloat(e.Value); bok {
			return a == b
		}
	}
	return fmt.Sprint(v) == fmt.Sprint(e.Value)
}

// Match implements Expr.
func (e NotIn) Match(meta map[string]any) bool {
	v, ok := meta[e.Field]
	if !ok {
		return true
	}
	s := fmt.Sprint(v)
	for _, excluded := range e.Values {
		if s == excluded {
			return false
		}
	}
	return true
}

// Match implements Expr.
func (e GreaterEqual) Match(meta map[string]any) bool {
	v, ok := meta[e.Field]
	if !ok {
		return false
	}
	n, ok := toFloat(v)
	return ok && n >= float64(e.Value)
}

// Match implements Expr.
func (e And) Match(meta map[string]any) bool {
	for _, clause := range e.Clauses {
		if !clause.Match(meta) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes {"field":{"$eq":value}}.
func (e Equals) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]map[string]any{e.Field: {"$eq": e.Value}})
}

// MarshalJSON encodes {"field":{"$nin":[...]}}.
func (e NotIn) MarshalJSON() ([]byte, error) {
	values := e.Values
	if values == nil {
		values = []string{}
	}
	return json.Marshal(map[string]map[string][]string{e.Field: {"$nin": values}})
}

// MarshalJSON encodes {"field":{"$gte":value}}.
func (e GreaterEqual) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]map[string]int{e.Field: {"$gte": e.Value}})
}

// MarshalJSON encodes {"$and":[...]}.
func (e And) MarshalJSON() ([]byte, error) {
	clauses := e.Clauses
	if clauses == nil {
		clauses = []Expr{}
	}
	return json.Marshal(map[string][]Expr{"$and": clauses})
}

// Marshal serialises expr to the Chroma-style where grammar. A nil
// expression encodes as null.
func Marshal(expr Expr) ([]byte, error) {
	if expr == nil {
		return []byte("null"), nil
	}
	return expr.MarshalJSON()
}

// Matches evaluates expr against meta. A nil expression matches everything.
func Matches(expr Expr, meta map[string]any) bool {
	if expr == nil {
		return true
	}
	return expr.Match(meta)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
