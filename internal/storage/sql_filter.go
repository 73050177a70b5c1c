package storage

import (
	"fmt"
	"strings"

	"github.com/dshills/vectorquery/internal/filter"
)

// recordColumns maps metadata fields to records columns.
var recordColumns = map[string]string{
	"id":              "r.id",
	filter.FieldPath:  "r.path",
	filter.FieldStart: "r.start_line",
	filter.FieldEnd:   "r.end_line",
}

// compileWhere turns a filter expression into a SQL condition and its
// arguments. A nil expression compiles to an empty condition.
func compileWhere(expr filter.Expr) (string, []interface{}, error) {
	if expr == nil {
		return "", nil, nil
	}

	switch e := expr.(type) {
	case filter.Equals:
		col, err := column(e.Field)
		if err != nil {
			return "", nil, err
		}
		return col + " = ?", []interface{}{e.Value}, nil

	case filter.NotIn:
		col, err := column(e.Field)
		if err != nil {
			return "", nil, err
		}
		if len(e.Values) == 0 {
			return "1 = 1", nil, nil
		}
		args := make([]interface{}, len(e.Values))
		for i, v := range e.Values {
			args[i] = v
		}
		// NULL columns count as "not in", matching in-process evaluation.
		return fmt.Sprintf("(%s IS NULL OR %s NOT IN (%s))", col, col, placeholders(len(e.Values))), args, nil

	case filter.GreaterEqual:
		col, err := column(e.Field)
		if err != nil {
			return "", nil, err
		}
		return col + " >= ?", []interface{}{e.Value}, nil

	case filter.And:
		if len(e.Clauses) == 0 {
			return "1 = 1", nil, nil
		}
		parts := make([]string, 0, len(e.Clauses))
		var args []interface{}
		for _, clause := range e.Clauses {
			cond, clauseArgs, err := compileWhere(clause)
			if err != nil {
				return "", nil, err
			}
			parts = append(parts, "("+cond+")")
			args = append(args, clauseArgs...)
		}
		return strings.Join(parts, " AND "), args, nil

	default:
		return "", nil, fmt.Errorf("%w: %T", ErrUnsupportedFilter, expr)
	}
}

func column(field string) (string, error) {
	col, ok := recordColumns[field]
	if !ok {
		return "", fmt.Errorf("%w: unknown field %q", ErrUnsupportedFilter, field)
	}
	return col, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?,", n-1) + "?"
}
