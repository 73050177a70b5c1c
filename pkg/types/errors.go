package types

import "errors"

// Domain errors for type validation
var (
	// Include errors
	ErrUnknownInclude      = errors.New("unknown include item")
	ErrEmptyInclude        = errors.New("include set cannot be empty")
	ErrIncompatibleInclude = errors.New("having both chunk and document in the output is not supported")

	// Result errors
	ErrEmptyResult      = errors.New("result has no fields")
	ErrInvalidLineRange = errors.New("start line must be before or equal to end line")
)
