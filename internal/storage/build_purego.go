//go:build purego || !sqlite_vec
// +build purego !sqlite_vec

package storage

// Default build. Uses the pure Go SQLite driver and ranks records in Go,
// which loads every candidate vector of a collection per query embedding.
// Fine for per-project collections; use the sqlite_vec build for large ones.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// VectorExtensionAvailable indicates if vector extension is available
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
