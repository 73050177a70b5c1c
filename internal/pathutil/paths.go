// Package pathutil expands and normalises filesystem paths shown to users.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Expand replaces a leading ~ with the home directory and expands
// environment variables. When absolute is true the result is made absolute
// and cleaned.
func Expand(path string, absolute bool) (string, error) {
	path = os.ExpandEnv(path)
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	if absolute {
		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", path, err)
		}
		path = abs
	}
	return path, nil
}

// Cleanup abbreviates the home directory prefix of an absolute path to ~.
// Relative paths are returned unchanged.
func Cleanup(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}
	home := os.Getenv("HOME")
	if home == "" {
		return path
	}
	if path == home {
		return "~"
	}
	prefix := strings.TrimSuffix(home, string(filepath.Separator)) + string(filepath.Separator)
	if strings.HasPrefix(path, prefix) {
		return "~" + string(filepath.Separator) + strings.TrimPrefix(path, prefix)
	}
	return path
}

// Display returns the form of target shown in results: absolute, or
// relative to root. Falls back to the absolute path when no relative form
// exists.
func Display(target, root string, absolute bool) string {
	abs, err := filepath.Abs(target)
	if err != nil {
		abs = target
	}
	if absolute {
		return abs
	}
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return abs
	}
	rel, err := filepath.Rel(rootAbs, abs)
	if err != nil {
		return abs
	}
	return rel
}

// IsRegularFile reports whether path exists and is a regular file.
func IsRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
