package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/dshills/vectorquery/internal/searcher"
	"github.com/dshills/vectorquery/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams   = -32602 // Invalid method parameters
	ErrorCodeInternalError   = -32603 // Internal JSON-RPC error
	ErrorCodeProjectNotFound = -32001 // Specified path is not a readable directory
	ErrorCodeNotIndexed      = -32003 // Project not indexed
	ErrorCodeEmptyQuery      = -32004 // Query parameter is empty
	ErrorCodeIndexMismatch   = -32005 // Index was built with other embedding settings
)

const maxNQuery = 100

// handleQuery handles the query tool invocation
func (s *Server) handleQuery(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	root, ok := args["project_root"].(string)
	if !ok || root == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "project_root parameter is required", map[string]interface{}{
			"param":  "project_root",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(root); err != nil {
		return nil, newMCPError(ErrorCodeProjectNotFound, "invalid project_root", map[string]interface{}{
			"param":  "project_root",
			"reason": err.Error(),
		})
	}

	messages, err := getStringSlice(args, "query_messages")
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid query_messages", map[string]interface{}{
			"param":  "query_messages",
			"reason": err.Error(),
		})
	}
	messages = nonBlank(messages)
	if len(messages) == 0 {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query_messages is required and cannot be empty", map[string]interface{}{
			"param":  "query_messages",
			"reason": "missing or empty",
		})
	}

	nQuery := getIntDefault(args, "n_query", s.defaults.NResult)
	if nQuery < 1 || nQuery > maxNQuery {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("n_query must be between 1 and %d", maxNQuery), map[string]interface{}{
			"param": "n_query",
			"value": nQuery,
		})
	}

	include := s.defaults.Include
	names, err := getStringSlice(args, "include")
	if err == nil && len(names) > 0 {
		include, err = types.ParseIncludeSet(names)
	}
	if err == nil {
		err = include.Validate()
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid include", map[string]interface{}{
			"param":   "include",
			"reason":  err.Error(),
			"allowed": []string{"path", "document", "chunk"},
		})
	}

	exclude, err := getStringSlice(args, "exclude")
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid exclude", map[string]interface{}{
			"param":  "exclude",
			"reason": err.Error(),
		})
	}

	resp, err := s.searcher.Search(ctx, searcher.Request{
		Query:           messages,
		ProjectRoot:     root,
		NResult:         nQuery,
		Include:         include,
		Multiplier:      s.defaults.Multiplier,
		Exclude:         exclude,
		UseAbsolutePath: s.defaults.UseAbsolutePath,
		Reranker:        s.defaults.Reranker,
	})
	if err != nil {
		return nil, searchError(err)
	}

	s.logger.Debug("query served",
		zap.String("project_root", root),
		zap.Int("results", len(resp.Results)),
		zap.Duration("duration", resp.Duration))

	var buf bytes.Buffer
	if err := searcher.WriteJSON(&buf, resp.Results); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to encode results", map[string]interface{}{
			"error": err.Error(),
		})
	}
	return mcp.NewToolResultText(strings.TrimSpace(buf.String())), nil
}

// handleListCollections handles the list_collections tool invocation
func (s *Server) handleListCollections(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	infos, err := s.searcher.Collections(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list collections", map[string]interface{}{
			"error": err.Error(),
		})
	}

	collections := make([]interface{}, 0, len(infos))
	for _, info := range infos {
		entry := map[string]interface{}{
			"name":               info.Name,
			"project_root":       info.ProjectRoot,
			"embedding_provider": info.EmbeddingProvider,
			"embedding_model":    info.EmbeddingModel,
			"dimension":          info.Dimension,
		}
		if !info.CreatedAt.IsZero() {
			entry["created_at"] = info.CreatedAt.Format(time.RFC3339)
		}
		collections = append(collections, entry)
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"collections": collections,
		"count":       len(collections),
	})), nil
}

// searchError maps a search failure to an MCP error.
func searchError(err error) error {
	data := map[string]interface{}{"error": err.Error()}
	switch searcher.KindOf(err) {
	case searcher.KindInvalidInclude:
		return newMCPError(ErrorCodeInvalidParams, "invalid include", data)
	case searcher.KindCollection:
		return newMCPError(ErrorCodeNotIndexed, "project is not indexed", data)
	case searcher.KindEmbeddingMismatch, searcher.KindDimensionMismatch:
		return newMCPError(ErrorCodeIndexMismatch, "index was built with different embedding settings, re-index the project", data)
	default:
		return newMCPError(ErrorCodeInternalError, "query failed", data)
	}
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that path is an absolute, readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringSlice extracts an optional array of strings. A missing key
// yields nil.
func getStringSlice(args map[string]interface{}, key string) ([]string, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return v, nil
	case []interface{}:
		out := make([]string, 0, len(v))
		for i, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("element %d is not a string", i)
			}
			out = append(out, str)
		}
		return out, nil
	default:
		return nil, ErrNotStringArray
	}
}

func nonBlank(items []string) []string {
	out := items[:0:0]
	for _, item := range items {
		if strings.TrimSpace(item) != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
	ErrNotStringArray  = errors.New("expected an array of strings")
)
