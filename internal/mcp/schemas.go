package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// queryTool returns the tool definition for query
func queryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "query",
		Description: "Retrieve files or line-range chunks from an indexed project that are semantically related to the query messages",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"project_root": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the indexed project",
				},
				"query_messages": map[string]interface{}{
					"type":        "array",
					"description": "Keywords or sentences describing what to look for. Several short messages work better than one long one.",
					"items": map[string]interface{}{
						"type": "string",
					},
					"minItems": 1,
				},
				"n_query": map[string]interface{}{
					"type":        "integer",
					"description": "Number of results to return (1-100)",
					"minimum":     1,
					"maximum":     100,
				},
				"include": map[string]interface{}{
					"type":        "array",
					"description": "Fields to return for each result. chunk cannot be combined with document.",
					"items": map[string]interface{}{
						"type": "string",
						"enum": []string{"path", "document", "chunk"},
					},
				},
				"exclude": map[string]interface{}{
					"type":        "array",
					"description": "Glob patterns of files to leave out, relative to project_root",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
			},
			Required: []string{"project_root", "query_messages"},
		},
	}
}

// listCollectionsTool returns the tool definition for list_collections
func listCollectionsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_collections",
		Description: "List the project roots that have been indexed and can be queried",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
