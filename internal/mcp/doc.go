// Package mcp implements the Model Context Protocol (MCP) server for vectorquery.
//
// The MCP server exposes two tools to AI coding assistants:
//   - query: Retrieve files or chunks related to a set of query messages
//   - list_collections: List the indexed projects
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is started by the serve command and reads requests from stdin.
// Logs go to stderr so they never interleave with protocol messages.
//
//	vectorquery serve
//
// # Tool: query
//
//	Request:
//	{
//	  "name": "query",
//	  "arguments": {
//	    "project_root": "/path/to/project",
//	    "query_messages": ["database", "connection pool"],
//	    "n_query": 5,
//	    "include": ["path", "chunk"],
//	    "exclude": ["vendor/**"]
//	  }
//	}
//
// The result is the same JSON array that `vectorquery query --pipe` prints:
//
//	[{"path": "db/pool.go", "chunk": "...", "chunk_id": "...", "start_line": 10, "end_line": 42}]
//
// Arguments left out fall back to the server's configured defaults.
//
// # Tool: list_collections
//
// Returns every indexed project with the embedding settings it was built with:
//
//	{"collections": [{"name": "vq-…", "project_root": "/path/to/project", ...}], "count": 1}
//
// # Error Handling
//
// Failures are returned as *MCPError with a JSON-RPC code:
//
//   - -32602: Invalid parameters (bad include, n_query out of range)
//   - -32603: Internal error
//   - -32001: project_root is not a readable directory
//   - -32003: Project not indexed
//   - -32004: Empty query
//   - -32005: Index built with different embedding settings
package mcp
