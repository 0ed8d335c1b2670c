package socketrpc

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// JSON-RPC 2.0 Method Reference
//
// The socket RPC server exposes the latest analysis snapshot and the
// entry history store over a Unix domain socket, one JSON object per
// line in each direction.
//
//   Method           Params                                                          Result
//   ─────────────    ─────────────────────────────────────────────────────────────   ─────────────────────────
//   Summary          (none)                                                          SummaryResult
//   Patterns         (none)                                                          PatternsResult
//   RecentEntries    {Limit: int, MaxPriority: int, Service: string,                 []logstore.StoredEntry
//                     MessagePattern: string}
//   Progress         (none)                                                          model.Progress
//
// Methods without params accept empty or null params gracefully.
//
// Error codes follow JSON-RPC 2.0:
//   -32700  Parse error (malformed JSON)
//   -32601  Method not found
//   -32602  Invalid params
//   -32603  Internal error (marshal failure)
//   -32000  Application error (no snapshot yet, query failure)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return e.Message }

// DefaultSocketPath returns the default Unix socket path. It prefers
// $XDG_RUNTIME_DIR/jlog/jlog.sock, falling back under the home
// directory.
func DefaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "jlog", "jlog.sock")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/jlog.sock"
	}
	return filepath.Join(home, ".local", "state", "jlog", "jlog.sock")
}
