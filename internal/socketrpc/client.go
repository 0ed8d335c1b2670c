package socketrpc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gourav-shinde/jlog/internal/logstore"
	"github.com/gourav-shinde/jlog/internal/model"
)

// Client talks to a socket RPC server over a Unix domain socket.
type Client struct {
	conn    net.Conn
	mu      sync.Mutex
	nextID  int
	scanner *bufio.Scanner
	encoder *json.Encoder
}

// Dial connects to the socket RPC server at the given path.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("socketrpc: dial: %w", err)
	}
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	return &Client{
		conn:    conn,
		scanner: scanner,
		encoder: json.NewEncoder(conn),
	}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// call performs one JSON-RPC round trip and unmarshals the result into
// dest.
func (c *Client) call(method string, params interface{}, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	paramsData, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("socketrpc: marshal params: %w", err)
	}

	req := Request{
		JSONRPC: "2.0",
		ID:      c.nextID,
		Method:  method,
		Params:  paramsData,
	}

	c.conn.SetDeadline(time.Now().Add(30 * time.Second))
	defer c.conn.SetDeadline(time.Time{})

	if err := c.encoder.Encode(req); err != nil {
		return fmt.Errorf("socketrpc: send: %w", err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return fmt.Errorf("socketrpc: read: %w", err)
		}
		return fmt.Errorf("socketrpc: connection closed")
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return fmt.Errorf("socketrpc: unmarshal response: %w", err)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if dest != nil {
		if err := json.Unmarshal(resp.Result, dest); err != nil {
			return fmt.Errorf("socketrpc: unmarshal result: %w", err)
		}
	}
	return nil
}

// Summary fetches the latest analysis summary.
func (c *Client) Summary() (SummaryResult, error) {
	var result SummaryResult
	err := c.call("Summary", map[string]interface{}{}, &result)
	return result, err
}

// Patterns fetches the latest detected patterns.
func (c *Client) Patterns() (PatternsResult, error) {
	var result PatternsResult
	err := c.call("Patterns", map[string]interface{}{}, &result)
	return result, err
}

// RecentEntries fetches stored entries, newest window first, in
// chronological order.
func (c *Client) RecentEntries(limit, maxPriority int, service, messagePattern string) ([]logstore.StoredEntry, error) {
	var result []logstore.StoredEntry
	err := c.call("RecentEntries", map[string]interface{}{
		"Limit":          limit,
		"MaxPriority":    maxPriority,
		"Service":        service,
		"MessagePattern": messagePattern,
	}, &result)
	return result, err
}

// Progress fetches the latest ingestion progress report.
func (c *Client) Progress() (model.Progress, error) {
	var result model.Progress
	err := c.call("Progress", map[string]interface{}{}, &result)
	return result, err
}
