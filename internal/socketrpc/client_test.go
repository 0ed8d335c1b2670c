package socketrpc

import (
	"path/filepath"
	"testing"

	"github.com/gourav-shinde/jlog/internal/logstore"
	"github.com/gourav-shinde/jlog/internal/model"
)

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "jlog.sock")
	store := &fakeEntryStore{entries: []logstore.StoredEntry{
		{ID: 1, Service: "sshd", Message: "Failed password from 10.0.0.1"},
	}}
	s := NewServer(socketPath, &fakeSnapshots{snap: publishedSnapshot(), ok: true}, store, &fakeProgress{
		p: model.Progress{Lines: 100, Percent: 50}, ok: true,
	})
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Stop)
	return s, socketPath
}

func TestClient_RoundTrip(t *testing.T) {
	t.Parallel()
	_, socketPath := startTestServer(t)

	c, err := Dial(socketPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	summary, err := c.Summary()
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Summary.LinesRead != 42 {
		t.Errorf("linesRead = %d, want 42", summary.Summary.LinesRead)
	}

	patterns, err := c.Patterns()
	if err != nil {
		t.Fatalf("Patterns: %v", err)
	}
	if len(patterns.Patterns) != 1 {
		t.Errorf("patterns = %+v", patterns.Patterns)
	}

	entries, err := c.RecentEntries(10, model.PriorityDebug, "", "")
	if err != nil {
		t.Fatalf("RecentEntries: %v", err)
	}
	if len(entries) != 1 || entries[0].Service != "sshd" {
		t.Errorf("entries = %+v", entries)
	}

	progress, err := c.Progress()
	if err != nil {
		t.Fatalf("Progress: %v", err)
	}
	if progress.Lines != 100 {
		t.Errorf("progress = %+v", progress)
	}
}

func TestClient_MethodNotFoundSurfacesRPCError(t *testing.T) {
	t.Parallel()
	_, socketPath := startTestServer(t)

	c, err := Dial(socketPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	var out struct{}
	err = c.call("Bogus", map[string]interface{}{}, &out)
	rpcErr, ok := err.(*RPCError)
	if !ok {
		t.Fatalf("err = %v (%T), want *RPCError", err, err)
	}
	if rpcErr.Code != -32601 {
		t.Errorf("code = %d, want -32601", rpcErr.Code)
	}
}

func TestServer_RefusesSecondListener(t *testing.T) {
	t.Parallel()
	_, socketPath := startTestServer(t)

	dup := NewServer(socketPath, &fakeSnapshots{}, nil, nil)
	if err := dup.Start(); err == nil {
		dup.Stop()
		t.Fatal("second server on same socket started")
	}
}
