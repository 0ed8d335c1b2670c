// Package socketrpc serves analysis results over a Unix domain socket
// using JSON-RPC 2.0, for local consumers like a desktop UI.
package socketrpc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gourav-shinde/jlog/internal/logstore"
	"github.com/gourav-shinde/jlog/internal/model"
)

const (
	// scannerInitBufSize is the initial per-connection scanner buffer (1 MB).
	scannerInitBufSize = 1024 * 1024
	// scannerMaxTokenSize is the maximum request size accepted (10 MB).
	scannerMaxTokenSize = 10 * 1024 * 1024
)

// EntryStore is the history-store contract the RPC surface needs.
type EntryStore interface {
	RecentEntries(limit int, maxPriority int, service, messagePattern string) ([]logstore.StoredEntry, error)
}

// ProgressProvider reports ingestion progress for large known-size inputs.
type ProgressProvider interface {
	LatestProgress() (model.Progress, bool)
}

// SummaryResult is the Summary method payload.
type SummaryResult struct {
	Summary model.AnalysisSummary `json:"summary"`
	Format  string                `json:"format"`
	Final   bool                  `json:"final"`
	At      time.Time             `json:"at"`
}

// PatternsResult is the Patterns method payload.
type PatternsResult struct {
	Patterns []model.DetectedPattern `json:"patterns"`
	Final    bool                    `json:"final"`
	At       time.Time               `json:"at"`
}

// Server exposes snapshots and stored entries over a Unix socket.
// store and progress may be nil; their methods then return application
// errors.
type Server struct {
	socketPath string
	snapshots  model.SnapshotProvider
	store      EntryStore
	progress   ProgressProvider
	listener   net.Listener
	wg         sync.WaitGroup
	quit       chan struct{}
}

// NewServer creates a socket RPC server.
func NewServer(socketPath string, snapshots model.SnapshotProvider, store EntryStore, progress ProgressProvider) *Server {
	return &Server{
		socketPath: socketPath,
		snapshots:  snapshots,
		store:      store,
		progress:   progress,
		quit:       make(chan struct{}),
	}
}

// Start begins listening on the Unix socket and accepting connections.
func (s *Server) Start() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("socketrpc: mkdir: %w", err)
	}

	// Remove a stale socket file; refuse to start when another server is
	// actually listening.
	if _, err := os.Stat(s.socketPath); err == nil {
		conn, dialErr := net.DialTimeout("unix", s.socketPath, 500*time.Millisecond)
		if dialErr != nil {
			os.Remove(s.socketPath)
		} else {
			conn.Close()
			return fmt.Errorf("socketrpc: another server is already listening on %s", s.socketPath)
		}
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("socketrpc: listen: %w", err)
	}
	s.listener = ln

	s.wg.Add(1)
	go s.acceptLoop()

	log.Printf("socketrpc: listening on %s", s.socketPath)
	return nil
}

// Stop closes the listener, waits for connections to drain, and removes
// the socket file.
func (s *Server) Stop() {
	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	os.Remove(s.socketPath)
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.quit:
				return
			default:
				log.Printf("socketrpc: accept error: %v", err)
				// Transient errors (fd limits) must not kill the loop.
				continue
			}
		}
		s.wg.Add(1)
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, scannerInitBufSize), scannerMaxTokenSize)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		select {
		case <-s.quit:
			return
		default:
		}

		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			encoder.Encode(Response{JSONRPC: "2.0", ID: 0, Error: &RPCError{Code: -32700, Message: "parse error"}})
			continue
		}

		if err := encoder.Encode(s.dispatch(req)); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	resp := Response{JSONRPC: "2.0", ID: req.ID}

	marshalResult := func(v interface{}, err error) Response {
		if err != nil {
			resp.Error = &RPCError{Code: -32000, Message: err.Error()}
			return resp
		}
		data, merr := json.Marshal(v)
		if merr != nil {
			resp.Error = &RPCError{Code: -32603, Message: merr.Error()}
			return resp
		}
		resp.Result = data
		return resp
	}

	switch req.Method {
	case "Summary":
		snap, ok := s.snapshots.LatestSnapshot()
		if !ok {
			return marshalResult(nil, errors.New("no snapshot published yet"))
		}
		return marshalResult(SummaryResult{
			Summary: snap.Summary,
			Format:  snap.Summary.Format.String(),
			Final:   snap.Final,
			At:      snap.At,
		}, nil)

	case "Patterns":
		snap, ok := s.snapshots.LatestSnapshot()
		if !ok {
			return marshalResult(nil, errors.New("no snapshot published yet"))
		}
		return marshalResult(PatternsResult{
			Patterns: snap.Patterns,
			Final:    snap.Final,
			At:       snap.At,
		}, nil)

	case "RecentEntries":
		if s.store == nil {
			return marshalResult(nil, errors.New("no entry store configured"))
		}
		p := struct {
			Limit          int
			MaxPriority    int
			Service        string
			MessagePattern string
		}{Limit: 100, MaxPriority: model.PriorityDebug}
		if err := json.Unmarshal(req.Params, &p); err != nil && len(req.Params) > 0 {
			resp.Error = &RPCError{Code: -32602, Message: fmt.Sprintf("invalid params: %v", err)}
			return resp
		}
		return marshalResult(s.store.RecentEntries(p.Limit, p.MaxPriority, p.Service, p.MessagePattern))

	case "Progress":
		if s.progress == nil {
			return marshalResult(nil, errors.New("no progress reporting for this input"))
		}
		prog, ok := s.progress.LatestProgress()
		if !ok {
			return marshalResult(nil, errors.New("no progress report yet"))
		}
		return marshalResult(prog, nil)

	default:
		resp.Error = &RPCError{Code: -32601, Message: fmt.Sprintf("method not found: %s", req.Method)}
		return resp
	}
}
