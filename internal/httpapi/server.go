// Package httpapi serves the latest analysis results over HTTP as JSON.
// It reads published snapshots only; the mutable aggregator is never
// exposed.
package httpapi

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gourav-shinde/jlog/internal/logstore"
	"github.com/gourav-shinde/jlog/internal/model"
)

// EntryStore is the narrow store contract the API needs for scroll-back.
type EntryStore interface {
	RecentEntries(limit int, maxPriority int, service, messagePattern string) ([]logstore.StoredEntry, error)
	TotalEntryCount() (int64, error)
}

// Server provides the HTTP read surface for one analysis run.
type Server struct {
	addr      string
	snapshots model.SnapshotProvider
	store     EntryStore // optional
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates an HTTP API server. store may be nil when no history
// store is configured.
func NewServer(addr string, snapshots model.SnapshotProvider, store EntryStore) *Server {
	if addr == "" {
		addr = "0.0.0.0:3000"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		snapshots: snapshots,
		store:     store,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/summary", s.handleSummary)
	r.GET("/api/patterns", s.handlePatterns)
	r.GET("/api/entries", s.handleEntries)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.routes(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	}
	if snap, ok := s.snapshots.LatestSnapshot(); ok {
		body["lines_read"] = snap.Summary.LinesRead
		body["entries_matched"] = snap.Summary.EntriesMatched
	}
	if s.store != nil {
		count, err := s.store.TotalEntryCount()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read store metrics"})
			return
		}
		body["stored_entries"] = count
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleSummary(c *gin.Context) {
	snap, ok := s.snapshots.LatestSnapshot()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no snapshot published yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"summary": snap.Summary,
		"format":  snap.Summary.Format.String(),
		"final":   snap.Final,
		"at":      snap.At,
	})
}

func (s *Server) handlePatterns(c *gin.Context) {
	snap, ok := s.snapshots.LatestSnapshot()
	if !ok {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no snapshot published yet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"patterns": snap.Patterns,
		"final":    snap.Final,
		"at":       snap.At,
	})
}

func (s *Server) handleEntries(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no entry store configured"})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 || limit > 10_000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be 1-10000"})
		return
	}
	maxPriority, err := strconv.Atoi(c.DefaultQuery("max_priority", strconv.Itoa(model.PriorityDebug)))
	if err != nil || maxPriority < model.PriorityEmerg || maxPriority > model.PriorityDebug {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_priority must be 0-7"})
		return
	}

	entries, err := s.store.RecentEntries(limit, maxPriority, c.Query("service"), c.Query("pattern"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
	})
}
