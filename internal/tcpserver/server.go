// Package tcpserver accepts newline-delimited raw log lines over TCP,
// for hosts forwarding syslog or journald output to a live analysis run.
package tcpserver

import (
	"bufio"
	"context"
	"errors"
	"log"
	"net"
	"sync"

	"github.com/gourav-shinde/jlog/internal/model"
)

const (
	// DefaultLineBuffer is the default depth of the incoming line channel.
	DefaultLineBuffer = 100_000

	// DefaultMaxLineSize caps a single forwarded line at 1MB.
	DefaultMaxLineSize = 1024 * 1024
)

// Config holds tunable parameters for the TCP line feed.
type Config struct {
	LineBuffer  int
	MaxLineSize int
}

// Server listens for forwarded log lines and fans them into one channel.
type Server struct {
	addr        string
	listener    net.Listener
	lines       chan model.IngestEnvelope
	maxLineSize int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a server. Default addr is "127.0.0.1:4514".
func New(addr string, conf ...Config) *Server {
	if addr == "" {
		addr = "127.0.0.1:4514"
	}
	lineBuffer := DefaultLineBuffer
	maxLineSize := DefaultMaxLineSize
	if len(conf) > 0 {
		if conf[0].LineBuffer > 0 {
			lineBuffer = conf[0].LineBuffer
		}
		if conf[0].MaxLineSize > 0 {
			maxLineSize = conf[0].MaxLineSize
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:        addr,
		lines:       make(chan model.IngestEnvelope, lineBuffer),
		maxLineSize: maxLineSize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start binds the listen address and begins accepting connections.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.wg.Add(1)
	go s.acceptLoop(listener)
	return nil
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				continue
			}
		}
		s.wg.Add(1)
		go s.readConn(conn)
	}
}

func (s *Server) readConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, s.maxLineSize), s.maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		select {
		case s.lines <- model.IngestEnvelope{Source: "tcp", Line: line}:
		case <-s.ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			log.Printf("tcpserver: dropped connection %s, line exceeded %d bytes", conn.RemoteAddr(), s.maxLineSize)
			return
		}
		log.Printf("tcpserver: read error from %s: %v", conn.RemoteAddr(), err)
	}
}

// Stop closes the listener, waits for in-flight connections, and closes
// the line channel.
func (s *Server) Stop() error {
	s.cancel()
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	close(s.lines)
	return nil
}

// Lines returns the channel of received log lines.
func (s *Server) Lines() <-chan model.IngestEnvelope {
	return s.lines
}

// Addr returns the active listen address, or the configured one before
// Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
