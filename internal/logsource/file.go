package logsource

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gourav-shinde/jlog/internal/model"
)

const (
	// DefaultFileBuffer is the default channel buffer size for file lines.
	DefaultFileBuffer = 50_000

	// DefaultFileMaxLineSize caps a single file line at 1MB.
	DefaultFileMaxLineSize = 1024 * 1024

	// DefaultPollInterval is how often a tailed file is re-checked for
	// appended data.
	DefaultPollInterval = 100 * time.Millisecond

	// progressLineInterval is how many lines pass between progress
	// reports on large inputs.
	progressLineInterval = 50_000
)

// FileConfig holds tunable parameters for the file source.
type FileConfig struct {
	BufferSize  int
	MaxLineSize int

	// Tail keeps reading after end of file, polling for appended data
	// and tolerating rotation.
	Tail         bool
	PollInterval time.Duration

	// ProgressThreshold is the minimum file size for progress reporting.
	ProgressThreshold int64
}

// FileSource reads log lines from a file, either once to end of file or
// indefinitely in tail mode. Rotation (the file shrinking or being
// replaced) resets only the read offset; consumers keep their state.
type FileSource struct {
	path string
	conf FileConfig

	ch       chan model.IngestEnvelope
	progress chan model.Progress
	cancel   context.CancelFunc

	mu  sync.Mutex
	err error
}

// NewFileSource opens path and starts reading in a background goroutine.
func NewFileSource(ctx context.Context, path string, conf ...FileConfig) (*FileSource, error) {
	c := FileConfig{}
	if len(conf) > 0 {
		c = conf[0]
	}
	if c.BufferSize <= 0 {
		c.BufferSize = DefaultFileBuffer
	}
	if c.MaxLineSize <= 0 {
		c.MaxLineSize = DefaultFileMaxLineSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ProgressThreshold <= 0 {
		c.ProgressThreshold = model.DefaultProgressThreshold
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("logsource: open %s: %w", path, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &FileSource{
		path:     path,
		conf:     c,
		ch:       make(chan model.IngestEnvelope, c.BufferSize),
		progress: make(chan model.Progress, 1),
		cancel:   cancel,
	}
	go s.read(ctx, f)
	return s, nil
}

func (s *FileSource) Lines() <-chan model.IngestEnvelope { return s.ch }
func (s *FileSource) Stop()                              { s.cancel() }
func (s *FileSource) Name() string                       { return "file" }

// Progress is a side channel reporting lines and bytes consumed. Reports
// appear only for inputs whose size at open exceeded the configured
// threshold; only the latest report is retained.
func (s *FileSource) Progress() <-chan model.Progress { return s.progress }

// Err returns the terminal read error, if any, after Lines has closed.
func (s *FileSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *FileSource) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *FileSource) read(ctx context.Context, f *os.File) {
	defer close(s.ch)
	defer close(s.progress)
	defer func() { f.Close() }()

	var totalSize int64
	if fi, err := f.Stat(); err == nil {
		totalSize = fi.Size()
	}
	reportProgress := totalSize >= s.conf.ProgressThreshold

	reader := bufio.NewReaderSize(f, 64*1024)
	var offset, lines int64
	var pending strings.Builder

	emit := func(line string) bool {
		lines++
		if line != "" {
			select {
			case s.ch <- model.IngestEnvelope{Source: s.Name(), Line: line}:
			case <-ctx.Done():
				return false
			}
		}
		if reportProgress && lines%progressLineInterval == 0 {
			s.reportProgress(lines, offset, totalSize)
		}
		return true
	}

	for {
		chunk, err := reader.ReadString('\n')
		offset += int64(len(chunk))

		if strings.HasSuffix(chunk, "\n") {
			line := strings.TrimRight(chunk, "\r\n")
			if pending.Len() > 0 {
				line = pending.String() + line
				pending.Reset()
			}
			if len(line) > s.conf.MaxLineSize {
				log.Printf("logsource: dropped line exceeding %d bytes in %s", s.conf.MaxLineSize, s.path)
			} else if !emit(line) {
				return
			}
			continue
		}

		// Partial line at end of file: hold it until the writer finishes
		// it or the source ends.
		if chunk != "" {
			if pending.Len()+len(chunk) > s.conf.MaxLineSize {
				log.Printf("logsource: dropped oversized partial line in %s", s.path)
				pending.Reset()
			} else {
				pending.WriteString(chunk)
			}
		}

		switch {
		case err == io.EOF:
			if !s.conf.Tail {
				if pending.Len() > 0 {
					// Final line without a trailing newline still counts.
					if !emit(pending.String()) {
						return
					}
					pending.Reset()
				}
				if reportProgress {
					s.reportProgress(lines, offset, totalSize)
				}
				return
			}
			f, reader, offset = s.waitForData(ctx, f, reader, offset, &pending)
			if f == nil {
				return
			}
		case err != nil:
			s.setErr(fmt.Errorf("logsource: read %s: %w", s.path, err))
			return
		}
	}
}

// waitForData polls a tailed file until it grows, is rotated, or the
// context ends. On rotation (size below the consumed offset) reading
// restarts from the top of the new file; aggregated consumer state is
// unaffected because only the offset resets. Returns a nil file when the
// source should stop.
func (s *FileSource) waitForData(ctx context.Context, f *os.File, reader *bufio.Reader, offset int64, pending *strings.Builder) (*os.File, *bufio.Reader, int64) {
	ticker := time.NewTicker(s.conf.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, nil, 0
		case <-ticker.C:
		}

		fi, err := os.Stat(s.path)
		if err != nil {
			if os.IsNotExist(err) {
				// Mid-rotation gap: the file may reappear shortly.
				continue
			}
			s.setErr(fmt.Errorf("logsource: stat %s: %w", s.path, err))
			return nil, nil, 0
		}

		if fi.Size() < offset {
			log.Printf("logsource: %s truncated or rotated, rereading from start", s.path)
			nf, err := os.Open(s.path)
			if err != nil {
				s.setErr(fmt.Errorf("logsource: reopen %s: %w", s.path, err))
				return nil, nil, 0
			}
			f.Close()
			pending.Reset()
			return nf, bufio.NewReaderSize(nf, 64*1024), 0
		}
		if fi.Size() > offset {
			return f, reader, offset
		}
	}
}

// reportProgress replaces any unread report so the channel always holds
// the latest numbers.
func (s *FileSource) reportProgress(lines, bytes, total int64) {
	p := model.Progress{Lines: lines, Bytes: bytes}
	if total > 0 {
		p.Percent = float64(bytes) / float64(total) * 100
	}
	select {
	case s.progress <- p:
	default:
		select {
		case <-s.progress:
		default:
		}
		select {
		case s.progress <- p:
		default:
		}
	}
}
