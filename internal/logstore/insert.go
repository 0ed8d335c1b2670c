package logstore

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gourav-shinde/jlog/internal/model"
	"github.com/gourav-shinde/jlog/internal/signature"
)

// DefaultFlushQueueSize is the number of batches that can be queued for
// async flushing.
const DefaultFlushQueueSize = 64

// InsertBuffer batches entries and flushes them to DuckDB asynchronously.
// Add never blocks on database IO, so it can serve as the pipeline's
// entry sink without stalling ingestion.
type InsertBuffer struct {
	writer        model.EntryWriter
	mu            sync.Mutex
	pending       []*model.LogEntry
	flushChan     chan []*model.LogEntry
	maxBatch      int
	flushInterval time.Duration

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	tickWg   sync.WaitGroup
}

// InsertBufferConfig holds tunable parameters for the insert buffer.
type InsertBufferConfig struct {
	BatchSize      int
	FlushInterval  time.Duration
	FlushQueueSize int
}

// NewInsertBuffer creates a buffer flushing to writer. The flush
// goroutine processes batches off the hot path.
func NewInsertBuffer(writer model.EntryWriter, conf ...InsertBufferConfig) *InsertBuffer {
	batchSize := 2000
	flushInterval := 100 * time.Millisecond
	flushQueueSize := DefaultFlushQueueSize
	if len(conf) > 0 {
		if conf[0].BatchSize > 0 {
			batchSize = conf[0].BatchSize
		}
		if conf[0].FlushInterval > 0 {
			flushInterval = conf[0].FlushInterval
		}
		if conf[0].FlushQueueSize > 0 {
			flushQueueSize = conf[0].FlushQueueSize
		}
	}

	b := &InsertBuffer{
		writer:        writer,
		pending:       make([]*model.LogEntry, 0, batchSize),
		flushChan:     make(chan []*model.LogEntry, flushQueueSize),
		maxBatch:      batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
	}

	b.wg.Add(1)
	go b.flushWorker()

	b.wg.Add(1)
	b.tickWg.Add(1)
	go b.tickLoop()

	return b
}

func (b *InsertBuffer) tickLoop() {
	defer b.wg.Done()
	defer b.tickWg.Done()
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.drainPending()
		case <-b.done:
			b.drainPending() // final drain
			return
		}
	}
}

// drainPending moves pending entries to the flush channel without
// blocking on the database. A full channel falls back to an inline
// flush so entries are never dropped.
func (b *InsertBuffer) drainPending() {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.pending
	b.pending = make([]*model.LogEntry, 0, b.maxBatch)
	b.mu.Unlock()

	select {
	case b.flushChan <- batch:
	default:
		log.Printf("logstore: flush queue full, flushing inline")
		if err := b.writer.InsertEntryBatch(batch); err != nil {
			log.Printf("logstore: inline flush error: %v", err)
		}
	}
}

func (b *InsertBuffer) flushWorker() {
	defer b.wg.Done()
	for batch := range b.flushChan {
		if err := b.writer.InsertEntryBatch(batch); err != nil {
			log.Printf("logstore: flush error: %v", err)
		}
	}
}

// Add queues an entry for batch insertion. Satisfies model.EntrySink.
func (b *InsertBuffer) Add(entry *model.LogEntry) {
	b.mu.Lock()
	b.pending = append(b.pending, entry)
	var batch []*model.LogEntry
	if len(b.pending) >= b.maxBatch {
		batch = b.pending
		b.pending = make([]*model.LogEntry, 0, b.maxBatch)
	}
	b.mu.Unlock()

	if batch != nil {
		select {
		case b.flushChan <- batch:
		default:
			log.Printf("logstore: flush queue full, flushing inline")
			if err := b.writer.InsertEntryBatch(batch); err != nil {
				log.Printf("logstore: inline flush error: %v", err)
			}
		}
	}
}

// Stop flushes remaining entries and waits for all writes to complete.
// Safe to call more than once.
func (b *InsertBuffer) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		// tickLoop must finish its final drain before the flush channel
		// closes, so no pending batch is lost.
		b.tickWg.Wait()
		close(b.flushChan)
		b.wg.Wait()
	})
}

// InsertEntryBatch appends entries in a single transaction. A failed
// batch is retried entry-by-entry so one bad row does not discard the
// rest.
func (s *Store) InsertEntryBatch(entries []*model.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.QueryTimeout)
	defer cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.insertBatchTx(ctx, entries); err == nil {
		return nil
	}

	var failed int
	for _, e := range entries {
		if err := s.insertBatchTx(ctx, []*model.LogEntry{e}); err != nil {
			failed++
			log.Printf("logstore: dropping entry (service=%s msg=%.80s): %v", e.Service, e.Message, err)
		}
	}
	if failed > 0 {
		log.Printf("logstore: batch partially failed, %d/%d entries dropped", failed, len(entries))
	}
	return nil
}

func (s *Store) insertBatchTx(ctx context.Context, entries []*model.LogEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO entries (ts, priority, severity, host, service, pid, message, signature, format) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(
			ctx,
			e.Timestamp, e.Priority, model.PriorityName(e.Priority),
			e.Host, e.Service, e.PID,
			e.Message, signature.Normalize(e.Message), e.Format.String(),
		); err != nil {
			return fmt.Errorf("entry insert: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
