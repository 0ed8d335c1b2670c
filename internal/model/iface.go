package model

// EntrySink receives each kept entry as it is processed. Implementations
// decide retention and display; the pipeline never retains entries itself.
type EntrySink interface {
	Add(entry *LogEntry)
}

// EntryWriter provides append-oriented batch writes for kept entries.
type EntryWriter interface {
	InsertEntryBatch(entries []*LogEntry) error
}

// SnapshotProvider exposes the most recently published analysis result.
// Read surfaces (HTTP, socket RPC) consume snapshots only, never the
// mutable aggregator.
type SnapshotProvider interface {
	LatestSnapshot() (ResultSnapshot, bool)
}
