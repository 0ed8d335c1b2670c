package logstore

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gourav-shinde/jlog/internal/model"
)

// StoredEntry is one persisted entry row.
type StoredEntry struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Priority  int       `json:"priority"`
	Severity  string    `json:"severity"`
	Host      string    `json:"host"`
	Service   string    `json:"service"`
	PID       int       `json:"pid"`
	Message   string    `json:"message"`
	Signature string    `json:"signature"`
	Format    string    `json:"format"`
}

// MinuteCounts is a per-minute rollup of stored entries.
type MinuteCounts struct {
	Minute       time.Time `json:"minute"`
	Total        int64     `json:"total"`
	ErrorOrWorse int64     `json:"error_or_worse"`
}

func (s *Store) queryCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.QueryTimeout)
}

// RecentEntries returns the newest stored entries, optionally filtered
// by a priority ceiling, a service substring, and a message regex.
// Results come back in chronological order.
func (s *Store) RecentEntries(limit int, maxPriority int, service, messagePattern string) ([]StoredEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	conditions := []string{"priority <= ?"}
	args := []interface{}{maxPriority}

	if service != "" {
		conditions = append(conditions, "service LIKE ?")
		args = append(args, "%"+service+"%")
	}
	if messagePattern != "" {
		conditions = append(conditions, "regexp_matches(message, ?)")
		args = append(args, messagePattern)
	}

	inner := "SELECT id, ts, priority, severity, host, service, pid, message, signature, format FROM entries WHERE " +
		strings.Join(conditions, " AND ") +
		" ORDER BY ts DESC LIMIT ?"
	args = append(args, limit)

	// Wrap so final results come back oldest-first.
	query := "SELECT * FROM (" + inner + ") ORDER BY ts ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []StoredEntry
	for rows.Next() {
		var e StoredEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Priority, &e.Severity, &e.Host, &e.Service, &e.PID, &e.Message, &e.Signature, &e.Format); err != nil {
			log.Printf("logstore: scan error (RecentEntries): %v", err)
			continue
		}
		results = append(results, e)
	}
	return results, rows.Err()
}

// TotalEntryCount returns the number of stored entries.
func (s *Store) TotalEntryCount() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&count)
	return count, err
}

// SignatureCounts returns stored signatures by descending count, with
// one representative message each.
func (s *Store) SignatureCounts(limit int) ([]model.SignatureCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT signature, COUNT(*) AS count, MIN(message) AS example
		FROM entries
		GROUP BY signature
		ORDER BY count DESC, signature ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.SignatureCount
	for rows.Next() {
		var sc model.SignatureCount
		if err := rows.Scan(&sc.Signature, &sc.Count, &sc.Example); err != nil {
			log.Printf("logstore: scan error (SignatureCounts): %v", err)
			continue
		}
		results = append(results, sc)
	}
	return results, rows.Err()
}

// ServiceCounts returns stored services by descending count.
func (s *Store) ServiceCounts(limit int) ([]model.ServiceCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(NULLIF(service, ''), 'unknown') AS service, COUNT(*) AS count
		FROM entries
		GROUP BY service
		ORDER BY count DESC, service ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []model.ServiceCount
	for rows.Next() {
		var sc model.ServiceCount
		if err := rows.Scan(&sc.Service, &sc.Count); err != nil {
			log.Printf("logstore: scan error (ServiceCounts): %v", err)
			continue
		}
		results = append(results, sc)
	}
	return results, rows.Err()
}

// CountsByMinute returns per-minute totals for a trailing time window.
func (s *Store) CountsByMinute(window time.Duration) ([]MinuteCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.queryCtx()
	defer cancel()
	cutoff := time.Now().Add(-window)

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT date_trunc('minute', ts) AS minute,
			COUNT(*) AS total,
			SUM(CASE WHEN priority <= %d THEN 1 ELSE 0 END) AS error_or_worse
		FROM entries
		WHERE ts >= ?
		GROUP BY minute ORDER BY minute`, model.PriorityErr), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MinuteCounts
	for rows.Next() {
		var mc MinuteCounts
		if err := rows.Scan(&mc.Minute, &mc.Total, &mc.ErrorOrWorse); err != nil {
			log.Printf("logstore: scan error (CountsByMinute): %v", err)
			continue
		}
		results = append(results, mc)
	}
	return results, rows.Err()
}
