package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"StarWatch/internal/domain"
	"StarWatch/internal/ports"
)

var ledgerColumns = []string{"url", "local_path", "clonetime", "scantime", "verifytime", "outcome"}

// CSVLedger keeps the per-repository ledger in a single CSV file. All
// mutation is serialized through one mutex-guarded owner, and every rewrite
// goes through a temp file plus atomic rename, so concurrent workers cannot
// lose updates and a crash mid-write cannot corrupt durable records.
type CSVLedger struct {
	path   string
	logger *slog.Logger

	mu      sync.RWMutex
	records map[string]*domain.LedgerRecord
	order   []string
}

var _ ports.Ledger = (*CSVLedger)(nil)

// OpenCSVLedger loads the ledger file, creating it with a header row when it
// does not exist yet.
func OpenCSVLedger(path string, logger *slog.Logger) (*CSVLedger, error) {
	l := &CSVLedger{
		path:    path,
		logger:  logger,
		records: map[string]*domain.LedgerRecord{},
	}

	raw, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("open ledger %s: %w", path, err)
		}
		if err := l.rewrite(); err != nil {
			return nil, err
		}
		return l, nil
	}
	defer raw.Close()

	rows, err := csv.NewReader(raw).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", path, err)
	}

	for i, row := range rows {
		if i == 0 || len(row) < len(ledgerColumns) || row[0] == "" {
			continue
		}
		rec := &domain.LedgerRecord{
			URL:        row[0],
			LocalPath:  row[1],
			CloneTime:  row[2],
			ScanTime:   row[3],
			VerifyTime: row[4],
			Outcome:    row[5],
		}
		if _, ok := l.records[rec.URL]; !ok {
			l.order = append(l.order, rec.URL)
		}
		l.records[rec.URL] = rec
	}

	return l, nil
}

// Contains reports whether a record exists for url.
func (l *CSVLedger) Contains(_ context.Context, url string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.records[url]
	return ok, nil
}

// Upsert merges the update into the record for url, creating it if needed,
// and rewrites the file. Persistence failures are logged and swallowed: the
// in-memory record stays authoritative for this process's lifetime.
func (l *CSVLedger) Upsert(_ context.Context, url string, update domain.LedgerUpdate) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[url]
	if !ok {
		rec = &domain.LedgerRecord{URL: url}
		l.records[url] = rec
		l.order = append(l.order, url)
	}
	update.Apply(rec)

	if err := l.rewrite(); err != nil {
		if l.logger != nil {
			l.logger.Warn("ledger write failed, keeping in-memory record", "url", url, "error", err)
		}
	}
	return nil
}

// Snapshot returns a copy of every record, in file order.
func (l *CSVLedger) Snapshot(_ context.Context) ([]domain.LedgerRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.LedgerRecord, 0, len(l.order))
	for _, url := range l.order {
		out = append(out, *l.records[url])
	}
	return out, nil
}

// rewrite dumps the full table to a temp file and atomically replaces the
// ledger. Callers must hold the write lock (or own the ledger exclusively,
// as OpenCSVLedger does).
func (l *CSVLedger) rewrite() error {
	tmp := l.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmp, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(ledgerColumns); err != nil {
		f.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, url := range l.order {
		rec := l.records[url]
		row := []string{rec.URL, rec.LocalPath, rec.CloneTime, rec.ScanTime, rec.VerifyTime, rec.Outcome}
		if err := w.Write(row); err != nil {
			f.Close()
			return fmt.Errorf("write row %s: %w", url, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("flush ledger: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp, err)
	}

	if err := os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
