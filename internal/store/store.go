// Package store provides crash-safe persistence of mirror receipts using
// JSON files.
//
// Each session day's receipts live in one file: receipts_<YYYY-MM-DD>.json.
// Writes use atomic file replacement (write to .tmp, then rename) to prevent
// corruption from partial writes or crashes mid-save. The engine appends a
// receipt for every fill it acted on, giving an auditable record of what was
// mirrored, skipped, or failed.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Receipt records the outcome of processing one target fill.
type Receipt struct {
	FillID       string    `json:"fillId"`
	TokenID      string    `json:"tokenId,omitempty"`
	Side         string    `json:"side,omitempty"`
	Price        float64   `json:"price,omitempty"`
	Size         float64   `json:"size,omitempty"`
	OrderID      string    `json:"orderId,omitempty"`
	Status       string    `json:"status"` // "placed", "skipped", "failed"
	Reason       string    `json:"reason,omitempty"`
	Commission   float64   `json:"commission,omitempty"`
	CommissionTx string    `json:"commissionTx,omitempty"`
	Time         time.Time `json:"time"`
}

// Store persists receipts to JSON files in a designated directory.
// All operations are mutex-protected to prevent concurrent file corruption.
type Store struct {
	dir string
	mu  sync.Mutex // serializes all file operations
}

// Open creates a store backed by the given directory.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Close is a no-op for file-based storage.
func (s *Store) Close() error {
	return nil
}

// Append adds a receipt to the current day's file. The whole file is
// rewritten atomically (write to .tmp, then rename) so a crash never leaves
// a half-written journal.
func (s *Store) Append(r Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.Time.IsZero() {
		r.Time = time.Now().UTC()
	}

	path := s.dayPath(r.Time)
	receipts, err := s.readFile(path)
	if err != nil {
		return err
	}
	receipts = append(receipts, r)

	data, err := json.Marshal(receipts)
	if err != nil {
		return fmt.Errorf("marshal receipts: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write receipts: %w", err)
	}
	return os.Rename(tmp, path)
}

// Day loads the receipts recorded on the given day (UTC).
// Returns an empty slice if nothing was recorded.
func (s *Store) Day(t time.Time) ([]Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readFile(s.dayPath(t))
}

// DayNotional sums the USD notional of successfully placed orders on the
// given day. Used to report spend against the configured daily limit.
func (s *Store) DayNotional(t time.Time) (float64, error) {
	receipts, err := s.Day(t)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, r := range receipts {
		if r.Status == "placed" {
			total += r.Price * r.Size
		}
	}
	return total, nil
}

func (s *Store) dayPath(t time.Time) string {
	return filepath.Join(s.dir, "receipts_"+t.UTC().Format("2006-01-02")+".json")
}

func (s *Store) readFile(path string) ([]Receipt, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read receipts: %w", err)
	}
	var receipts []Receipt
	if err := json.Unmarshal(data, &receipts); err != nil {
		return nil, fmt.Errorf("unmarshal receipts: %w", err)
	}
	return receipts, nil
}
