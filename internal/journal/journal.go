// Package journal appends dispatch outcomes as JSON lines for later
// inspection. Writes are best-effort; a journal failure never fails the
// request that produced it.
package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is one journaled dispatch outcome.
type Entry struct {
	Ts      time.Time `json:"ts"`
	Broker  string    `json:"broker,omitempty"`
	Symbol  string    `json:"symbol,omitempty"`
	Side    string    `json:"side,omitempty"`
	State   string    `json:"state"`
	OrderID string    `json:"orderId,omitempty"`
	Reason  string    `json:"reason,omitempty"`
}

// Writer appends entries to a JSONL file.
type Writer struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewWriter creates/opens the target file and returns a writer.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &Writer{
		file: file,
		enc:  json.NewEncoder(file),
	}, nil
}

// Record writes a single entry to the underlying JSONL file.
func (w *Writer) Record(e Entry) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return
	}
	_ = w.enc.Encode(e)
}

// Close flushes and closes the file handle.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
