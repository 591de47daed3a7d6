// Package ledger keeps an append-only, hash-chained and signed record of every
// file the sweep rewrote.
package ledger

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Ledger is a JSON-lines file of records, one per line, mirrored in memory.
type Ledger struct {
	mu      sync.Mutex
	records []*Record
	path    string
}

// Open loads the ledger at path, creating an empty file when missing.
func Open(path string) (*Ledger, error) {
	l := &Ledger{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("ledger: ensure dir: %w", err)
			}
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("ledger: create %s: %w", path, err)
		}
		_ = f.Close()
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: read %s: %w", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("ledger: decode entry %d: %w", len(l.records), err)
		}
		l.records = append(l.records, &rec)
	}
	return l, nil
}

// Path returns the file backing the ledger.
func (l *Ledger) Path() string { return l.path }

// Append links rec to the current tail, signs its hash, persists it, and
// keeps it in memory. Index and PrevHash are assigned here.
func (l *Ledger) Append(rec *Record, priv ed25519.PrivateKey, pub ed25519.PublicKey) error {
	if len(priv) == 0 {
		return errors.New("ledger: private key is empty, cannot sign record")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec.Index = len(l.records)
	rec.PrevHash = ""
	if n := len(l.records); n > 0 {
		rec.PrevHash = l.records[n-1].Hash
	}
	h, err := rec.ComputeHash()
	if err != nil {
		return fmt.Errorf("ledger: compute record hash: %w", err)
	}
	rec.Hash = h
	rec.Signature = hex.EncodeToString(ed25519.Sign(priv, []byte(rec.Hash)))
	rec.PubKey = hex.EncodeToString(pub)

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("ledger: open %s: %w", l.path, err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(rec); err != nil {
		return fmt.Errorf("ledger: write %s: %w", l.path, err)
	}
	l.records = append(l.records, rec)
	return nil
}

// Records returns a snapshot of the records.
func (l *Ledger) Records() []*Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Record, len(l.records))
	copy(out, l.records)
	return out
}

// NextIndex returns the index the next record will get.
func (l *Ledger) NextIndex() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// LastHash returns the hash of the tail record, or "" when empty.
func (l *Ledger) LastHash() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.records) == 0 {
		return ""
	}
	return l.records[len(l.records)-1].Hash
}

// Rewrite replaces the ledger file with the in-memory records. It exists for
// repair tooling and tamper drills; sweeps only Append.
func (l *Ledger) Rewrite() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range l.records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("ledger: encode record %d: %w", rec.Index, err)
		}
	}
	if err := os.WriteFile(l.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("ledger: write %s: %w", l.path, err)
	}
	return nil
}
