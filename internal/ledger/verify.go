package ledger

import (
	"errors"
	"fmt"
	"io/fs"

	"eolsweep/internal/security"
	"eolsweep/pkg/utils"
)

// ErrChainBroken is wrapped by every VerifyChain failure.
var ErrChainBroken = errors.New("ledger: chain broken")

// VerifyChain recomputes every hash and checks links, indexes, and signatures.
func (l *Ledger) VerifyChain() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, rec := range l.records {
		h, err := rec.ComputeHash()
		if err != nil {
			return fmt.Errorf("ledger: compute hash for index %d: %w", rec.Index, err)
		}
		if h != rec.Hash {
			return fmt.Errorf("%w: hash mismatch at index %d", ErrChainBroken, rec.Index)
		}
		if i > 0 && rec.PrevHash != l.records[i-1].Hash {
			return fmt.Errorf("%w: prev hash mismatch at index %d", ErrChainBroken, rec.Index)
		}
		if i == 0 && rec.PrevHash != "" {
			return fmt.Errorf("%w: first record has a prev hash", ErrChainBroken)
		}
		if rec.Index != i {
			return fmt.Errorf("%w: index mismatch: expected %d got %d", ErrChainBroken, i, rec.Index)
		}
		ok, err := security.VerifySignatureFromHex(rec.PubKey, []byte(rec.Hash), rec.Signature)
		if err != nil || !ok {
			return fmt.Errorf("%w: bad signature at index %d", ErrChainBroken, rec.Index)
		}
	}
	return nil
}

// File check outcomes.
const (
	FileOK       = "ok"
	FileModified = "modified"
	FileMissing  = "missing"
)

// FileCheck compares the newest record for a file with the file on disk.
type FileCheck struct {
	Record *Record
	File   string
	Status string
}

// CheckFiles hashes the file behind the newest record of every
// repository/path pair and compares it with the recorded AfterHash. locate
// maps a record to the file to hash.
func (l *Ledger) CheckFiles(locate func(*Record) string) ([]FileCheck, error) {
	latest := map[string]int{}
	var order []string
	for i, rec := range l.Records() {
		key := rec.Repository + "\x00" + rec.Path
		if _, ok := latest[key]; !ok {
			order = append(order, key)
		}
		latest[key] = i
	}

	records := l.Records()
	checks := make([]FileCheck, 0, len(order))
	for _, key := range order {
		rec := records[latest[key]]
		check := FileCheck{Record: rec, File: locate(rec)}
		sum, err := utils.HashFile(check.File)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			check.Status = FileMissing
		case err != nil:
			return nil, fmt.Errorf("ledger: hash %s: %w", check.File, err)
		case sum == rec.AfterHash:
			check.Status = FileOK
		default:
			check.Status = FileModified
		}
		checks = append(checks, check)
	}
	return checks, nil
}
