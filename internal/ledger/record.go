package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Record is a tamper-evident entry for one rewritten file.
type Record struct {
	Index      int    `json:"index"`
	Timestamp  string `json:"timestamp"`
	RunID      string `json:"runId"`
	Repository string `json:"repository"`
	Path       string `json:"path"`
	Kind       string `json:"kind"`
	BeforeHash string `json:"beforeHash"`
	AfterHash  string `json:"afterHash"`
	PrevHash   string `json:"prevHash"`
	Hash       string `json:"hash"`
	Signature  string `json:"signature"`
	PubKey     string `json:"pubKey"`
}

// Kinds of records.
const (
	KindWorkflow = "workflow"
	KindManifest = "manifest"
)

// canonicalData is the JSON the hash is computed over. It leaves out Hash,
// Signature and PubKey.
func (r *Record) canonicalData() ([]byte, error) {
	view := struct {
		Index      int    `json:"index"`
		Timestamp  string `json:"timestamp"`
		RunID      string `json:"runId"`
		Repository string `json:"repository"`
		Path       string `json:"path"`
		Kind       string `json:"kind"`
		BeforeHash string `json:"beforeHash"`
		AfterHash  string `json:"afterHash"`
		PrevHash   string `json:"prevHash"`
	}{
		Index:      r.Index,
		Timestamp:  r.Timestamp,
		RunID:      r.RunID,
		Repository: r.Repository,
		Path:       r.Path,
		Kind:       r.Kind,
		BeforeHash: r.BeforeHash,
		AfterHash:  r.AfterHash,
		PrevHash:   r.PrevHash,
	}
	return json.Marshal(view)
}

// ComputeHash returns the sha256 of the canonical record data.
func (r *Record) ComputeHash() (string, error) {
	data, err := r.canonicalData()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// NewRecord builds an unsigned record. Index and PrevHash are assigned on Append.
func NewRecord(runID, repository, path, kind, beforeHash, afterHash string) (*Record, error) {
	rec := &Record{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		RunID:      runID,
		Repository: repository,
		Path:       path,
		Kind:       kind,
		BeforeHash: beforeHash,
		AfterHash:  afterHash,
	}
	h, err := rec.ComputeHash()
	if err != nil {
		return nil, fmt.Errorf("ledger: compute record hash: %w", err)
	}
	rec.Hash = h
	return rec, nil
}
