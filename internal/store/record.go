// Package store persists published rule sets so engines can pick them up.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klyr/seclang/internal/rules"
)

// Record is one published rule set.
type Record struct {
	ID          string          `json:"id"`
	PublishedAt time.Time       `json:"published_at"`
	Rules       int             `json:"rules"`
	Snapshot    json.RawMessage `json:"snapshot"`
}

type Publisher interface {
	Publish(ctx context.Context, rec Record) error
}

// NewRecord serializes a published rule set.
func NewRecord(rs *rules.RuleSet, now time.Time) (Record, error) {
	if rs == nil || !rs.Published() {
		return Record{}, fmt.Errorf("rule set is not published")
	}
	data, err := json.Marshal(rs.Snapshot())
	if err != nil {
		return Record{}, fmt.Errorf("encode rule set: %w", err)
	}
	return Record{
		ID:          rs.ID,
		PublishedAt: now.UTC(),
		Rules:       len(rs.Active()),
		Snapshot:    data,
	}, nil
}

// FileStore writes records as indented JSON files.
type FileStore struct {
	Path string
}

func (f FileStore) Publish(_ context.Context, rec Record) error {
	return SaveFile(f.Path, rec)
}

func SaveFile(path string, rec Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func LoadFile(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
