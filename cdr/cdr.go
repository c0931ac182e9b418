// Package cdr stores call detail records of finished calls.
package cdr

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidRecord = errors.New("invalid call record")

// Record describes one finished call.
type Record struct {
	ID          string
	CallID      uint32
	Kind        string
	Direction   string
	Source      string
	Target      string
	Digits      string
	Answered    bool
	StartedAt   time.Time
	ConnectedAt time.Time
	EndedAt     time.Time
	Reason      uint16
	ReasonB3    uint16
}

// Duration is the connected time of the call, zero when never answered.
func (r Record) Duration() time.Duration {
	if r.ConnectedAt.IsZero() || r.EndedAt.Before(r.ConnectedAt) {
		return 0
	}
	return r.EndedAt.Sub(r.ConnectedAt)
}

func (r *Record) normalize() error {
	if r.CallID == 0 || r.EndedAt.IsZero() {
		return ErrInvalidRecord
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// Store persists records.
type Store interface {
	Save(ctx context.Context, r Record) error
	// List returns up to limit records, newest first.
	List(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// MemoryStore keeps records in process memory. It is used when no database
// is configured and in tests.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Save(ctx context.Context, r Record) error {
	if err := r.normalize(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	sort.SliceStable(out, func(i, j int) bool { return out[i].EndedAt.After(out[j].EndedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }
