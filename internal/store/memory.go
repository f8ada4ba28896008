package store

import (
	"context"
	"time"

	"github.com/chinmina/catalog-token-bridge/internal/token"
	"github.com/maypok86/otter/v2"
	"github.com/maypok86/otter/v2/stats"
)

// Memory is an in-memory store implementation using otter. Records do not
// survive a restart.
type Memory struct {
	cache   *otter.Cache[string, token.Record]
	counter *stats.Counter
}

// NewMemory creates an in-memory store holding at most maxSize records. A
// positive ttl evicts records that long after they were written, regardless
// of their expireTime field.
func NewMemory(ttl time.Duration, maxSize int) *Memory {
	counter := stats.NewCounter()
	opts := &otter.Options[string, token.Record]{
		MaximumSize:   maxSize,
		StatsRecorder: counter,
	}
	if ttl > 0 {
		opts.ExpiryCalculator = otter.ExpiryCreating[string, token.Record](ttl)
	}

	return &Memory{
		cache:   otter.Must(opts),
		counter: counter,
	}
}

// Get retrieves a copy of the stored record.
func (m *Memory) Get(ctx context.Context, key string) (token.Record, bool, error) {
	record, ok := m.cache.GetIfPresent(key)
	if !ok {
		return nil, false, nil
	}

	return record.Clone(), true, nil
}

// Set stores a copy of the record so later changes by the caller are not
// visible to readers.
func (m *Memory) Set(ctx context.Context, key string, record token.Record) error {
	m.cache.Set(key, record.Clone())
	return nil
}

func (m *Memory) Invalidate(ctx context.Context, key string) error {
	m.cache.Invalidate(key)
	return nil
}

// Stats returns the hit and miss counts recorded so far.
func (m *Memory) Stats() stats.Stats {
	return m.counter.Snapshot()
}

func (m *Memory) Close() error {
	return nil
}
