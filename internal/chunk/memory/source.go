// Package memory provides an in-memory chunk.Source, used for tests and for
// chunks that have not been flushed to disk.
package memory

import (
	"sync"

	"segreader/internal/chunk"
)

// Source holds a sealed chunk's records in memory.
type Source struct {
	mu      sync.RWMutex
	meta    chunk.ChunkMeta
	records []chunk.Record
	closed  bool
}

// NewSource copies records into a new sealed in-memory chunk.
// Size is the total raw byte count.
func NewSource(id chunk.ChunkID, records []chunk.Record) *Source {
	copied := make([]chunk.Record, len(records))
	copy(copied, records)

	meta := chunk.MetaFor(id, copied)
	for _, rec := range copied {
		meta.Size += int64(len(rec.Raw))
	}
	return &Source{meta: meta, records: copied}
}

func (s *Source) Meta() chunk.ChunkMeta {
	return s.meta
}

func (s *Source) Len() uint64 {
	return uint64(len(s.records))
}

func (s *Source) RecordAt(pos uint64) (chunk.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return chunk.Record{}, chunk.ErrSourceClosed
	}
	if pos >= uint64(len(s.records)) {
		return chunk.Record{}, chunk.ErrPositionOutOfRange
	}
	return s.records[pos], nil
}

// Close marks the chunk closed; Len and Meta stay valid. Calling it more
// than once is harmless.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (s *Source) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

var _ chunk.Source = (*Source)(nil)
