// Package chunk defines the core abstractions for record storage.
// Records live in chunks, which are sealed, immutable runs of records.
// A Source provides positional access to one chunk's records and owns
// whatever resources back them; RecordCursor provides bidirectional
// iteration.
package chunk

import "errors"

var (
	ErrNoMoreRecords      = errors.New("no more records")
	ErrChunkNotFound      = errors.New("chunk not found")
	ErrPositionOutOfRange = errors.New("record position out of range")
	ErrSourceClosed       = errors.New("chunk source is closed")
)

// Source gives positional read access to the records of a single chunk.
// Positions are dense: 0 <= pos < Len().
// Close releases the resources backing the chunk; reads after Close fail
// with ErrSourceClosed.
type Source interface {
	Meta() ChunkMeta
	Len() uint64
	RecordAt(pos uint64) (Record, error)
	Close() error
}

// RecordCursor provides bidirectional iteration over records in a chunk.
type RecordCursor interface {
	Next() (Record, RecordRef, error)
	Prev() (Record, RecordRef, error)
	Seek(ref RecordRef) error
	Close() error
}
