package file

import (
	"fmt"
	"path/filepath"
	"sync"

	"segreader/internal/chunk"
	"segreader/internal/format"
)

// recordReader is served by MmapReader for plain chunks and by Reader for
// compressed ones. Offsets start at 0 directly after the file header.
type recordReader interface {
	ReadRecordAt(offset int64) (chunk.Record, int64, error)
	Close() error
}

// Source is an open on-disk chunk. It owns the file handle (and mapping)
// until Close.
type Source struct {
	mu      sync.Mutex
	meta    chunk.ChunkMeta
	reader  recordReader
	offsets []int64
}

// Open opens the chunk dir/<id> for positional reads. The raw.log header
// decides between mmap and seekable zstd access; the record offsets are
// collected in one pass.
func Open(dir string, id chunk.ChunkID) (*Source, error) {
	meta, err := ReadMeta(dir, id)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(chunkDir(dir, id), rawLogFileName)
	h, err := readHeader(path)
	if err != nil {
		return nil, fmt.Errorf("open chunk %s: %w", id, err)
	}

	var reader recordReader
	if h.Has(format.FlagCompressed) {
		reader, err = openSeekableReader(path)
	} else {
		reader, err = OpenMmapReader(path)
	}
	if err != nil {
		return nil, fmt.Errorf("open chunk %s: %w", id, err)
	}
	meta.Compressed = h.Has(format.FlagCompressed)

	offsets, err := scanOffsets(reader, meta.Records)
	if err != nil {
		_ = reader.Close()
		return nil, fmt.Errorf("open chunk %s: %w", id, err)
	}
	return &Source{meta: meta, reader: reader, offsets: offsets}, nil
}

// maxOffsetPrealloc bounds the up-front allocation; count comes from the
// meta sidecar and is not trusted.
const maxOffsetPrealloc = 1 << 16

func scanOffsets(reader recordReader, count uint64) ([]int64, error) {
	offsets := make([]int64, 0, min(count, maxOffsetPrealloc))
	var offset int64
	for range count {
		_, next, err := reader.ReadRecordAt(offset)
		if err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrRecordCountMismatch, len(offsets), err)
		}
		offsets = append(offsets, offset)
		offset = next
	}
	return offsets, nil
}

func (s *Source) Meta() chunk.ChunkMeta {
	return s.meta
}

func (s *Source) Len() uint64 {
	return uint64(len(s.offsets))
}

func (s *Source) RecordAt(pos uint64) (chunk.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader == nil {
		return chunk.Record{}, chunk.ErrSourceClosed
	}
	if pos >= uint64(len(s.offsets)) {
		return chunk.Record{}, chunk.ErrPositionOutOfRange
	}
	rec, _, err := s.reader.ReadRecordAt(s.offsets[pos])
	return rec, err
}

// Close releases the file. Calling it more than once is harmless.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reader == nil {
		return nil
	}
	err := s.reader.Close()
	s.reader = nil
	return err
}

var _ chunk.Source = (*Source)(nil)
