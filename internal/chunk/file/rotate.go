package file

import (
	"fmt"

	"segreader/internal/chunk"
)

// RotationPolicy reports whether next must start a new chunk, given the
// records and encoded bytes already in the current one. It is never asked
// about the first record of a chunk.
type RotationPolicy interface {
	ShouldRotate(records uint64, bytes int64, next chunk.Record) bool
}

type RotationPolicyFunc func(records uint64, bytes int64, next chunk.Record) bool

func (f RotationPolicyFunc) ShouldRotate(records uint64, bytes int64, next chunk.Record) bool {
	return f(records, bytes, next)
}

// MaxRecords rotates once a chunk holds n records. Zero never rotates.
func MaxRecords(n uint64) RotationPolicy {
	return RotationPolicyFunc(func(records uint64, _ int64, _ chunk.Record) bool {
		return n > 0 && records >= n
	})
}

// MaxBytes rotates when next would push the encoded chunk past n bytes.
// Zero never rotates. A single record larger than n still gets a chunk.
func MaxBytes(n int64) RotationPolicy {
	return RotationPolicyFunc(func(_ uint64, bytes int64, next chunk.Record) bool {
		if n <= 0 {
			return false
		}
		size, err := RecordSize(next)
		if err != nil {
			return false
		}
		return bytes+int64(size) > n
	})
}

// AnyOf rotates when any of the policies does.
func AnyOf(policies ...RotationPolicy) RotationPolicy {
	return RotationPolicyFunc(func(records uint64, bytes int64, next chunk.Record) bool {
		for _, p := range policies {
			if p != nil && p.ShouldRotate(records, bytes, next) {
				return true
			}
		}
		return false
	})
}

// Split cuts records into consecutive batches according to p. A nil policy
// keeps everything in one batch.
func Split(records []chunk.Record, p RotationPolicy) [][]chunk.Record {
	if len(records) == 0 {
		return nil
	}
	if p == nil {
		return [][]chunk.Record{records}
	}
	var batches [][]chunk.Record
	start := 0
	var bytes int64
	for i, rec := range records {
		if i > start && p.ShouldRotate(uint64(i-start), bytes, rec) {
			batches = append(batches, records[start:i])
			start = i
			bytes = 0
		}
		if size, err := RecordSize(rec); err == nil {
			bytes += int64(size)
		}
	}
	return append(batches, records[start:])
}

// WriteRotated writes records as one or more chunks cut by p, each with a
// fresh ID. Metas are returned in write order. On error the chunks already
// written are kept and their metas returned.
func WriteRotated(dir string, records []chunk.Record, p RotationPolicy, opts Options) ([]chunk.ChunkMeta, error) {
	batches := Split(records, p)
	if len(batches) == 0 {
		batches = [][]chunk.Record{nil}
	}
	metas := make([]chunk.ChunkMeta, 0, len(batches))
	for _, batch := range batches {
		meta, err := Write(dir, chunk.NewChunkID(), batch, opts)
		if err != nil {
			return metas, fmt.Errorf("write chunk %d of %d: %w", len(metas)+1, len(batches), err)
		}
		metas = append(metas, meta)
	}
	return metas, nil
}
