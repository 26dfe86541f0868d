package chunk

import (
	"time"

	"github.com/google/uuid"
)

type ChunkID uuid.UUID

func NewChunkID() ChunkID {
	return ChunkID(uuid.Must(uuid.NewV7()))
}

func ParseChunkID(value string) (ChunkID, error) {
	parsed, err := uuid.Parse(value)
	if err != nil {
		return ChunkID{}, err
	}
	return ChunkID(parsed), nil
}

func (id ChunkID) String() string {
	return uuid.UUID(id).String()
}

type RecordRef struct {
	ChunkID ChunkID
	Pos     uint64
}

type ChunkMeta struct {
	ID         ChunkID
	StartTS    time.Time
	EndTS      time.Time
	Records    uint64
	Size       int64
	Sealed     bool
	Compressed bool
}

type Record struct {
	IngestTS time.Time
	WriteTS  time.Time
	Source   string
	Raw      []byte
}

// MetaFor computes the time bounds and record count for records in write
// order. Size is left to the caller since it depends on the encoding.
func MetaFor(id ChunkID, records []Record) ChunkMeta {
	meta := ChunkMeta{ID: id, Records: uint64(len(records)), Sealed: true}
	for _, rec := range records {
		if meta.StartTS.IsZero() || rec.WriteTS.Before(meta.StartTS) {
			meta.StartTS = rec.WriteTS
		}
		if rec.WriteTS.After(meta.EndTS) {
			meta.EndTS = rec.WriteTS
		}
	}
	return meta
}
