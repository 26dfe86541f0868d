package segment

import "segreader/internal/chunk"

// cursor iterates the visible positions of a Reader. It does not own the
// reader; Close is a no-op.
type cursor struct {
	r       Reader
	chunkID chunk.ChunkID
	fwd     uint64
	rev     uint64
}

// OpenCursor returns a bidirectional cursor over r's visible records.
// Next starts at the first position, Prev at the last.
func OpenCursor(r Reader) chunk.RecordCursor {
	return &cursor{r: r, chunkID: r.Meta().ID, rev: r.MaxPos()}
}

func (c *cursor) Next() (chunk.Record, chunk.RecordRef, error) {
	for maxPos := c.r.MaxPos(); c.fwd < maxPos; {
		pos := c.fwd
		c.fwd++
		if !c.r.Visible(pos) {
			continue
		}
		rec, err := c.r.Record(pos)
		if err != nil {
			return chunk.Record{}, chunk.RecordRef{}, err
		}
		return rec, chunk.RecordRef{ChunkID: c.chunkID, Pos: pos}, nil
	}
	return chunk.Record{}, chunk.RecordRef{}, chunk.ErrNoMoreRecords
}

func (c *cursor) Prev() (chunk.Record, chunk.RecordRef, error) {
	for c.rev > 0 {
		c.rev--
		pos := c.rev
		if !c.r.Visible(pos) {
			continue
		}
		rec, err := c.r.Record(pos)
		if err != nil {
			return chunk.Record{}, chunk.RecordRef{}, err
		}
		return rec, chunk.RecordRef{ChunkID: c.chunkID, Pos: pos}, nil
	}
	return chunk.Record{}, chunk.RecordRef{}, chunk.ErrNoMoreRecords
}

// Seek positions the cursor so Next returns ref.Pos (or the next visible
// position after it) and Prev returns the visible position before it.
func (c *cursor) Seek(ref chunk.RecordRef) error {
	if ref.ChunkID != c.chunkID {
		return chunk.ErrChunkNotFound
	}
	pos := min(ref.Pos, c.r.MaxPos())
	c.fwd = pos
	c.rev = pos
	return nil
}

func (c *cursor) Close() error {
	return nil
}

var _ chunk.RecordCursor = (*cursor)(nil)
