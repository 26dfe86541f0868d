// Package segment exposes sealed chunks as readers.
//
// A SegmentReader is the canonical reader: it owns a reference on a shared
// core that holds the chunk's data source. Decorators (see FilterReader) wrap
// another Reader and forward to it without owning it. SegmentOf and friends
// walk a decorator chain back to the SegmentReader underneath.
//
// Logging:
//   - Logger is dependency-injected via Open
//   - The core logs only when it closes; reads never log
package segment

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"segreader/internal/chunk"
	"segreader/internal/logging"
)

var (
	ErrReaderClosed = errors.New("segment reader is closed")
	ErrCoreClosed   = errors.New("segment core is closed")
)

// Reader is anything that can be read like a segment.
// Positions run from 0 to MaxPos()-1; Visible reports whether a position is
// part of this reader's view.
type Reader interface {
	Meta() chunk.ChunkMeta
	MaxPos() uint64
	Record(pos uint64) (chunk.Record, error)
	Visible(pos uint64) bool
}

// Wrapper is implemented by readers that decorate exactly one delegate.
type Wrapper interface {
	Reader
	Unwrap() Reader
}

// CoreClosedListener is called once when a segment core's resources have
// been released.
type CoreClosedListener func(key CoreKey)

// CoreKey identifies a shared core. Every reader derived from the same Open
// call has the same key; reopening the same chunk yields a new key.
type CoreKey struct {
	Chunk chunk.ChunkID
	Gen   uint64
}

func (k CoreKey) String() string {
	return fmt.Sprintf("%s#%d", k.Chunk, k.Gen)
}

var coreGen atomic.Uint64

// core is the reference-counted state shared by SegmentReaders over the
// same chunk source.
type core struct {
	key    CoreKey
	source chunk.Source
	logger *slog.Logger

	mu        sync.Mutex
	refs      int
	closed    bool
	listeners []CoreClosedListener
}

func (c *core) incRef() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrCoreClosed
	}
	c.refs++
	return nil
}

// decRef drops one reference. The last one closes the source and then runs
// the listeners in registration order, outside the lock.
func (c *core) decRef() error {
	c.mu.Lock()
	c.refs--
	if c.refs > 0 {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	listeners := c.listeners
	c.listeners = nil
	c.mu.Unlock()

	err := c.source.Close()
	for _, l := range listeners {
		l(c.key)
	}
	c.logger.Debug("segment core closed", "core", c.key, "listeners", len(listeners))
	return err
}

func (c *core) addListener(l CoreClosedListener) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		l(c.key)
		return
	}
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

// SegmentReader is the canonical reader over one chunk.
type SegmentReader struct {
	core    *core
	deleted map[uint64]struct{}
	closed  atomic.Bool
}

// Open takes ownership of src and returns a reader holding the only
// reference to its core. Closing the last reader derived from it closes src.
func Open(src chunk.Source, logger *slog.Logger) *SegmentReader {
	meta := src.Meta()
	c := &core{
		key:    CoreKey{Chunk: meta.ID, Gen: coreGen.Add(1)},
		source: src,
		logger: logging.Default(logger).With("component", "segment", "chunk", meta.ID.String()),
		refs:   1,
	}
	return &SegmentReader{core: c}
}

func (r *SegmentReader) Meta() chunk.ChunkMeta {
	return r.core.source.Meta()
}

func (r *SegmentReader) MaxPos() uint64 {
	return r.core.source.Len()
}

func (r *SegmentReader) Record(pos uint64) (chunk.Record, error) {
	if r.closed.Load() {
		return chunk.Record{}, ErrReaderClosed
	}
	return r.core.source.RecordAt(pos)
}

func (r *SegmentReader) Visible(pos uint64) bool {
	if pos >= r.MaxPos() {
		return false
	}
	_, gone := r.deleted[pos]
	return !gone
}

// NumVisible returns the number of positions not hidden by deletes.
func (r *SegmentReader) NumVisible() uint64 {
	return r.MaxPos() - uint64(len(r.deleted))
}

// CoreKey returns the identity of the shared core.
func (r *SegmentReader) CoreKey() CoreKey {
	return r.core.key
}

// WithDeletes returns a new reader over the same core that additionally
// hides the given positions. The new reader holds its own core reference and
// must be closed independently. Positions past MaxPos are ignored.
func (r *SegmentReader) WithDeletes(positions ...uint64) (*SegmentReader, error) {
	if r.closed.Load() {
		return nil, ErrReaderClosed
	}
	if err := r.core.incRef(); err != nil {
		return nil, err
	}
	deleted := make(map[uint64]struct{}, len(r.deleted)+len(positions))
	for pos := range r.deleted {
		deleted[pos] = struct{}{}
	}
	maxPos := r.MaxPos()
	for _, pos := range positions {
		if pos < maxPos {
			deleted[pos] = struct{}{}
		}
	}
	return &SegmentReader{core: r.core, deleted: deleted}, nil
}

// AddCoreClosedListener registers l to run once when the shared core closes.
// If the core has already closed, l runs immediately. Safe for concurrent use.
func (r *SegmentReader) AddCoreClosedListener(l CoreClosedListener) {
	if l == nil {
		return
	}
	r.core.addListener(l)
}

// Close releases this reader's core reference. Only the first call has an
// effect.
func (r *SegmentReader) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	return r.core.decRef()
}

func (r *SegmentReader) String() string {
	return "SegmentReader(" + r.core.key.String() + ")"
}

var _ Reader = (*SegmentReader)(nil)
