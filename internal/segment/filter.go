package segment

import (
	"bytes"
	"slices"
	"time"

	"segreader/internal/chunk"
)

// FilterReader forwards every call to its delegate. Embed it to build a
// decorator that overrides only what it changes. It never closes the
// delegate; the delegate's lifetime is managed by whoever opened it.
type FilterReader struct {
	in Reader
}

func NewFilterReader(in Reader) *FilterReader {
	return &FilterReader{in: in}
}

func (f *FilterReader) Meta() chunk.ChunkMeta                   { return f.in.Meta() }
func (f *FilterReader) MaxPos() uint64                          { return f.in.MaxPos() }
func (f *FilterReader) Record(pos uint64) (chunk.Record, error) { return f.in.Record(pos) }
func (f *FilterReader) Visible(pos uint64) bool                 { return f.in.Visible(pos) }

// Unwrap returns the delegate.
func (f *FilterReader) Unwrap() Reader {
	if f == nil {
		return nil
	}
	return f.in
}

// predicateReader hides records for which keep returns false. Records that
// fail to load are hidden too.
type predicateReader struct {
	*FilterReader
	name string
	keep func(chunk.Record) bool
}

func (p *predicateReader) Visible(pos uint64) bool {
	if !p.in.Visible(pos) {
		return false
	}
	rec, err := p.in.Record(pos)
	if err != nil {
		return false
	}
	return p.keep(rec)
}

func (p *predicateReader) String() string {
	return p.name
}

// NewPredicateFilter returns a decorator that hides records rejected by keep.
func NewPredicateFilter(in Reader, keep func(chunk.Record) bool) Wrapper {
	return &predicateReader{FilterReader: NewFilterReader(in), name: "PredicateFilter", keep: keep}
}

// NewSourceFilter keeps records whose Source is one of sources.
func NewSourceFilter(in Reader, sources ...string) Wrapper {
	allowed := slices.Clone(sources)
	return &predicateReader{
		FilterReader: NewFilterReader(in),
		name:         "SourceFilter",
		keep: func(rec chunk.Record) bool {
			return slices.Contains(allowed, rec.Source)
		},
	}
}

// NewTimeRangeFilter keeps records with start <= WriteTS < end. A zero bound
// is open.
func NewTimeRangeFilter(in Reader, start, end time.Time) Wrapper {
	return &predicateReader{
		FilterReader: NewFilterReader(in),
		name:         "TimeRangeFilter",
		keep: func(rec chunk.Record) bool {
			if !start.IsZero() && rec.WriteTS.Before(start) {
				return false
			}
			if !end.IsZero() && !rec.WriteTS.Before(end) {
				return false
			}
			return true
		},
	}
}

// NewMatchFilter keeps records whose raw bytes contain substr.
func NewMatchFilter(in Reader, substr string) Wrapper {
	needle := []byte(substr)
	return &predicateReader{
		FilterReader: NewFilterReader(in),
		name:         "MatchFilter",
		keep: func(rec chunk.Record) bool {
			return bytes.Contains(rec.Raw, needle)
		},
	}
}

var (
	_ Wrapper = (*FilterReader)(nil)
	_ Wrapper = (*predicateReader)(nil)
)
