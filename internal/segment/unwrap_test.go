package segment

import (
	"errors"
	"strings"
	"testing"

	"segreader/internal/chunk"
)

// opaqueReader is a Reader that is neither a SegmentReader nor a Wrapper.
type opaqueReader struct {
	name string
}

func (o *opaqueReader) Meta() chunk.ChunkMeta { return chunk.ChunkMeta{} }
func (o *opaqueReader) MaxPos() uint64        { return 0 }
func (o *opaqueReader) Visible(uint64) bool   { return false }
func (o *opaqueReader) String() string        { return o.name }

func (o *opaqueReader) Record(uint64) (chunk.Record, error) {
	return chunk.Record{}, chunk.ErrPositionOutOfRange
}

func wrapN(r Reader, n int) Reader {
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			r = NewFilterReader(r)
		} else {
			r = NewSourceFilter(r, "web")
		}
	}
	return r
}

func TestSegmentOfCanonical(t *testing.T) {
	sr := openTestReader(t, testRecords(3))

	got, err := SegmentOf(sr)
	if err != nil {
		t.Fatalf("segment of: %v", err)
	}
	if got != sr {
		t.Fatalf("expected %v, got %v", sr, got)
	}

	got, ok := TrySegmentOf(sr)
	if !ok || got != sr {
		t.Fatalf("expected (%v, true), got (%v, %v)", sr, got, ok)
	}
}

func TestSegmentOfChains(t *testing.T) {
	sr := openTestReader(t, testRecords(3))

	for n := 0; n <= 6; n++ {
		head := wrapN(sr, n)

		got, err := SegmentOf(head)
		if err != nil {
			t.Fatalf("chain of %d: %v", n, err)
		}
		if got != sr {
			t.Fatalf("chain of %d: expected %v, got %v", n, sr, got)
		}

		got, ok := TrySegmentOf(head)
		if !ok || got != sr {
			t.Fatalf("chain of %d: expected (%v, true), got (%v, %v)", n, sr, got, ok)
		}
	}
}

func TestSegmentOfTwoDecorators(t *testing.T) {
	x := openTestReader(t, testRecords(3))
	b := NewTimeRangeFilter(x, testTime(0), testTime(10))
	a := NewMatchFilter(b, "line")

	got, err := SegmentOf(a)
	if err != nil {
		t.Fatalf("segment of: %v", err)
	}
	if got != x {
		t.Fatalf("expected %v, got %v", x, got)
	}
}

func TestSegmentOfNil(t *testing.T) {
	var typedNil *SegmentReader

	tests := []struct {
		name string
		r    Reader
	}{
		{"nil interface", nil},
		{"typed nil segment reader", typedNil},
		{"decorator over nil", NewFilterReader(nil)},
		{"nil filter reader", (*FilterReader)(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SegmentOf(tt.r)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got != nil {
				t.Fatalf("expected nil reader, got %v", got)
			}

			got, ok := TrySegmentOf(tt.r)
			if ok || got != nil {
				t.Fatalf("expected (nil, false), got (%v, %v)", got, ok)
			}

			if RegisterCoreListener(tt.r, func(CoreKey) {}) {
				t.Fatal("expected registration to fail")
			}
		})
	}
}

func TestSegmentOfOpaque(t *testing.T) {
	opaque := &opaqueReader{name: "remote-shard-7"}

	for n := 0; n <= 3; n++ {
		head := wrapN(opaque, n)

		got, err := SegmentOf(head)
		if got != nil {
			t.Fatalf("chain of %d: expected nil reader, got %v", n, got)
		}
		if !errors.Is(err, ErrUnresolvable) {
			t.Fatalf("chain of %d: expected ErrUnresolvable, got %v", n, err)
		}
		var ue *UnresolvableError
		if !errors.As(err, &ue) {
			t.Fatalf("chain of %d: expected *UnresolvableError, got %T", n, err)
		}
		if !strings.Contains(ue.Reader, "opaqueReader") || !strings.Contains(ue.Reader, "remote-shard-7") {
			t.Fatalf("chain of %d: description %q lacks type or name", n, ue.Reader)
		}
		if !strings.Contains(err.Error(), ue.Reader) {
			t.Fatalf("chain of %d: message %q lacks description", n, err.Error())
		}

		if got, ok := TrySegmentOf(head); ok || got != nil {
			t.Fatalf("chain of %d: expected (nil, false), got (%v, %v)", n, got, ok)
		}

		called := false
		if RegisterCoreListener(head, func(CoreKey) { called = true }) {
			t.Fatalf("chain of %d: expected registration to fail", n)
		}
		if called {
			t.Fatalf("chain of %d: listener must not run", n)
		}
	}
}

func TestUnresolvableErrorWithoutStringer(t *testing.T) {
	_, err := SegmentOf(NewFilterReader(&struct{ Reader }{}))
	var ue *UnresolvableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected *UnresolvableError, got %v", err)
	}
	if !strings.Contains(ue.Reader, "struct") {
		t.Fatalf("expected type in description, got %q", ue.Reader)
	}
}

func TestRegisterCoreListener(t *testing.T) {
	sr := openTestReader(t, testRecords(2))
	head := wrapN(sr, 3)

	var keys []CoreKey
	if !RegisterCoreListener(head, func(k CoreKey) { keys = append(keys, k) }) {
		t.Fatal("expected registration to succeed")
	}
	if len(keys) != 0 {
		t.Fatal("listener ran before close")
	}

	if err := sr.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(keys) != 1 || keys[0] != sr.CoreKey() {
		t.Fatalf("expected one call with %v, got %v", sr.CoreKey(), keys)
	}

	if err := sr.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("listener ran %d times", len(keys))
	}
}

func TestRegisterCoreListenerMatchesTrySegmentOf(t *testing.T) {
	sr := openTestReader(t, testRecords(1))
	readers := []Reader{
		nil,
		sr,
		wrapN(sr, 2),
		&opaqueReader{},
		wrapN(&opaqueReader{}, 2),
	}
	for i, r := range readers {
		_, want := TrySegmentOf(r)
		if got := RegisterCoreListener(r, func(CoreKey) {}); got != want {
			t.Errorf("reader %d: register returned %v, TrySegmentOf %v", i, got, want)
		}
	}
}

func TestResolutionIsIdempotent(t *testing.T) {
	sr := openTestReader(t, testRecords(2))
	head := wrapN(sr, 4)
	opaque := wrapN(&opaqueReader{name: "x"}, 2)

	for i := 0; i < 3; i++ {
		got, err := SegmentOf(head)
		if err != nil || got != sr {
			t.Fatalf("call %d: expected %v, got %v, %v", i, sr, got, err)
		}
		if _, err := SegmentOf(opaque); !errors.Is(err, ErrUnresolvable) {
			t.Fatalf("call %d: expected ErrUnresolvable, got %v", i, err)
		}
	}
	if sr.closed.Load() {
		t.Fatal("resolution must not close the reader")
	}
}
