package segment

import (
	"errors"
	"fmt"
)

var ErrUnresolvable = errors.New("cannot extract segment reader")

// UnresolvableError reports a reader chain that ends in something that is
// neither a SegmentReader nor a Wrapper.
type UnresolvableError struct {
	// Reader describes the offending reader (type and, if available, its
	// String form).
	Reader string
}

func (e *UnresolvableError) Error() string {
	return fmt.Sprintf("cannot extract segment reader from reader [%s]", e.Reader)
}

func (e *UnresolvableError) Is(target error) bool {
	return target == ErrUnresolvable
}

// SegmentOf returns the SegmentReader underneath r. A nil r yields (nil, nil).
// If the chain ends in a reader that is neither a SegmentReader nor a
// Wrapper, the error is an *UnresolvableError.
func SegmentOf(r Reader) (*SegmentReader, error) {
	sr, terminal := resolve(r)
	if terminal != nil {
		return nil, &UnresolvableError{Reader: describe(terminal)}
	}
	return sr, nil
}

// TrySegmentOf is SegmentOf without the error: it reports false for a nil
// reader and for chains that cannot be resolved.
func TrySegmentOf(r Reader) (*SegmentReader, bool) {
	sr, _ := resolve(r)
	return sr, sr != nil
}

// RegisterCoreListener attaches l to the core of the SegmentReader underneath
// r and reports whether there was one.
func RegisterCoreListener(r Reader, l CoreClosedListener) bool {
	sr, ok := TrySegmentOf(r)
	if !ok {
		return false
	}
	sr.AddCoreClosedListener(l)
	return true
}

// resolve walks the decorator chain. It returns the SegmentReader at the end,
// or the first reader it could not classify. Both are nil when the chain
// ends in nil.
func resolve(r Reader) (*SegmentReader, Reader) {
	for r != nil {
		switch v := r.(type) {
		case *SegmentReader:
			return v, nil
		case Wrapper:
			r = v.Unwrap()
		default:
			return nil, r
		}
	}
	return nil, nil
}

func describe(r Reader) string {
	if s, ok := r.(fmt.Stringer); ok {
		return fmt.Sprintf("%T %s", r, s.String())
	}
	return fmt.Sprintf("%T", r)
}
