// Package format provides the shared 4-byte file header used by segment files.
package format

import "errors"

// Header layout (4 bytes):
//
//	signature (1 byte, 's' = 0x73)
//	type (1 byte, identifies the file)
//	version (1 byte)
//	flags (1 byte)
const (
	Signature  = 's'
	HeaderSize = 4

	TypeRawLog = 'r'

	// Flag bits for raw.log headers.
	FlagSealed     = 0x01
	FlagCompressed = 0x02
)

var (
	ErrHeaderTooSmall    = errors.New("header too small")
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrTypeMismatch      = errors.New("type mismatch")
	ErrVersionMismatch   = errors.New("version mismatch")
)

// Header is the common file header.
type Header struct {
	Type    byte
	Version byte
	Flags   byte
}

// Encode returns the header bytes.
func (h Header) Encode() [HeaderSize]byte {
	return [HeaderSize]byte{Signature, h.Type, h.Version, h.Flags}
}

// Has reports whether every bit in flag is set.
func (h Header) Has(flag byte) bool {
	return h.Flags&flag == flag
}

// Decode reads a header from buf without checking type or version.
func Decode(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrHeaderTooSmall
	}
	if buf[0] != Signature {
		return Header{}, ErrSignatureMismatch
	}
	return Header{Type: buf[1], Version: buf[2], Flags: buf[3]}, nil
}

// DecodeAndValidate reads a header and checks that it carries the expected
// type and version.
func DecodeAndValidate(buf []byte, expectedType, expectedVersion byte) (Header, error) {
	h, err := Decode(buf)
	if err != nil {
		return Header{}, err
	}
	if h.Type != expectedType {
		return Header{}, ErrTypeMismatch
	}
	if h.Version != expectedVersion {
		return Header{}, ErrVersionMismatch
	}
	return h, nil
}
