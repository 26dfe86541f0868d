package format

import (
	"errors"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Type: TypeRawLog, Version: 1, Flags: FlagSealed | FlagCompressed}
	buf := h.Encode()

	got, err := DecodeAndValidate(buf[:], TypeRawLog, 1)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != h {
		t.Fatalf("expected %+v, got %+v", h, got)
	}
	if !got.Has(FlagCompressed) {
		t.Fatal("expected compressed flag")
	}
}

func TestDecodeErrors(t *testing.T) {
	valid := Header{Type: TypeRawLog, Version: 1}.Encode()

	tests := []struct {
		name    string
		buf     []byte
		typ     byte
		version byte
		want    error
	}{
		{"too small", []byte{Signature, TypeRawLog}, TypeRawLog, 1, ErrHeaderTooSmall},
		{"bad signature", []byte{'x', TypeRawLog, 1, 0}, TypeRawLog, 1, ErrSignatureMismatch},
		{"wrong type", valid[:], 'q', 1, ErrTypeMismatch},
		{"wrong version", valid[:], TypeRawLog, 2, ErrVersionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAndValidate(tt.buf, tt.typ, tt.version)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestHasRequiresAllBits(t *testing.T) {
	h := Header{Flags: FlagSealed}
	if h.Has(FlagSealed | FlagCompressed) {
		t.Fatal("expected Has to require every bit")
	}
}
