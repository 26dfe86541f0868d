package file

import (
	"encoding/binary"
	"errors"
	"math"
	"time"

	"segreader/internal/chunk"
)

// Record layout (little endian):
//
//	size (4) | magic (1) | version (1) | ingestTS (8) | writeTS (8) |
//	sourceLen (2) | rawLen (4) | source | raw | size (4)
//
// The trailing size allows walking the log backwards.
const (
	MagicByte   = 0x69
	VersionByte = 0x02

	SizeFieldBytes  = 4
	MagicFieldBytes = 1
	VersionBytes    = 1
	IngestTSBytes   = 8
	WriteTSBytes    = 8
	SourceLenBytes  = 2
	RawLenBytes     = 4

	HeaderBytes   = SizeFieldBytes + MagicFieldBytes + VersionBytes + IngestTSBytes + WriteTSBytes + SourceLenBytes + RawLenBytes
	MinRecordSize = HeaderBytes + SizeFieldBytes
)

var (
	ErrRecordTooSmall      = errors.New("record size too small")
	ErrRecordTooLarge      = errors.New("record size too large")
	ErrSourceTooLong       = errors.New("record source too long")
	ErrMagicMismatch       = errors.New("record magic mismatch")
	ErrVersionMismatch     = errors.New("record version mismatch")
	ErrSizeMismatch        = errors.New("record size mismatch")
	ErrRawLengthMismatch   = errors.New("record raw length mismatch")
	ErrNoPreviousRecord    = errors.New("no previous record")
	ErrRecordCountMismatch = errors.New("record count does not match meta")
)

func RecordSize(record chunk.Record) (uint32, error) {
	if len(record.Source) > math.MaxUint16 {
		return 0, ErrSourceTooLong
	}
	size := uint64(MinRecordSize) + uint64(len(record.Source)) + uint64(len(record.Raw))
	if size > math.MaxUint32 {
		return 0, ErrRecordTooLarge
	}
	return uint32(size), nil
}

func EncodeRecord(record chunk.Record) ([]byte, error) {
	size, err := RecordSize(record)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, size)
	binary.LittleEndian.PutUint32(buf[:SizeFieldBytes], size)
	cursor := SizeFieldBytes
	buf[cursor] = MagicByte
	cursor += MagicFieldBytes
	buf[cursor] = VersionByte
	cursor += VersionBytes
	binary.LittleEndian.PutUint64(buf[cursor:cursor+IngestTSBytes], uint64(record.IngestTS.UnixMicro()))
	cursor += IngestTSBytes
	binary.LittleEndian.PutUint64(buf[cursor:cursor+WriteTSBytes], uint64(record.WriteTS.UnixMicro()))
	cursor += WriteTSBytes
	binary.LittleEndian.PutUint16(buf[cursor:cursor+SourceLenBytes], uint16(len(record.Source)))
	cursor += SourceLenBytes
	binary.LittleEndian.PutUint32(buf[cursor:cursor+RawLenBytes], uint32(len(record.Raw)))
	cursor += RawLenBytes
	cursor += copy(buf[cursor:], record.Source)
	cursor += copy(buf[cursor:], record.Raw)
	binary.LittleEndian.PutUint32(buf[cursor:cursor+SizeFieldBytes], size)

	return buf, nil
}

func DecodeRecord(buf []byte) (chunk.Record, error) {
	if len(buf) < MinRecordSize {
		return chunk.Record{}, ErrRecordTooSmall
	}
	size := binary.LittleEndian.Uint32(buf[:SizeFieldBytes])
	if size != uint32(len(buf)) {
		return chunk.Record{}, ErrSizeMismatch
	}

	cursor := SizeFieldBytes
	if buf[cursor] != MagicByte {
		return chunk.Record{}, ErrMagicMismatch
	}
	cursor += MagicFieldBytes
	if buf[cursor] != VersionByte {
		return chunk.Record{}, ErrVersionMismatch
	}
	cursor += VersionBytes

	ingestTS := binary.LittleEndian.Uint64(buf[cursor : cursor+IngestTSBytes])
	cursor += IngestTSBytes
	writeTS := binary.LittleEndian.Uint64(buf[cursor : cursor+WriteTSBytes])
	cursor += WriteTSBytes
	sourceLen := int(binary.LittleEndian.Uint16(buf[cursor : cursor+SourceLenBytes]))
	cursor += SourceLenBytes
	rawLen := int(binary.LittleEndian.Uint32(buf[cursor : cursor+RawLenBytes]))
	cursor += RawLenBytes
	if cursor+sourceLen+rawLen+SizeFieldBytes != len(buf) {
		return chunk.Record{}, ErrRawLengthMismatch
	}

	source := string(buf[cursor : cursor+sourceLen])
	cursor += sourceLen
	raw := make([]byte, rawLen)
	cursor += copy(raw, buf[cursor:cursor+rawLen])
	if binary.LittleEndian.Uint32(buf[cursor:cursor+SizeFieldBytes]) != size {
		return chunk.Record{}, ErrSizeMismatch
	}

	return chunk.Record{
		IngestTS: time.UnixMicro(int64(ingestTS)),
		WriteTS:  time.UnixMicro(int64(writeTS)),
		Source:   source,
		Raw:      raw,
	}, nil
}
