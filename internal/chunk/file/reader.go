package file

import (
	"encoding/binary"
	"io"

	"segreader/internal/chunk"
)

// Reader reads records through an io.ReaderAt. It serves compressed chunks,
// where the ReaderAt decompresses only the frames a read touches.
type Reader struct {
	reader io.ReaderAt
	closer io.Closer
}

func NewReader(reader io.ReaderAt, closer io.Closer) *Reader {
	return &Reader{reader: reader, closer: closer}
}

func (r *Reader) ReadRecordAt(offset int64) (chunk.Record, int64, error) {
	var sizeBuf [SizeFieldBytes]byte
	if err := readFullAt(r.reader, sizeBuf[:], offset); err != nil {
		return chunk.Record{}, offset, err
	}
	size := binary.LittleEndian.Uint32(sizeBuf[:])
	if size < MinRecordSize {
		return chunk.Record{}, offset, ErrRecordTooSmall
	}

	buf := make([]byte, size)
	copy(buf[:SizeFieldBytes], sizeBuf[:])
	if err := readFullAt(r.reader, buf[SizeFieldBytes:], offset+SizeFieldBytes); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return chunk.Record{}, offset, err
	}

	record, err := DecodeRecord(buf)
	if err != nil {
		return chunk.Record{}, offset, err
	}
	return record, offset + int64(size), nil
}

func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// readFullAt fills buf from offset. It returns io.EOF only when nothing was
// read and io.ErrUnexpectedEOF when the data ends part way through buf.
func readFullAt(reader io.ReaderAt, buf []byte, offset int64) error {
	read := 0
	for read < len(buf) {
		n, err := reader.ReadAt(buf[read:], offset+int64(read))
		read += n
		if err != nil {
			if err == io.EOF {
				if read == len(buf) {
					return nil
				}
				if read > 0 {
					return io.ErrUnexpectedEOF
				}
			}
			return err
		}
	}
	return nil
}
