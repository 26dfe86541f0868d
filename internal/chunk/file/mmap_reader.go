package file

import (
	"encoding/binary"
	"errors"
	"io"
	"os"
	"syscall"

	"segreader/internal/chunk"
	"segreader/internal/format"
)

var ErrMmapEmpty = errors.New("mmap file is empty")

// MmapReader reads records from an uncompressed raw.log mapped into memory.
// Offsets are relative to the end of the file header.
type MmapReader struct {
	file   *os.File
	mapped []byte
	data   []byte
}

func OpenMmapReader(path string) (*MmapReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	if info.Size() == 0 {
		file.Close()
		return nil, ErrMmapEmpty
	}
	if info.Size() < format.HeaderSize {
		file.Close()
		return nil, format.ErrHeaderTooSmall
	}

	mapped, err := syscall.Mmap(int(file.Fd()), 0, int(info.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		file.Close()
		return nil, err
	}
	return &MmapReader{file: file, mapped: mapped, data: mapped[format.HeaderSize:]}, nil
}

func (r *MmapReader) ReadRecordAt(offset int64) (chunk.Record, int64, error) {
	if offset < 0 || offset >= int64(len(r.data)) {
		return chunk.Record{}, offset, io.EOF
	}
	if offset+SizeFieldBytes > int64(len(r.data)) {
		return chunk.Record{}, offset, io.ErrUnexpectedEOF
	}

	size := binary.LittleEndian.Uint32(r.data[offset : offset+SizeFieldBytes])
	if size < MinRecordSize {
		return chunk.Record{}, offset, ErrRecordTooSmall
	}
	end := offset + int64(size)
	if end > int64(len(r.data)) {
		return chunk.Record{}, offset, io.ErrUnexpectedEOF
	}

	record, err := DecodeRecord(r.data[offset:end])
	if err != nil {
		return chunk.Record{}, offset, err
	}
	return record, end, nil
}

func (r *MmapReader) ReadRecordBefore(offset int64) (chunk.Record, int64, error) {
	if offset < MinRecordSize {
		return chunk.Record{}, 0, ErrNoPreviousRecord
	}
	if offset > int64(len(r.data)) {
		return chunk.Record{}, 0, io.EOF
	}
	size := int64(binary.LittleEndian.Uint32(r.data[offset-SizeFieldBytes : offset]))
	start := offset - size
	if start < 0 {
		return chunk.Record{}, 0, ErrSizeMismatch
	}
	record, _, err := r.ReadRecordAt(start)
	if err != nil {
		return chunk.Record{}, 0, err
	}
	return record, start, nil
}

func (r *MmapReader) Close() error {
	var err error
	if r.mapped != nil {
		if unmapErr := syscall.Munmap(r.mapped); unmapErr != nil {
			err = unmapErr
		}
		r.mapped = nil
		r.data = nil
	}
	if r.file != nil {
		if closeErr := r.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		r.file = nil
	}
	return err
}
