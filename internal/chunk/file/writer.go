package file

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"segreader/internal/chunk"
	"segreader/internal/format"
)

// DefaultFileMode is used when Options.FileMode is zero.
const DefaultFileMode = 0o644

type Compression int

const (
	CompressionNone Compression = iota
	CompressionZstd
)

// ParseCompression maps "none"/"" and "zstd" to a Compression.
func ParseCompression(v string) (Compression, error) {
	switch v {
	case "none", "":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return CompressionNone, fmt.Errorf("invalid compression %q (must be \"none\" or \"zstd\")", v)
	}
}

func (c Compression) String() string {
	if c == CompressionZstd {
		return "zstd"
	}
	return "none"
}

type Options struct {
	FileMode    os.FileMode
	Compression Compression
}

// Write persists records as a sealed chunk under dir/<id>/ and returns its
// meta. Records are stored in the given order.
func Write(dir string, id chunk.ChunkID, records []chunk.Record, opts Options) (chunk.ChunkMeta, error) {
	if opts.FileMode == 0 {
		opts.FileMode = DefaultFileMode
	}
	cdir := chunkDir(dir, id)
	if err := os.MkdirAll(cdir, 0o755); err != nil {
		return chunk.ChunkMeta{}, err
	}

	size, err := writeRawLog(filepath.Join(cdir, rawLogFileName), records, opts.FileMode)
	if err != nil {
		return chunk.ChunkMeta{}, fmt.Errorf("write chunk %s: %w", id, err)
	}

	meta := chunk.MetaFor(id, records)
	meta.Size = size
	if err := writeMeta(dir, meta, opts.FileMode); err != nil {
		return chunk.ChunkMeta{}, fmt.Errorf("write meta %s: %w", id, err)
	}

	if opts.Compression == CompressionZstd {
		return Compress(dir, id, opts.FileMode)
	}
	return meta, nil
}

// Compress rewrites a chunk's raw.log as seekable zstd. Compressing an
// already compressed chunk is a no-op.
func Compress(dir string, id chunk.ChunkID, mode os.FileMode) (chunk.ChunkMeta, error) {
	if mode == 0 {
		mode = DefaultFileMode
	}
	meta, err := ReadMeta(dir, id)
	if err != nil {
		return chunk.ChunkMeta{}, err
	}
	if meta.Compressed {
		return meta, nil
	}

	enc, err := newEncoder()
	if err != nil {
		return chunk.ChunkMeta{}, err
	}
	defer enc.Close()

	path := filepath.Join(chunkDir(dir, id), rawLogFileName)
	if err := compressFile(path, enc, mode); err != nil {
		return chunk.ChunkMeta{}, fmt.Errorf("compress chunk %s: %w", id, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return chunk.ChunkMeta{}, err
	}

	meta.Compressed = true
	meta.Size = info.Size()
	if err := writeMeta(dir, meta, mode); err != nil {
		return chunk.ChunkMeta{}, fmt.Errorf("write meta %s: %w", id, err)
	}
	return meta, nil
}

func writeRawLog(path string, records []chunk.Record, mode os.FileMode) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".raw-*")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	w := bufio.NewWriter(tmp)
	header := format.Header{Type: format.TypeRawLog, Version: rawLogVersion, Flags: format.FlagSealed}.Encode()
	if _, err := w.Write(header[:]); err != nil {
		cleanup()
		return 0, err
	}
	size := int64(format.HeaderSize)
	for _, rec := range records {
		buf, err := EncodeRecord(rec)
		if err != nil {
			cleanup()
			return 0, err
		}
		if _, err := w.Write(buf); err != nil {
			cleanup()
			return 0, err
		}
		size += int64(len(buf))
	}
	if err := w.Flush(); err != nil {
		cleanup()
		return 0, err
	}
	if err := tmp.Chmod(mode); err != nil {
		cleanup()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, err
	}
	return size, os.Rename(tmpPath, path)
}
