package file

import (
	"io"
	"os"
	"path/filepath"

	"segreader/internal/format"

	seekable "github.com/SaveTheRbtz/zstd-seekable-format-go/pkg"
	"github.com/klauspost/compress/zstd"
)

// seekableFrameSize is the uncompressed frame size for seekable zstd compression.
// Each frame is compressed independently, so a record read decompresses at
// most the frames it spans.
const seekableFrameSize = 256 << 10 // 256 KB

// zstdDec is shared by every compressed reader; zstd decoders are safe for
// concurrent DecodeAll calls.
var zstdDec *zstd.Decoder

func init() {
	var err error
	zstdDec, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		panic("zstd: init decoder: " + err.Error())
	}
}

// newEncoder returns an encoder for a single compression pass.
func newEncoder() (*zstd.Encoder, error) {
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
}

// compressFile streams a raw.log through seekable zstd compression and
// atomically replaces the original via temp-file-then-rename. The header is
// kept uncompressed with FlagCompressed OR'd in.
func compressFile(path string, enc *zstd.Encoder, mode os.FileMode) error {
	src, err := os.Open(filepath.Clean(path))
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	var hdr [format.HeaderSize]byte
	if _, err := io.ReadFull(src, hdr[:]); err != nil {
		return format.ErrHeaderTooSmall
	}
	h, err := format.DecodeAndValidate(hdr[:], format.TypeRawLog, rawLogVersion)
	if err != nil {
		return err
	}
	h.Flags |= format.FlagCompressed
	newHeader := h.Encode()

	tmp, err := os.CreateTemp(filepath.Dir(path), ".compress-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(newHeader[:]); err != nil {
		cleanup()
		return err
	}

	sw, err := seekable.NewWriter(tmp, enc)
	if err != nil {
		cleanup()
		return err
	}
	buf := make([]byte, seekableFrameSize)
	for {
		n, err := io.ReadFull(src, buf)
		if n > 0 {
			if _, werr := sw.Write(buf[:n]); werr != nil {
				cleanup()
				return werr
			}
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			cleanup()
			return err
		}
	}
	if err := sw.Close(); err != nil {
		cleanup()
		return err
	}

	if err := tmp.Chmod(mode); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, path)
}

// readHeader reads and validates a raw.log header.
func readHeader(path string) (format.Header, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return format.Header{}, err
	}
	defer func() { _ = f.Close() }()

	var hdr [format.HeaderSize]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		return format.Header{}, format.ErrHeaderTooSmall
	}
	return format.DecodeAndValidate(hdr[:], format.TypeRawLog, rawLogVersion)
}

// openSeekableReader opens a compressed raw.log as a record Reader. Only the
// data after the header is presented to the seekable reader so offset 0 maps
// to the first record.
func openSeekableReader(path string) (*Reader, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	section := io.NewSectionReader(f, int64(format.HeaderSize), info.Size()-int64(format.HeaderSize))
	r, err := seekable.NewReader(section, zstdDec)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return NewReader(r, closerFunc(func() error {
		rerr := r.Close()
		ferr := f.Close()
		if rerr != nil {
			return rerr
		}
		return ferr
	})), nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
