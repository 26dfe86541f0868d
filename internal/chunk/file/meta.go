package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"segreader/internal/chunk"

	"github.com/vmihailenco/msgpack/v5"
)

const (
	metaFileName   = "meta.msgpack"
	rawLogFileName = "raw.log"

	metaVersion   = 1
	rawLogVersion = 0x01
)

var (
	ErrMetaVersionMismatch = errors.New("meta version mismatch")
	ErrMetaIDMismatch      = errors.New("meta id does not match chunk directory")
)

// metaFile is the on-disk form of chunk.ChunkMeta.
type metaFile struct {
	Version    int       `msgpack:"v"`
	ID         string    `msgpack:"id"`
	StartTS    time.Time `msgpack:"start"`
	EndTS      time.Time `msgpack:"end"`
	Records    uint64    `msgpack:"records"`
	Size       int64     `msgpack:"size"`
	Compressed bool      `msgpack:"compressed"`
}

func chunkDir(dir string, id chunk.ChunkID) string {
	return filepath.Join(dir, id.String())
}

// ReadMeta loads the meta sidecar for a chunk.
func ReadMeta(dir string, id chunk.ChunkID) (chunk.ChunkMeta, error) {
	data, err := os.ReadFile(filepath.Join(chunkDir(dir, id), metaFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return chunk.ChunkMeta{}, fmt.Errorf("%w: %s", chunk.ErrChunkNotFound, id)
		}
		return chunk.ChunkMeta{}, err
	}

	var mf metaFile
	if err := msgpack.Unmarshal(data, &mf); err != nil {
		return chunk.ChunkMeta{}, fmt.Errorf("decode meta %s: %w", id, err)
	}
	if mf.Version != metaVersion {
		return chunk.ChunkMeta{}, ErrMetaVersionMismatch
	}
	parsed, err := chunk.ParseChunkID(mf.ID)
	if err != nil {
		return chunk.ChunkMeta{}, fmt.Errorf("decode meta %s: %w", id, err)
	}
	if parsed != id {
		return chunk.ChunkMeta{}, fmt.Errorf("%w: %s holds %s", ErrMetaIDMismatch, id, parsed)
	}
	return chunk.ChunkMeta{
		ID:         parsed,
		StartTS:    mf.StartTS,
		EndTS:      mf.EndTS,
		Records:    mf.Records,
		Size:       mf.Size,
		Sealed:     true,
		Compressed: mf.Compressed,
	}, nil
}

// writeMeta replaces the meta sidecar atomically.
func writeMeta(dir string, meta chunk.ChunkMeta, mode os.FileMode) error {
	data, err := msgpack.Marshal(metaFile{
		Version:    metaVersion,
		ID:         meta.ID.String(),
		StartTS:    meta.StartTS,
		EndTS:      meta.EndTS,
		Records:    meta.Records,
		Size:       meta.Size,
		Compressed: meta.Compressed,
	})
	if err != nil {
		return err
	}

	cdir := chunkDir(dir, meta.ID)
	tmpFile, err := os.CreateTemp(cdir, "meta-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()
	if err := tmpFile.Chmod(mode); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, filepath.Join(cdir, metaFileName))
}

// List returns the IDs of every chunk directory under dir that carries a
// meta sidecar. Unrelated entries are ignored.
func List(dir string) ([]chunk.ChunkID, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var ids []chunk.ChunkID
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id, err := chunk.ParseChunkID(entry.Name())
		if err != nil {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, entry.Name(), metaFileName)); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
