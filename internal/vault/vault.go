// Package vault opens a directory of sealed chunks as segment readers.
//
// The vault holds one reference on every chunk's segment core. Callers get
// their own readers through Acquire and close them when done; a core closes
// only after the vault has dropped it and every acquired reader is closed.
package vault

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"

	"segreader/internal/chunk"
	"segreader/internal/chunk/file"
	"segreader/internal/logging"
	"segreader/internal/segment"

	"golang.org/x/sync/errgroup"
)

var (
	ErrVaultClosed  = errors.New("vault is closed")
	ErrUnknownChunk = errors.New("chunk is not in the vault")
)

type Config struct {
	// Dir holds one subdirectory per chunk.
	Dir string

	// Concurrency limits how many chunks are opened at once.
	// Zero means GOMAXPROCS.
	Concurrency int

	// Logger for structured logging. If nil, logging is disabled.
	Logger *slog.Logger
}

type Vault struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	readers map[chunk.ChunkID]*segment.SegmentReader
	closed  bool
}

// Open opens every chunk found in cfg.Dir. If any chunk fails to open, the
// chunks opened so far are closed again and the first error is returned.
func Open(ctx context.Context, cfg Config) (*Vault, error) {
	logger := logging.Default(cfg.Logger).With("component", "vault", "dir", cfg.Dir)

	ids, err := file.List(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}

	limit := cfg.Concurrency
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	v := &Vault{
		dir:     cfg.Dir,
		logger:  logger,
		readers: make(map[chunk.ChunkID]*segment.SegmentReader, len(ids)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src, err := file.Open(cfg.Dir, id)
			if err != nil {
				return err
			}
			sr := segment.Open(src, cfg.Logger)
			v.mu.Lock()
			v.readers[id] = sr
			v.mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		_ = v.Close()
		return nil, fmt.Errorf("open vault %s: %w", cfg.Dir, err)
	}

	logger.Info("vault opened", "chunks", len(v.readers))
	return v, nil
}

// List returns the metadata of every chunk in the vault, oldest first.
func (v *Vault) List() []chunk.ChunkMeta {
	v.mu.Lock()
	metas := make([]chunk.ChunkMeta, 0, len(v.readers))
	for _, sr := range v.readers {
		metas = append(metas, sr.Meta())
	}
	v.mu.Unlock()

	slices.SortFunc(metas, func(a, b chunk.ChunkMeta) int {
		if c := a.StartTS.Compare(b.StartTS); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return metas
}

// Acquire returns a new reader over the chunk's core. The caller owns it
// and must close it.
func (v *Vault) Acquire(id chunk.ChunkID) (*segment.SegmentReader, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, ErrVaultClosed
	}
	sr, ok := v.readers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChunk, id)
	}
	return sr.WithDeletes()
}

// Drop releases the vault's reference on the chunk. The core closes once
// every acquired reader is closed too.
func (v *Vault) Drop(id chunk.ChunkID) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrVaultClosed
	}
	sr, ok := v.readers[id]
	delete(v.readers, id)
	v.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownChunk, id)
	}
	v.logger.Debug("chunk dropped", "chunk", id)
	return sr.Close()
}

// Close releases every reference the vault holds. Later calls are no-ops.
func (v *Vault) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	readers := v.readers
	v.readers = nil
	v.mu.Unlock()

	var errs []error
	for id, sr := range readers {
		if err := sr.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chunk %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
