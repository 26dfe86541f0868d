package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"segreader/internal/chunk"
	"segreader/internal/segment"
)

// Policy picks the chunks to prune. metas are sorted oldest first. Policies
// do no IO.
type Policy interface {
	Select(metas []chunk.ChunkMeta, now time.Time) []chunk.ChunkID
}

type PolicyFunc func(metas []chunk.ChunkMeta, now time.Time) []chunk.ChunkID

func (f PolicyFunc) Select(metas []chunk.ChunkMeta, now time.Time) []chunk.ChunkID {
	return f(metas, now)
}

// Union prunes a chunk if any of the policies selects it.
func Union(policies ...Policy) Policy {
	return PolicyFunc(func(metas []chunk.ChunkMeta, now time.Time) []chunk.ChunkID {
		seen := make(map[chunk.ChunkID]bool)
		var ids []chunk.ChunkID
		for _, p := range policies {
			for _, id := range p.Select(metas, now) {
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}
		}
		return ids
	})
}

// MaxAge selects chunks whose last record is older than d. Zero disables it.
func MaxAge(d time.Duration) Policy {
	return PolicyFunc(func(metas []chunk.ChunkMeta, now time.Time) []chunk.ChunkID {
		if d <= 0 {
			return nil
		}
		cutoff := now.Add(-d)
		var ids []chunk.ChunkID
		for _, m := range metas {
			if m.EndTS.Before(cutoff) {
				ids = append(ids, m.ID)
			}
		}
		return ids
	})
}

// MaxBytes keeps the newest chunks whose sizes add up to at most n bytes.
// Zero disables it.
func MaxBytes(n int64) Policy {
	return PolicyFunc(func(metas []chunk.ChunkMeta, _ time.Time) []chunk.ChunkID {
		if n <= 0 {
			return nil
		}
		var total int64
		i := len(metas)
		for i > 0 && total+metas[i-1].Size <= n {
			i--
			total += metas[i].Size
		}
		ids := make([]chunk.ChunkID, i)
		for j := range i {
			ids[j] = metas[j].ID
		}
		return ids
	})
}

// MaxChunks keeps the newest n chunks. Zero disables it.
func MaxChunks(n int) Policy {
	return PolicyFunc(func(metas []chunk.ChunkMeta, _ time.Time) []chunk.ChunkID {
		if n <= 0 || len(metas) <= n {
			return nil
		}
		ids := make([]chunk.ChunkID, len(metas)-n)
		for i := range ids {
			ids[i] = metas[i].ID
		}
		return ids
	})
}

// Prune drops the chunks selected by p and deletes their directories once
// their segment cores close, so readers acquired earlier keep working until
// they are closed. It returns the metadata of the pruned chunks.
func (v *Vault) Prune(p Policy, now time.Time) ([]chunk.ChunkMeta, error) {
	metas := v.List()
	byID := make(map[chunk.ChunkID]chunk.ChunkMeta, len(metas))
	for _, m := range metas {
		byID[m.ID] = m
	}

	var pruned []chunk.ChunkMeta
	for _, id := range p.Select(metas, now) {
		sr, err := v.Acquire(id)
		if err != nil {
			return pruned, err
		}
		segment.RegisterCoreListener(sr, v.removeChunkDir)
		if err := v.Drop(id); err != nil {
			_ = sr.Close()
			return pruned, err
		}
		if err := sr.Close(); err != nil {
			return pruned, fmt.Errorf("close chunk %s: %w", id, err)
		}
		pruned = append(pruned, byID[id])
	}
	if len(pruned) > 0 {
		v.logger.Info("chunks pruned", "count", len(pruned))
	}
	return pruned, nil
}

func (v *Vault) removeChunkDir(key segment.CoreKey) {
	dir := filepath.Join(v.dir, key.Chunk.String())
	if err := os.RemoveAll(dir); err != nil {
		v.logger.Warn("remove pruned chunk", "chunk", key.Chunk.String(), "error", err)
		return
	}
	v.logger.Debug("pruned chunk removed", "chunk", key.Chunk.String())
}
