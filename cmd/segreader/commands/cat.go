package commands

import (
	"errors"
	"fmt"
	"io"
	"time"

	"segreader/internal/chunk"
	"segreader/internal/segment"
	"segreader/internal/vault"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// filterFlags selects the decorators stacked on top of a chunk's reader.
type filterFlags struct {
	sources []string
	since   string
	until   string
	grep    string
}

func (f *filterFlags) register(fs *pflag.FlagSet) {
	fs.StringSliceVar(&f.sources, "source", nil, "only records from these sources")
	fs.StringVar(&f.since, "since", "", "only records written at or after this RFC 3339 time")
	fs.StringVar(&f.until, "until", "", "only records written before this RFC 3339 time")
	fs.StringVar(&f.grep, "grep", "", "only records containing this substring")
}

// apply wraps r in one decorator per active filter.
func (f *filterFlags) apply(r segment.Reader) (segment.Reader, error) {
	if len(f.sources) > 0 {
		r = segment.NewSourceFilter(r, f.sources...)
	}
	if f.since != "" || f.until != "" {
		start, err := parseTime(f.since)
		if err != nil {
			return nil, fmt.Errorf("--since: %w", err)
		}
		end, err := parseTime(f.until)
		if err != nil {
			return nil, fmt.Errorf("--until: %w", err)
		}
		r = segment.NewTimeRangeFilter(r, start, end)
	}
	if f.grep != "" {
		r = segment.NewMatchFilter(r, f.grep)
	}
	return r, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func newCatCommand(a *app) *cobra.Command {
	var filters filterFlags
	var reverse bool

	cmd := &cobra.Command{
		Use:   "cat [chunk-id...]",
		Short: "Print the records of the given chunks (default: all, oldest first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.openVault(cmd.Context())
			if err != nil {
				return err
			}
			defer v.Close()

			ids, err := chunkArgs(v, args)
			if err != nil {
				return err
			}
			if reverse {
				for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
					ids[i], ids[j] = ids[j], ids[i]
				}
			}
			for _, id := range ids {
				if err := a.catChunk(cmd.OutOrStdout(), v, id, &filters, reverse); err != nil {
					return err
				}
			}
			return nil
		},
	}
	filters.register(cmd.Flags())
	cmd.Flags().BoolVar(&reverse, "reverse", false, "newest records first")
	return cmd
}

func (a *app) catChunk(w io.Writer, v *vault.Vault, id chunk.ChunkID, filters *filterFlags, reverse bool) error {
	sr, err := v.Acquire(id)
	if err != nil {
		return err
	}
	defer sr.Close()

	view, err := filters.apply(sr)
	if err != nil {
		return err
	}
	if base, err := segment.SegmentOf(view); err == nil && base != nil {
		a.logger.Debug("reading chunk", "view", view, "core", base.CoreKey())
	}

	cur := segment.OpenCursor(view)
	defer cur.Close()
	next := cur.Next
	if reverse {
		next = cur.Prev
	}
	for {
		rec, _, err := next()
		if errors.Is(err, chunk.ErrNoMoreRecords) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read chunk %s: %w", id, err)
		}
		if _, err := fmt.Fprintf(w, "%s %s %s\n", rec.WriteTS.UTC().Format(time.RFC3339Nano), rec.Source, rec.Raw); err != nil {
			return err
		}
	}
}

// chunkArgs parses the given chunk IDs, or returns every chunk in the vault
// when none are given.
func chunkArgs(v *vault.Vault, args []string) ([]chunk.ChunkID, error) {
	if len(args) == 0 {
		metas := v.List()
		ids := make([]chunk.ChunkID, len(metas))
		for i, m := range metas {
			ids[i] = m.ID
		}
		return ids, nil
	}
	ids := make([]chunk.ChunkID, len(args))
	for i, arg := range args {
		id, err := parseChunkID(arg)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

func parseChunkID(arg string) (chunk.ChunkID, error) {
	id, err := chunk.ParseChunkID(arg)
	if err != nil {
		return chunk.ChunkID{}, fmt.Errorf("chunk id %q: %w", arg, err)
	}
	return id, nil
}
