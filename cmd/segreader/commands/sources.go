package commands

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"segreader/internal/segment"
	"segreader/internal/segment/cache"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// sourceCounts counts the visible records per source of one segment.
func sourceCounts(sr *segment.SegmentReader) (map[string]uint64, error) {
	counts := make(map[string]uint64)
	for pos := range sr.MaxPos() {
		if !sr.Visible(pos) {
			continue
		}
		rec, err := sr.Record(pos)
		if err != nil {
			return nil, err
		}
		counts[rec.Source]++
	}
	return counts, nil
}

func newSourcesCommand(a *app) *cobra.Command {
	var stats bool

	cmd := &cobra.Command{
		Use:   "sources [chunk-id...]",
		Short: "Count records per source (default: all chunks)",
		Long: `Count records per source (default: all chunks).

Counts are cached per chunk for the duration of one invocation, so a chunk
named more than once is only scanned once. --stats prints the cache counters
of this invocation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := prometheus.NewRegistry()
			counts, err := cache.New[map[string]uint64](cache.Config{
				Name:            "sources",
				TTL:             a.cfg.Cache.TTL,
				CleanupInterval: a.cfg.Cache.CleanupInterval,
				Registerer:      reg,
				Logger:          a.logger,
			})
			if err != nil {
				return err
			}

			v, err := a.openVault(cmd.Context())
			if err != nil {
				return err
			}
			defer v.Close()

			ids, err := chunkArgs(v, args)
			if err != nil {
				return err
			}

			totals := make(map[string]uint64)
			for _, id := range ids {
				sr, err := v.Acquire(id)
				if err != nil {
					return err
				}
				perChunk, err := counts.Get(sr, "sources", sourceCounts)
				_ = sr.Close()
				if err != nil {
					return fmt.Errorf("chunk %s: %w", id, err)
				}
				for src, n := range perChunk {
					totals[src] += n
				}
			}

			names := slices.SortedFunc(maps.Keys(totals), func(x, y string) int {
				if c := cmp.Compare(totals[y], totals[x]); c != 0 {
					return c
				}
				return cmp.Compare(x, y)
			})

			tbl := table.NewWriter()
			tbl.SetOutputMirror(cmd.OutOrStdout())
			tbl.SetStyle(table.StyleLight)
			tbl.AppendHeader(table.Row{"Source", "Records"})
			for _, name := range names {
				tbl.AppendRow(table.Row{name, humanize.Comma(int64(totals[name]))})
			}
			tbl.Render()

			if stats {
				return printCacheStats(cmd, reg)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&stats, "stats", false, "print this invocation's cache counters after the table")
	return cmd
}

func printCacheStats(cmd *cobra.Command, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	tbl := table.NewWriter()
	tbl.SetOutputMirror(cmd.OutOrStdout())
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Metric", "Value"})
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			tbl.AppendRow(table.Row{mf.GetName(), m.GetCounter().GetValue()})
		}
	}
	tbl.Render()
	return nil
}
