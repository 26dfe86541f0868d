package commands

import (
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the chunks in the chunk directory, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := a.openVault(cmd.Context())
			if err != nil {
				return err
			}
			defer v.Close()

			metas := v.List()
			var records uint64
			var size int64

			tbl := table.NewWriter()
			tbl.SetOutputMirror(cmd.OutOrStdout())
			tbl.SetStyle(table.StyleLight)
			tbl.Style().Format.Footer = text.FormatDefault
			tbl.AppendHeader(table.Row{"Chunk", "Start", "End", "Records", "Size", "Compressed"})
			for _, m := range metas {
				tbl.AppendRow(table.Row{
					m.ID.String(),
					formatTime(m.StartTS),
					formatTime(m.EndTS),
					humanize.Comma(int64(m.Records)),
					humanize.Bytes(uint64(m.Size)),
					strconv.FormatBool(m.Compressed),
				})
				records += m.Records
				size += m.Size
			}
			tbl.AppendFooter(table.Row{
				humanize.Comma(int64(len(metas))) + " chunks", "", "",
				humanize.Comma(int64(records)),
				humanize.Bytes(uint64(size)),
				"",
			})
			tbl.Render()
			return nil
		},
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
