package commands

import (
	"fmt"

	"segreader/internal/chunk/file"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newCompressCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compress [chunk-id...]",
		Short: "Rewrite chunks as seekable zstd (default: all)",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := a.cfg.Write.Mode()
			if err != nil {
				return err
			}

			var ids []string
			if len(args) > 0 {
				ids = args
			} else {
				found, err := file.List(a.cfg.Dir)
				if err != nil {
					return err
				}
				for _, id := range found {
					ids = append(ids, id.String())
				}
			}

			for _, arg := range ids {
				id, err := parseChunkID(arg)
				if err != nil {
					return err
				}
				before, err := file.ReadMeta(a.cfg.Dir, id)
				if err != nil {
					return err
				}
				after, err := file.Compress(a.cfg.Dir, id, mode)
				if err != nil {
					return err
				}
				a.logger.Info("chunk compressed", "chunk", arg, "before", before.Size, "after", after.Size)
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s -> %s\n", id, humanize.Bytes(uint64(before.Size)), humanize.Bytes(uint64(after.Size)))
			}
			return nil
		},
	}
}
