package commands

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newPruneCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete the oldest chunks beyond the retention limits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			retention := a.cfg.Retention
			flags := cmd.Flags()
			if flags.Changed("max-age") {
				retention.MaxAge, _ = flags.GetDuration("max-age")
			}
			if flags.Changed("max-bytes") {
				retention.MaxBytes, _ = flags.GetString("max-bytes")
			}
			if flags.Changed("max-chunks") {
				retention.MaxChunks, _ = flags.GetInt("max-chunks")
			}
			policy, err := retention.Policy()
			if err != nil {
				return err
			}

			v, err := a.openVault(cmd.Context())
			if err != nil {
				return err
			}
			defer v.Close()

			pruned, err := v.Prune(policy, time.Now())
			for _, m := range pruned {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", m.ID, humanize.Bytes(uint64(m.Size)))
			}
			return err
		},
	}
	cmd.Flags().Duration("max-age", 0, "delete chunks whose last record is older than this")
	cmd.Flags().String("max-bytes", "", "keep the newest chunks that fit in this size, e.g. 512MB")
	cmd.Flags().Int("max-chunks", 0, "keep at most this many chunks")
	return cmd
}
