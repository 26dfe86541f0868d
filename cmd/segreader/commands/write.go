package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"segreader/internal/chunk"
	"segreader/internal/chunk/file"

	"github.com/spf13/cobra"
)

const maxLineSize = 1 << 20

func newWriteCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "write [file]",
		Short: "Seal the lines of a file (or stdin) as a new chunk",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")
			in := cmd.InOrStdin()
			if len(args) == 1 {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
				if !cmd.Flags().Changed("source") {
					source = filepath.Base(args[0])
				}
			}

			opts, err := a.cfg.Write.Options()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("compression") {
				name, _ := cmd.Flags().GetString("compression")
				if opts.Compression, err = file.ParseCompression(name); err != nil {
					return err
				}
			}

			write := a.cfg.Write
			if cmd.Flags().Changed("max-records") {
				write.MaxRecords, _ = cmd.Flags().GetUint64("max-records")
			}
			if cmd.Flags().Changed("max-bytes") {
				write.MaxBytes, _ = cmd.Flags().GetString("max-bytes")
			}
			rotation, err := write.Rotation()
			if err != nil {
				return err
			}

			records, err := readLines(in, source, time.Now())
			if err != nil {
				return err
			}
			metas, err := file.WriteRotated(a.cfg.Dir, records, rotation, opts)
			for _, meta := range metas {
				a.logger.Info("chunk written", "chunk", meta.ID.String(), "records", meta.Records, "compression", opts.Compression)
				fmt.Fprintln(cmd.OutOrStdout(), meta.ID)
			}
			return err
		},
	}
	cmd.Flags().String("source", "stdin", "source name stored with every record")
	cmd.Flags().String("compression", "", "none or zstd (overrides config)")
	cmd.Flags().Uint64("max-records", 0, "start a new chunk after this many records (overrides config)")
	cmd.Flags().String("max-bytes", "", "start a new chunk before this encoded size, e.g. 64MB (overrides config)")
	return cmd
}

// readLines turns each input line into a record. Write timestamps advance by
// a microsecond per line so they stay strictly ordered at the stored
// precision.
func readLines(r io.Reader, source string, now time.Time) ([]chunk.Record, error) {
	var records []chunk.Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		ts := now.Add(time.Duration(len(records)) * time.Microsecond)
		records = append(records, chunk.Record{
			IngestTS: now,
			WriteTS:  ts,
			Source:   source,
			Raw:      []byte(sc.Text()),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return records, nil
}
