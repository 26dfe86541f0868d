// Command segreader writes, inspects and reads sealed log chunks.
//
// Logging:
//   - Base logger is created once the config is loaded, with its output
//     format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
package main

import (
	"fmt"
	"os"

	"segreader/cmd/segreader/commands"
)

var version = "dev"

func main() {
	if err := commands.NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
