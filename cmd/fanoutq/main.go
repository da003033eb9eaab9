// Command fanoutq is a flood-test harness for exercising a fanoutq queue
// directory from the shell: put payloads in, drain them back out through a
// named reader, and inspect durable/in-memory state. It is not part of the
// library's public surface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	flagDir            string
	flagQueue          string
	flagConfig         string
	flagMaxFileSize    int64
	flagAutoSync       bool
	flagSyncInterval   string
	flagCheckpointSecs int
)

func main() {
	root := &cobra.Command{
		Use:   "fanoutq",
		Short: "Flood-test harness for a fanoutq queue directory",
	}

	root.PersistentFlags().StringVar(&flagDir, "dir", "./fanoutq-data", "queue storage directory")
	root.PersistentFlags().StringVar(&flagQueue, "queue", "default", "queue name")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "optional YAML config file overriding defaults")
	root.PersistentFlags().Int64Var(&flagMaxFileSize, "max-file-size", 0, "writer-file rotation threshold in bytes (0 = library default)")
	root.PersistentFlags().BoolVar(&flagAutoSync, "auto-sync", false, "fsync after every put")
	root.PersistentFlags().StringVar(&flagSyncInterval, "sync-interval", "1s", "background sync interval when auto-sync is disabled")
	root.PersistentFlags().IntVar(&flagCheckpointSecs, "checkpoint-interval", 0, "background checkpoint interval in seconds (0 disables)")

	root.AddCommand(putCmd, drainCmd, statCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
