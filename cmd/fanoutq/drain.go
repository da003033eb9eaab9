package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	flagDrainReader  string
	flagDrainCount   int
	flagDrainTimeout time.Duration
	flagDrainCommit  bool
)

var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Pull items off a reader, printing each as it arrives",
	RunE:  runDrain,
}

func init() {
	drainCmd.Flags().StringVar(&flagDrainReader, "reader", "", "reader name (empty selects the default reader)")
	drainCmd.Flags().IntVar(&flagDrainCount, "count", 1, "number of items to drain before exiting")
	drainCmd.Flags().DurationVar(&flagDrainTimeout, "timeout", 5*time.Second, "per-item wait before giving up")
	drainCmd.Flags().BoolVar(&flagDrainCommit, "commit", true, "commit each item immediately after delivery")
}

func runDrain(cmd *cobra.Command, args []string) error {
	q, err := openQueue()
	if err != nil {
		return err
	}
	defer q.Close()

	r, err := q.Reader(flagDrainReader)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i := 0; i < flagDrainCount; i++ {
		deadline := time.Now().Add(flagDrainTimeout)
		item, ok := r.Get(context.Background(), deadline)
		if !ok {
			fmt.Fprintf(out, "timed out waiting for item %d/%d\n", i+1, flagDrainCount)
			return nil
		}
		fmt.Fprintf(out, "id=%d bytes=%d payload=%q\n", item.ID, len(item.Payload), item.Payload)
		if flagDrainCommit {
			if err := r.Commit(item.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
