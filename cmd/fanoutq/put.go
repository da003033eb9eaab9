package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	flagPutTTL   time.Duration
	flagPutCount int
)

var putCmd = &cobra.Command{
	Use:   "put <payload>",
	Short: "Append a payload to the queue, fanning it out to every known reader",
	Args:  cobra.ExactArgs(1),
	RunE:  runPut,
}

func init() {
	putCmd.Flags().DurationVar(&flagPutTTL, "ttl", 0, "expiry relative to the put time (0 = never expires)")
	putCmd.Flags().IntVar(&flagPutCount, "count", 1, "number of times to put the payload, for flood testing")
}

func runPut(cmd *cobra.Command, args []string) error {
	q, err := openQueue()
	if err != nil {
		return err
	}
	defer q.Close()

	payload := []byte(args[0])
	for i := 0; i < flagPutCount; i++ {
		item, fut, err := q.Put(payload, flagPutTTL)
		if err != nil {
			return err
		}
		fut.Wait()
		fmt.Fprintf(cmd.OutOrStdout(), "put id=%d bytes=%d\n", item.ID, len(payload))
	}
	return nil
}
