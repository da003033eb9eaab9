package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statCmd = &cobra.Command{
	Use:   "stat",
	Short: "Show journal and per-reader statistics",
	RunE:  runStat,
}

func runStat(cmd *cobra.Command, args []string) error {
	q, err := openQueue()
	if err != nil {
		return err
	}
	defer q.Close()

	stats := q.Stats()
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Queue %q in %s\n", flagQueue, flagDir)
	fmt.Fprintf(out, "Journal bytes: %d\n\n", stats.JournalBytes)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "READER\tHEAD\tDONE-SET\tQUEUE-SIZE\tOPEN-READS")
	for _, rs := range stats.Readers {
		name := rs.Name
		if name == "" {
			name = "(default)"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", name, rs.Head, rs.DoneSetSize, rs.QueueSize, rs.OpenReadCount)
	}
	return w.Flush()
}
