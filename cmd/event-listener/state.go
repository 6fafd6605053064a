package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/devblac/event-listener/internal/config"
	"github.com/devblac/event-listener/internal/storage"
)

var (
	stateJournal string
	stateRun     string
)

func init() {
	stateCmd.Flags().StringVar(&stateJournal, "journal", "", "Journal file written by run --journal")
	stateCmd.Flags().StringVar(&stateRun, "run", "", "Limit the last range to one run id")
	exportCmd.Flags().StringVar(&exportJournal, "journal", "", "Journal file written by run --journal")
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Summarize a delivery journal: runs, last range, and delivery counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openJournal(stateJournal)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := cmd.Context()
		runs, err := store.ListRuns(ctx)
		if err != nil {
			return err
		}
		last, ok, err := store.LastRange(ctx, stateRun)
		if err != nil {
			return err
		}
		failed, err := store.FailedRanges(ctx, stateRun)
		if err != nil {
			return err
		}
		counts, err := store.DeliveryCounts(ctx)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tCHAIN\tCONTRACT\tEVENT\tSTARTED")
		for _, r := range runs {
			ev := r.Event
			if ev == "" {
				ev = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.ChainName, r.Contract, ev, r.StartedAt.Format(time.RFC3339))
		}
		fmt.Fprintln(w)

		if ok {
			fmt.Fprintf(w, "last range\t[%d, %d]\t%d logs\trun %s\n", last.From, last.To, last.Logs, last.RunID)
			fmt.Fprintf(w, "next block\t%d\t\t\n", last.To+1)
		} else {
			fmt.Fprintln(w, "last range\tnone")
		}
		fmt.Fprintf(w, "failed queries\t%d\n", failed)
		fmt.Fprintln(w)

		fmt.Fprintln(w, "SINK\tSTATUS\tCOUNT")
		for _, c := range counts {
			fmt.Fprintf(w, "%s\t%s\t%d\n", c.Sink, c.Status, c.Count)
		}
		return w.Flush()
	},
}

// openJournal opens the journal named by the flag or, failing that, by journal_path in --config.
func openJournal(path string) (*storage.Store, error) {
	if path == "" && cfgPath != "" {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		path = cfg.JournalPath
	}
	if path == "" {
		return nil, errors.New("no journal: pass --journal or set journal_path in --config")
	}
	store, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return store, nil
}
