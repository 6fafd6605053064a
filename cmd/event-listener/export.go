package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/devblac/event-listener/internal/storage"
)

var (
	exportJournal string
	exportFormat  string
	exportRun     string
	exportFrom    uint64
	exportLimit   int
)

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "Output format: json (one record per line) or csv")
	exportCmd.Flags().StringVar(&exportRun, "run", "", "Only events first seen by this run id")
	exportCmd.Flags().Uint64Var(&exportFrom, "from", 0, "Only events at or after this block")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "Maximum events to export (0 = all)")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export journaled events as JSON lines or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		format := strings.ToLower(exportFormat)
		if format != "json" && format != "csv" {
			return fmt.Errorf("unsupported export format %q (want json or csv)", exportFormat)
		}

		store, err := openJournal(exportJournal)
		if err != nil {
			return err
		}
		defer store.Close()

		events, err := store.ListEvents(cmd.Context(), storage.EventQuery{
			RunID:     exportRun,
			FromBlock: exportFrom,
			Limit:     exportLimit,
		})
		if err != nil {
			return err
		}

		if format == "csv" {
			return writeCSV(cmd.OutOrStdout(), events)
		}
		return writeJSONLines(cmd.OutOrStdout(), events)
	},
}

func writeJSONLines(w io.Writer, events []storage.StoredEvent) error {
	for _, e := range events {
		if _, err := io.WriteString(w, e.Payload+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func writeCSV(w io.Writer, events []storage.StoredEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"block_number", "log_index", "transaction_hash", "run_id", "journaled_at", "payload"}); err != nil {
		return err
	}
	for _, e := range events {
		row := []string{
			strconv.FormatUint(e.BlockNumber, 10),
			strconv.FormatUint(e.LogIndex, 10),
			e.TxHash,
			e.RunID,
			e.CreatedAt.Format(time.RFC3339),
			e.Payload,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
