package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/devblac/event-listener/internal/event"
	"github.com/devblac/event-listener/internal/sink"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "journal.db")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func record(block, index uint64, tx string) event.Record {
	return event.Record{
		Timestamp:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		ChainName:       "Ethereum Mainnet",
		BlockNumber:     block,
		TransactionHash: tx,
		LogIndex:        index,
		ContractAddress: "0xA0b86991c6218B36c1d19D4a2e9Eb0cE3606eB48",
		Topics:          []string{},
		Data:            "0x",
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestRunRangesAndLastRange(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	j, err := store.StartRun(ctx, "run-1", "Ethereum Mainnet", "0xabc", "Transfer(address,address,uint256)")
	if err != nil {
		t.Fatalf("start run: %v", err)
	}
	if err := j.RecordRange(ctx, 100, 105, 2, nil); err != nil {
		t.Fatalf("record range: %v", err)
	}
	if err := j.RecordRange(ctx, 106, 110, 0, errors.New("rate limited")); err != nil {
		t.Fatalf("record failed range: %v", err)
	}

	last, ok, err := store.LastRange(ctx, "")
	if err != nil || !ok {
		t.Fatalf("last range err=%v ok=%v", err, ok)
	}
	if last.From != 100 || last.To != 105 || last.Logs != 2 || last.RunID != "run-1" {
		t.Fatalf("unexpected last range: %+v", last)
	}

	failed, err := store.FailedRanges(ctx, "run-1")
	if err != nil || failed != 1 {
		t.Fatalf("failed ranges = %d err=%v", failed, err)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-1" || runs[0].Event == "" || runs[0].StartedAt.IsZero() {
		t.Fatalf("unexpected runs: %+v", runs)
	}
}

func TestLastRangeEmpty(t *testing.T) {
	store := newTestStore(t)
	if _, ok, err := store.LastRange(context.Background(), ""); err != nil || ok {
		t.Fatalf("expected no range, ok=%v err=%v", ok, err)
	}
}

func TestRecordDeliveries(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	j, err := store.StartRun(ctx, "run-1", "Ethereum Mainnet", "0xabc", "")
	if err != nil {
		t.Fatalf("start run: %v", err)
	}

	recs := []event.Record{record(104, 2, "0x02"), record(101, 0, "0x01")}
	outcomes := []sink.Outcome{
		{Sink: "console", Key: recs[0].Key()},
		{Sink: "console", Key: recs[1].Key()},
		{Sink: "webhook", Key: recs[0].Key(), Err: &sink.StatusError{Code: 500}},
		{Sink: "webhook", Key: recs[1].Key(), Err: errors.New("connection refused")},
	}
	if err := j.RecordDeliveries(ctx, recs, outcomes); err != nil {
		t.Fatalf("record deliveries: %v", err)
	}
	// Same events again are ignored, not duplicated.
	if err := j.RecordDeliveries(ctx, recs, outcomes[:2]); err != nil {
		t.Fatalf("record deliveries twice: %v", err)
	}

	events, err := store.ListEvents(ctx, EventQuery{})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].BlockNumber != 101 || events[1].BlockNumber != 104 {
		t.Fatalf("events not in chain order: %d, %d", events[0].BlockNumber, events[1].BlockNumber)
	}
	if events[1].LogIndex != 2 || events[1].TxHash != "0x02" || events[1].Payload == "" {
		t.Fatalf("unexpected event: %+v", events[1])
	}

	filtered, err := store.ListEvents(ctx, EventQuery{FromBlock: 102, Limit: 10})
	if err != nil || len(filtered) != 1 {
		t.Fatalf("filtered events = %d err=%v", len(filtered), err)
	}

	counts, err := store.DeliveryCounts(ctx)
	if err != nil {
		t.Fatalf("delivery counts: %v", err)
	}
	want := []DeliveryCount{
		{Sink: "console", Status: "ok", Count: 2},
		{Sink: "webhook", Status: "failed", Count: 1},
		{Sink: "webhook", Status: "rejected", Count: 1},
	}
	if len(counts) != len(want) {
		t.Fatalf("unexpected counts: %+v", counts)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Fatalf("count %d = %+v, want %+v", i, counts[i], want[i])
		}
	}
}

func TestRecordDeliveriesSkipsPending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	j, err := store.StartRun(ctx, "run-1", "Ethereum Mainnet", "0xabc", "")
	if err != nil {
		t.Fatalf("start run: %v", err)
	}

	zero := "0x0000000000000000000000000000000000000000000000000000000000000000"
	recs := []event.Record{record(0, 0, zero), record(0, 0, zero), record(101, 0, "0x01")}
	var outcomes []sink.Outcome
	for _, r := range recs {
		outcomes = append(outcomes, sink.Outcome{Sink: "console", Key: r.Key()})
	}
	if err := j.RecordDeliveries(ctx, recs, outcomes); err != nil {
		t.Fatalf("record deliveries: %v", err)
	}

	events, err := store.ListEvents(ctx, EventQuery{})
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].TxHash != "0x01" {
		t.Fatalf("expected only the positioned event, got %+v", events)
	}
	counts, err := store.DeliveryCounts(ctx)
	if err != nil {
		t.Fatalf("delivery counts: %v", err)
	}
	if len(counts) != 1 || counts[0].Count != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}

func TestStartRunValidates(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.StartRun(context.Background(), "", "Custom", "0xabc", ""); err == nil {
		t.Fatalf("expected missing id to fail")
	}
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Ping(ctx); err != nil {
		t.Fatalf("ping failed: %v", err)
	}

	store.Close()
	if err := store.Ping(ctx); err == nil {
		t.Fatalf("expected ping to fail after close")
	}
}
