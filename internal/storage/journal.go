package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/devblac/event-listener/internal/event"
	"github.com/devblac/event-listener/internal/sink"
)

// Run identifies one listener process in the journal.
type Run struct {
	ID        string
	ChainName string
	Contract  string
	Event     string
	StartedAt time.Time
}

// RunJournal records ranges and deliveries for a single run.
type RunJournal struct {
	store *Store
	run   Run
}

// StartRun inserts a run row and returns a journal bound to it.
func (s *Store) StartRun(ctx context.Context, id, chainName, contract, eventSig string) (*RunJournal, error) {
	if id == "" || contract == "" {
		return nil, errors.New("run id and contract are required")
	}
	started := s.stamp()
	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (id, chain_name, contract, event, started_at)
VALUES (?, ?, ?, ?, ?);
`, id, chainName, contract, nullString(eventSig), started)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return &RunJournal{store: s, run: Run{
		ID:        id,
		ChainName: chainName,
		Contract:  contract,
		Event:     eventSig,
		StartedAt: parseStamp(started),
	}}, nil
}

// Run returns the run this journal writes to.
func (j *RunJournal) Run() Run { return j.run }

// RecordRange stores one issued query range with its log count or failure.
func (j *RunJournal) RecordRange(ctx context.Context, from, to uint64, logs int, queryErr error) error {
	var errText string
	if queryErr != nil {
		errText = queryErr.Error()
	}
	_, err := j.store.db.ExecContext(ctx, `
INSERT INTO ranges (run_id, from_block, to_block, log_count, error, created_at)
VALUES (?, ?, ?, ?, ?, ?);
`, j.run.ID, from, to, logs, nullString(errText), j.store.stamp())
	if err != nil {
		return fmt.Errorf("insert range: %w", err)
	}
	return nil
}

// RecordDeliveries stores the records and each sink outcome in one transaction.
// An event already journaled keeps its first row; its send rows are replaced.
// Pending records have no unique key and are left out along with their sends.
func (j *RunJournal) RecordDeliveries(ctx context.Context, recs []event.Record, outcomes []sink.Outcome) error {
	now := j.store.stamp()
	return j.store.WithTx(ctx, func(tx *sql.Tx) error {
		journaled := make(map[string]bool, len(recs))
		for _, rec := range recs {
			if !rec.Positioned() {
				continue
			}
			journaled[rec.Key()] = true
			payload, err := rec.MarshalLine()
			if err != nil {
				return fmt.Errorf("encode record: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
INSERT OR IGNORE INTO events (id, run_id, block_number, tx_hash, log_index, payload_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, rec.Key(), j.run.ID, rec.BlockNumber, rec.TransactionHash, rec.LogIndex, string(payload), now)
			if err != nil {
				return fmt.Errorf("insert event: %w", err)
			}
		}
		for _, o := range outcomes {
			if !journaled[o.Key] {
				continue
			}
			var errText string
			if o.Err != nil {
				errText = o.Err.Error()
			}
			_, err := tx.ExecContext(ctx, `
INSERT INTO sends (event_id, sink, status, error, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(event_id, sink) DO UPDATE SET
  status=excluded.status,
  error=excluded.error,
  created_at=excluded.created_at;
`, o.Key, o.Sink, o.Status(), nullString(errText), now)
			if err != nil {
				return fmt.Errorf("insert send: %w", err)
			}
		}
		return nil
	})
}

// ListRuns returns every run, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, chain_name, contract, COALESCE(event, ''), started_at
FROM runs ORDER BY started_at DESC, rowid DESC;
`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var started string
		if err := rows.Scan(&r.ID, &r.ChainName, &r.Contract, &r.Event, &started); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = parseStamp(started)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Range is one journaled query range.
type Range struct {
	RunID     string
	From      uint64
	To        uint64
	Logs      int
	Error     string
	CreatedAt time.Time
}

// LastRange returns the most recent successful range of runID, or of any run when runID is empty.
func (s *Store) LastRange(ctx context.Context, runID string) (Range, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT run_id, from_block, to_block, log_count, COALESCE(error, ''), created_at
FROM ranges
WHERE error IS NULL AND (? = '' OR run_id = ?)
ORDER BY id DESC LIMIT 1;
`, runID, runID)

	var r Range
	var created string
	switch err := row.Scan(&r.RunID, &r.From, &r.To, &r.Logs, &r.Error, &created); {
	case err == nil:
		r.CreatedAt = parseStamp(created)
		return r, true, nil
	case errors.Is(err, sql.ErrNoRows):
		return Range{}, false, nil
	default:
		return Range{}, false, fmt.Errorf("last range: %w", err)
	}
}

// FailedRanges counts ranges whose query failed.
func (s *Store) FailedRanges(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM ranges WHERE error IS NOT NULL AND (? = '' OR run_id = ?);
`, runID, runID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count failed ranges: %w", err)
	}
	return n, nil
}

// DeliveryCount aggregates sends per sink and status.
type DeliveryCount struct {
	Sink   string
	Status string
	Count  int
}

// DeliveryCounts groups journaled sends by sink and status.
func (s *Store) DeliveryCounts(ctx context.Context) ([]DeliveryCount, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT sink, status, COUNT(*) FROM sends GROUP BY sink, status ORDER BY sink, status;
`)
	if err != nil {
		return nil, fmt.Errorf("delivery counts: %w", err)
	}
	defer rows.Close()

	var out []DeliveryCount
	for rows.Next() {
		var c DeliveryCount
		if err := rows.Scan(&c.Sink, &c.Status, &c.Count); err != nil {
			return nil, fmt.Errorf("scan delivery count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// StoredEvent is a journaled record with its raw JSON payload.
type StoredEvent struct {
	ID          string
	RunID       string
	BlockNumber uint64
	TxHash      string
	LogIndex    uint64
	Payload     string
	CreatedAt   time.Time
}

// EventQuery narrows ListEvents. Zero values match everything.
type EventQuery struct {
	RunID     string
	FromBlock uint64
	Limit     int
}

// ListEvents returns journaled events in chain order.
func (s *Store) ListEvents(ctx context.Context, q EventQuery) ([]StoredEvent, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, run_id, block_number, tx_hash, log_index, payload_json, created_at
FROM events
WHERE (? = '' OR run_id = ?) AND block_number >= ?
ORDER BY block_number, log_index
LIMIT ?;
`, q.RunID, q.RunID, q.FromBlock, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var e StoredEvent
		var created string
		if err := rows.Scan(&e.ID, &e.RunID, &e.BlockNumber, &e.TxHash, &e.LogIndex, &e.Payload, &created); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.CreatedAt = parseStamp(created)
		out = append(out, e)
	}
	return out, rows.Err()
}
