package sink

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/devblac/event-listener/internal/event"
)

type entry struct {
	sink    Sink
	enabled atomic.Bool
}

// Dispatcher fans records out to sinks. Each sink gets its own goroutine and
// sees the batch in order; a slow or failing sink does not hold up the others.
type Dispatcher struct {
	entries []*entry
	timeout time.Duration
	log     *slog.Logger
}

// NewDispatcher builds a dispatcher. timeout bounds every single delivery; zero disables the bound.
func NewDispatcher(log *slog.Logger, timeout time.Duration, sinks ...Sink) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	d := &Dispatcher{timeout: timeout, log: log}
	for _, s := range sinks {
		if s == nil {
			continue
		}
		e := &entry{sink: s}
		e.enabled.Store(true)
		d.entries = append(d.entries, e)
	}
	return d
}

// SetEnabled toggles a sink by name. It reports whether the sink exists.
func (d *Dispatcher) SetEnabled(name string, enabled bool) bool {
	found := false
	for _, e := range d.entries {
		if e.sink.Name() == name {
			e.enabled.Store(enabled)
			found = true
		}
	}
	return found
}

// Enabled lists the names of the sinks that will receive records.
func (d *Dispatcher) Enabled() []string {
	var names []string
	for _, e := range d.entries {
		if e.enabled.Load() {
			names = append(names, e.sink.Name())
		}
	}
	return names
}

// Dispatch delivers every record to every enabled sink and waits for all of
// them. Failures are logged and returned as outcomes, grouped by sink in
// registration order.
func (d *Dispatcher) Dispatch(ctx context.Context, recs []event.Record) []Outcome {
	if len(recs) == 0 {
		return nil
	}

	active := make([]*entry, 0, len(d.entries))
	for _, e := range d.entries {
		if e.enabled.Load() {
			active = append(active, e)
		}
	}

	results := make([][]Outcome, len(active))
	var g errgroup.Group
	for i, e := range active {
		i, e := i, e
		g.Go(func() error {
			results[i] = d.deliverAll(ctx, e.sink, recs)
			return ctx.Err()
		})
	}
	// Every sink still reports an outcome per record; Wait only surfaces cancellation.
	if err := g.Wait(); err != nil {
		d.log.Warn("dispatch interrupted", "records", len(recs), "error", err)
	}

	var out []Outcome
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

func (d *Dispatcher) deliverAll(ctx context.Context, s Sink, recs []event.Record) []Outcome {
	out := make([]Outcome, 0, len(recs))
	for _, rec := range recs {
		out = append(out, d.deliver(ctx, s, rec))
	}
	return out
}

func (d *Dispatcher) deliver(ctx context.Context, s Sink, rec event.Record) Outcome {
	sendCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	start := time.Now()
	err := s.Send(sendCtx, rec)
	o := Outcome{Sink: s.Name(), Key: rec.Key(), Err: err, Elapsed: time.Since(start)}

	var statusErr *StatusError
	switch {
	case err == nil:
	case errors.As(err, &statusErr):
		d.log.Warn("sink returned non-success status", "sink", o.Sink, "status", statusErr.Code, "block", rec.BlockNumber, "tx", rec.TransactionHash)
	default:
		d.log.Error("sink delivery failed", "sink", o.Sink, "block", rec.BlockNumber, "tx", rec.TransactionHash, "error", err)
	}
	return o
}
