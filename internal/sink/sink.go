package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/devblac/event-listener/internal/event"
)

// Sink is an output target for records. Implementations must be safe for
// sequential use from a single goroutine; the dispatcher never calls one
// sink concurrently with itself.
type Sink interface {
	Name() string
	Send(ctx context.Context, rec event.Record) error
}

// StatusError reports a non-success HTTP response from a remote sink.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("sink http status %d", e.Code)
}

// Outcome is the result of delivering one record to one sink.
type Outcome struct {
	Sink    string
	Key     string
	Err     error
	Elapsed time.Duration
}

// OK reports whether the delivery succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Status is a short label for metrics and the journal.
func (o Outcome) Status() string {
	if o.Err == nil {
		return "ok"
	}
	var statusErr *StatusError
	if errors.As(o.Err, &statusErr) {
		return "rejected"
	}
	return "failed"
}
