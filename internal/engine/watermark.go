package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrInvariantViolation is returned when the watermark would not move forward.
var ErrInvariantViolation = errors.New("watermark invariant violation")

// Watermark is the next block number not yet queried. Only the owning
// controller advances it; other goroutines may read it.
type Watermark struct {
	next atomic.Uint64
}

// NewWatermark starts the cursor at block start.
func NewWatermark(start uint64) *Watermark {
	w := &Watermark{}
	w.next.Store(start)
	return w
}

// HeadSource reports the chain head.
type HeadSource interface {
	Head(ctx context.Context) (uint64, error)
}

// StartWatermark uses start when given, otherwise the current chain head.
func StartWatermark(ctx context.Context, src HeadSource, start *uint64) (*Watermark, error) {
	if start != nil {
		return NewWatermark(*start), nil
	}
	head, err := src.Head(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve start block: %w", err)
	}
	return NewWatermark(head), nil
}

// Current returns the next block to include in a query.
func (w *Watermark) Current() uint64 {
	return w.next.Load()
}

// AdvanceTo moves the cursor to next, which must be greater than Current.
func (w *Watermark) AdvanceTo(next uint64) error {
	cur := w.next.Load()
	if next <= cur {
		return fmt.Errorf("%w: advance from %d to %d", ErrInvariantViolation, cur, next)
	}
	w.next.Store(next)
	return nil
}
