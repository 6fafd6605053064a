package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/devblac/event-listener/internal/event"
	"github.com/devblac/event-listener/internal/metrics"
	"github.com/devblac/event-listener/internal/sink"
	"github.com/devblac/event-listener/internal/source/evm"
)

// State is the controller's position in its cycle.
type State int32

const (
	StateIdle State = iota
	StateQuerying
	StateDispatching
)

func (s State) String() string {
	switch s {
	case StateQuerying:
		return "querying"
	case StateDispatching:
		return "dispatching"
	default:
		return "idle"
	}
}

// Dispatcher delivers a batch of records and reports per-sink outcomes.
type Dispatcher interface {
	Dispatch(ctx context.Context, recs []event.Record) []sink.Outcome
}

// Journal is an optional audit trail of ranges and deliveries.
type Journal interface {
	RecordRange(ctx context.Context, from, to uint64, logs int, queryErr error) error
	RecordDeliveries(ctx context.Context, recs []event.Record, outcomes []sink.Outcome) error
}

// Options configures a Controller.
type Options struct {
	Meta     event.Meta
	Interval time.Duration
	// MaxRange caps the blocks per query; zero queries up to the head.
	MaxRange uint64
	// QueryTimeout bounds each Head and Query call; zero leaves them bounded only by ctx.
	QueryTimeout time.Duration
	// StopAt is the last block to query; nil runs forever.
	StopAt  *uint64
	Once    bool
	Decoder *evm.Decoder
	Journal Journal
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// TickResult describes one cycle. Err is set when the head or log query
// failed; the watermark is then unchanged and the range is retried.
type TickResult struct {
	Head     uint64
	Queried  bool
	From     uint64
	To       uint64
	Records  []event.Record
	Outcomes []sink.Outcome
	Err      error
}

// Controller drives the poll loop for one contract.
type Controller struct {
	src      evm.LogSource
	mark     *Watermark
	dispatch Dispatcher
	opts     Options
	log      *slog.Logger
	state    atomic.Int32
	nowFunc  func() time.Time
}

// NewController wires a log source, a watermark, and a dispatcher.
func NewController(src evm.LogSource, mark *Watermark, d Dispatcher, opts Options) *Controller {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Controller{
		src:      src,
		mark:     mark,
		dispatch: d,
		opts:     opts,
		log:      log,
		nowFunc:  time.Now,
	}
}

// State returns the current cycle state.
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Watermark returns the next block the controller will query.
func (c *Controller) Watermark() uint64 {
	return c.mark.Current()
}

// Done reports whether the stop block has been passed.
func (c *Controller) Done() bool {
	return c.opts.StopAt != nil && c.mark.Current() > *c.opts.StopAt
}

func (c *Controller) setState(s State) {
	c.state.Store(int32(s))
}

// Run ticks until ctx is cancelled, the stop block is passed, or after one
// tick when Once is set. It only returns an error when the watermark
// invariant is broken.
func (c *Controller) Run(ctx context.Context) error {
	for {
		res := c.Tick(ctx)
		if errors.Is(res.Err, ErrInvariantViolation) {
			return res.Err
		}
		if ctx.Err() != nil || c.opts.Once || c.Done() {
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.opts.Interval):
		}
	}
}

// Tick runs one cycle: read the head, query [watermark, head], normalize,
// dispatch, then advance the watermark past the range.
func (c *Controller) Tick(ctx context.Context) TickResult {
	c.setState(StateQuerying)
	defer c.setState(StateIdle)

	headCtx, cancel := c.queryContext(ctx)
	head, err := c.src.Head(headCtx)
	cancel()
	if err != nil {
		c.opts.Metrics.QueryError()
		c.log.Warn("head query failed, retrying next tick", "error", err)
		return TickResult{Err: fmt.Errorf("head: %w", err)}
	}
	c.opts.Metrics.ChainHead(head)

	res := TickResult{Head: head}
	from, to, ok := c.nextRange(head)
	if !ok {
		c.log.Debug("no new blocks", "head", head, "watermark", c.mark.Current())
		return res
	}

	f, err := evm.BuildFilter(c.opts.Meta.Contract, c.opts.Meta.EventSignature, from, to)
	if err != nil {
		res.Err = err
		return res
	}
	res.Queried, res.From, res.To = true, from, to

	queryCtx, cancel := c.queryContext(ctx)
	logs, err := c.src.Query(queryCtx, f)
	cancel()
	if err != nil {
		c.opts.Metrics.QueryError()
		c.journalRange(ctx, from, to, 0, err)
		c.log.Warn("log query failed, range will be retried", "from", from, "to", to, "error", err)
		res.Err = err
		return res
	}
	c.opts.Metrics.BlocksScanned(f.Blocks())
	c.opts.Metrics.LogsFound(len(logs))
	c.journalRange(ctx, from, to, len(logs), nil)
	if len(logs) == 0 {
		c.log.Info("listening", "head", head, "from", from, "to", to)
	}

	c.setState(StateDispatching)
	res.Records = c.normalize(logs)
	res.Outcomes = c.dispatch.Dispatch(ctx, res.Records)
	for _, o := range res.Outcomes {
		c.opts.Metrics.Delivery(o.Sink, o.Status())
	}
	if c.opts.Journal != nil && len(res.Records) > 0 {
		if err := c.opts.Journal.RecordDeliveries(ctx, res.Records, res.Outcomes); err != nil {
			c.log.Error("journal deliveries", "error", err)
		}
	}

	if err := c.mark.AdvanceTo(to + 1); err != nil {
		c.log.Error("watermark not advanced", "error", err)
		res.Err = err
		return res
	}
	c.opts.Metrics.Watermark(to + 1)
	c.log.Debug("range processed", "from", from, "to", to, "logs", len(logs))
	return res
}

func (c *Controller) queryContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.QueryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.opts.QueryTimeout)
}

// nextRange returns the inclusive range to query, or false when there is nothing new.
func (c *Controller) nextRange(head uint64) (from, to uint64, ok bool) {
	from = c.mark.Current()
	to = head
	if c.opts.StopAt != nil && to > *c.opts.StopAt {
		to = *c.opts.StopAt
	}
	if to < from {
		return 0, 0, false
	}
	if c.opts.MaxRange > 0 && to-from >= c.opts.MaxRange {
		to = from + c.opts.MaxRange - 1
	}
	return from, to, true
}

func (c *Controller) normalize(logs []evm.RawLog) []event.Record {
	now := c.nowFunc()
	recs := make([]event.Record, 0, len(logs))
	for _, raw := range logs {
		rec := event.Normalize(raw, c.opts.Meta, now)
		if c.opts.Decoder != nil {
			args, ok, err := c.opts.Decoder.Decode(raw)
			switch {
			case err != nil:
				c.log.Debug("decode args", "tx", rec.TransactionHash, "error", err)
			case ok:
				rec.Args = args
			}
		}
		recs = append(recs, rec)
	}
	return recs
}

func (c *Controller) journalRange(ctx context.Context, from, to uint64, logs int, queryErr error) {
	if c.opts.Journal == nil {
		return
	}
	if err := c.opts.Journal.RecordRange(ctx, from, to, logs, queryErr); err != nil {
		c.log.Error("journal range", "from", from, "to", to, "error", err)
	}
}

// ContractAddress parses a hex contract address, rejecting anything that is not 20 bytes.
func ContractAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid contract address: %s", s)
	}
	return common.HexToAddress(s), nil
}
