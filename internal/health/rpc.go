package health

import (
	"context"
	"fmt"
	"sync/atomic"
)

// HeadSource reports the chain head.
type HeadSource interface {
	Head(ctx context.Context) (uint64, error)
}

// RPCChecker checks the listener's RPC endpoint by asking for the head block.
type RPCChecker struct {
	src  HeadSource
	last atomic.Uint64
}

// NewRPCChecker creates a checker for the given endpoint.
func NewRPCChecker(src HeadSource) *RPCChecker {
	return &RPCChecker{src: src}
}

// Ping fetches the head and remembers it for LastHead.
func (c *RPCChecker) Ping(ctx context.Context) error {
	head, err := c.src.Head(ctx)
	if err != nil {
		return fmt.Errorf("rpc head: %w", err)
	}
	c.last.Store(head)
	return nil
}

// LastHead is the head seen by the most recent successful Ping, or 0.
func (c *RPCChecker) LastHead() uint64 {
	return c.last.Load()
}
