package evm

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrInvalidRange is returned when a filter is built with from > to.
var ErrInvalidRange = errors.New("invalid block range")

// LogSource is the node-facing boundary of the listener.
type LogSource interface {
	// Head returns the current chain head block number.
	Head(ctx context.Context) (uint64, error)
	// Query returns the logs matching f, ordered by (block, log index).
	Query(ctx context.Context, f Filter) ([]RawLog, error)
}

// RawLog is a log entry as reported by the node. Pending logs may lack a
// block number, log index, or transaction hash; those are nil here.
type RawLog struct {
	Address     common.Address
	Topics      []common.Hash
	Data        []byte
	BlockNumber *uint64
	TxHash      *common.Hash
	LogIndex    *uint64
	Removed     bool
}

// FromTypesLog converts a go-ethereum log. A zero block hash marks a pending
// log whose position fields are not yet assigned.
func FromTypesLog(l types.Log) RawLog {
	raw := RawLog{
		Address: l.Address,
		Topics:  l.Topics,
		Data:    l.Data,
		Removed: l.Removed,
	}
	if l.TxHash != (common.Hash{}) {
		h := l.TxHash
		raw.TxHash = &h
	}
	if l.BlockHash != (common.Hash{}) {
		n, idx := l.BlockNumber, uint64(l.Index)
		raw.BlockNumber = &n
		raw.LogIndex = &idx
	}
	return raw
}
