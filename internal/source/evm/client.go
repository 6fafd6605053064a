package evm

import (
	"context"
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// NodeClient captures the subset of ethclient used by RPCSource.
type NodeClient interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// RPCSource is a LogSource backed by a JSON-RPC node.
type RPCSource struct {
	client NodeClient
	closer func()
}

// Dial connects to an EVM node over http(s) or ws(s).
func Dial(rpcURL string) (*RPCSource, error) {
	c, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial evm rpc: %w", err)
	}
	return &RPCSource{client: c, closer: c.Close}, nil
}

// NewRPCSource wraps an existing client.
func NewRPCSource(client NodeClient) *RPCSource {
	return &RPCSource{client: client}
}

// Head returns the latest block number.
func (s *RPCSource) Head(ctx context.Context) (uint64, error) {
	n, err := s.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("block number: %w", err)
	}
	return n, nil
}

// Query runs eth_getLogs for the filter.
func (s *RPCSource) Query(ctx context.Context, f Filter) ([]RawLog, error) {
	logs, err := s.client.FilterLogs(ctx, f.Query())
	if err != nil {
		return nil, fmt.Errorf("filter logs [%d, %d]: %w", f.FromBlock, f.ToBlock, err)
	}
	out := make([]RawLog, 0, len(logs))
	for _, l := range logs {
		out = append(out, FromTypesLog(l))
	}
	return out, nil
}

// ChainID reports the chain id the node serves.
func (s *RPCSource) ChainID(ctx context.Context) (uint64, error) {
	id, err := s.client.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain id: %w", err)
	}
	return id.Uint64(), nil
}

// Close releases the underlying connection.
func (s *RPCSource) Close() {
	if s.closer != nil {
		s.closer()
	}
}
