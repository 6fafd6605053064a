package evm

import (
	"context"
	"errors"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type fakeNode struct {
	head    uint64
	logs    []types.Log
	err     error
	lastQry ethereum.FilterQuery
}

func (f *fakeNode) BlockNumber(context.Context) (uint64, error) {
	return f.head, f.err
}

func (f *fakeNode) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.lastQry = q
	if f.err != nil {
		return nil, f.err
	}
	return f.logs, nil
}

func (f *fakeNode) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(137), f.err
}

func TestRPCSourceQueryConvertsLogs(t *testing.T) {
	addr := common.HexToAddress("0xA0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	node := &fakeNode{
		head: 42,
		logs: []types.Log{{
			Address:     addr,
			Topics:      []common.Hash{EventTopic(transferSig)},
			Data:        []byte{0x01},
			BlockNumber: 41,
			BlockHash:   common.HexToHash("0xb1"),
			TxHash:      common.HexToHash("0xabc"),
			Index:       3,
		}},
	}
	src := NewRPCSource(node)

	head, err := src.Head(context.Background())
	if err != nil || head != 42 {
		t.Fatalf("head = %d err=%v", head, err)
	}
	id, err := src.ChainID(context.Background())
	if err != nil || id != 137 {
		t.Fatalf("chain id = %d err=%v", id, err)
	}

	f, _ := BuildFilter(addr, transferSig, 40, 42)
	logs, err := src.Query(context.Background(), f)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}
	got := logs[0]
	if got.BlockNumber == nil || *got.BlockNumber != 41 || got.LogIndex == nil || *got.LogIndex != 3 {
		t.Fatalf("position not converted: %+v", got)
	}
	if got.TxHash == nil || *got.TxHash != common.HexToHash("0xabc") {
		t.Fatalf("tx hash not converted: %+v", got)
	}
	if node.lastQry.FromBlock.Uint64() != 40 || node.lastQry.ToBlock.Uint64() != 42 {
		t.Fatalf("query range not forwarded: %+v", node.lastQry)
	}
}

func TestRPCSourceWrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	src := NewRPCSource(&fakeNode{err: boom})

	if _, err := src.Head(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if _, err := src.Query(context.Background(), Filter{FromBlock: 1, ToBlock: 2}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestFromTypesLogPending(t *testing.T) {
	raw := FromTypesLog(types.Log{
		Address:     common.HexToAddress("0x01"),
		BlockNumber: 0,
		Index:       0,
	})
	if raw.BlockNumber != nil || raw.LogIndex != nil || raw.TxHash != nil {
		t.Fatalf("pending log should have missing position fields: %+v", raw)
	}
}
