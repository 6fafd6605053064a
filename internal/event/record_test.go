package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devblac/event-listener/internal/source/evm"
)

const transferSig = "Transfer(address,address,uint256)"

func u64(v uint64) *uint64 { return &v }

func sampleMeta() Meta {
	return Meta{
		ChainID:        u64(137),
		ChainName:      "Polygon",
		Contract:       common.HexToAddress("0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"),
		EventSignature: transferSig,
	}
}

func sampleRaw() evm.RawLog {
	tx := common.HexToHash("0xabc123")
	return evm.RawLog{
		Address:     common.HexToAddress("0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359"),
		Topics:      []common.Hash{evm.EventTopic(transferSig), common.HexToHash("0x01")},
		Data:        []byte{0xde, 0xad, 0xbe, 0xef},
		BlockNumber: u64(101),
		TxHash:      &tx,
		LogIndex:    u64(7),
	}
}

func TestNormalizeMapsFields(t *testing.T) {
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	rec := Normalize(sampleRaw(), sampleMeta(), at)

	assert.Equal(t, at, rec.Timestamp)
	require.NotNil(t, rec.ChainID)
	assert.Equal(t, uint64(137), *rec.ChainID)
	assert.Equal(t, "Polygon", rec.ChainName)
	assert.Equal(t, uint64(101), rec.BlockNumber)
	assert.Equal(t, uint64(7), rec.LogIndex)
	assert.Equal(t, common.HexToHash("0xabc123").Hex(), rec.TransactionHash)
	assert.Equal(t, "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359", rec.ContractAddress)
	assert.Equal(t, "0xdeadbeef", rec.Data)
	require.Len(t, rec.Topics, 2)
	assert.Equal(t, "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef", rec.Topics[0])
	require.NotNil(t, rec.EventSignature)
	assert.Equal(t, transferSig, *rec.EventSignature)
}

func TestNormalizeMissingFieldsBecomeZero(t *testing.T) {
	raw := evm.RawLog{Address: common.HexToAddress("0x01")}
	rec := Normalize(raw, Meta{ChainName: "Custom"}, time.Now())

	assert.Equal(t, uint64(0), rec.BlockNumber)
	assert.Equal(t, uint64(0), rec.LogIndex)
	assert.Equal(t, common.Hash{}.Hex(), rec.TransactionHash)
	assert.Equal(t, "0x", rec.Data)
	assert.Nil(t, rec.ChainID)
	assert.Nil(t, rec.EventSignature)

	line, err := rec.MarshalLine()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(line, &decoded))
	assert.Equal(t, float64(0), decoded["block_number"])
	assert.Equal(t, float64(0), decoded["log_index"])
	assert.Contains(t, decoded, "chain_id")
	assert.Nil(t, decoded["chain_id"])
	assert.Contains(t, decoded, "event_signature")
	assert.Nil(t, decoded["event_signature"])
	assert.Equal(t, []any{}, decoded["topics"])
	assert.NotContains(t, decoded, "args")
}

func TestNormalizeIsIdempotentApartFromTimestamp(t *testing.T) {
	first := Normalize(sampleRaw(), sampleMeta(), time.Now())
	second := Normalize(sampleRaw(), sampleMeta(), time.Now().Add(time.Minute))

	first.Timestamp = time.Time{}
	second.Timestamp = time.Time{}

	a, err := first.MarshalLine()
	require.NoError(t, err)
	b, err := second.MarshalLine()
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestNormalizeDoesNotAliasMeta(t *testing.T) {
	meta := sampleMeta()
	rec := Normalize(sampleRaw(), meta, time.Now())
	*meta.ChainID = 1
	assert.Equal(t, uint64(137), *rec.ChainID)
}

func TestRecordJSONShape(t *testing.T) {
	rec := Normalize(sampleRaw(), sampleMeta(), time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	line, err := rec.MarshalLine()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(line, &decoded))
	for _, k := range []string{"timestamp", "chain_id", "chain_name", "block_number", "transaction_hash",
		"log_index", "contract_address", "topics", "data", "event_signature"} {
		assert.Contains(t, decoded, k)
	}
	assert.Equal(t, "2026-01-02T03:04:05Z", decoded["timestamp"])
}

func TestRecordKey(t *testing.T) {
	rec := Normalize(sampleRaw(), sampleMeta(), time.Now())
	assert.Equal(t, "137:101:"+common.HexToHash("0xabc123").Hex()+":7", rec.Key())
	assert.True(t, rec.Positioned())

	// Same tx and index on another chain or block must not collide.
	meta := sampleMeta()
	meta.ChainID = u64(1)
	assert.NotEqual(t, rec.Key(), Normalize(sampleRaw(), meta, time.Now()).Key())

	raw := sampleRaw()
	raw.BlockNumber = u64(102)
	assert.NotEqual(t, rec.Key(), Normalize(raw, sampleMeta(), time.Now()).Key())

	meta.ChainID = nil
	meta.ChainName = "Custom"
	assert.Equal(t, "Custom:101:"+common.HexToHash("0xabc123").Hex()+":7", Normalize(sampleRaw(), meta, time.Now()).Key())
}

func TestRecordPendingIsNotPositioned(t *testing.T) {
	rec := Normalize(evm.RawLog{Address: common.HexToAddress("0x01")}, sampleMeta(), time.Now())
	assert.False(t, rec.Positioned())
}
