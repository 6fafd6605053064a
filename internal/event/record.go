// Package event defines the canonical record the listener publishes for every discovered log.
package event

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/devblac/event-listener/internal/source/evm"
)

// Record is one discovered log. It is not modified after Normalize returns.
type Record struct {
	Timestamp       time.Time      `json:"timestamp"`
	ChainID         *uint64        `json:"chain_id"`
	ChainName       string         `json:"chain_name"`
	BlockNumber     uint64         `json:"block_number"`
	TransactionHash string         `json:"transaction_hash"`
	LogIndex        uint64         `json:"log_index"`
	ContractAddress string         `json:"contract_address"`
	Topics          []string       `json:"topics"`
	Data            string         `json:"data"`
	EventSignature  *string        `json:"event_signature"`
	Args            map[string]any `json:"args,omitempty"`
}

// Meta is the per-listener context attached to every record.
type Meta struct {
	ChainID        *uint64
	ChainName      string
	Contract       common.Address
	EventSignature string
}

// Normalize maps a raw log into a Record stamped with observedAt, the
// discovery time. Missing block number and log index become 0; a missing
// transaction hash becomes the zero hash.
func Normalize(raw evm.RawLog, meta Meta, observedAt time.Time) Record {
	rec := Record{
		Timestamp:       observedAt,
		ChainName:       meta.ChainName,
		TransactionHash: common.Hash{}.Hex(),
		ContractAddress: meta.Contract.Hex(),
		Topics:          make([]string, 0, len(raw.Topics)),
		Data:            hexutil.Encode(raw.Data),
	}
	if meta.ChainID != nil {
		id := *meta.ChainID
		rec.ChainID = &id
	}
	if meta.EventSignature != "" {
		sig := meta.EventSignature
		rec.EventSignature = &sig
	}
	if raw.BlockNumber != nil {
		rec.BlockNumber = *raw.BlockNumber
	}
	if raw.LogIndex != nil {
		rec.LogIndex = *raw.LogIndex
	}
	if raw.TxHash != nil {
		rec.TransactionHash = raw.TxHash.Hex()
	}
	for _, t := range raw.Topics {
		rec.Topics = append(rec.Topics, t.Hex())
	}
	return rec
}

// Key identifies the log on its chain, independent of when it was observed.
// The chain id is used when known, the chain name otherwise.
func (r Record) Key() string {
	chain := r.ChainName
	if r.ChainID != nil {
		chain = strconv.FormatUint(*r.ChainID, 10)
	}
	return chain + ":" + strconv.FormatUint(r.BlockNumber, 10) + ":" + r.TransactionHash + ":" + strconv.FormatUint(r.LogIndex, 10)
}

// Positioned reports whether the log carried a transaction hash. Pending logs
// do not, and their Key is not unique.
func (r Record) Positioned() bool {
	return r.TransactionHash != common.Hash{}.Hex()
}

// MarshalLine renders the record as a single JSON line without the trailing newline.
func (r Record) MarshalLine() ([]byte, error) {
	return json.Marshal(r)
}
