package evm

import (
	"fmt"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Filter is the query descriptor for one polling cycle. Both bounds are inclusive.
type Filter struct {
	Address   common.Address
	Signature string
	Topic0    *common.Hash
	FromBlock uint64
	ToBlock   uint64
}

// BuildFilter describes the logs of address in [from, to]. A non-empty
// signature restricts topic 0 to its Keccak-256 hash; the signature text is
// not validated.
func BuildFilter(address common.Address, signature string, from, to uint64) (Filter, error) {
	if from > to {
		return Filter{}, fmt.Errorf("%w: [%d, %d]", ErrInvalidRange, from, to)
	}
	f := Filter{
		Address:   address,
		Signature: signature,
		FromBlock: from,
		ToBlock:   to,
	}
	if signature != "" {
		topic := EventTopic(signature)
		f.Topic0 = &topic
	}
	return f, nil
}

// EventTopic returns the topic 0 hash for an event signature such as Transfer(address,address,uint256).
func EventTopic(signature string) common.Hash {
	return crypto.Keccak256Hash([]byte(signature))
}

// Query converts the filter into an eth_getLogs request.
func (f Filter) Query() ethereum.FilterQuery {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(f.FromBlock),
		ToBlock:   new(big.Int).SetUint64(f.ToBlock),
		Addresses: []common.Address{f.Address},
	}
	if f.Topic0 != nil {
		q.Topics = [][]common.Hash{{*f.Topic0}}
	}
	return q
}

// Blocks is the number of blocks the filter spans.
func (f Filter) Blocks() uint64 {
	return f.ToBlock - f.FromBlock + 1
}
