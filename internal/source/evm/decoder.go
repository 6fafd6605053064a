package evm

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Decoder turns log topics and data into named event arguments using loaded ABIs.
type Decoder struct {
	events map[common.Hash]abi.Event
}

// NewDecoder indexes every non-anonymous event in abis by its topic 0.
// Paths are visited in sorted order so the first definition of a topic wins deterministically.
func NewDecoder(abis map[string]*abi.ABI) *Decoder {
	paths := make([]string, 0, len(abis))
	for p := range abis {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	events := map[common.Hash]abi.Event{}
	for _, p := range paths {
		for _, ev := range abis[p].Events {
			if ev.Anonymous {
				continue
			}
			if _, ok := events[ev.ID]; !ok {
				events[ev.ID] = ev
			}
		}
	}
	return &Decoder{events: events}
}

// Len reports how many distinct events the decoder knows.
func (d *Decoder) Len() int {
	if d == nil {
		return 0
	}
	return len(d.events)
}

// Decode returns the named arguments of raw. ok is false when no ABI event matches topic 0.
func (d *Decoder) Decode(raw RawLog) (args map[string]any, ok bool, err error) {
	if d == nil || len(raw.Topics) == 0 {
		return nil, false, nil
	}
	ev, found := d.events[raw.Topics[0]]
	if !found {
		return nil, false, nil
	}

	indexed, nonIndexed := splitIndexed(ev.Inputs)
	decoded := map[string]any{}
	if err := abi.ParseTopicsIntoMap(decoded, indexed, raw.Topics[1:]); err != nil {
		return nil, false, fmt.Errorf("parse topics for %s: %w", ev.Sig, err)
	}
	if err := nonIndexed.UnpackIntoMap(decoded, raw.Data); err != nil {
		return nil, false, fmt.Errorf("unpack data for %s: %w", ev.Sig, err)
	}

	args = make(map[string]any, len(decoded))
	for k, v := range decoded {
		args[k] = jsonValue(v)
	}
	return args, true, nil
}

// jsonValue renders ABI values so they survive JSON without precision loss.
func jsonValue(v any) any {
	switch x := v.(type) {
	case *big.Int:
		return x.String()
	case common.Address:
		return x.Hex()
	case common.Hash:
		return x.Hex()
	case [32]byte:
		return hexutil.Encode(x[:])
	case []byte:
		return hexutil.Encode(x)
	default:
		return v
	}
}

func splitIndexed(args abi.Arguments) (indexed abi.Arguments, nonIndexed abi.Arguments) {
	for _, a := range args {
		if a.Indexed {
			indexed = append(indexed, a)
		} else {
			nonIndexed = append(nonIndexed, a)
		}
	}
	return indexed, nonIndexed
}
