// Package chains maps EVM chain ids to display names and the environment
// variables that hold their RPC endpoints.
package chains

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

var (
	ErrUnsupportedChain = errors.New("unsupported chain id")
	ErrNoEndpoint       = errors.New("no rpc endpoint configured")
)

// CustomName labels endpoints that were given directly rather than through a chain id.
const CustomName = "Custom"

// Chain describes a known network.
type Chain struct {
	ID     uint64
	Name   string
	EnvVar string
}

var known = map[uint64]Chain{
	1:        {ID: 1, Name: "Ethereum Mainnet", EnvVar: "ETHEREUM_RPC_URL"},
	10:       {ID: 10, Name: "Optimism", EnvVar: "OPTIMISM_RPC_URL"},
	56:       {ID: 56, Name: "Binance Smart Chain", EnvVar: "BSC_RPC_URL"},
	137:      {ID: 137, Name: "Polygon", EnvVar: "POLYGON_RPC_URL"},
	250:      {ID: 250, Name: "Fantom", EnvVar: "FANTOM_RPC_URL"},
	8453:     {ID: 8453, Name: "Base", EnvVar: "BASE_RPC_URL"},
	42161:    {ID: 42161, Name: "Arbitrum One", EnvVar: "ARBITRUM_RPC_URL"},
	43114:    {ID: 43114, Name: "Avalanche C-Chain", EnvVar: "AVALANCHE_RPC_URL"},
	80001:    {ID: 80001, Name: "Mumbai Testnet", EnvVar: "MUMBAI_RPC_URL"},
	11155111: {ID: 11155111, Name: "Sepolia Testnet", EnvVar: "SEPOLIA_RPC_URL"},
}

// Lookup returns the known chain for id.
func Lookup(id uint64) (Chain, bool) {
	c, ok := known[id]
	return c, ok
}

// All returns the known chains ordered by id.
func All() []Chain {
	out := make([]Chain, 0, len(known))
	for _, c := range known {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FallbackEnvVar is the variable consulted for chain ids outside the table.
func FallbackEnvVar(id uint64) string {
	return fmt.Sprintf("CHAIN_%d_RPC_URL", id)
}

// Endpoint is a resolved RPC target.
type Endpoint struct {
	URL       string
	ChainID   *uint64
	ChainName string
}

// LookupEnvFunc matches os.LookupEnv.
type LookupEnvFunc func(string) (string, bool)

// Resolve picks the RPC endpoint. Precedence: explicit URL, then chain id, then RPC_URL.
func Resolve(rpcURL string, chainID *uint64, lookup LookupEnvFunc) (Endpoint, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	name := CustomName
	if chainID != nil {
		if c, ok := Lookup(*chainID); ok {
			name = c.Name
		}
	}

	if rpcURL = strings.TrimSpace(rpcURL); rpcURL != "" {
		return Endpoint{URL: rpcURL, ChainID: chainID, ChainName: name}, nil
	}

	if chainID != nil {
		envVar := FallbackEnvVar(*chainID)
		c, ok := Lookup(*chainID)
		if ok {
			envVar = c.EnvVar
		}
		url, found := lookup(envVar)
		if !found || strings.TrimSpace(url) == "" {
			if !ok {
				return Endpoint{}, fmt.Errorf("%w: %d (set %s)", ErrUnsupportedChain, *chainID, envVar)
			}
			return Endpoint{}, fmt.Errorf("%w: environment variable %s not set", ErrNoEndpoint, envVar)
		}
		if !ok {
			name = fmt.Sprintf("Chain %d", *chainID)
		}
		return Endpoint{URL: strings.TrimSpace(url), ChainID: chainID, ChainName: name}, nil
	}

	if url, ok := lookup("RPC_URL"); ok && strings.TrimSpace(url) != "" {
		return Endpoint{URL: strings.TrimSpace(url), ChainName: CustomName}, nil
	}
	return Endpoint{}, fmt.Errorf("%w: provide --chain-id, --rpc-url, or set RPC_URL", ErrNoEndpoint)
}
