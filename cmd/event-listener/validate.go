package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/devblac/event-listener/internal/chains"
	"github.com/devblac/event-listener/internal/config"
	"github.com/devblac/event-listener/internal/logging"
	"github.com/devblac/event-listener/internal/source/evm"
)

const defaultRPCTimeout = 8 * time.Second

var (
	validateContract string
	validateChainID  uint64
	validateRPCURL   string
)

func init() {
	validateCmd.Flags().StringVarP(&validateContract, "contract", "c", "", "Contract address to check")
	validateCmd.Flags().Uint64Var(&validateChainID, "chain-id", 0, "Chain id to resolve")
	validateCmd.Flags().StringVarP(&validateRPCURL, "rpc-url", "r", "", "RPC endpoint URL")
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate config, resolve the RPC endpoint, and ping it",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		if err := config.LoadDotEnv("."); err != nil {
			return err
		}
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}
		if cmd.Flags().Changed("contract") {
			cfg.Contract = validateContract
		}
		if cmd.Flags().Changed("chain-id") {
			id := validateChainID
			cfg.ChainID = &id
		}
		if cmd.Flags().Changed("rpc-url") {
			cfg.RPCURL = validateRPCURL
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("config invalid: %w", err)
		}
		fmt.Fprintf(out, "config OK (contract %s, format %s)\n", cfg.Contract, cfg.OutputFormat)

		ep, err := chains.Resolve(cfg.RPCURL, cfg.ChainID, os.LookupEnv)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "- endpoint %s (%s)\n", logging.MaskURL(ep.URL), ep.ChainName)

		src, err := evm.Dial(ep.URL)
		if err != nil {
			fmt.Fprintf(out, "- rpc: ERROR %v\n", err)
			return fmt.Errorf("validate: rpc connectivity failed")
		}
		defer src.Close()

		if err := checkEndpoint(cmd.Context(), out, src, ep.ChainID, defaultRPCTimeout); err != nil {
			return err
		}
		fmt.Fprintln(out, "validate: success")
		return nil
	},
}

type chainIDSource interface {
	ChainID(ctx context.Context) (uint64, error)
}

// checkEndpoint asks the node for its chain id and warns when it differs from the configured one.
func checkEndpoint(ctx context.Context, out io.Writer, src chainIDSource, want *uint64, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	remote, err := src.ChainID(ctx)
	if err != nil {
		fmt.Fprintf(out, "- rpc: ERROR %v\n", err)
		return fmt.Errorf("validate: rpc connectivity failed: %w", err)
	}
	fmt.Fprintf(out, "- rpc: chainId %d OK\n", remote)

	if want != nil && *want != remote {
		fmt.Fprintf(out, "- warning: configured chain id %d but endpoint serves %d\n", *want, remote)
	}
	return nil
}
