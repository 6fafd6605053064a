package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const sampleConfig = `# event-listener configuration. Every key can be overridden by a run flag.
contract: "0xA0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
chain_id: 1
# rpc_url: https://eth-mainnet.example/v2/your-api-key
event: "Transfer(address,address,uint256)"
# start_block: 19000000
poll_interval_ms: 1000
output_format: pretty
# output_file: events.jsonl
# webhook_url: https://hooks.example.com/events
# abi_dirs: [abis]
# max_range: 2000
sink_timeout: 10s
query_timeout: 30s
# journal_path: journal.db
`

const sampleEnv = `# RPC endpoints keyed by chain; see "event-listener chains".
ETHEREUM_RPC_URL=https://eth-mainnet.example/v2/your-api-key
# RPC_URL=
LOG_LEVEL=info
`

var initDir string
var initForce bool

func init() {
	initCmd.Flags().StringVar(&initDir, "dir", ".", "Directory to write config.yaml and .env.example into")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a sample config.yaml and .env.example",
	RunE: func(cmd *cobra.Command, args []string) error {
		files := []struct {
			name    string
			content string
		}{
			{"config.yaml", sampleConfig},
			{".env.example", sampleEnv},
		}
		if err := os.MkdirAll(initDir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", initDir, err)
		}
		for _, f := range files {
			path := filepath.Join(initDir, f.name)
			if _, err := os.Stat(path); err == nil && !initForce {
				fmt.Fprintf(cmd.OutOrStdout(), "skip %s (exists, use --force)\n", path)
				continue
			}
			if err := os.WriteFile(path, []byte(f.content), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		}
		return nil
	},
}
