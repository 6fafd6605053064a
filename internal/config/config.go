package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPollIntervalMS = 1000
	DefaultOutputFormat   = "pretty"
	DefaultSinkTimeout    = 10 * time.Second
	DefaultQueryTimeout   = 30 * time.Second
)

// OutputFormats lists the console renderings accepted by output_format.
var OutputFormats = []string{"pretty", "json", "compact"}

// Config holds the listener settings. Every field can also be set by a run flag.
type Config struct {
	Contract       string   `yaml:"contract"`
	ChainID        *uint64  `yaml:"chain_id"`
	RPCURL         string   `yaml:"rpc_url"`
	Event          string   `yaml:"event"`
	StartBlock     *uint64  `yaml:"start_block"`
	PollIntervalMS uint64   `yaml:"poll_interval_ms"`
	OutputFormat   string   `yaml:"output_format"`
	OutputFile     string   `yaml:"output_file"`
	WebhookURL     string   `yaml:"webhook_url"`
	ABIDirs        []string `yaml:"abi_dirs"`
	MaxRange       uint64   `yaml:"max_range"`
	// SinkTimeout bounds each sink delivery; zero disables the bound.
	SinkTimeout time.Duration `yaml:"sink_timeout"`
	// QueryTimeout bounds each head and log query; zero disables the bound.
	QueryTimeout time.Duration `yaml:"query_timeout"`
	JournalPath  string        `yaml:"journal_path"`
}

// Default returns a config populated with the documented defaults.
func Default() *Config {
	return &Config{
		PollIntervalMS: DefaultPollIntervalMS,
		OutputFormat:   DefaultOutputFormat,
		SinkTimeout:    DefaultSinkTimeout,
		QueryTimeout:   DefaultQueryTimeout,
	}
}

var envPattern = regexp.MustCompile(`\${([A-Za-z_][A-Za-z0-9_]*)}`)

// Load reads, interpolates env vars, and parses YAML over the defaults, so
// only keys present in the file replace them. An empty path yields the
// defaults. Validation is left to the caller since flags may still override
// file values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if err := LoadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	interpolated, err := interpolateEnv(string(raw))
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal([]byte(interpolated), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads dir/.env if present. Existing environment variables win.
func LoadDotEnv(dir string) error {
	envPath := filepath.Join(dir, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

func interpolateEnv(input string) (string, error) {
	missing := []string{}
	out := envPattern.ReplaceAllStringFunc(input, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		missing = append(missing, name)
		return match
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("missing environment variables: %s", strings.Join(dedup(missing), ", "))
	}
	return out, nil
}

// PollInterval is the sleep between ticks.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// Validate performs small, direct schema checks. RPC resolution is checked separately.
func (c *Config) Validate() error {
	if c.Contract == "" {
		return errors.New("contract is required")
	}
	if !common.IsHexAddress(c.Contract) {
		return fmt.Errorf("invalid contract address: %s", c.Contract)
	}

	c.OutputFormat = strings.ToLower(c.OutputFormat)
	if !isOutputFormat(c.OutputFormat) {
		return fmt.Errorf("unsupported output_format %q (want one of %s)", c.OutputFormat, strings.Join(OutputFormats, ", "))
	}

	if c.PollIntervalMS == 0 {
		return errors.New("poll_interval_ms must be greater than 0")
	}
	if c.SinkTimeout < 0 {
		return errors.New("sink_timeout must not be negative")
	}
	if c.QueryTimeout < 0 {
		return errors.New("query_timeout must not be negative")
	}

	if c.WebhookURL != "" {
		u, err := url.Parse(c.WebhookURL)
		if err != nil {
			return fmt.Errorf("webhook_url: %w", err)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("webhook_url must be an absolute http(s) url: %s", c.WebhookURL)
		}
	}
	return nil
}

func isOutputFormat(f string) bool {
	for _, v := range OutputFormats {
		if v == f {
			return true
		}
	}
	return false
}

func dedup(values []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
