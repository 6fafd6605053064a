package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/devblac/event-listener/internal/chains"
	"github.com/devblac/event-listener/internal/config"
	"github.com/devblac/event-listener/internal/engine"
	"github.com/devblac/event-listener/internal/event"
	"github.com/devblac/event-listener/internal/health"
	"github.com/devblac/event-listener/internal/logging"
	"github.com/devblac/event-listener/internal/metrics"
	"github.com/devblac/event-listener/internal/sink"
	"github.com/devblac/event-listener/internal/source/evm"
	"github.com/devblac/event-listener/internal/storage"
)

var (
	flagContract     string
	flagChainID      uint64
	flagRPCURL       string
	flagEvent        string
	flagStartBlock   uint64
	flagPollInterval uint64
	flagOutputFormat string
	flagOutputFile   string
	flagWebhookURL   string
	flagABIDirs      []string
	flagMaxRange     uint64
	flagTo           uint64
	flagOnce         bool
	flagNoConsole    bool
	flagJournal      string
	flagSinkTimeout  time.Duration
	flagQueryTimeout time.Duration
	flagHealth       string
	flagMetrics      string
)

func init() {
	f := runCmd.Flags()
	f.StringVarP(&flagContract, "contract", "c", "", "Contract address to watch (0x-prefixed, 20 bytes)")
	f.Uint64Var(&flagChainID, "chain-id", 0, "Chain id; the RPC URL is read from the chain's environment variable")
	f.StringVarP(&flagRPCURL, "rpc-url", "r", "", "RPC endpoint URL (http, https, ws or wss); overrides --chain-id lookup")
	f.StringVarP(&flagEvent, "event", "e", "", "Event signature to filter on, e.g. Transfer(address,address,uint256)")
	f.Uint64VarP(&flagStartBlock, "start-block", "s", 0, "First block to query (default: chain head at startup)")
	f.Uint64VarP(&flagPollInterval, "poll-interval-ms", "p", config.DefaultPollIntervalMS, "Milliseconds between polls")
	f.StringVar(&flagOutputFormat, "output-format", config.DefaultOutputFormat, "Console format: pretty, json, or compact")
	f.StringVar(&flagOutputFile, "output-file", "", "Append every event as a JSON line to this file")
	f.StringVar(&flagWebhookURL, "webhook-url", "", "POST every event as JSON to this URL")
	f.StringSliceVar(&flagABIDirs, "abi-dir", nil, "Directory of ABI JSON files used to decode event arguments (repeatable)")
	f.Uint64Var(&flagMaxRange, "max-range", 0, "Maximum blocks per log query (0 = up to head)")
	f.Uint64Var(&flagTo, "to", 0, "Stop after this block (inclusive)")
	f.BoolVar(&flagOnce, "once", false, "Process one tick and exit")
	f.BoolVar(&flagNoConsole, "no-console", false, "Do not print events to stdout")
	f.StringVar(&flagJournal, "journal", "", "SQLite file recording ranges, events and deliveries")
	f.DurationVar(&flagSinkTimeout, "sink-timeout", config.DefaultSinkTimeout, "Per-delivery timeout for each sink (0 = no bound)")
	f.DurationVar(&flagQueryTimeout, "query-timeout", config.DefaultQueryTimeout, "Timeout for each head and log query (0 = no bound)")
	f.StringVar(&flagHealth, "health", "", "Health check HTTP address (e.g., :8080)")
	f.StringVar(&flagMetrics, "metrics", "", "Metrics HTTP address (e.g., :9090)")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Listen for contract events and forward them to the configured sinks",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv("."); err != nil {
			return err
		}
		log := newLogger()

		cfg, err := loadRunConfig(cmd)
		if err != nil {
			return err
		}
		contract, err := engine.ContractAddress(cfg.Contract)
		if err != nil {
			return err
		}
		ep, err := chains.Resolve(cfg.RPCURL, cfg.ChainID, os.LookupEnv)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		src, err := evm.Dial(ep.URL)
		if err != nil {
			return err
		}
		defer src.Close()

		mark, err := engine.StartWatermark(ctx, src, cfg.StartBlock)
		if err != nil {
			return err
		}

		dispatcher, err := buildDispatcher(log, cmd.OutOrStdout(), cfg)
		if err != nil {
			return err
		}
		if flagNoConsole {
			dispatcher.SetEnabled("console", false)
		}

		decoder, err := buildDecoder(cfg.ABIDirs)
		if err != nil {
			return err
		}
		if decoder != nil {
			log.Info("abi decoding enabled", "events", decoder.Len())
		}

		opts := engine.Options{
			Meta: event.Meta{
				ChainID:        ep.ChainID,
				ChainName:      ep.ChainName,
				Contract:       contract,
				EventSignature: cfg.Event,
			},
			Interval:     cfg.PollInterval(),
			MaxRange:     cfg.MaxRange,
			QueryTimeout: cfg.QueryTimeout,
			Once:         flagOnce,
			Decoder:      decoder,
			Logger:       log,
		}
		if cmd.Flags().Changed("to") {
			to := flagTo
			opts.StopAt = &to
		}

		var store *storage.Store
		if cfg.JournalPath != "" {
			store, err = storage.Open(cfg.JournalPath)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			runID := uuid.NewString()
			j, err := store.StartRun(ctx, runID, ep.ChainName, contract.Hex(), cfg.Event)
			if err != nil {
				return err
			}
			opts.Journal = j
			log = log.With("run_id", runID)
			opts.Logger = log
			log.Info("journal enabled", "path", cfg.JournalPath)
		}

		if flagMetrics != "" {
			opts.Metrics = metrics.Init()
			opts.Metrics.Watermark(mark.Current())
			srv := serveMetrics(log, flagMetrics)
			defer shutdown(srv)
			log.Info("metrics enabled", "addr", flagMetrics)
		}

		logBanner(log, ep, contract.Hex(), cfg, mark.Current(), opts.StopAt, dispatcher.Enabled())

		ctrl := engine.NewController(src, mark, dispatcher, opts)

		if flagHealth != "" {
			checker := health.Checker{
				RPCPing:   health.NewRPCChecker(src).Ping,
				Watermark: ctrl.Watermark,
				State:     func() string { return ctrl.State().String() },
			}
			if store != nil {
				checker.JournalPing = store.Ping
			}
			srv := health.Serve(flagHealth, checker)
			defer shutdown(srv)
			log.Info("health check enabled", "addr", flagHealth)
		}

		if err := ctrl.Run(ctx); err != nil {
			log.Error("listener stopped", "error", err)
			return err
		}
		log.Info("listener stopped", "watermark", ctrl.Watermark())
		return nil
	},
}

func newLogger() *slog.Logger {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	return logging.NewWithLevel(logLevel)
}

// loadRunConfig reads the optional config file and overlays any flag the user set.
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config invalid: %w", err)
	}
	return cfg, nil
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("contract") {
		cfg.Contract = flagContract
	}
	if changed("chain-id") {
		id := flagChainID
		cfg.ChainID = &id
	}
	if changed("rpc-url") {
		cfg.RPCURL = flagRPCURL
	}
	if changed("event") {
		cfg.Event = flagEvent
	}
	if changed("start-block") {
		start := flagStartBlock
		cfg.StartBlock = &start
	}
	if changed("poll-interval-ms") {
		cfg.PollIntervalMS = flagPollInterval
	}
	if changed("output-format") {
		cfg.OutputFormat = flagOutputFormat
	}
	if changed("output-file") {
		cfg.OutputFile = flagOutputFile
	}
	if changed("webhook-url") {
		cfg.WebhookURL = flagWebhookURL
	}
	if changed("abi-dir") {
		cfg.ABIDirs = flagABIDirs
	}
	if changed("max-range") {
		cfg.MaxRange = flagMaxRange
	}
	if changed("journal") {
		cfg.JournalPath = flagJournal
	}
	if changed("sink-timeout") {
		cfg.SinkTimeout = flagSinkTimeout
	}
	if changed("query-timeout") {
		cfg.QueryTimeout = flagQueryTimeout
	}
}

func buildDispatcher(log *slog.Logger, stdout io.Writer, cfg *config.Config) (*sink.Dispatcher, error) {
	console, err := sink.NewConsole(stdout, cfg.OutputFormat)
	if err != nil {
		return nil, err
	}
	sinks := []sink.Sink{console}

	if cfg.OutputFile != "" {
		file, err := sink.NewFile(cfg.OutputFile)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, file)
	}
	if cfg.WebhookURL != "" {
		hook, err := sink.NewWebhook(cfg.WebhookURL, nil)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, hook)
	}
	return sink.NewDispatcher(log, cfg.SinkTimeout, sinks...), nil
}

func buildDecoder(dirs []string) (*evm.Decoder, error) {
	if len(dirs) == 0 {
		return nil, nil
	}
	abis, err := evm.LoadABIs(dirs)
	if err != nil {
		return nil, fmt.Errorf("load abis: %w", err)
	}
	return evm.NewDecoder(abis), nil
}

func logBanner(log *slog.Logger, ep chains.Endpoint, contract string, cfg *config.Config, start uint64, stopAt *uint64, sinks []string) {
	filter := cfg.Event
	if filter == "" {
		filter = "ALL events"
	}
	attrs := []any{
		"chain", ep.ChainName,
		"contract", contract,
		"rpc", logging.MaskURL(ep.URL),
		"event", filter,
		"start_block", start,
		"poll_interval", cfg.PollInterval(),
		"sinks", sinks,
	}
	if ep.ChainID != nil {
		attrs = append(attrs, "chain_id", *ep.ChainID)
	}
	if cfg.MaxRange > 0 {
		attrs = append(attrs, "max_range", cfg.MaxRange)
	}
	if stopAt != nil {
		attrs = append(attrs, "stop_block", *stopAt)
	}
	log.Info("starting event listener", attrs...)
}

func serveMetrics(log *slog.Logger, addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 3 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "error", err)
		}
	}()
	return srv
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}
