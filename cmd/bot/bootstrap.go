package main

import (
	"context"
	"fmt"
	"os"

	"algo-trading-bot/internal/engine"
	"algo-trading-bot/internal/engine/engineobs"
	"algo-trading-bot/internal/eod"
	"algo-trading-bot/internal/eod/eodobs"
	"algo-trading-bot/internal/interfaces"
	"algo-trading-bot/internal/ledger"
	"algo-trading-bot/internal/logger"
	"algo-trading-bot/internal/market"
	"algo-trading-bot/internal/market/marketobs"
	"algo-trading-bot/internal/store"
	"algo-trading-bot/internal/strategy"
	"algo-trading-bot/internal/trace"
	"algo-trading-bot/internal/tradelog"

	"github.com/joho/godotenv"
)

// initializeSystem initializes logger, tracer, and EOD summarizer
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	initializeEOD()
	return nil
}

func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	if cfg.LogLevel != "" {
		logger.SetLevel(cfg.LogLevel)
	}
	return cfg, nil
}

// configureJournal points the journal at the configured directory and
// compresses files past retention.
func configureJournal(ctx context.Context, cfg *store.Config) {
	if cfg.Journal.Dir != "" {
		tradelog.SetDir(cfg.Journal.Dir)
	}
	if cfg.Journal.RetentionDays > 0 {
		if err := tradelog.CompressOlder(cfg.Journal.RetentionDays); err != nil {
			logger.Warn(ctx, "Failed to compress old logs", "error", err)
		}
	}
}

// initializeMarket builds market access with observability
func initializeMarket(ctx context.Context, cfg *store.Config) (interfaces.MarketAccess, error) {
	mkt, err := market.New(cfg.MarketParams())
	if err != nil {
		return nil, err
	}

	switch {
	case cfg.Mode == ledger.ModeLive && cfg.Exchange.Testnet:
		logger.Warn(ctx, "LIVE mode on testnet - orders are filled locally", "exchange", cfg.Exchange.Name)
	case cfg.Mode == ledger.ModeLive:
		logger.Warn(ctx, "LIVE mode - real orders will be placed", "exchange", cfg.Exchange.Name)
	default:
		logger.Info(ctx, "Paper mode - fills are simulated", "exchange", cfg.Exchange.Name)
	}

	return marketobs.Wrap(mkt), nil
}

// initializeEngine builds ledger, strategy and engine for cfg
func initializeEngine(ctx context.Context, cfg *store.Config, mkt interfaces.MarketAccess, opts ...engine.Option) (interfaces.Engine, error) {
	l, err := ledger.New(cfg.Mode, mkt, cfg.Paper)
	if err != nil {
		return nil, err
	}
	strat, err := strategy.New(cfg.Strategy.Name, cfg.Strategy.Params)
	if err != nil {
		return nil, err
	}
	eng, err := engine.New(cfg, mkt, l, strat, opts...)
	if err != nil {
		return nil, err
	}

	profile, _ := cfg.Profile()
	logger.Info(ctx, "Engine configured",
		"mode", cfg.Mode,
		"strategy", strat.Name(),
		"profile", profile.String(),
		"symbols", cfg.Symbols,
		"timeframe", cfg.Timeframe,
	)
	return engineobs.Wrap(eng), nil
}

// initializeEOD wraps the default EOD summarizer with observability
func initializeEOD() {
	eod.SetDefaultSummarizer(eodobs.Wrap(eod.NewSummarizer()))
}
