package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"algo-trading-bot/internal/backtest"
	"algo-trading-bot/internal/interfaces"
	"algo-trading-bot/internal/logger"
	"algo-trading-bot/internal/market"
	"algo-trading-bot/internal/market/csvfeed"
	"algo-trading-bot/internal/market/marketobs"
	"algo-trading-bot/internal/store"
	"algo-trading-bot/internal/strategy"
	"algo-trading-bot/internal/types"

	"github.com/joho/godotenv"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	configPath := flag.String("config", "", "config file (default $CONFIG_FILE or config.yaml)")
	days := flag.Int("days", 0, "days of history to replay (default history_days from config)")
	compare := flag.Bool("compare", false, "run every strategy and print a comparison table")
	csvDir := flag.String("csv", "", "read candles from CSV files in this directory instead of the exchange")
	out := flag.String("out", "", "write closed trades to this CSV file")
	save := flag.String("save", "", "save fetched candles as CSV into this directory")
	symbols := flag.String("symbols", "", "comma-separated symbols (default symbols from config)")
	flag.Parse()

	_ = godotenv.Load()
	must(logger.Init())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := *configPath
	if path == "" {
		path = store.Path()
	}
	cfg, err := store.LoadConfig(path)
	must(err)
	if cfg.LogLevel != "" {
		logger.SetLevel(cfg.LogLevel)
	}
	if *days > 0 {
		cfg.HistoryDays = *days
	}
	if *symbols != "" {
		cfg.Symbols = strings.Split(*symbols, ",")
	}

	btCfg, err := backtest.ConfigFrom(cfg)
	must(err)

	var feed interfaces.MarketAccess
	if *csvDir != "" {
		feed = csvfeed.New(*csvDir)
	} else {
		feed, err = market.New(cfg.MarketParams())
		must(err)
	}
	feed = marketobs.Wrap(feed)

	bars, err := types.BarsForDays(cfg.Timeframe, cfg.HistoryDays)
	must(err)

	names := []string{cfg.Strategy.Name}
	if *compare {
		names = strategy.Names()
	}

	var jobs []backtest.Job
	for _, symbol := range cfg.Symbols {
		candles, err := feed.FetchCandles(ctx, symbol, cfg.Timeframe, bars)
		must(err)
		logger.Info(ctx, "Loaded history", "symbol", symbol, "timeframe", cfg.Timeframe, "candles", len(candles))

		if *save != "" {
			must(os.MkdirAll(*save, 0o755))
			must(csvfeed.Save(filepath.Join(*save, csvfeed.FileName(symbol, cfg.Timeframe)), candles))
		}

		for _, name := range names {
			strat, err := strategy.New(name, cfg.Strategy.Params)
			must(err)
			jobs = append(jobs, backtest.Job{Symbol: symbol, Strategy: strat, Candles: candles})
		}
	}

	results, err := backtest.Compare(ctx, btCfg, jobs, 0)
	must(err)

	for _, r := range results {
		fmt.Println(backtest.FormatResult(r))
	}
	if len(results) > 1 {
		fmt.Println(backtest.FormatComparison(results))
	}

	if *out != "" {
		var trades []types.ClosedTrade
		for _, r := range results {
			trades = append(trades, r.Trades...)
		}
		must(backtest.WriteTradesCSV(*out, trades))
		logger.Info(ctx, "Trades written", "path", *out, "trades", len(trades))
	}
	_ = logger.Shutdown(ctx)
}
