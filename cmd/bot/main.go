package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"algo-trading-bot/internal/engine"
	"algo-trading-bot/internal/eod"
	"algo-trading-bot/internal/logger"
	"algo-trading-bot/internal/store"
	"algo-trading-bot/internal/types"

	"github.com/bytedance/sonic"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	configPath := flag.String("config", "", "config file (default $CONFIG_FILE or config.yaml)")
	once := flag.Bool("once", false, "run a single cycle for every symbol and exit")
	interval := flag.Int("interval", 0, "seconds between cycles; 0 aligns cycles to the timeframe")
	flag.Parse()

	must(initializeSystem())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path := *configPath
	if path == "" {
		path = store.Path()
	}
	cfg, err := loadConfig(ctx, path)
	must(err)
	if *interval > 0 {
		cfg.Engine.PollSeconds = *interval
	}
	configureJournal(ctx, cfg)

	mkt, err := initializeMarket(ctx, cfg)
	must(err)

	day := time.Now().UTC()
	hook := func(sums []types.CycleSummary) {
		printSummaries(sums)
		// Roll the journal into a CSV once the UTC day changes.
		if now := time.Now().UTC(); now.YearDay() != day.YearDay() || now.Year() != day.Year() {
			_, _ = eod.SummarizeDay(ctx, day)
			day = now
		}
	}

	eng, err := initializeEngine(ctx, cfg, mkt, engine.WithCycleHook(hook))
	must(err)

	if *once {
		sums, err := eng.RunOnce(ctx)
		must(err)
		printSummaries(sums)
	} else {
		logger.Info(ctx, "Bot started")
		if err := eng.Run(ctx); err != nil {
			logger.ErrorWithErr(ctx, "Engine stopped with error", err)
		}
	}

	logger.Info(ctx, "Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := eng.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithErr(shutdownCtx, "Shutdown incomplete", err)
	}
	_, _ = eod.SummarizeToday(shutdownCtx)
	st := eng.Status()
	logger.Info(shutdownCtx, "Session finished",
		"cycles", st.Session.Cycles,
		"opened", st.Session.Opened,
		"closed", st.Session.Closed,
		"equity", st.Equity,
	)
	_ = logger.Shutdown(shutdownCtx)
}

func printSummaries(sums []types.CycleSummary) {
	for _, s := range sums {
		b, err := sonic.Marshal(s)
		if err != nil {
			continue
		}
		fmt.Println(string(b))
	}
}
