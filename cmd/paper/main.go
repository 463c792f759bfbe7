// Binary paper runs the full pipeline against the live market feed with
// a simulated account. No credentials required.
package main

import (
	"context"
	"flag"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"flowbot/internal/config"
	"flowbot/internal/engine"
	"flowbot/internal/exchange"
	"flowbot/internal/execution"
	"flowbot/internal/market"
	"flowbot/internal/metrics"
	"flowbot/internal/notify"
	"flowbot/internal/paper"
	"flowbot/internal/risk"
	"flowbot/internal/sizing"
	"flowbot/internal/strategy"
	"flowbot/internal/util"
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to YAML config")
	cash := flag.Float64("cash", 1000, "starting paper balance in USDT")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		util.NewLogger("info").Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	_ = metrics.Serve(cfg.App.MetricsAddr)

	log.Info().
		Str("symbol", cfg.Exchange.Symbol).
		Float64("cash", *cash).
		Str("metrics", cfg.App.MetricsAddr).
		Msg("starting flowbot in paper mode")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	state := market.NewState(cfg.Exchange.TradeBuffer, cfg.Exchange.CandleHistory)
	venue := paper.NewVenue(*cash, state, log)
	if err := venue.Sync(ctx, cfg.Exchange.Symbol, state); err != nil {
		log.Fatal().Err(err).Msg("seed paper account")
	}

	strat := strategy.FromConfig(cfg, state, log)
	riskMgr := risk.NewManager(state, cfg.Risk, log)
	sizer := sizing.NewSizer(state, cfg.Sizing, cfg.Risk.MaxDailyLossPct)
	controls := engine.NewControls(true, false)

	executor := execution.NewExecutor(cfg.Exchange.Symbol, cfg.Risk.Leverage,
		venue, sizer, riskMgr, state, controls, notify.Noop{}, log)

	eng := engine.New(engine.Config{
		Symbol:           cfg.Exchange.Symbol,
		Warmup:           time.Duration(cfg.Strategy.WarmupSec) * time.Second,
		AnalysisInterval: cfg.Strategy.AnalysisIntervalSec,
		AccountSyncEvery: cfg.Strategy.AccountSyncSec,
	}, state, strat, riskMgr, executor, venue, controls, log)

	feed := exchange.NewFeed(cfg.Exchange.Symbol, cfg.Exchange.KlineIntervals, cfg.Exchange.Testnet, state, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return feed.Run(gctx) })
	g.Go(func() error { return eng.Run(gctx) })

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("engine exited")
	}
	log.Info().
		Float64("balance", state.Balance()).
		Float64("realized_pnl", venue.RealizedPnL()).
		Msg("paper session complete")
}
