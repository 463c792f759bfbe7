// Binary bot runs the live trading engine against Binance USDT-M
// futures. It refuses to start without credentials.
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
	"flowbot/internal/risk"
	"flowbot/internal/sizing"
	"flowbot/internal/strategy"
	"flowbot/internal/util"
)

func main() {
	configPath := flag.String("config", "internal/config/config.yaml", "path to YAML config")
	flag.Parse()

	_ = godotenv.Load() // best-effort

	cfg, err := config.Load(*configPath)
	if err != nil {
		util.NewLogger("info").Fatal().Err(err).Msg("load config")
	}
	log := util.NewLogger(cfg.App.LogLevel)

	if err := cfg.ValidateLive(); err != nil {
		log.Fatal().Err(err).Msg("live trading requires credentials")
	}

	_ = metrics.Serve(cfg.App.MetricsAddr)

	mode := "MAINNET"
	if cfg.Exchange.Testnet {
		mode = "TESTNET"
	}
	log.Info().
		Str("symbol", cfg.Exchange.Symbol).
		Str("mode", mode).
		Int("leverage", cfg.Risk.Leverage).
		Float64("stop_loss_pct", cfg.Risk.StopLossPct).
		Float64("take_profit_pct", cfg.Risk.TakeProfitPct).
		Str("metrics", cfg.App.MetricsAddr).
		Msg("starting flowbot")

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	state := market.NewState(cfg.Exchange.TradeBuffer, cfg.Exchange.CandleHistory)
	client := exchange.NewClient(cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.Testnet, log)

	if err := client.Sync(ctx, cfg.Exchange.Symbol, state); err != nil {
		log.Fatal().Err(err).Msg("initial account sync failed")
	}
	log.Info().Float64("balance", state.Balance()).Msg("account ready")

	strat := strategy.FromConfig(cfg, state, log)
	riskMgr := risk.NewManager(state, cfg.Risk, log)
	sizer := sizing.NewSizer(state, cfg.Sizing, cfg.Risk.MaxDailyLossPct)
	controls := engine.NewControls(cfg.Controls.EnableTrading, cfg.Controls.EmergencyStop)

	var alerter execution.Alerter = notify.Noop{}
	if cfg.Telegram.Enabled && cfg.Telegram.Token != "" {
		alerter = notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, log)
	}

	executor := execution.NewExecutor(cfg.Exchange.Symbol, cfg.Risk.Leverage,
		client, sizer, riskMgr, state, controls, alerter, log)

	eng := engine.New(engine.Config{
		Symbol:           cfg.Exchange.Symbol,
		Warmup:           time.Duration(cfg.Strategy.WarmupSec) * time.Second,
		AnalysisInterval: cfg.Strategy.AnalysisIntervalSec,
		AccountSyncEvery: cfg.Strategy.AccountSyncSec,
	}, state, strat, riskMgr, executor, client, controls, log)

	feed := exchange.NewFeed(cfg.Exchange.Symbol, cfg.Exchange.KlineIntervals, cfg.Exchange.Testnet, state, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return feed.Run(gctx) })
	g.Go(func() error { return eng.Run(gctx) })

	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Fatal().Err(err).Msg("engine exited")
	}
	log.Info().Msg("shutdown complete")
}
