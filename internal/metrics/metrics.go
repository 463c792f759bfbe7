package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TradesIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trades_ingested_total", Help: "Trade prints consumed from the stream"},
		[]string{"symbol"},
	)
	BookUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "book_updates_total", Help: "Order book delta events applied"},
		[]string{"symbol"},
	)
	CandlesClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "candles_closed_total", Help: "Closed candles retained per interval"},
		[]string{"interval"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "signals_total", Help: "Fused signals by resulting action"},
		[]string{"action"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders submitted to the venue"},
		[]string{"symbol", "side"},
	)
	RejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "rejections_total", Help: "Execution attempts blocked by a gate"},
		[]string{"gate"},
	)
	WallsSpoofed = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "walls_spoofed_total", Help: "Liquidity walls that vanished inside the spoof lifetime"},
	)
	AccountBalance = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "account_balance_usdt", Help: "Last synced wallet balance"},
	)
	DailyPnL = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "daily_pnl_usdt", Help: "Realized PnL since the last daily reset"},
	)
)

func init() {
	prometheus.MustRegister(
		TradesIngested, BookUpdates, CandlesClosed,
		SignalsTotal, OrdersTotal, RejectionsTotal,
		WallsSpoofed, AccountBalance, DailyPnL,
	)
}

// Serve exposes /metrics on addr in a background goroutine.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
