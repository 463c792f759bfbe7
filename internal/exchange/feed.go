// Package exchange hosts Binance USDT-M futures connectivity: the
// combined websocket market stream and the signed REST client. It is an
// I/O adapter; all analysis happens elsewhere.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"flowbot/internal/market"
	"flowbot/internal/metrics"
)

const (
	mainnetStreamURL = "wss://fstream.binance.com/stream"
	testnetStreamURL = "wss://stream.binancefuture.com/stream"
)

// Feed ingests depth, aggTrade, kline, and 24h ticker streams for one
// symbol and writes them straight into the shared market state. It never
// blocks on analysis.
type Feed struct {
	symbol    string
	intervals []string
	testnet   bool
	state     *market.State
	log       zerolog.Logger
}

// NewFeed targets a single instrument.
func NewFeed(symbol string, intervals []string, testnet bool, state *market.State, log zerolog.Logger) *Feed {
	return &Feed{
		symbol:    strings.ToUpper(symbol),
		intervals: intervals,
		testnet:   testnet,
		state:     state,
		log:       log,
	}
}

func (f *Feed) streamURL() string {
	sym := strings.ToLower(f.symbol)
	streams := []string{
		sym + "@depth@100ms",
		sym + "@aggTrade",
		sym + "@ticker",
	}
	for _, iv := range f.intervals {
		streams = append(streams, sym+"@kline_"+iv)
	}
	base := mainnetStreamURL
	if f.testnet {
		base = testnetStreamURL
	}
	return base + "?streams=" + strings.Join(streams, "/")
}

// Run consumes the combined stream until the context is canceled,
// reconnecting with capped exponential backoff.
func (f *Feed) Run(ctx context.Context) error {
	url := f.streamURL()
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		err := f.consume(ctx, url)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.log.Warn().Err(err).Msg("market stream disconnected, retrying")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff = time.Duration(math.Min(float64(maxBackoff), float64(backoff)*1.8))
	}
}

type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type depthEvent struct {
	Bids [][]string `json:"b"`
	Asks [][]string `json:"a"`
}

type aggTradeEvent struct {
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
	ID           int64  `json:"a"`
}

type klineEvent struct {
	Kline struct {
		OpenTime int64  `json:"t"`
		Interval string `json:"i"`
		Open     string `json:"o"`
		High     string `json:"h"`
		Low      string `json:"l"`
		Close    string `json:"c"`
		Volume   string `json:"v"`
		Closed   bool   `json:"x"`
	} `json:"k"`
}

type tickerEvent struct {
	QuoteVolume string `json:"q"`
}

func (f *Feed) consume(ctx context.Context, url string) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial stream: %w", err)
	}
	defer conn.Close()

	f.log.Info().Str("symbol", f.symbol).Msg("connected market data stream")

	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(30 * time.Second))
		return nil
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var env streamEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			f.log.Warn().Err(err).Msg("failed to decode stream message")
			continue
		}
		f.dispatch(env)
	}
}

func (f *Feed) dispatch(env streamEnvelope) {
	switch {
	case strings.Contains(env.Stream, "@depth"):
		f.handleDepth(env.Data)
	case strings.Contains(env.Stream, "@aggTrade"):
		f.handleTrade(env.Data)
	case strings.Contains(env.Stream, "@kline"):
		f.handleKline(env.Data)
	case strings.Contains(env.Stream, "@ticker"):
		f.handleTicker(env.Data)
	}
}

func (f *Feed) handleDepth(data json.RawMessage) {
	var evt depthEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		f.log.Warn().Err(err).Msg("invalid depth event")
		return
	}
	bids := parseLevels(evt.Bids)
	asks := parseLevels(evt.Asks)
	f.state.ApplyBookUpdate(bids, asks)
	metrics.BookUpdates.WithLabelValues(f.symbol).Inc()
}

func (f *Feed) handleTrade(data json.RawMessage) {
	var evt aggTradeEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		f.log.Warn().Err(err).Msg("invalid trade event")
		return
	}
	price, err1 := strconv.ParseFloat(evt.Price, 64)
	qty, err2 := strconv.ParseFloat(evt.Quantity, 64)
	if err1 != nil || err2 != nil {
		f.log.Warn().Msg("invalid trade fields")
		return
	}
	f.state.AppendTrade(market.Trade{
		Time:         time.UnixMilli(evt.TradeTime),
		Price:        price,
		Quantity:     qty,
		IsBuyerMaker: evt.IsBuyerMaker,
		ID:           evt.ID,
	})
	metrics.TradesIngested.WithLabelValues(f.symbol).Inc()
}

func (f *Feed) handleKline(data json.RawMessage) {
	var evt klineEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		f.log.Warn().Err(err).Msg("invalid kline event")
		return
	}
	if !evt.Kline.Closed {
		return // in-flight candles are transient
	}
	open, _ := strconv.ParseFloat(evt.Kline.Open, 64)
	high, _ := strconv.ParseFloat(evt.Kline.High, 64)
	low, _ := strconv.ParseFloat(evt.Kline.Low, 64)
	closePx, _ := strconv.ParseFloat(evt.Kline.Close, 64)
	volume, _ := strconv.ParseFloat(evt.Kline.Volume, 64)
	f.state.AppendCandle(market.Candle{
		Interval: evt.Kline.Interval,
		OpenTime: time.UnixMilli(evt.Kline.OpenTime),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePx,
		Volume:   volume,
	})
	metrics.CandlesClosed.WithLabelValues(evt.Kline.Interval).Inc()
}

func (f *Feed) handleTicker(data json.RawMessage) {
	var evt tickerEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return
	}
	if v, err := strconv.ParseFloat(evt.QuoteVolume, 64); err == nil {
		f.state.SetVolume24h(v)
	}
}

func parseLevels(raw [][]string) []market.BookLevel {
	levels := make([]market.BookLevel, 0, len(raw))
	for _, pair := range raw {
		if len(pair) < 2 {
			continue
		}
		price, err1 := strconv.ParseFloat(pair[0], 64)
		qty, err2 := strconv.ParseFloat(pair[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		levels = append(levels, market.BookLevel{Price: price, Quantity: qty})
	}
	return levels
}
