// Package config exposes strongly typed engine configuration loaded from
// YAML, with exchange credentials taken from the environment.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Exchange describes venue connectivity and stream shape.
type Exchange struct {
	Symbol         string   `yaml:"symbol"`
	Testnet        bool     `yaml:"testnet"`
	KlineIntervals []string `yaml:"kline_intervals"`
	TradeBuffer    int      `yaml:"trade_buffer"`
	CandleHistory  int      `yaml:"candle_history"`

	// Credentials come from BINANCE_API_KEY / BINANCE_API_SECRET.
	APIKey    string `yaml:"-"`
	APISecret string `yaml:"-"`
}

// OrderFlow groups the wall, absorption, and imbalance thresholds.
type OrderFlow struct {
	WallMinSizeBTC         float64 `yaml:"wall_min_size_btc"`
	WallDistancePercent    float64 `yaml:"wall_distance_percent"`
	SpoofMaxLifetimeSec    float64 `yaml:"spoof_max_lifetime_sec"`
	AbsorptionRatio        float64 `yaml:"absorption_ratio"`
	ImbalanceThreshold     float64 `yaml:"imbalance_threshold"`
	InstitutionalMinBTC    float64 `yaml:"institutional_min_btc"`
	InstitutionalWindowSec int     `yaml:"institutional_window_sec"`
	FootprintWindowSec     int     `yaml:"footprint_window_sec"`
}

// EMA lists the four moving-average periods.
type EMA struct {
	Fast   int `yaml:"fast"`
	Medium int `yaml:"medium"`
	Slow   int `yaml:"slow"`
	Trend  int `yaml:"trend"`
}

// VolumeProfile configures the histogram builder.
type VolumeProfile struct {
	LookbackHours    int     `yaml:"lookback_hours"`
	PriceBins        int     `yaml:"price_bins"`
	ValueAreaPercent float64 `yaml:"value_area_percent"`
}

// Delta configures divergence detection.
type Delta struct {
	Periods          int     `yaml:"periods"`
	Threshold        float64 `yaml:"threshold"`
	TimeframeMinutes int     `yaml:"timeframe_minutes"`
}

// Sizing selects and parameterizes the position sizing policy.
type Sizing struct {
	Method            string  `yaml:"method"` // fixed_percent | fixed_dollar | kelly
	RiskPerTradePct   float64 `yaml:"risk_per_trade_percent"`
	FixedPositionUSDT float64 `yaml:"fixed_position_usdt"`
	KellyWinRate      float64 `yaml:"kelly_win_rate"`
	KellyRiskReward   float64 `yaml:"kelly_risk_reward"`
	KellyFraction     float64 `yaml:"kelly_fraction"`
	MaxAccountRiskPct float64 `yaml:"max_account_risk_percent"`
	MaxPositions      int     `yaml:"max_positions"`
}

// Risk encodes stop placement and daily protection.
type Risk struct {
	Leverage            int     `yaml:"leverage"`
	StopLossPct         float64 `yaml:"stop_loss_percent"`
	TakeProfitPct       float64 `yaml:"take_profit_percent"`
	TrailingStopEnabled bool    `yaml:"trailing_stop_enabled"`
	TrailingStopPct     float64 `yaml:"trailing_stop_percent"`
	MaxDailyLossPct     float64 `yaml:"max_daily_loss_percent"`
}

// Conditions holds the market-condition filter thresholds.
type Conditions struct {
	MinVolume24hUSDT         float64 `yaml:"min_volume_24h_usdt"`
	MinVolatilityPct         float64 `yaml:"min_volatility_percent"`
	MaxVolatilityPct         float64 `yaml:"max_volatility_percent"`
	MaxSpreadBips            float64 `yaml:"max_spread_bips"`
	TrendThreshold           float64 `yaml:"trend_threshold"`
	RangingThreshold         float64 `yaml:"ranging_threshold"`
	RequireTrendConfirmation bool    `yaml:"require_trend_confirmation"`
}

// Strategy holds fusion-level knobs and loop cadence.
type Strategy struct {
	MinSignalStrength   int `yaml:"min_signal_strength"`
	AnalysisIntervalSec int `yaml:"analysis_interval_sec"`
	AccountSyncSec      int `yaml:"account_sync_sec"`
	WarmupSec           int `yaml:"warmup_sec"`
}

// Telegram configures optional alerting. Token and chat id come from
// TELEGRAM_BOT_TOKEN / TELEGRAM_CHAT_ID.
type Telegram struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"-"`
	ChatID  string `yaml:"-"`
}

// Controls are the externally settable master switches the engine polls.
type Controls struct {
	EnableTrading bool `yaml:"enable_trading"`
	EmergencyStop bool `yaml:"emergency_stop"`
}

// Config collects every configuration leaf.
type Config struct {
	App           App           `yaml:"app"`
	Exchange      Exchange      `yaml:"exchange"`
	OrderFlow     OrderFlow     `yaml:"orderflow"`
	EMA           EMA           `yaml:"ema"`
	VolumeProfile VolumeProfile `yaml:"volume_profile"`
	Delta         Delta         `yaml:"delta"`
	Sizing        Sizing        `yaml:"sizing"`
	Risk          Risk          `yaml:"risk"`
	Conditions    Conditions    `yaml:"conditions"`
	Strategy      Strategy      `yaml:"strategy"`
	Telegram      Telegram      `yaml:"telegram"`
	Controls      Controls      `yaml:"controls"`
}

// Default mirrors the shipped config.yaml so a missing file still yields
// a runnable (paper) configuration.
func Default() *Config {
	return &Config{
		App: App{Name: "flowbot", Env: "dev", MetricsAddr: ":9100", LogLevel: "info"},
		Exchange: Exchange{
			Symbol:         "BTCUSDT",
			KlineIntervals: []string{"1m", "5m", "15m"},
			TradeBuffer:    2000,
			CandleHistory:  500,
		},
		OrderFlow: OrderFlow{
			WallMinSizeBTC:         100,
			WallDistancePercent:    0.5,
			SpoofMaxLifetimeSec:    5,
			AbsorptionRatio:        5,
			ImbalanceThreshold:     0.70,
			InstitutionalMinBTC:    10,
			InstitutionalWindowSec: 120,
			FootprintWindowSec:     60,
		},
		EMA:           EMA{Fast: 9, Medium: 21, Slow: 50, Trend: 200},
		VolumeProfile: VolumeProfile{LookbackHours: 24, PriceBins: 100, ValueAreaPercent: 70},
		Delta:         Delta{Periods: 14, Threshold: 0.3, TimeframeMinutes: 5},
		Sizing: Sizing{
			Method:            "fixed_percent",
			RiskPerTradePct:   1.0,
			FixedPositionUSDT: 50,
			KellyWinRate:      0.55,
			KellyRiskReward:   2.0,
			KellyFraction:     0.25,
			MaxAccountRiskPct: 5.0,
			MaxPositions:      3,
		},
		Risk: Risk{
			Leverage:            3,
			StopLossPct:         2.0,
			TakeProfitPct:       4.0,
			TrailingStopEnabled: true,
			TrailingStopPct:     1.5,
			MaxDailyLossPct:     3.0,
		},
		Conditions: Conditions{
			MinVolume24hUSDT:         1e9,
			MinVolatilityPct:         0.5,
			MaxVolatilityPct:         10.0,
			MaxSpreadBips:            50,
			TrendThreshold:           0.02,
			RangingThreshold:         0.005,
			RequireTrendConfirmation: true,
		},
		Strategy: Strategy{
			MinSignalStrength:   60,
			AnalysisIntervalSec: 5,
			AccountSyncSec:      60,
			WarmupSec:           30,
		},
		Telegram: Telegram{Enabled: false},
		Controls: Controls{EnableTrading: true, EmergencyStop: false},
	}
}

// Load hydrates defaults, overlays the YAML file when present, pulls
// credentials from the environment, and validates.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("open config: %w", err)
			}
		} else {
			defer file.Close()
			if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
				return nil, fmt.Errorf("decode yaml: %w", err)
			}
		}
	}

	cfg.Exchange.APIKey = os.Getenv("BINANCE_API_KEY")
	cfg.Exchange.APISecret = os.Getenv("BINANCE_API_SECRET")
	cfg.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.Telegram.ChatID = os.Getenv("TELEGRAM_CHAT_ID")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Sizing.Method {
	case "fixed_percent", "fixed_dollar", "kelly":
	default:
		return fmt.Errorf("unknown sizing method %q", c.Sizing.Method)
	}
	if c.Exchange.Symbol == "" {
		return fmt.Errorf("exchange symbol is required")
	}
	if c.Strategy.MinSignalStrength <= 0 {
		return fmt.Errorf("min_signal_strength must be positive")
	}
	if c.Risk.StopLossPct <= 0 || c.Risk.TakeProfitPct <= 0 {
		return fmt.Errorf("stop loss and take profit percents must be positive")
	}
	return nil
}

// ValidateLive additionally requires credentials; live trading without
// them is a fatal startup error.
func (c *Config) ValidateLive() error {
	if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
		return fmt.Errorf("missing exchange credentials: set BINANCE_API_KEY and BINANCE_API_SECRET")
	}
	return nil
}
