package execution

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"flowbot/internal/config"
	"flowbot/internal/market"
	"flowbot/internal/risk"
	"flowbot/internal/signal"
	"flowbot/internal/sizing"
)

type fakeVenue struct {
	leverage     int
	orders       []OrderRequest
	failOnOrder  int // 1-based index of the order to fail, 0 for none
	leverageFail bool
}

func (f *fakeVenue) SetLeverage(_ context.Context, _ string, lev int) error {
	if f.leverageFail {
		return errors.New("leverage rejected")
	}
	f.leverage = lev
	return nil
}

func (f *fakeVenue) PlaceOrder(_ context.Context, req OrderRequest) (OrderResult, error) {
	if f.failOnOrder == len(f.orders)+1 {
		return OrderResult{}, errors.New("order rejected")
	}
	f.orders = append(f.orders, req)
	return OrderResult{OrderID: int64(len(f.orders)), ExecutedQty: req.Quantity, AvgPrice: 50000}, nil
}

type fakeControls struct {
	trading   bool
	emergency bool
}

func (c fakeControls) TradingEnabled() bool { return c.trading }
func (c fakeControls) EmergencyStop() bool  { return c.emergency }

type recordingAlerter struct{ messages []string }

func (a *recordingAlerter) Alert(_ context.Context, text string) {
	a.messages = append(a.messages, text)
}

func buySignal() signal.Signal {
	return signal.Signal{
		Time:       time.Now(),
		Bias:       signal.Bullish,
		Strength:   75,
		Action:     signal.Buy,
		EntryPrice: 50000,
		StopLoss:   49000,
		TakeProfit: 52000,
	}
}

func newTestExecutor(t *testing.T, venue Venue, controls Controls, alerter Alerter) (*Executor, *market.State) {
	t.Helper()
	state := market.NewState(10, 0)
	state.SetAccount(1000, nil)

	sizer := sizing.NewSizer(state, config.Sizing{
		Method:            "fixed_percent",
		RiskPerTradePct:   1.0,
		MaxAccountRiskPct: 5.0,
		MaxPositions:      3,
	}, 3.0)
	riskMgr := risk.NewManager(state, config.Risk{MaxDailyLossPct: 3.0}, zerolog.Nop())

	return NewExecutor("BTCUSDT", 3, venue, sizer, riskMgr, state, controls, alerter, zerolog.Nop()), state
}

func TestExecutePlacesBracket(t *testing.T) {
	venue := &fakeVenue{}
	alerter := &recordingAlerter{}
	exec, state := newTestExecutor(t, venue, fakeControls{trading: true}, alerter)

	require.NoError(t, exec.Execute(context.Background(), buySignal()))

	require.Equal(t, 3, venue.leverage)
	require.Len(t, venue.orders, 3)

	entry := venue.orders[0]
	require.Equal(t, Buy, entry.Side)
	require.Equal(t, Market, entry.Type)
	require.NotEmpty(t, entry.ClientID)
	require.InDelta(t, 0.01, entry.Quantity, 1e-9)
	require.False(t, entry.ReduceOnly)

	stop := venue.orders[1]
	require.Equal(t, Sell, stop.Side)
	require.Equal(t, StopMarket, stop.Type)
	require.Equal(t, 49000.0, stop.StopPrice)
	require.True(t, stop.ReduceOnly)

	target := venue.orders[2]
	require.Equal(t, Sell, target.Side)
	require.Equal(t, TakeProfitMarket, target.Type)
	require.Equal(t, 52000.0, target.StopPrice)
	require.True(t, target.ReduceOnly)

	require.Equal(t, 1, state.DailyTrades())
	require.Len(t, alerter.messages, 1)
}

func TestExecuteSellBracketFlipsSides(t *testing.T) {
	venue := &fakeVenue{}
	exec, _ := newTestExecutor(t, venue, fakeControls{trading: true}, &recordingAlerter{})

	sig := buySignal()
	sig.Bias = signal.Bearish
	sig.Action = signal.Sell
	sig.StopLoss = 51000
	sig.TakeProfit = 48000

	require.NoError(t, exec.Execute(context.Background(), sig))
	require.Len(t, venue.orders, 3)
	require.Equal(t, Sell, venue.orders[0].Side)
	require.Equal(t, Buy, venue.orders[1].Side)
	require.Equal(t, Buy, venue.orders[2].Side)
}

func TestExecuteBlockedByMasterSwitch(t *testing.T) {
	venue := &fakeVenue{}
	exec, _ := newTestExecutor(t, venue, fakeControls{trading: false}, &recordingAlerter{})

	require.NoError(t, exec.Execute(context.Background(), buySignal()))
	require.Empty(t, venue.orders)
}

func TestExecuteBlockedByEmergencyStop(t *testing.T) {
	venue := &fakeVenue{}
	exec, _ := newTestExecutor(t, venue, fakeControls{trading: true, emergency: true}, &recordingAlerter{})

	require.NoError(t, exec.Execute(context.Background(), buySignal()))
	require.Empty(t, venue.orders)
}

func TestExecuteBlockedByDailyLoss(t *testing.T) {
	venue := &fakeVenue{}
	exec, state := newTestExecutor(t, venue, fakeControls{trading: true}, &recordingAlerter{})
	state.AddDailyPnL(-35)

	require.NoError(t, exec.Execute(context.Background(), buySignal()))
	require.Empty(t, venue.orders)
}

func TestExecuteBlockedByZeroBalance(t *testing.T) {
	venue := &fakeVenue{}
	exec, state := newTestExecutor(t, venue, fakeControls{trading: true}, &recordingAlerter{})
	state.SetAccount(0, nil)

	require.NoError(t, exec.Execute(context.Background(), buySignal()))
	require.Empty(t, venue.orders)
}

func TestExecuteLeverageFailureReported(t *testing.T) {
	venue := &fakeVenue{leverageFail: true}
	exec, _ := newTestExecutor(t, venue, fakeControls{trading: true}, &recordingAlerter{})

	err := exec.Execute(context.Background(), buySignal())
	require.Error(t, err)
	require.Empty(t, venue.orders)
}

func TestExecuteEntryFailureReported(t *testing.T) {
	venue := &fakeVenue{failOnOrder: 1}
	exec, state := newTestExecutor(t, venue, fakeControls{trading: true}, &recordingAlerter{})

	err := exec.Execute(context.Background(), buySignal())
	require.Error(t, err)
	require.Empty(t, venue.orders)
	require.Zero(t, state.DailyTrades())
}
