package trade

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rustyeddy/scriptbot/action"
	"github.com/rustyeddy/scriptbot/broker"
	"github.com/rustyeddy/scriptbot/market"
	"github.com/rustyeddy/scriptbot/store"
)

type stubData struct {
	price   float64
	hasLive bool
}

func (s *stubData) Candles(context.Context, string, market.Interval) ([]market.Candle, error) {
	return nil, nil
}

func (s *stubData) LiveCandle(string, market.Interval) (market.Candle, bool) {
	return market.Candle{OpenTime: time.Now(), Close: s.price}, s.hasLive
}

type stubAccount struct {
	capital   float64
	positions []market.Position
}

func (s *stubAccount) AvailableCapital(context.Context) (float64, error) { return s.capital, nil }

func (s *stubAccount) OpenPositions(context.Context) ([]market.Position, error) {
	return s.positions, nil
}

func (s *stubAccount) MarkPrice(context.Context, string) (float64, error) { return 0, nil }

type stubConstraints struct {
	constraints market.SymbolConstraints
	tiers       []market.LeverageTier
}

func (s *stubConstraints) Constraints(context.Context, string) (market.SymbolConstraints, error) {
	return s.constraints, nil
}

func (s *stubConstraints) LeverageTiers(context.Context, string) ([]market.LeverageTier, error) {
	return s.tiers, nil
}

// recordingSink captures every exchange call in order. blockEntry, when set,
// parks SubmitMarketOrder until released so tests can hold the trade lock.
type recordingSink struct {
	mu         sync.Mutex
	calls      []string
	leverage   int
	market     broker.MarketOrderRequest
	stop       broker.StopOrderRequest
	take       broker.StopOrderRequest
	blockEntry chan struct{}
}

func (s *recordingSink) record(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, name)
}

func (s *recordingSink) callNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *recordingSink) SetMarginType(_ context.Context, _ string, isolated bool) error {
	s.record("margin")
	return nil
}

func (s *recordingSink) SetLeverage(_ context.Context, _ string, leverage int) error {
	s.record("leverage")
	s.mu.Lock()
	s.leverage = leverage
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) SubmitMarketOrder(_ context.Context, req broker.MarketOrderRequest) (broker.OrderFill, error) {
	s.record("market")
	s.mu.Lock()
	s.market = req
	block := s.blockEntry
	s.mu.Unlock()
	if block != nil {
		<-block
	}
	return broker.OrderFill{OrderID: "1", Symbol: req.Symbol, Quantity: req.Quantity}, nil
}

func (s *recordingSink) SubmitStopOrder(_ context.Context, req broker.StopOrderRequest) error {
	s.record("stop")
	s.mu.Lock()
	s.stop = req
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) SubmitTakeProfitOrder(_ context.Context, req broker.StopOrderRequest) error {
	s.record("take")
	s.mu.Lock()
	s.take = req
	s.mu.Unlock()
	return nil
}

func (s *recordingSink) CancelOpenOrders(context.Context, string) error {
	s.record("cancel")
	return nil
}

type memOrderLog struct {
	records []store.OrderRecord
}

func (m *memOrderLog) RecordOrder(rec store.OrderRecord) error {
	m.records = append(m.records, rec)
	return nil
}

func btcFixture() *stubConstraints {
	return &stubConstraints{
		constraints: market.SymbolConstraints{
			MinQty:            0.001,
			StepSize:          0.001,
			QuantityPrecision: 3,
			MinNotional:       5,
			PricePrecision:    2,
		},
		tiers: []market.LeverageTier{{MaxNotional: 1e9, MMR: 0.004, MaxLeverage: 125}},
	}
}

func longRequest() Request {
	sl := action.Target{Value: 2, Percent: true}
	rr := 2.0
	return Request{
		Symbol:       "BTCUSDT",
		Interval:     market.Interval1h,
		Direction:    action.DirLong,
		PositionSize: 2000,
		Leverage:     10,
		RiskPercent:  10,
		StopLoss:     &sl,
		RiskReward:   &rr,
	}
}

func TestPlace_FullSequence(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	orders := &memOrderLog{}
	p := NewPlacer(zap.NewNop(), &stubData{price: 50000, hasLive: true},
		&stubAccount{capital: 2000}, btcFixture(), sink, WithOrderLog(orders))

	p.Place(context.Background(), longRequest())

	assert.Equal(t, []string{"margin", "leverage", "market", "stop", "take"}, sink.callNames())
	assert.Equal(t, 10, sink.leverage)
	assert.Equal(t, broker.Buy, sink.market.Side)
	assert.Equal(t, market.Long, sink.market.PositionSide)
	assert.InDelta(t, 0.04, sink.market.Quantity, 1e-9)

	// Stop at 2% below entry, closing the long.
	assert.Equal(t, broker.Sell, sink.stop.Side)
	assert.InDelta(t, 49000.0, sink.stop.StopPrice, 1e-9)

	// rr=2 on 200 margin: net 400 plus 1.60 round-trip fees over a 2000
	// notional is a 20.08% move.
	assert.InDelta(t, 60040.0, sink.take.StopPrice, 1e-9)

	require.Len(t, orders.records, 1)
	rec := orders.records[0]
	assert.Equal(t, "1", rec.OrderID)
	assert.InDelta(t, 0.04, rec.Quantity, 1e-9)
	assert.InDelta(t, 2000.0, rec.Notional, 1e-9)
	assert.InDelta(t, 200.0, rec.Margin, 1e-9)
	assert.InDelta(t, 49000.0, rec.StopLoss, 1e-9)
	assert.InDelta(t, 60040.0, rec.TakeProfit, 1e-9)
}

func TestPlace_ShortStopAboveEntry(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	p := NewPlacer(zap.NewNop(), &stubData{price: 50000, hasLive: true},
		&stubAccount{capital: 2000}, btcFixture(), sink)

	req := longRequest()
	req.Direction = action.DirShort
	req.RiskReward = nil
	tp := action.Target{Value: 45000}
	req.TakeProfit = &tp
	p.Place(context.Background(), req)

	assert.Equal(t, broker.Sell, sink.market.Side)
	assert.Equal(t, market.Short, sink.market.PositionSide)
	assert.Equal(t, broker.Buy, sink.stop.Side)
	assert.InDelta(t, 51000.0, sink.stop.StopPrice, 1e-9)
	assert.InDelta(t, 45000.0, sink.take.StopPrice, 1e-9)
}

// A second attempt while one placement is in flight is dropped outright,
// with no exchange calls at all.
func TestPlace_SingleFlight(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{blockEntry: make(chan struct{})}
	p := NewPlacer(zap.NewNop(), &stubData{price: 50000, hasLive: true},
		&stubAccount{capital: 2000}, btcFixture(), sink)

	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		close(started)
		p.Place(context.Background(), longRequest())
	}()
	<-started

	// Wait for the first attempt to reach the blocked entry order.
	require.Eventually(t, func() bool {
		for _, c := range sink.callNames() {
			if c == "market" {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)

	before := len(sink.callNames())
	p.Place(context.Background(), longRequest())
	assert.Len(t, sink.callNames(), before)

	close(sink.blockEntry)
	<-done

	// The lock releases once the first placement finishes.
	sink.mu.Lock()
	sink.blockEntry = nil
	sink.mu.Unlock()
	p.Place(context.Background(), longRequest())
	count := 0
	for _, c := range sink.callNames() {
		if c == "market" {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestPlace_NoLiveCandle(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	p := NewPlacer(zap.NewNop(), &stubData{hasLive: false},
		&stubAccount{capital: 2000}, btcFixture(), sink)

	p.Place(context.Background(), longRequest())
	assert.Empty(t, sink.callNames())
}

func TestPlace_ExistingPositionSameDirection(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	account := &stubAccount{
		capital: 2000,
		positions: []market.Position{
			{Symbol: "BTCUSDT", Side: market.Long, Quantity: 0.5},
		},
	}
	p := NewPlacer(zap.NewNop(), &stubData{price: 50000, hasLive: true},
		account, btcFixture(), sink)

	p.Place(context.Background(), longRequest())
	assert.Empty(t, sink.callNames())
}

func TestPlace_OppositePositionAllowed(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	account := &stubAccount{
		capital: 2000,
		positions: []market.Position{
			{Symbol: "BTCUSDT", Side: market.Short, Quantity: 0.5},
		},
	}
	p := NewPlacer(zap.NewNop(), &stubData{price: 50000, hasLive: true},
		account, btcFixture(), sink)

	p.Place(context.Background(), longRequest())
	assert.Contains(t, sink.callNames(), "market")
}

func TestPlace_SizingRejection(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	// 0.50 of capital risked at 10% is far below the exchange minimum.
	p := NewPlacer(zap.NewNop(), &stubData{price: 50000, hasLive: true},
		&stubAccount{capital: 0.5}, btcFixture(), sink)

	req := longRequest()
	req.PositionSize = 0.5
	p.Place(context.Background(), req)
	assert.Empty(t, sink.callNames())
}

func TestPlace_CrossMarginSkipsMarginCall(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	p := NewPlacer(zap.NewNop(), &stubData{price: 50000, hasLive: true},
		&stubAccount{capital: 2000}, btcFixture(), sink, WithCrossMargin())

	p.Place(context.Background(), longRequest())
	assert.NotContains(t, sink.callNames(), "margin")
	assert.Contains(t, sink.callNames(), "market")
}
