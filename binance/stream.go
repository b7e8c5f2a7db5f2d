package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rustyeddy/scriptbot/market"
)

// DefaultStreamURL is the production combined-stream websocket endpoint.
const DefaultStreamURL = "wss://fstream.binance.com/stream"

// klineEvent is the payload of a kline stream message.
type klineEvent struct {
	Data struct {
		EventType string `json:"e"`
		Symbol    string `json:"s"`
		Kline     struct {
			OpenTime int64  `json:"t"`
			Interval string `json:"i"`
			Open     string `json:"o"`
			High     string `json:"h"`
			Low      string `json:"l"`
			Close    string `json:"c"`
			Volume   string `json:"v"`
			Closed   bool   `json:"x"`
		} `json:"k"`
	} `json:"data"`
}

// StreamKey identifies one kline subscription.
type StreamKey struct {
	Symbol   string
	Interval market.Interval
}

// Stream maintains a websocket subscription to kline updates and keeps the
// latest candle per symbol/interval. On a closed-candle event the optional
// OnClose callback fires, which the data layer uses to refresh its cache.
type Stream struct {
	url  string
	log  *zap.Logger
	keys []StreamKey

	// OnClose, when set, is invoked for every candle the exchange marks
	// final. It runs on the read loop goroutine and must not block.
	OnClose func(key StreamKey, candle market.Candle)

	mu     sync.RWMutex
	latest map[StreamKey]market.Candle
}

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithStreamURL overrides the websocket endpoint.
func WithStreamURL(u string) StreamOption {
	return func(s *Stream) { s.url = u }
}

// NewStream creates a stream for the given subscriptions. Run must be
// called to start receiving.
func NewStream(log *zap.Logger, keys []StreamKey, opts ...StreamOption) *Stream {
	s := &Stream{
		url:    DefaultStreamURL,
		log:    log,
		keys:   keys,
		latest: make(map[StreamKey]market.Candle, len(keys)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Latest returns the most recent candle seen for a subscription.
func (s *Stream) Latest(symbol string, interval market.Interval) (market.Candle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.latest[StreamKey{Symbol: symbol, Interval: interval}]
	return c, ok
}

// Run connects and consumes kline events until the context is canceled,
// reconnecting with backoff on any failure.
func (s *Stream) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		err := s.consume(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn("stream disconnected, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", backoff))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *Stream) consume(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.streamURL(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the context ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	conn.SetPingHandler(func(payload string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(payload), time.Now().Add(5*time.Second))
	})

	s.log.Info("stream connected", zap.Int("subscriptions", len(s.keys)))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handle(msg)
	}
}

func (s *Stream) handle(msg []byte) {
	var ev klineEvent
	if err := json.Unmarshal(msg, &ev); err != nil || ev.Data.EventType != "kline" {
		return
	}
	k := ev.Data.Kline

	open, err1 := parseFloat(k.Open)
	high, err2 := parseFloat(k.High)
	low, err3 := parseFloat(k.Low)
	closePrice, err4 := parseFloat(k.Close)
	volume, err5 := parseFloat(k.Volume)
	for _, err := range []error{err1, err2, err3, err4, err5} {
		if err != nil {
			s.log.Warn("malformed kline event", zap.Error(err))
			return
		}
	}

	key := StreamKey{Symbol: ev.Data.Symbol, Interval: market.Interval(k.Interval)}
	candle := market.Candle{
		OpenTime: time.UnixMilli(k.OpenTime).UTC(),
		Open:     open,
		High:     high,
		Low:      low,
		Close:    closePrice,
		Volume:   volume,
		Closed:   k.Closed,
	}

	s.mu.Lock()
	s.latest[key] = candle
	s.mu.Unlock()

	if candle.Closed && s.OnClose != nil {
		s.OnClose(key, candle)
	}
}

// streamURL builds the combined-stream URL for every subscription.
func (s *Stream) streamURL() string {
	names := make([]string, len(s.keys))
	for i, k := range s.keys {
		names[i] = strings.ToLower(k.Symbol) + "@kline_" + string(k.Interval)
	}
	return s.url + "?streams=" + strings.Join(names, "/")
}
