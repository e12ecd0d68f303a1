// Package exchangews is a reference implementation of ports.AdapterFactory
// backed by real exchange WebSocket streams. It owns connection
// establishment, JSON decoding of exchange-native trade messages into
// ticker.Record, and auto-reconnection after a fixed delay; none of that is
// visible to the orchestrator core, which only ever sees
// ports.ExchangeHandler.SubscribeTicker.
package exchangews

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ingmarAvocado/fullon-ticker-service/internal/ports"
	"github.com/ingmarAvocado/fullon-ticker-service/internal/ticker"
)

// reconnectDelay is the pause between a dropped connection and the next
// dial attempt.
const reconnectDelay = 5 * time.Second

// streamURL resolves an exchange's public trade-stream WebSocket endpoint.
// Only the exchanges this reference adapter understands are listed here;
// an unknown exchange name is a hard error at handler construction time.
var streamURL = map[string]string{
	"binance":  "wss://stream.binance.com:9443/ws",
	"coinbase": "wss://ws-feed.exchange.coinbase.com",
}

// Factory is a ports.AdapterFactory that dials real exchange WebSocket
// endpoints. One handler is created per exchange by GetWebSocketHandler;
// Shutdown closes every outstanding connection and stops all reconnect
// loops.
type Factory struct {
	logger *logrus.Logger

	mu       sync.Mutex
	handlers map[string]*handler
	cancel   context.CancelFunc
}

// New constructs an empty Factory. logger may be nil, in which case the
// package-level standard logger is used.
func New(logger *logrus.Logger) *Factory {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Factory{
		logger:   logger,
		handlers: make(map[string]*handler),
	}
}

// GetWebSocketHandler returns the handler for descriptor.Name, dialing and
// starting its read loop on first use. creds is invoked once, at dial
// time, to obtain any private-stream credentials; this reference adapter's
// public trade streams never use them but the call is still made so a
// handler-level credential hook is exercised.
func (f *Factory) GetWebSocketHandler(ctx context.Context, descriptor ports.ExchangeDescriptor, creds ports.CredentialProvider) (ports.ExchangeHandler, error) {
	url, ok := streamURL[descriptor.Name]
	if !ok {
		return nil, fmt.Errorf("exchangews: unknown exchange %q", descriptor.Name)
	}

	f.mu.Lock()
	if h, exists := f.handlers[descriptor.Name]; exists {
		f.mu.Unlock()
		return h, nil
	}
	f.mu.Unlock()

	if creds != nil {
		if _, _, err := creds(ctx); err != nil {
			f.logger.WithFields(logrus.Fields{"exchange": descriptor.Name, "error": err}).
				Warn("credential provider returned an error, proceeding without credentials")
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	h := &handler{
		exchange: descriptor.Name,
		url:      url,
		logger:   f.logger,
		subs:     make(map[string]ports.TickCallback),
		ctx:      runCtx,
		cancel:   cancel,
	}

	f.mu.Lock()
	if existing, raced := f.handlers[descriptor.Name]; raced {
		cancel()
		f.mu.Unlock()
		return existing, nil
	}
	f.handlers[descriptor.Name] = h
	f.mu.Unlock()

	go h.run()

	return h, nil
}

// Shutdown cancels every handler's read loop and closes its connection.
func (f *Factory) Shutdown(ctx context.Context) error {
	f.mu.Lock()
	handlers := make([]*handler, 0, len(f.handlers))
	for _, h := range f.handlers {
		handlers = append(handlers, h)
	}
	f.handlers = make(map[string]*handler)
	f.mu.Unlock()

	for _, h := range handlers {
		h.close()
	}
	return nil
}

// handler is one exchange's WebSocket session. It owns its own connection
// and reconnect loop; SubscribeTicker only registers a per-symbol callback
// that the decode loop invokes on delivery.
type handler struct {
	exchange string
	url      string
	logger   *logrus.Logger

	mu   sync.RWMutex
	subs map[string]ports.TickCallback

	connMu sync.Mutex
	conn   *websocket.Conn

	ctx    context.Context
	cancel context.CancelFunc
}

// SubscribeTicker registers cb for symbol. Registration always succeeds;
// the symbol starts receiving ticks as soon as the exchange begins sending
// matching trade messages. This reference adapter does not send a
// subscribe control frame per symbol — it decodes the exchange's full
// public trade firehose and dispatches by symbol locally, matching the
// teacher's single-stream-url pattern.
func (h *handler) SubscribeTicker(ctx context.Context, symbol string, cb ports.TickCallback) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[symbol] = cb
	return nil
}

func (h *handler) dispatch(rec ticker.Record) {
	h.mu.RLock()
	cb, ok := h.subs[rec.Symbol]
	h.mu.RUnlock()
	if ok {
		cb(rec)
	}
}

func (h *handler) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		default:
		}

		if err := h.connectAndRead(); err != nil {
			h.logger.WithFields(logrus.Fields{"exchange": h.exchange, "error": err}).
				Error("websocket session ended, reconnecting")
		}

		select {
		case <-h.ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (h *handler) connectAndRead() error {
	conn, _, err := websocket.DefaultDialer.DialContext(h.ctx, h.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", h.exchange, err)
	}

	h.connMu.Lock()
	h.conn = conn
	h.connMu.Unlock()

	h.logger.WithFields(logrus.Fields{"exchange": h.exchange}).Info("connected to exchange websocket")

	defer conn.Close()

	for {
		select {
		case <-h.ctx.Done():
			return nil
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read %s: %w", h.exchange, err)
		}

		rec, err := h.decode(message)
		if err != nil {
			h.logger.WithFields(logrus.Fields{"exchange": h.exchange, "error": err}).
				Warn("failed to decode trade message, skipping")
			continue
		}
		h.dispatch(rec)
	}
}

func (h *handler) close() {
	h.cancel()
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.conn != nil {
		h.conn.Close()
	}
}

// binanceTrade mirrors Binance's raw trade-stream payload.
type binanceTrade struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
}

// coinbaseTrade mirrors Coinbase's "match" channel payload.
type coinbaseTrade struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Time      string `json:"time"`
}

func (h *handler) decode(message []byte) (ticker.Record, error) {
	switch h.exchange {
	case "binance":
		return decodeBinance(message)
	case "coinbase":
		return decodeCoinbase(message)
	default:
		return ticker.Record{}, fmt.Errorf("no decoder for exchange %q", h.exchange)
	}
}

func decodeBinance(message []byte) (ticker.Record, error) {
	var t binanceTrade
	if err := json.Unmarshal(message, &t); err != nil {
		return ticker.Record{}, fmt.Errorf("unmarshal binance trade: %w", err)
	}
	price, err := decimal.NewFromString(t.Price)
	if err != nil {
		return ticker.Record{}, fmt.Errorf("parse binance price: %w", err)
	}
	volume, err := decimal.NewFromString(t.Quantity)
	if err != nil {
		return ticker.Record{}, fmt.Errorf("parse binance volume: %w", err)
	}
	return ticker.Record{
		Exchange: "binance",
		Symbol:   convertBinanceSymbol(t.Symbol),
		Price:    price,
		Volume:   volume,
		Time:     time.UnixMilli(t.TradeTime),
	}, nil
}

func decodeCoinbase(message []byte) (ticker.Record, error) {
	var t coinbaseTrade
	if err := json.Unmarshal(message, &t); err != nil {
		return ticker.Record{}, fmt.Errorf("unmarshal coinbase trade: %w", err)
	}
	if t.Type != "match" && t.Type != "last_match" {
		return ticker.Record{}, fmt.Errorf("coinbase message type %q is not a trade", t.Type)
	}
	price, err := decimal.NewFromString(t.Price)
	if err != nil {
		return ticker.Record{}, fmt.Errorf("parse coinbase price: %w", err)
	}
	volume, err := decimal.NewFromString(t.Size)
	if err != nil {
		return ticker.Record{}, fmt.Errorf("parse coinbase volume: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, t.Time)
	if err != nil {
		ts = time.Now()
	}
	return ticker.Record{
		Exchange: "coinbase",
		Symbol:   convertCoinbaseSymbol(t.ProductID),
		Price:    price,
		Volume:   volume,
		Time:     ts,
	}, nil
}

// convertBinanceSymbol turns "BTCUSDT" into the canonical "BTC/USDT" form.
func convertBinanceSymbol(s string) string {
	for _, quote := range []string{"USDT", "USDC", "BUSD", "BTC", "ETH"} {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return s[:len(s)-len(quote)] + "/" + quote
		}
	}
	return s
}

// convertCoinbaseSymbol turns "BTC-USD" into the canonical "BTC/USD" form.
func convertCoinbaseSymbol(s string) string {
	return strings.ReplaceAll(s, "-", "/")
}
