package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/fundarb/internal/domain"
	"github.com/alanyoungcy/fundarb/internal/scanner"
)

// DefaultWSURL is the Bybit v5 public linear stream.
const DefaultWSURL = "wss://stream.bybit.com/v5/public/linear"

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pingPeriod is the heartbeat interval. Bybit drops connections that go
	// quiet for more than 30 seconds.
	pingPeriod = 20 * time.Second

	// reconnectDelay is the base delay before attempting to reconnect.
	reconnectDelay = 2 * time.Second

	// maxReconnectDelay caps the exponential backoff for reconnection.
	maxReconnectDelay = 60 * time.Second
)

// FundingHandler is called for every ticker update that carries a funding
// rate. Delta updates without a rate change are not delivered.
type FundingHandler func(domain.FundingObservation)

// WSClient streams live ticker updates from the Bybit v5 public WebSocket and
// dispatches funding rate changes to registered handlers. It manages the
// connection lifecycle including heartbeats and reconnection.
type WSClient struct {
	wsURL string
	conn  *websocket.Conn

	mu     sync.RWMutex
	closed bool

	// Topics to restore on reconnect.
	topics []string

	handlers  []FundingHandler
	handlerMu sync.RWMutex

	// done is closed when the client is shut down.
	done chan struct{}
}

// NewWSClient creates a WebSocket client. An empty wsURL selects production.
func NewWSClient(wsURL string) *WSClient {
	if wsURL == "" {
		wsURL = DefaultWSURL
	}
	return &WSClient{
		wsURL: wsURL,
		done:  make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the read and
// heartbeat loops.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("bybit/ws: client closed")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("bybit/ws: connect: %w", err)
	}
	w.conn = conn

	go w.readLoop()
	go w.pingLoop()

	// Restore subscriptions after reconnect.
	if len(w.topics) > 0 {
		if err := w.sendOp("subscribe", w.topics); err != nil {
			return fmt.Errorf("bybit/ws: restore subscriptions: %w", err)
		}
	}
	return nil
}

// SubscribeTicker subscribes to ticker updates for the given symbols.
func (w *WSClient) SubscribeTicker(symbols []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("bybit/ws: not connected")
	}

	topics := make([]string, 0, len(symbols))
	for _, s := range symbols {
		topics = append(topics, "tickers."+s)
	}
	if err := w.sendOp("subscribe", topics); err != nil {
		return fmt.Errorf("bybit/ws: subscribe: %w", err)
	}
	w.topics = append(w.topics, topics...)
	return nil
}

// OnFunding registers a handler called for every funding rate update.
func (w *WSClient) OnFunding(handler FundingHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Close shuts down the connection and stops the read loop.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}
	return nil
}

// sendOp sends a v5 op frame. Caller must hold w.mu.
func (w *WSClient) sendOp(op string, args []string) error {
	w.conn.SetWriteDeadline(time.Now().Add(writeWait))

	frame := struct {
		Op   string   `json:"op"`
		Args []string `json:"args,omitempty"`
	}{Op: op, Args: args}

	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal op: %w", err)
	}
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WSClient) readLoop() {
	for {
		select {
		case <-w.done:
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			default:
			}
			w.reconnect()
			return // a new readLoop starts from reconnect -> Connect
		}
		w.handleMessage(message)
	}
}

// pingLoop sends Bybit's application-level heartbeat frame.
func (w *WSClient) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.Lock()
			if w.conn == nil {
				w.mu.Unlock()
				return
			}
			err := w.sendOp("ping", nil)
			w.mu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

type tickerMessage struct {
	Topic string `json:"topic"`
	Type  string `json:"type"`
	TS    int64  `json:"ts"`
	Data  struct {
		Symbol      string `json:"symbol"`
		FundingRate string `json:"fundingRate"`
	} `json:"data"`
}

// handleMessage routes a raw frame. Pongs, subscription acks and delta
// tickers without a funding rate change are dropped silently.
func (w *WSClient) handleMessage(raw []byte) {
	var msg tickerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.Data.Symbol == "" || msg.Data.FundingRate == "" {
		return
	}

	rate, err := strconv.ParseFloat(msg.Data.FundingRate, 64)
	if err != nil {
		return
	}

	at := time.Now().UTC()
	if msg.TS > 0 {
		at = time.UnixMilli(msg.TS).UTC()
	}
	obs := domain.FundingObservation{
		Exchange:  "bybit",
		Symbol:    msg.Data.Symbol,
		BaseAsset: scanner.ExtractBaseAsset(msg.Data.Symbol),
		Rate:      rate,
		Timestamp: at,
	}

	w.handlerMu.RLock()
	handlers := w.handlers
	w.handlerMu.RUnlock()
	for _, h := range handlers {
		h(obs)
	}
}

// reconnect re-establishes the connection with exponential backoff. It blocks
// until successful or the client is closed.
func (w *WSClient) reconnect() {
	delay := reconnectDelay

	for {
		select {
		case <-w.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()
		if err == nil {
			return
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}
