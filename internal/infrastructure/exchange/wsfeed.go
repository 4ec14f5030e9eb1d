package exchange

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const KrakenWSURL = "wss://ws.kraken.com"

// PriceFeed subscribes to Kraken's public ticker stream and keeps the latest
// trade price. The decision loop still polls REST; the feed only supplies a
// fresher price sample between polls.
type PriceFeed struct {
	url  string
	pair string // websocket pair name, e.g. "XBT/CAD"
	log  *zap.Logger

	mu        sync.Mutex
	conn      *websocket.Conn // nil once closed; Close is the sole closer
	lastPrice float64
	lastTime  int64
}

func NewPriceFeed(url, pair string, log *zap.Logger) *PriceFeed {
	if url == "" {
		url = KrakenWSURL
	}
	return &PriceFeed{url: url, pair: pair, log: log}
}

// Connect dials the stream and starts the read loop. The feed is best-effort:
// on read errors the loop exits and Last reports no data.
func (f *PriceFeed) Connect() error {
	c, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	if err != nil {
		return err
	}

	sub := map[string]interface{}{
		"event": "subscribe",
		"pair":  []string{f.pair},
		"subscription": map[string]string{
			"name": "ticker",
		},
	}
	if err := c.WriteJSON(sub); err != nil {
		c.Close()
		return err
	}

	f.mu.Lock()
	f.conn = c
	f.mu.Unlock()

	go f.readLoop(c)
	return nil
}

// Close tears down the connection, which also unblocks the read loop. Safe to
// call more than once or without a prior Connect.
func (f *PriceFeed) Close() {
	f.mu.Lock()
	c := f.conn
	f.conn = nil
	f.mu.Unlock()

	if c != nil {
		c.Close()
	}
}

// Last returns the most recent streamed price and its epoch-seconds
// timestamp. ok is false before the first ticker message arrives.
func (f *PriceFeed) Last() (price float64, ts int64, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastPrice, f.lastTime, f.lastTime > 0
}

func (f *PriceFeed) readLoop(c *websocket.Conn) {
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			f.log.Warn("ws read error, feed stopped", zap.Error(err))
			return
		}

		// Ticker updates arrive as arrays: [channelID, data, "ticker", pair].
		// Everything else (heartbeats, subscription status) is an object.
		var event []json.RawMessage
		if err := json.Unmarshal(message, &event); err != nil || len(event) < 4 {
			continue
		}

		var channel string
		if err := json.Unmarshal(event[2], &channel); err != nil || channel != "ticker" {
			continue
		}

		var data struct {
			C []string `json:"c"` // last trade [price, lot volume]
		}
		if err := json.Unmarshal(event[1], &data); err != nil || len(data.C) == 0 {
			continue
		}

		price, err := strconv.ParseFloat(data.C[0], 64)
		if err != nil || price <= 0 {
			continue
		}

		f.mu.Lock()
		f.lastPrice = price
		f.lastTime = time.Now().Unix()
		f.mu.Unlock()
	}
}
