package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"PairFlow/internal/domain/models"
	drepo "PairFlow/internal/domain/repository"
	"PairFlow/pkg/logger"

	"github.com/gorilla/websocket"
)

type Mode string

const (
	// ModeBinance dials the exchange and subscribes to <sym>@trade streams.
	ModeBinance Mode = "binance"
	// ModeRelay dials a relay that already pushes normalized ticks.
	ModeRelay Mode = "relay"
)

var ErrNotConnected = errors.New("feed: not connected")

// Option configures Client.
type Option func(*Config)

type Config struct {
	URL              string
	Mode             Mode
	Symbols          []string
	PingInterval     time.Duration
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	BufferSize       int
}

func WithURL(u string) Option       { return func(c *Config) { c.URL = u } }
func WithMode(m Mode) Option        { return func(c *Config) { c.Mode = m } }
func WithSymbols(s []string) Option { return func(c *Config) { c.Symbols = s } }
func WithPingInterval(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.PingInterval = d
		}
	}
}
func WithReadTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.ReadTimeout = d
		}
	}
}
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.HandshakeTimeout = d
		}
	}
}
func WithBufferSize(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.BufferSize = n
		}
	}
}

// Client implements MarketStream over a gorilla websocket. Writes (subscribe
// frames and pings) are serialized by writeMu since gorilla allows only one
// concurrent writer.
type Client struct {
	cfg     Config
	log     *logger.Logger
	metrics drepo.Metrics

	mu        sync.Mutex
	conn      *websocket.Conn
	writeMu   sync.Mutex
	connected atomic.Bool
}

// New creates a new feed client.
func New(log *logger.Logger, metrics drepo.Metrics, opts ...Option) *Client {
	cfg := Config{
		Mode:             ModeBinance,
		PingInterval:     15 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      30 * time.Second,
		BufferSize:       1024,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Client{cfg: cfg, log: log, metrics: metrics}
}

var _ drepo.MarketStream = (*Client)(nil)

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("feed connect %s: %w", c.cfg.URL, err)
	}
	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.connected.Store(true)
	c.log.Info("feed connected", logger.String("url", c.cfg.URL), logger.String("mode", string(c.cfg.Mode)))
	return nil
}

type subscribeFrame struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

// Subscribe subscribes to configured symbols. Relay mode needs no subscription.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.cfg.Mode == ModeRelay {
		return nil
	}
	conn := c.current()
	if conn == nil || !c.connected.Load() {
		return ErrNotConnected
	}
	params := make([]string, len(c.cfg.Symbols))
	for i, s := range c.cfg.Symbols {
		params[i] = strings.ToLower(s) + "@trade"
	}
	if err := c.write(conn, func() error {
		return conn.WriteJSON(subscribeFrame{Method: "SUBSCRIBE", Params: params, ID: 1})
	}); err != nil {
		return fmt.Errorf("subscribe %v: %w", params, err)
	}
	c.log.Info("feed subscribed", logger.Strings("streams", params))
	return nil
}

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

func (c *Client) write(conn *websocket.Conn, fn func() error) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return fn()
}

// Read streams ticks and the terminal read error of the current connection.
// Both channels close when the connection fails or ctx is done.
func (c *Client) Read(ctx context.Context) (<-chan models.Tick, <-chan error) {
	ticks := make(chan models.Tick, c.cfg.BufferSize)
	errs := make(chan error, 1)
	conn := c.current()

	readCtx, cancel := context.WithCancel(ctx)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-readCtx.Done():
				return
			case <-ticker.C:
				if conn == nil {
					return
				}
				if err := c.write(conn, func() error {
					return conn.WriteMessage(websocket.PingMessage, nil)
				}); err != nil {
					c.log.Warn("feed ping failed", logger.Error(err))
					return
				}
			}
		}
	}()

	// read loop
	go func() {
		defer cancel()
		defer close(ticks)
		defer close(errs)
		if conn == nil {
			errs <- ErrNotConnected
			return
		}
		for {
			if readCtx.Err() != nil {
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				c.connected.Store(false)
				if readCtx.Err() == nil {
					errs <- fmt.Errorf("feed read: %w", err)
				}
				return
			}
			out, err := Normalize(b)
			if err != nil {
				c.metrics.RecordError("normalize")
				c.log.Debug("dropping malformed frame", logger.Error(err))
				continue
			}
			for _, t := range out {
				select {
				case ticks <- t:
				case <-readCtx.Done():
					return
				}
			}
		}
	}()

	return ticks, errs
}

// Reconnect closes and reconnects. Backoff is the caller's job.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected.Store(false)
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return conn.Close()
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected.Load() }

// Symbols returns the subscribed symbols, lowercased.
func (c *Client) Symbols() []string {
	out := make([]string, len(c.cfg.Symbols))
	for i, s := range c.cfg.Symbols {
		out[i] = strings.ToLower(s)
	}
	return out
}
