// Package stream receives live ticks over a websocket and reconnects with
// backoff when the connection drops.
package stream

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rustyeddy/tradedesk/market"
	"github.com/rustyeddy/tradedesk/pkg/logger"
	"github.com/rustyeddy/tradedesk/scheduler"
)

// Message is one tick on the wire.
type Message struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	T      time.Time `json:"t"`
}

// Subscribe is sent after every connect and whenever the symbols change.
type Subscribe struct {
	Op      string   `json:"op"`
	Symbols []string `json:"symbols"`
}

type Stream struct {
	url     string
	header  http.Header
	dialer  *websocket.Dialer
	backoff *scheduler.Backoff
	ping    time.Duration
	log     *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	symbols []string
	// serializes writes to conn
	writeMu sync.Mutex
}

type Option func(*Stream)

func WithToken(token string) Option {
	return func(s *Stream) {
		if token != "" {
			s.header.Set("Authorization", "Bearer "+token)
		}
	}
}

func WithBackoff(b *scheduler.Backoff) Option { return func(s *Stream) { s.backoff = b } }
func WithLogger(l *zap.Logger) Option         { return func(s *Stream) { s.log = l } }
func WithDialer(d *websocket.Dialer) Option   { return func(s *Stream) { s.dialer = d } }
func WithPingInterval(d time.Duration) Option { return func(s *Stream) { s.ping = d } }

func New(url string, opts ...Option) *Stream {
	s := &Stream{
		url:     url,
		header:  http.Header{},
		dialer:  &websocket.Dialer{HandshakeTimeout: 12 * time.Second},
		backoff: scheduler.DefaultBackoff(),
		ping:    20 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	if s.ping <= 0 {
		s.ping = 20 * time.Second
	}
	s.log = logger.OrNop(s.log)
	return s
}

// SetSymbols replaces the subscription and resends it on a live
// connection.
func (s *Stream) SetSymbols(syms []string) error {
	s.mu.Lock()
	s.symbols = append([]string(nil), syms...)
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return s.subscribe(conn)
}

func (s *Stream) subscribe(conn *websocket.Conn) error {
	s.mu.Lock()
	msg := Subscribe{Op: "subscribe", Symbols: append([]string(nil), s.symbols...)}
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

// Run delivers ticks to out until ctx ends. Dropped connections are retried
// on the backoff schedule; the attempt counter resets after a successful
// connect.
func (s *Stream) Run(ctx context.Context, out chan<- market.Tick) error {
	attempt := 0
	for {
		err := s.session(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, errConnected) {
			attempt = 0
		}
		delay := s.backoff.Delay(attempt)
		s.log.Warn("tick stream disconnected",
			zap.String("url", s.url),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)
		attempt++

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

var errConnected = errors.New("stream: connection lost")

// session runs one connection. It wraps errConnected when the dial
// succeeded so Run can reset the backoff.
func (s *Stream) session(ctx context.Context, out chan<- market.Tick) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, s.header)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	done := make(chan struct{})
	defer func() {
		close(done)
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		_ = conn.Close()
	}()
	go s.keepalive(ctx, conn, done)

	if err := s.subscribe(conn); err != nil {
		return errors.Join(errConnected, err)
	}
	s.log.Info("tick stream connected", zap.String("url", s.url))

	for {
		var m Message
		if err := conn.ReadJSON(&m); err != nil {
			return errors.Join(errConnected, err)
		}
		if m.Symbol == "" || !market.Valid(m.Price) {
			continue
		}
		if m.T.IsZero() {
			m.T = time.Now()
		}
		select {
		case out <- market.Tick{Symbol: m.Symbol, Price: m.Price, Time: m.T.UTC()}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// keepalive pings the server and closes conn when ctx ends so a blocked
// read returns.
func (s *Stream) keepalive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	t := time.NewTicker(s.ping)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.Close()
			return
		case <-t.C:
			s.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			s.writeMu.Unlock()
			if err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}
