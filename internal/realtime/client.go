// Package realtime consumes the platform's push channel: out-of-band
// occupancy counts and alert notifications delivered over a websocket.
package realtime

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	EventLiveOccupancy = "live_occupancy"
	EventAlert         = "alert"
)

// TokenSource supplies the bearer token presented when connecting.
type TokenSource interface {
	Token() string
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type liveOccupancyPayload struct {
	Count *int64 `json:"count"`
	Ts    int64  `json:"ts"`
}

// Client maintains the push connection and dispatches decoded events.
// Payloads without their own timestamp are stamped with arrival time so the
// consumer can reconcile them against polled data.
type Client struct {
	url            string
	tokens         TokenSource
	log            zerolog.Logger
	reconnectDelay time.Duration
	maxAttempts    int

	OnLiveOccupancy func(count int64, ts int64)
	OnAlert         func(data json.RawMessage)
}

func NewClient(wsURL string, tokens TokenSource, reconnectDelay time.Duration, maxAttempts int, log zerolog.Logger) *Client {
	if reconnectDelay <= 0 {
		reconnectDelay = time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Client{
		url:            wsURL,
		tokens:         tokens,
		log:            log,
		reconnectDelay: reconnectDelay,
		maxAttempts:    maxAttempts,
	}
}

// Run connects and reads until the context is cancelled. Each outage is
// retried up to maxAttempts with a fixed delay; a successful connect resets
// the attempt count. Run gives up once maxAttempts consecutive dials fail.
func (c *Client) Run(ctx context.Context) {
	attempts := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.dial(ctx)
		if err != nil {
			attempts++
			c.log.Warn().Err(err).Int("attempt", attempts).Msg("realtime connect failed")
			if attempts >= c.maxAttempts {
				c.log.Error().Msg("realtime channel gave up reconnecting")
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.reconnectDelay):
			}
			continue
		}

		attempts = 0
		c.log.Info().Str("url", c.url).Msg("realtime channel connected")
		c.readLoop(ctx, conn)
		_ = conn.Close()
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return nil, err
	}
	if token := c.tokens.Token(); token != "" {
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), nil)
	return conn, err
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				c.log.Warn().Err(err).Msg("realtime read failed")
			}
			return
		}
		c.dispatch(payload)
	}
}

func (c *Client) dispatch(payload []byte) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		c.log.Debug().Err(err).Msg("realtime frame not decodable")
		return
	}

	switch env.Event {
	case EventLiveOccupancy:
		var p liveOccupancyPayload
		if err := json.Unmarshal(env.Data, &p); err != nil || p.Count == nil {
			return
		}
		ts := p.Ts
		if ts == 0 {
			ts = time.Now().UnixMilli()
		}
		if c.OnLiveOccupancy != nil {
			c.OnLiveOccupancy(*p.Count, ts)
		}
	case EventAlert:
		c.log.Info().Int("bytes", len(env.Data)).Msg("alert push received")
		if c.OnAlert != nil {
			c.OnAlert(env.Data)
		}
	default:
		c.log.Debug().Str("event", env.Event).Msg("unhandled realtime event")
	}
}
