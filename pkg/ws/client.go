package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/polyclob/polyclob/pkg/errors"
)

const (
	pingInterval   = 50 * time.Second
	maxReconnects  = 5
	reconnectDelay = 5 * time.Second
)

// Status is the connection lifecycle state of a Subscriber.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusError
)

func (st Status) String() string {
	switch st {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	}
	return "unknown"
}

// Event is one raw message off the feed. EventType discriminates the
// payload; Raw carries the full frame for callers that want more than
// the common fields.
type Event struct {
	EventType string          `json:"event_type"`
	AssetID   string          `json:"asset_id"`
	Market    string          `json:"market"`
	Raw       json.RawMessage `json:"-"`
}

// Handler receives each decoded event. Called from the read loop, so
// slow handlers stall the feed.
type Handler func(Event)

// subscribeMessage is the frame the feed expects after connect.
type subscribeMessage struct {
	Type     string   `json:"type"`
	Channels []string `json:"channels,omitempty"`
	AssetIDs []string `json:"assets_ids,omitempty"`
}

// Subscriber owns one feed connection. Connect, then Listen; Close
// stops the pinger and tears the connection down.
type Subscriber struct {
	cfg     Config
	headers http.Header
	log     *zap.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	stopPing chan struct{}
	status   Status
}

// NewSubscriber validates cfg up front so a bad channel list fails
// before any dialing.
func NewSubscriber(cfg Config, log *zap.Logger) (*Subscriber, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Subscriber{cfg: cfg, headers: http.Header{}, log: log}, nil
}

// SetHeader adds a handshake header, used for authenticated feeds.
func (s *Subscriber) SetHeader(key, value string) {
	s.headers.Set(key, value)
}

// Status reports the current connection state.
func (s *Subscriber) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Subscriber) setStatus(st Status) {
	s.mu.Lock()
	s.status = st
	s.mu.Unlock()
}

// Connect dials the feed and sends the subscribe frame.
func (s *Subscriber) Connect(ctx context.Context) error {
	s.setStatus(StatusConnecting)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, s.cfg.URL, s.headers)
	if err != nil {
		if resp != nil {
			s.log.Error("websocket handshake rejected",
				zap.String("url", s.cfg.URL), zap.String("status", resp.Status))
		}
		s.setStatus(StatusError)
		return errors.Wrap(errors.CodeWSError, "dialing feed", err)
	}

	sub := subscribeMessage{
		Type:     "subscribe",
		Channels: s.cfg.Channels,
		AssetIDs: s.cfg.AssetIDs,
	}
	if err := conn.WriteJSON(sub); err != nil {
		conn.Close()
		s.setStatus(StatusError)
		return errors.Wrap(errors.CodeWSError, "sending subscribe frame", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.stopPing = make(chan struct{})
	s.status = StatusConnected
	s.mu.Unlock()

	go s.pinger(conn, s.stopPing)

	s.log.Info("subscribed to feed",
		zap.Strings("channels", s.cfg.Channels), zap.Int("assets", len(s.cfg.AssetIDs)))
	return nil
}

// Listen reads frames until the context ends or the connection drops.
// Array frames are unpacked into individual events. Undecodable frames
// are logged and skipped.
func (s *Subscriber) Listen(ctx context.Context, handle Handler) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return errors.New(errors.CodeWSError, "not connected")
	}

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.setStatus(StatusError)
			return errors.Wrap(errors.CodeWSError, "reading feed", err)
		}

		frames := [][]byte{msg}
		if len(msg) > 0 && msg[0] == '[' {
			var arr []json.RawMessage
			if err := json.Unmarshal(msg, &arr); err != nil {
				s.log.Warn("undecodable array frame skipped", zap.Error(err))
				continue
			}
			frames = frames[:0]
			for _, f := range arr {
				frames = append(frames, f)
			}
		}

		for _, f := range frames {
			var ev Event
			if err := json.Unmarshal(f, &ev); err != nil {
				s.log.Warn("undecodable frame skipped", zap.Error(err))
				continue
			}
			ev.Raw = append(json.RawMessage(nil), f...)
			handle(ev)
		}
	}
}

// Run connects and listens, redialing after drops with a fixed delay.
// It gives up once the reconnect budget is spent, and returns the
// context error when the caller cancels.
func (s *Subscriber) Run(ctx context.Context, handle Handler) error {
	var lastErr error
	for attempt := 0; attempt <= maxReconnects; attempt++ {
		if attempt > 0 {
			s.log.Warn("feed dropped, reconnecting",
				zap.Int("attempt", attempt), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(reconnectDelay):
			}
		}
		if err := s.Connect(ctx); err != nil {
			lastErr = err
			continue
		}
		err := s.Listen(ctx, handle)
		s.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
	}
	return errors.Wrapf(errors.CodeWSError, lastErr,
		"feed unavailable after %d reconnect attempts", maxReconnects)
}

func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopPing != nil {
		close(s.stopPing)
		s.stopPing = nil
	}
	s.status = StatusDisconnected
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

// pinger keeps the connection alive; the feed drops idle clients.
func (s *Subscriber) pinger(conn *websocket.Conn, stop chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.TextMessage, []byte("PING")); err != nil {
				s.log.Warn("ping failed", zap.Error(err))
				return
			}
		}
	}
}
