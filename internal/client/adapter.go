// internal/client/adapter.go
package client

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Status is the adapter's connection state as observed by consumers.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusOpen         Status = "open"
	StatusReconnecting Status = "reconnecting"
	StatusClosed       Status = "closed"
)

// Event is an item on the adapter's inbound stream.
type Event interface{ isEvent() }

// Connected signals a freshly established connection. ConnID is unique per
// connection instance so downstream state can be scoped to it.
type Connected struct{ ConnID string }

// Frame is one raw text frame from the server. Parsing is the router's job.
type Frame struct{ Data []byte }

func (Connected) isEvent() {}
func (Frame) isEvent()     {}

// ChannelAdapter wraps a duplex websocket channel bound to one room and one
// display name. A single goroutine owns dialing, reading and the bounded
// reconnect policy; frames and connection events come out of Events in
// delivery order.
//
// Resync after a reconnect is implicit: the server pushes a full room_state
// on every connect, so the adapter only has to announce Connected.
type ChannelAdapter struct {
	url          string
	log          *logrus.Logger
	clock        clockwork.Clock
	maxRetries   int
	retryDelay   time.Duration
	dialTimeout  time.Duration
	writeTimeout time.Duration

	events chan Event

	mu     sync.Mutex
	conn   *websocket.Conn
	status Status

	ctx    context.Context
	cancel context.CancelFunc
}

// NewChannelAdapter builds the adapter and starts its connection loop.
func NewChannelAdapter(cfg Config, log *logrus.Logger) *ChannelAdapter {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	a := &ChannelAdapter{
		url:          roomURL(cfg.ServerURL, cfg.RoomID, cfg.DisplayName),
		log:          log,
		clock:        cfg.Clock,
		maxRetries:   cfg.MaxRetries,
		retryDelay:   cfg.RetryDelay,
		dialTimeout:  cfg.DialTimeout,
		writeTimeout: cfg.WriteTimeout,
		events:       make(chan Event, 16),
		status:       StatusConnecting,
		ctx:          ctx,
		cancel:       cancel,
	}
	go a.run()
	return a
}

func roomURL(base, roomID, name string) string {
	return fmt.Sprintf("%s/ws/%s?name=%s",
		strings.TrimRight(base, "/"), roomID, url.QueryEscape(name))
}

// Events returns the inbound stream. The channel is closed once the adapter
// reaches its terminal closed state.
func (a *ChannelAdapter) Events() <-chan Event { return a.events }

// Status returns the current connection status.
func (a *ChannelAdapter) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *ChannelAdapter) setStatus(s Status) {
	a.mu.Lock()
	a.status = s
	a.mu.Unlock()
}

// Send writes one text frame, best effort. It fails fast when no connection
// is currently open; it never retries or queues.
func (a *ChannelAdapter) Send(ctx context.Context, data []byte) error {
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("channel not open")
	}
	wctx, cancel := context.WithTimeout(ctx, a.writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}

// Close tears the channel down. No further events are delivered and no
// reconnect is attempted; status becomes closed.
func (a *ChannelAdapter) Close() {
	a.cancel()
	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn != nil {
		conn.Close(websocket.StatusNormalClosure, "bye")
	}
}

func (a *ChannelAdapter) run() {
	defer close(a.events)

	retried := 0
	for {
		conn, err := a.dial()
		if a.ctx.Err() != nil {
			if conn != nil {
				conn.Close(websocket.StatusNormalClosure, "bye")
			}
			a.setStatus(StatusClosed)
			return
		}

		if err == nil {
			retried = 0
			connID := uuid.NewString()
			a.mu.Lock()
			a.conn = conn
			a.status = StatusOpen
			a.mu.Unlock()
			a.log.WithFields(logrus.Fields{"conn_id": connID, "url": a.url}).Info("channel open")
			a.events <- Connected{ConnID: connID}

			readErr := a.readLoop(conn)
			a.mu.Lock()
			a.conn = nil
			a.mu.Unlock()
			if a.ctx.Err() != nil {
				a.setStatus(StatusClosed)
				return
			}
			a.log.WithFields(logrus.Fields{"conn_id": connID, "error": readErr}).Warn("channel lost")
		} else {
			a.log.WithField("error", err).Warn("dial failed")
		}

		if retried >= a.maxRetries {
			a.log.WithField("retries", retried).Warn("reconnect attempts exhausted, giving up")
			a.setStatus(StatusClosed)
			return
		}
		retried++
		a.setStatus(StatusReconnecting)

		select {
		case <-a.ctx.Done():
			a.setStatus(StatusClosed)
			return
		case <-a.clock.After(a.retryDelay):
		}
	}
}

func (a *ChannelAdapter) dial() (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(a.ctx, a.dialTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, a.url, nil)
	return conn, err
}

func (a *ChannelAdapter) readLoop(conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(a.ctx)
		if err != nil {
			return err
		}
		select {
		case a.events <- Frame{Data: data}:
		case <-a.ctx.Done():
			return a.ctx.Err()
		}
	}
}
