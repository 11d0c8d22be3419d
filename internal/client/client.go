// internal/client/client.go
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/pokerplan/pokerclient/internal/session"
)

// Config parameterizes one room session.
type Config struct {
	// ServerURL is the ws:// or wss:// base of the poker server.
	ServerURL   string
	RoomID      string
	DisplayName string

	// Reconnect policy: MaxRetries consecutive failed attempts with
	// RetryDelay between them before the adapter gives up for good.
	MaxRetries int
	RetryDelay time.Duration

	// NudgeTTL is how long an incoming nudge stays visible.
	NudgeTTL time.Duration

	DialTimeout  time.Duration
	WriteTimeout time.Duration

	// Clock defaults to the wall clock; tests inject a fake.
	Clock clockwork.Clock

	// OnNudgeSound is fired, best effort, when a nudge arrives.
	OnNudgeSound func()

	// OnUpdate is invoked after every applied inbound event so a renderer
	// can repaint. It runs on the session's internal goroutines; keep it
	// quick and non-blocking.
	OnUpdate func()
}

func (c Config) withDefaults() Config {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	if c.NudgeTTL <= 0 {
		c.NudgeTTL = 3 * time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 3 * time.Second
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return c
}

// Client wires the session pieces together: the channel adapter feeding one
// dispatch goroutine that hands every inbound event to the router, and the
// emitter for local intents. All network-driven store mutation happens on
// that single goroutine, so events are applied fully, one at a time, in
// delivery order.
type Client struct {
	store   *session.Store
	adapter *ChannelAdapter
	router  *Router
	emitter *Emitter
	log     *logrus.Logger
	done    chan struct{}
}

// New connects to the room and starts the dispatch loop.
func New(cfg Config, log *logrus.Logger) (*Client, error) {
	if cfg.ServerURL == "" || cfg.RoomID == "" || cfg.DisplayName == "" {
		return nil, fmt.Errorf("client config: server url, room id and display name are required")
	}
	cfg = cfg.withDefaults()

	store := session.NewStore(cfg.DisplayName)
	adapter := NewChannelAdapter(cfg, log)
	router := NewRouter(store, log, cfg.Clock, RouterConfig{
		NudgeTTL: cfg.NudgeTTL,
		Sound:    cfg.OnNudgeSound,
		Notify:   cfg.OnUpdate,
	})

	c := &Client{
		store:   store,
		adapter: adapter,
		router:  router,
		emitter: NewEmitter(store, adapter.Send, log),
		log:     log,
		done:    make(chan struct{}),
	}
	go c.run()
	return c, nil
}

func (c *Client) run() {
	defer close(c.done)
	for ev := range c.adapter.Events() {
		switch ev := ev.(type) {
		case Connected:
			c.router.HandleConnected(ev.ConnID)
		case Frame:
			c.router.HandleFrame(ev.Data)
		}
	}
	c.router.Shutdown()
	c.log.Info("session dispatch stopped")
}

// View returns the read-only session state for rendering.
func (c *Client) View() session.View { return c.store }

// Status reports the underlying channel status.
func (c *Client) Status() Status { return c.adapter.Status() }

// NudgeFrom returns the active nudge's sender label, "" when none.
func (c *Client) NudgeFrom() string { return c.router.NudgeFrom() }

// Done is closed once the session has fully stopped, either by Close or by
// the reconnect budget running out.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close tears the session down.
func (c *Client) Close() {
	c.adapter.Close()
}

// Intents, delegated to the emitter.

func (c *Client) SelectCard(ctx context.Context, value string) {
	c.emitter.SelectCard(ctx, value)
}

func (c *Client) ToggleSpectator(ctx context.Context) {
	c.emitter.ToggleSpectator(ctx)
}

func (c *Client) ForceSpectator(ctx context.Context, userID string) {
	c.emitter.ForceSpectator(ctx, userID)
}

func (c *Client) Nudge(ctx context.Context, targetID string) {
	c.emitter.Nudge(ctx, targetID)
}

func (c *Client) ForceReveal(ctx context.Context) {
	c.emitter.ForceReveal(ctx)
}

func (c *Client) ResetRound(ctx context.Context) {
	c.emitter.ResetRound(ctx)
}
