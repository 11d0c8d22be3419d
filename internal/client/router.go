// internal/client/router.go
package client

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/pokerplan/pokerclient/internal/protocol"
	"github.com/pokerplan/pokerclient/internal/session"
)

// RouterConfig carries the router's tunables and hooks. Sound and Notify are
// optional; nil means no-op.
type RouterConfig struct {
	NudgeTTL time.Duration
	Sound    func()
	Notify   func()
}

// Router consumes parsed inbound events and is the sole writer of the store
// from network input. It also owns the nudge signal, the one piece of state
// that lives outside the store because it expires on its own timer.
//
// HandleFrame and HandleConnected never return errors: every failure on this
// path is logged and absorbed, per the rule that nothing inbound may crash
// the session.
type Router struct {
	store *session.Store
	log   *logrus.Logger
	clock clockwork.Clock
	cfg   RouterConfig

	mu         sync.Mutex
	nudgeFrom  string
	nudgeGen   uint64
	nudgeTimer clockwork.Timer
}

func NewRouter(store *session.Store, log *logrus.Logger, clock clockwork.Clock, cfg RouterConfig) *Router {
	if cfg.NudgeTTL <= 0 {
		cfg.NudgeTTL = 3 * time.Second
	}
	return &Router{store: store, log: log, clock: clock, cfg: cfg}
}

// HandleFrame routes one raw inbound frame. Malformed frames and payloads
// are warn-logged and dropped; unrecognized event types are ignored so newer
// servers can ship kinds this client does not know about.
func (r *Router) HandleFrame(data []byte) {
	env, err := protocol.DecodeEnvelope(data)
	if err != nil {
		r.log.WithError(err).Warn("dropping malformed frame")
		return
	}

	switch env.Type {
	case protocol.EventRoomState:
		var snap protocol.RoomState
		if err := json.Unmarshal(env.Payload, &snap); err != nil {
			r.log.WithError(err).Warn("dropping bad room_state payload")
			return
		}
		if snap.Phase != protocol.PhaseEstimating && snap.Phase != protocol.PhaseRevealed {
			r.log.WithField("phase", string(snap.Phase)).Warn("dropping room_state with unknown phase")
			return
		}
		r.store.ApplySnapshot(snap)

	case protocol.EventConsensus:
		var p protocol.ConsensusPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			r.log.WithError(err).Warn("dropping bad consensus payload")
			return
		}
		r.store.TriggerConsensus(p.Value)

	case protocol.EventNudgeReceived:
		var p protocol.NudgeReceivedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			r.log.WithError(err).Warn("dropping bad nudge payload")
			return
		}
		r.setNudge(p.FromUser)
		r.playSound()

	default:
		r.log.WithField("type", string(env.Type)).Debug("ignoring unhandled event")
		return
	}

	r.notify()
}

// HandleConnected rescopes the session to a fresh connection instance: any
// pending nudge expiry from the superseded connection is invalidated, the
// signal is cleared, and the store scrubs identity and optimistic state so
// the server's connect-time room_state rebuilds the view from scratch.
func (r *Router) HandleConnected(connID string) {
	r.log.WithField("conn_id", connID).Info("connection established, rescoping session")
	r.clearNudge()
	r.store.BeginConnection()
	r.notify()
}

// NudgeFrom returns the sender label of the active nudge, or "" when none.
func (r *Router) NudgeFrom() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.nudgeFrom
}

// Shutdown cancels the pending nudge timer. Called once the inbound stream
// has ended.
func (r *Router) Shutdown() {
	r.clearNudge()
}

// setNudge overwrites the nudge signal and restarts its expiry timer. The
// generation counter makes a superseded timer's callback a no-op even if it
// fires concurrently with its Stop.
func (r *Router) setNudge(from string) {
	r.mu.Lock()
	r.nudgeGen++
	gen := r.nudgeGen
	r.nudgeFrom = from
	if r.nudgeTimer != nil {
		r.nudgeTimer.Stop()
	}
	r.nudgeTimer = r.clock.AfterFunc(r.cfg.NudgeTTL, func() {
		r.expireNudge(gen)
	})
	r.mu.Unlock()
}

func (r *Router) expireNudge(gen uint64) {
	r.mu.Lock()
	if r.nudgeGen != gen {
		r.mu.Unlock()
		return
	}
	r.nudgeFrom = ""
	r.nudgeTimer = nil
	r.mu.Unlock()
	r.notify()
}

func (r *Router) clearNudge() {
	r.mu.Lock()
	r.nudgeGen++
	r.nudgeFrom = ""
	if r.nudgeTimer != nil {
		r.nudgeTimer.Stop()
		r.nudgeTimer = nil
	}
	r.mu.Unlock()
}

// playSound fires the audio hook. Best effort: a panicking hook is logged
// and swallowed, it must never take the session down.
func (r *Router) playSound() {
	if r.cfg.Sound == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			r.log.WithField("panic", p).Warn("nudge sound hook failed")
		}
	}()
	r.cfg.Sound()
}

func (r *Router) notify() {
	if r.cfg.Notify != nil {
		r.cfg.Notify()
	}
}
