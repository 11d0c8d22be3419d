// internal/client/emitter.go
package client

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/pokerplan/pokerclient/internal/protocol"
	"github.com/pokerplan/pokerclient/internal/session"
)

// SendFunc writes one outbound frame to the channel.
type SendFunc func(ctx context.Context, data []byte) error

// Emitter translates local user intents into outbound envelopes, applying
// the paired optimistic store mutation first where one exists.
//
// Every send is fire and forget: no acknowledgment, no retry, no rollback.
// A failed send leaves the optimistic state standing until the next snapshot
// reconciles it.
type Emitter struct {
	store *session.Store
	send  SendFunc
	log   *logrus.Logger
}

func NewEmitter(store *session.Store, send SendFunc, log *logrus.Logger) *Emitter {
	return &Emitter{store: store, send: send, log: log}
}

// SelectCard marks value as the locally selected card and tells the server.
func (e *Emitter) SelectCard(ctx context.Context, value string) {
	e.store.SetSelectedCard(value)
	e.emit(ctx, protocol.EventSelectCard, protocol.SelectCardPayload{Value: value})
}

// ToggleSpectator flips the local user between estimator and spectator. No
// optimistic mutation; the next snapshot carries the new role.
func (e *Emitter) ToggleSpectator(ctx context.Context) {
	e.emit(ctx, protocol.EventToggleSpectator, nil)
}

// ForceSpectator moves another user to spectator. Admin action; the server
// decides whether the caller is allowed.
func (e *Emitter) ForceSpectator(ctx context.Context, userID string) {
	e.emit(ctx, protocol.EventForceSpectator, protocol.ForceSpectatorPayload{UserID: userID})
}

// Nudge pokes the target user.
func (e *Emitter) Nudge(ctx context.Context, targetID string) {
	e.emit(ctx, protocol.EventNudge, protocol.NudgePayload{TargetID: targetID})
}

// ForceReveal asks the server to show all votes now.
func (e *Emitter) ForceReveal(ctx context.Context) {
	e.emit(ctx, protocol.EventForceReveal, nil)
}

// ResetRound clears the local selection and consensus overlay immediately
// and asks the server to start a new round.
func (e *Emitter) ResetRound(ctx context.Context) {
	e.store.Reset()
	e.emit(ctx, protocol.EventResetRound, nil)
}

func (e *Emitter) emit(ctx context.Context, t protocol.EventType, payload any) {
	data, err := protocol.Encode(t, payload)
	if err != nil {
		e.log.WithError(err).WithField("type", string(t)).Warn("dropping unencodable intent")
		return
	}
	if err := e.send(ctx, data); err != nil {
		e.log.WithError(err).WithField("type", string(t)).Warn("send failed, awaiting snapshot reconciliation")
	}
}
