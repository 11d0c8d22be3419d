// internal/client/emitter_test.go
package client

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pokerplan/pokerclient/internal/session"
)

type captureSender struct {
	frames [][]byte
	err    error
	onSend func()
}

func (c *captureSender) send(_ context.Context, data []byte) error {
	if c.onSend != nil {
		c.onSend()
	}
	if c.err != nil {
		return c.err
	}
	c.frames = append(c.frames, data)
	return nil
}

func newTestEmitter() (*Emitter, *session.Store, *captureSender) {
	store := session.NewStore("bob")
	sender := &captureSender{}
	return NewEmitter(store, sender.send, testLogger()), store, sender
}

func TestSelectCardRoundTrip(t *testing.T) {
	e, store, sender := newTestEmitter()

	// The optimistic write must land before the frame goes out.
	sender.onSend = func() {
		sel, ok := store.SelectedCard()
		require.True(t, ok, "selection must precede the send")
		require.Equal(t, "8", sel)
	}

	e.SelectCard(context.Background(), "8")

	require.Len(t, sender.frames, 1)
	assert.JSONEq(t, `{"type":"select_card","payload":{"value":"8"}}`, string(sender.frames[0]))
}

func TestIntentWireShapes(t *testing.T) {
	e, _, sender := newTestEmitter()
	ctx := context.Background()

	e.ToggleSpectator(ctx)
	e.ForceSpectator(ctx, "U2")
	e.Nudge(ctx, "U3")
	e.ForceReveal(ctx)

	require.Len(t, sender.frames, 4)
	assert.JSONEq(t, `{"type":"toggle_spectator","payload":{}}`, string(sender.frames[0]))
	assert.JSONEq(t, `{"type":"force_spectator","payload":{"user_id":"U2"}}`, string(sender.frames[1]))
	assert.JSONEq(t, `{"type":"nudge","payload":{"target_id":"U3"}}`, string(sender.frames[2]))
	assert.JSONEq(t, `{"type":"force_reveal","payload":{}}`, string(sender.frames[3]))
}

func TestResetRoundClearsBeforeSend(t *testing.T) {
	e, store, sender := newTestEmitter()
	store.SetSelectedCard("5")
	store.TriggerConsensus("5")

	sender.onSend = func() {
		_, ok := store.SelectedCard()
		require.False(t, ok, "reset must precede the send")
	}

	e.ResetRound(context.Background())

	require.Len(t, sender.frames, 1)
	assert.JSONEq(t, `{"type":"reset_round","payload":{}}`, string(sender.frames[0]))
	_, active := store.Consensus()
	assert.False(t, active)
}

func TestSendFailureLeavesOptimisticState(t *testing.T) {
	e, store, sender := newTestEmitter()
	sender.err = fmt.Errorf("channel not open")

	e.SelectCard(context.Background(), "13")

	// No rollback: the selection stands until a snapshot reconciles it.
	sel, ok := store.SelectedCard()
	require.True(t, ok)
	assert.Equal(t, "13", sel)
	assert.Empty(t, sender.frames)
}
