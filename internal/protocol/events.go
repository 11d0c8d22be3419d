// internal/protocol/events.go
package protocol

import (
	"encoding/json"
	"fmt"
)

// EventType enumerates every message kind that crosses the room channel,
// in both directions. The set is closed; anything else on the wire is
// forward-compatibility territory and gets ignored by the router.
type EventType string

const (
	// Client -> server
	EventJoin            EventType = "join"
	EventLeave           EventType = "leave"
	EventSelectCard      EventType = "select_card"
	EventToggleSpectator EventType = "toggle_spectator"
	EventForceSpectator  EventType = "force_spectator"
	EventNudge           EventType = "nudge"
	EventForceReveal     EventType = "force_reveal"
	EventResetRound      EventType = "reset_round"

	// Server -> client
	EventRoomState     EventType = "room_state"
	EventUserUpdated   EventType = "user_updated"
	EventCardsRevealed EventType = "cards_revealed"
	EventConsensus     EventType = "consensus"
	EventNudgeReceived EventType = "nudge_received"
)

// Role is a participant's standing in the room.
type Role string

const (
	RoleEstimator Role = "estimator"
	RoleSpectator Role = "spectator"
)

// Phase is the room's round stage. The server flips it to PhaseRevealed when
// votes are shown and back to PhaseEstimating on a round reset.
type Phase string

const (
	PhaseEstimating Phase = "estimating"
	PhaseRevealed   Phase = "revealed"
)

// User is a participant as described by the server. The client never mutates
// one; each room_state replaces the whole set.
//
// Vote is nil until the user has voted. In estimating-phase snapshots the
// server masks every vote to null regardless, so vote values are only
// meaningful once the phase is revealed.
type User struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Role     Role    `json:"role"`
	IsAdmin  bool    `json:"is_admin"`
	HasVoted bool    `json:"has_voted"`
	Vote     *string `json:"vote"`
}

// RoomState is the authoritative snapshot pushed by the server on connect and
// after every state-changing action.
type RoomState struct {
	RoomID string          `json:"room_id"`
	Phase  Phase           `json:"phase"`
	Users  map[string]User `json:"users"`
	Deck   []string        `json:"deck"`
}

// Envelope is the frame shape shared by both directions: a type tag plus a
// JSON object payload.
type Envelope struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Payload shapes for the events this core sends or handles.

type SelectCardPayload struct {
	Value string `json:"value"`
}

type ForceSpectatorPayload struct {
	UserID string `json:"user_id"`
}

type NudgePayload struct {
	TargetID string `json:"target_id"`
}

type ConsensusPayload struct {
	Value string `json:"value"`
}

// NudgeReceivedPayload carries the sender of a nudge. The reference server
// fills from_user with the sender's display name, so treat it as an opaque
// label, not a user id.
type NudgeReceivedPayload struct {
	FromUser string `json:"from_user"`
}

// Encode builds a wire frame for the given event. A nil payload is sent as an
// empty object so the server-side envelope validation always sees one.
func Encode(t EventType, payload any) ([]byte, error) {
	if payload == nil {
		payload = struct{}{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return json.Marshal(Envelope{Type: t, Payload: raw})
}

// DecodeEnvelope parses a raw inbound frame. It only validates the envelope
// itself; payload parsing is the caller's business because it depends on the
// event type.
func DecodeEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing type")
	}
	return env, nil
}
