// internal/session/store.go
package session

import (
	"sort"
	"sync"

	"github.com/pokerplan/pokerclient/internal/protocol"
)

// DefaultDeck is the card set shown before the first snapshot arrives. The
// server's room_state replaces it.
var DefaultDeck = []string{"0", "1", "2", "3", "5", "8", "13", "?"}

// View is the read-only face of the Store handed to render consumers. Only
// the event router and the command emitter hold the mutable *Store, which
// keeps every write on the network/intent paths.
type View interface {
	RoomID() string
	Phase() protocol.Phase
	Users() map[string]protocol.User
	Deck() []string
	CurrentUserID() string
	CurrentUser() (protocol.User, bool)
	OtherUsers() []protocol.User
	Estimators() []protocol.User
	AllEstimated() bool
	LocalConsensusGuess() bool
	SelectedCard() (string, bool)
	Consensus() (string, bool)
}

// Store holds the session state for one room: the authoritative snapshot as
// last pushed by the server, plus the locally-derived identity and the
// optimistic/ephemeral fields layered on top of it.
//
// Mutations replace whole fields, never merge. Reconciliation with the server
// is exclusively by the next full snapshot overwriting everything durable.
type Store struct {
	mu sync.RWMutex

	displayName string

	// Authoritative snapshot, replaced wholesale by ApplySnapshot.
	roomID string
	phase  protocol.Phase
	users  map[string]protocol.User
	deck   []string

	// Resolved once per connection by name match against the snapshot.
	currentUserID string

	// Optimistic local mirror of the card this client intends to have
	// selected. Cleared on a revealed -> estimating transition.
	selectedCard string
	hasSelected  bool

	// Server-declared consensus overlay. Cleared by the next
	// estimating-phase snapshot.
	consensusActive bool
	consensusValue  string
}

// NewStore builds a Store for a participant known locally by displayName.
func NewStore(displayName string) *Store {
	return &Store{
		displayName: displayName,
		phase:       protocol.PhaseEstimating,
		users:       map[string]protocol.User{},
		deck:        append([]string(nil), DefaultDeck...),
	}
}

// ApplySnapshot replaces the room snapshot with the server's view.
//
// Side effects, in order: an estimating-phase snapshot clears the consensus
// overlay, and if the previous phase was revealed it also clears the
// optimistic selection (a new round has started, the old answer is stale).
// If the local identity is still unresolved it is matched by display name
// against the new user set; users are scanned in ascending id order so a
// name collision resolves deterministically to the lowest id.
func (s *Store) ApplySnapshot(snap protocol.RoomState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasRevealed := s.phase == protocol.PhaseRevealed

	s.roomID = snap.RoomID
	s.phase = snap.Phase
	s.users = make(map[string]protocol.User, len(snap.Users))
	for id, u := range snap.Users {
		s.users[id] = u
	}
	s.deck = append([]string(nil), snap.Deck...)

	if snap.Phase == protocol.PhaseEstimating {
		s.consensusActive = false
		s.consensusValue = ""
		if wasRevealed {
			s.selectedCard = ""
			s.hasSelected = false
		}
	}

	if s.currentUserID == "" {
		for _, id := range sortedIDs(s.users) {
			if s.users[id].Name == s.displayName {
				s.currentUserID = id
				break
			}
		}
	}
}

// SetLocalIdentity pins the current user id. Safe to call repeatedly with
// the same value.
func (s *Store) SetLocalIdentity(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentUserID = userID
}

// SetSelectedCard records the card this client intends to have selected.
// No deck-membership validation happens here; the server is the authority
// and the UI only offers deck values.
func (s *Store) SetSelectedCard(value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedCard = value
	s.hasSelected = true
}

// ClearSelectedCard drops the optimistic selection.
func (s *Store) ClearSelectedCard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedCard = ""
	s.hasSelected = false
}

// TriggerConsensus activates the server-declared consensus overlay. It stays
// active until the next estimating-phase snapshot.
func (s *Store) TriggerConsensus(value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consensusActive = true
	s.consensusValue = value
}

// Reset clears the optimistic selection and the consensus overlay without
// touching the snapshot. Used when the local user requests a round reset,
// ahead of the server's broadcast.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedCard = ""
	s.hasSelected = false
	s.consensusActive = false
	s.consensusValue = ""
}

// BeginConnection scrubs everything tied to a connection instance: identity,
// optimistic selection and the consensus overlay. Called when the underlying
// channel is replaced. The server registers a reconnect as a brand-new user,
// so none of this state can be confirmed again; the next snapshot re-resolves
// identity from scratch.
func (s *Store) BeginConnection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentUserID = ""
	s.selectedCard = ""
	s.hasSelected = false
	s.consensusActive = false
	s.consensusValue = ""
}

// RoomID returns the room identifier from the last snapshot.
func (s *Store) RoomID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roomID
}

// Phase returns the current round phase.
func (s *Store) Phase() protocol.Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Users returns a copy of the current user set keyed by id.
func (s *Store) Users() map[string]protocol.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]protocol.User, len(s.users))
	for id, u := range s.users {
		out[id] = u
	}
	return out
}

// Deck returns a copy of the room's card labels in deck order.
func (s *Store) Deck() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.deck...)
}

// CurrentUserID returns the resolved local user id, or "" while unresolved.
func (s *Store) CurrentUserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentUserID
}

// CurrentUser looks the local identity up in the user set. ok is false while
// identity is unresolved or the user vanished from a newer snapshot.
func (s *Store) CurrentUser() (protocol.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentUserID == "" {
		return protocol.User{}, false
	}
	u, ok := s.users[s.currentUserID]
	return u, ok
}

// OtherUsers returns every user except the local one, in ascending id order.
func (s *Store) OtherUsers() []protocol.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []protocol.User
	for _, id := range sortedIDs(s.users) {
		if id == s.currentUserID {
			continue
		}
		out = append(out, s.users[id])
	}
	return out
}

// Estimators returns the users with the estimator role, in ascending id order.
func (s *Store) Estimators() []protocol.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.estimatorsLocked()
}

func (s *Store) estimatorsLocked() []protocol.User {
	var out []protocol.User
	for _, id := range sortedIDs(s.users) {
		if s.users[id].Role == protocol.RoleEstimator {
			out = append(out, s.users[id])
		}
	}
	return out
}

// AllEstimated reports whether there is at least one estimator and every
// estimator has voted.
func (s *Store) AllEstimated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ests := s.estimatorsLocked()
	if len(ests) == 0 {
		return false
	}
	for _, u := range ests {
		if !u.HasVoted {
			return false
		}
	}
	return true
}

// LocalConsensusGuess is the best-effort local consensus indicator: true when
// at least one estimator has a visible vote and all visible votes agree. It
// is computed from the snapshot alone and can transiently disagree with the
// server-declared overlay (Consensus), e.g. before the consensus event lands.
func (s *Store) LocalConsensusGuess() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	votes := map[string]struct{}{}
	for _, u := range s.users {
		if u.Role != protocol.RoleEstimator || u.Vote == nil {
			continue
		}
		votes[*u.Vote] = struct{}{}
	}
	return len(votes) == 1
}

// SelectedCard returns the optimistic selection, ok false when none is held.
func (s *Store) SelectedCard() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedCard, s.hasSelected
}

// Consensus returns the server-declared consensus overlay value and whether
// it is active.
func (s *Store) Consensus() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.consensusValue, s.consensusActive
}

func sortedIDs(users map[string]protocol.User) []string {
	ids := make([]string, 0, len(users))
	for id := range users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
