// internal/client/harness_test.go
package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/pokerplan/pokerclient/internal/protocol"
)

// pokerServer is a minimal in-process stand-in for the room authority: it
// accepts websocket clients, pushes whatever connect-time frames the test
// configured (the real server pushes a full room_state there), and records
// every envelope clients send.
type pokerServer struct {
	t       *testing.T
	srv     *httptest.Server
	inbound chan protocol.Envelope

	// onConnect returns the frames pushed to a client right after accept.
	onConnect func(name string) [][]byte

	mu       sync.Mutex
	conns    []*websocket.Conn
	accepted int
}

func newPokerServer(t *testing.T, onConnect func(name string) [][]byte) *pokerServer {
	ps := &pokerServer{
		t:         t,
		inbound:   make(chan protocol.Envelope, 64),
		onConnect: onConnect,
	}
	ps.srv = httptest.NewServer(http.HandlerFunc(ps.handle))
	t.Cleanup(ps.srv.Close)
	return ps
}

func (ps *pokerServer) handle(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	name := r.URL.Query().Get("name")

	ps.mu.Lock()
	ps.conns = append(ps.conns, c)
	ps.accepted++
	ps.mu.Unlock()

	ctx := r.Context()
	if ps.onConnect != nil {
		for _, frame := range ps.onConnect(name) {
			if err := c.Write(ctx, websocket.MessageText, frame); err != nil {
				return
			}
		}
	}

	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			return
		}
		if env, err := protocol.DecodeEnvelope(data); err == nil {
			ps.inbound <- env
		}
	}
}

func (ps *pokerServer) url() string {
	return "ws" + strings.TrimPrefix(ps.srv.URL, "http")
}

// push broadcasts one frame to every connection ever accepted; writes to
// already-dead connections are ignored.
func (ps *pokerServer) push(frame []byte) {
	ps.mu.Lock()
	conns := append([]*websocket.Conn(nil), ps.conns...)
	ps.mu.Unlock()
	for _, c := range conns {
		_ = c.Write(context.Background(), websocket.MessageText, frame)
	}
}

// dropConnections kills every live connection server-side, simulating a
// server restart. Clients are expected to reconnect on their own.
func (ps *pokerServer) dropConnections() {
	ps.mu.Lock()
	conns := ps.conns
	ps.conns = nil
	ps.mu.Unlock()
	for _, c := range conns {
		c.Close(websocket.StatusGoingAway, "restart")
	}
}

func (ps *pokerServer) connections() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return ps.accepted
}

func (ps *pokerServer) nextInbound(timeout time.Duration) (protocol.Envelope, bool) {
	select {
	case env := <-ps.inbound:
		return env, true
	case <-time.After(timeout):
		return protocol.Envelope{}, false
	}
}

func mustFrame(t *testing.T, typ protocol.EventType, payload any) []byte {
	t.Helper()
	data, err := protocol.Encode(typ, payload)
	if err != nil {
		t.Fatalf("encode %s: %v", typ, err)
	}
	return data
}

func roomStateFrame(t *testing.T, phase protocol.Phase, users ...protocol.User) []byte {
	t.Helper()
	m := make(map[string]protocol.User, len(users))
	for _, u := range users {
		m[u.ID] = u
	}
	return mustFrame(t, protocol.EventRoomState, protocol.RoomState{
		RoomID: "r1",
		Phase:  phase,
		Users:  m,
		Deck:   []string{"1", "2", "3", "5", "8"},
	})
}

func estimator(id, name string) protocol.User {
	return protocol.User{ID: id, Name: name, Role: protocol.RoleEstimator}
}
