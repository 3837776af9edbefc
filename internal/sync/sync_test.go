package sync

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func verifyStatic(token string) (string, error) {
	switch token {
	case "token-a":
		return "visitor-a", nil
	case "token-b":
		return "visitor-b", nil
	}
	return "", errors.New("bad token")
}

func startServer(t *testing.T, hub *Hub) string {
	t.Helper()
	srv := NewServer("127.0.0.1:0", hub, verifyStatic, nil)
	require.NoError(t, srv.Listen())
	go func() { _ = srv.Serve() }()
	t.Cleanup(func() { _ = srv.Close() })
	return srv.ListenAddr().String()
}

func dial(t *testing.T, addr, token string) (net.Conn, *bufio.Reader) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_, err = conn.Write([]byte(token + "\n"))
	require.NoError(t, err)
	return conn, bufio.NewReader(conn)
}

func readJSON(t *testing.T, conn net.Conn, r *bufio.Reader) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	line, err := r.ReadBytes('\n')
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(line, &m))
	return m
}

func TestServerRejectsInvalidToken(t *testing.T) {
	addr := startServer(t, NewHub(nil))
	conn, r := dial(t, addr, "nope")

	msg := readJSON(t, conn, r)
	assert.Equal(t, "error", msg["type"])

	_, err := r.ReadBytes('\n')
	assert.Error(t, err)
}

func TestPublishReachesOnlyTheSameVisitor(t *testing.T) {
	hub := NewHub(nil)
	addr := startServer(t, hub)

	connA, rA := dial(t, addr, "token-a")
	connB, rB := dial(t, addr, "token-b")
	assert.Equal(t, "welcome", readJSON(t, connA, rA)["type"])
	assert.Equal(t, "welcome", readJSON(t, connB, rB)["type"])

	require.Eventually(t, func() bool { return hub.Stats().TCPClients == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish("visitor-a", SavedEvent{Type: SavedToggleEvent, VisitorID: "visitor-a", ModID: "42", Saved: true, SavedIDs: []string{"42"}})

	got := readJSON(t, connA, rA)
	assert.Equal(t, SavedToggleEvent, got["type"])
	assert.Equal(t, "42", got["mod_id"])
	assert.Equal(t, true, got["saved"])

	require.NoError(t, connB.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, err := rB.ReadBytes('\n')
	var ne net.Error
	require.ErrorAs(t, err, &ne)
	assert.True(t, ne.Timeout())
}

func TestHubDropsClosedConnections(t *testing.T) {
	hub := NewHub(nil)
	addr := startServer(t, hub)

	conn, r := dial(t, addr, "token-a")
	readJSON(t, conn, r)
	require.Eventually(t, func() bool { return hub.Stats().TCPClients == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Stats().TCPClients == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServeWithoutListen(t *testing.T) {
	srv := NewServer("127.0.0.1:0", NewHub(nil), verifyStatic, nil)
	assert.Error(t, srv.Serve())
	assert.Nil(t, srv.ListenAddr())
}
