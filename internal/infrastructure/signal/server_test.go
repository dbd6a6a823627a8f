package signal

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"relaycast/internal/core/domain"
	"relaycast/internal/core/services"
	"relaycast/internal/infrastructure/repositories/memory"
	"relaycast/pkg/config"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newGatewayFixture(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	log := zap.NewNop().Sugar()

	directory := services.NewDirectoryService(memory.NewRoomRepository(), 8, 64, log)
	sessions := services.NewSessionService(log)
	tokens := memory.NewTokenStore(15 * time.Minute)
	admission := services.NewAdmissionService(directory, sessions, tokens, log)
	trees := services.NewTreeService(3, 10, 5, log)

	srv := NewServer(directory, sessions, admission, trees, nil, config.DefaultConfig(), log)
	ts := httptest.NewServer(http.HandlerFunc(srv.HandleWebSocket))
	t.Cleanup(ts.Close)
	return srv, ts
}

func dialGateway(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http")
	if query != "" {
		u += "?" + query
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame map[string]interface{}
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

// connect dials without an identity and returns the issued credentials.
func connect(t *testing.T, ts *httptest.Server) (*websocket.Conn, string, string) {
	t.Helper()
	conn := dialGateway(t, ts, "")
	welcome := readFrame(t, conn)
	require.Equal(t, "welcome", welcome["type"])
	id, _ := welcome["socket_id"].(string)
	token, _ := welcome["resume_token"].(string)
	require.NotEmpty(t, id)
	require.NotEmpty(t, token)
	return conn, id, token
}

func TestConnectIssuesIdentityAndResumeToken(t *testing.T) {
	srv, ts := newGatewayFixture(t)

	_, id, _ := connect(t, ts)
	assert.True(t, strings.HasPrefix(id, "sock_"))
	assert.True(t, srv.IsConnected(domain.SocketID(id)))
}

func TestResumeWithTokenReclaimsIdentity(t *testing.T) {
	srv, ts := newGatewayFixture(t)

	old, id, token := connect(t, ts)

	resumed := dialGateway(t, ts, "socket_id="+id+"&resume_token="+token)
	welcome := readFrame(t, resumed)
	require.Equal(t, "welcome", welcome["type"])
	assert.Equal(t, id, welcome["socket_id"])

	// the displaced connection is closed, the identity stays registered
	old.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := old.ReadMessage()
	assert.Error(t, err)
	assert.True(t, srv.IsConnected(domain.SocketID(id)))
}

func TestResumeWithWrongTokenIsRejected(t *testing.T) {
	srv, ts := newGatewayFixture(t)

	_, id, _ := connect(t, ts)

	hijack := dialGateway(t, ts, "socket_id="+id+"&resume_token=guessed")
	frame := readFrame(t, hijack)
	assert.Equal(t, "error", frame["type"])
	hijack.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := hijack.ReadMessage()
	assert.Error(t, err)

	// the original holder keeps the identity
	assert.True(t, srv.IsConnected(domain.SocketID(id)))
}

func TestResumeOfUnissuedIdentityIsRejected(t *testing.T) {
	_, ts := newGatewayFixture(t)

	conn := dialGateway(t, ts, "socket_id=sock_never_issued&resume_token=whatever")
	frame := readFrame(t, conn)
	assert.Equal(t, "error", frame["type"])
}

func TestForwardDeliversNegotiationEnvelope(t *testing.T) {
	_, ts := newGatewayFixture(t)

	sender, senderID, _ := connect(t, ts)
	receiver, receiverID, _ := connect(t, ts)

	payload := map[string]interface{}{
		"target": receiverID,
		"sdp":    map[string]interface{}{"type": "offer", "sdp": "v=0\r\ns=-\r\n"},
	}
	require.NoError(t, sender.WriteJSON(map[string]interface{}{
		"type":    "offer",
		"payload": payload,
	}))

	frame := readFrame(t, receiver)
	assert.Equal(t, "offer", frame["type"])
	assert.Equal(t, senderID, frame["from"])

	// the payload arrives as the sender wrote it
	relayed, ok := frame["payload"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, receiverID, relayed["target"])
	assert.Equal(t, payload["sdp"], relayed["sdp"])
}

func TestForwardWithoutTargetReturnsError(t *testing.T) {
	_, ts := newGatewayFixture(t)

	sender, _, _ := connect(t, ts)
	require.NoError(t, sender.WriteJSON(map[string]interface{}{
		"type":    "ice-candidate",
		"payload": map[string]interface{}{"candidate": map[string]interface{}{"candidate": "candidate:1 1 udp 1 0.0.0.0 9 typ host"}},
	}))

	frame := readFrame(t, sender)
	assert.Equal(t, "error", frame["type"])
}
