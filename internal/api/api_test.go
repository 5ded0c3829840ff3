package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/erilali/duet/internal/auth"
	"github.com/erilali/duet/internal/hub"
	"github.com/erilali/duet/internal/logger"
	"github.com/erilali/duet/internal/message"
	"github.com/erilali/duet/internal/session"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*httptest.Server
	room *session.Room
}

func newTestServer(t *testing.T, policy session.Policy) *testServer {
	t.Helper()
	req := require.New(t)

	room := session.NewRoom(session.Options{Policy: policy, MaxMessageLength: 500, Logger: logger.Nop()})
	h := hub.NewHub(room, hub.Options{Logger: logger.Nop()})
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	tokens, err := auth.NewTokens("test-secret", time.Hour)
	req.NoError(err)
	srv, err := NewServer(Deps{Room: room, Hub: h, Tokens: tokens, SessionTTL: time.Hour, Logger: logger.Nop()})
	req.NoError(err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})
	return &testServer{Server: ts, room: room}
}

// browser is an HTTP client with its own cookie jar, like one browser profile.
type browser struct {
	t      *testing.T
	server *testServer
	client *http.Client
}

func (s *testServer) browser(t *testing.T) *browser {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{t: t, server: s, client: &http.Client{Jar: jar}}
}

func (b *browser) login(name string) (int, string) {
	resp, err := b.client.PostForm(b.server.URL+"/login", url.Values{"username": {name}})
	require.NoError(b.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return resp.StatusCode, string(body)
}

func (b *browser) get(path string) (int, string) {
	resp, err := b.client.Get(b.server.URL + path)
	require.NoError(b.t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(b.t, err)
	return resp.StatusCode, string(body)
}

func (b *browser) dial() *websocket.Conn {
	b.t.Helper()
	base, err := url.Parse(b.server.URL)
	require.NoError(b.t, err)

	header := http.Header{}
	for _, c := range b.client.Jar.Cookies(base) {
		header.Add("Cookie", c.String())
	}
	wsURL := "ws" + strings.TrimPrefix(b.server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(b.t, err)
	resp.Body.Close()
	b.t.Cleanup(func() { conn.Close() })
	return conn
}

func readType(t *testing.T, conn *websocket.Conn, eventType string) message.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		var env message.Envelope
		require.NoError(t, conn.ReadJSON(&env))
		if env.Type == eventType {
			return env
		}
	}
}

func count(t *testing.T, env message.Envelope) int {
	t.Helper()
	var update message.UserUpdate
	require.NoError(t, json.Unmarshal(env.Data, &update))
	return update.Count
}

func TestTwoPartySession(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, session.PolicyStrict)
	alice, bob, carol := srv.browser(t), srv.browser(t), srv.browser(t)

	status, body := alice.login("alice")
	req.Equal(http.StatusOK, status)
	req.Contains(body, "Logged in as: alice")

	status, _ = bob.login("bob")
	req.Equal(http.StatusOK, status)

	status, body = carol.login("carol")
	req.Equal(http.StatusForbidden, status)
	req.Contains(body, "Chat room is full!")

	aliceWs := alice.dial()
	req.Equal(2, count(t, readType(t, aliceWs, "user_update")))
	bobWs := bob.dial()
	req.Equal(2, count(t, readType(t, bobWs, "user_update")))
	req.Equal(2, count(t, readType(t, aliceWs, "user_update")))

	req.NoError(aliceWs.WriteJSON(message.Envelope{
		Version: message.Version,
		Type:    "send_message",
		Data:    json.RawMessage(`{"message":"  hello  "}`),
	}))
	for _, conn := range []*websocket.Conn{aliceWs, bobWs} {
		var chat message.ChatMessage
		req.NoError(json.Unmarshal(readType(t, conn, "receive_message").Data, &chat))
		req.Equal("alice", chat.User)
		req.Equal("hello", chat.Content)
	}

	req.NoError(bobWs.WriteJSON(message.Envelope{Type: "offer", Data: json.RawMessage(`{"sdp":"X"}`)}))
	req.JSONEq(`{"sdp":"X"}`, string(readType(t, aliceWs, "offer").Data))

	req.NoError(bobWs.Close())
	req.Equal(1, count(t, readType(t, aliceWs, "user_update")))

	status, body = alice.get("/api/room")
	req.Equal(http.StatusOK, status)
	var snapshot session.Snapshot
	req.NoError(json.Unmarshal([]byte(body), &snapshot))
	req.Equal(1, snapshot.Count)
	req.Equal([]session.Participant{{Name: "alice", Connected: true}}, snapshot.Participants)
}

func TestLoginRejections(t *testing.T) {
	srv := newTestServer(t, session.PolicyStrict)
	status, _ := srv.browser(t).login("alice")
	require.Equal(t, http.StatusOK, status)

	tests := []struct {
		name   string
		user   string
		status int
	}{
		{name: "taken", user: "alice", status: http.StatusConflict},
		{name: "blank", user: "   ", status: http.StatusBadRequest},
		{name: "too long", user: strings.Repeat("x", 33), status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := srv.browser(t).login(tt.user)
			require.Equal(t, tt.status, status)
			require.Contains(t, body, `class="error"`)
		})
	}
	require.Equal(t, 1, srv.room.Count())
}

func TestLogoutReleasesSeat(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, session.PolicyStrict)
	alice, bob := srv.browser(t), srv.browser(t)
	alice.login("alice")
	bob.login("bob")

	bobWs := bob.dial()
	readType(t, bobWs, "user_update")

	status, body := alice.get("/logout")
	req.Equal(http.StatusOK, status)
	req.Contains(body, `action="/login"`)
	req.False(srv.room.IsClaimed("alice"))
	req.Equal(1, count(t, readType(t, bobWs, "user_update")))

	status, _ = srv.browser(t).login("alice")
	req.Equal(http.StatusOK, status)
}

func TestWebsocketRequiresSession(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, session.PolicyStrict)

	resp, err := http.Get(srv.URL + "/ws")
	req.NoError(err)
	resp.Body.Close()
	req.Equal(http.StatusUnauthorized, resp.StatusCode)

	forged := &http.Cookie{Name: sessionCookie, Value: "not-a-token"}
	r, err := http.NewRequest(http.MethodGet, srv.URL+"/", nil)
	req.NoError(err)
	r.AddCookie(forged)
	resp, err = http.DefaultClient.Do(r)
	req.NoError(err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	req.Contains(string(body), `action="/login"`)
}

func TestHealth(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, session.PolicyBroadcast)
	srv.browser(t).login("alice")

	status, body := srv.browser(t).get("/health")
	req.Equal(http.StatusOK, status)

	var health struct {
		Status string `json:"status"`
		NATS   string `json:"nats"`
		Room   struct {
			Count  int    `json:"count"`
			Policy string `json:"policy"`
		} `json:"room"`
	}
	req.NoError(json.Unmarshal([]byte(body), &health))
	req.Equal("ok", health.Status)
	req.Equal("disabled", health.NATS)
	req.Equal(1, health.Room.Count)
	req.Equal("broadcast", health.Room.Policy)
}

func TestStaticAssets(t *testing.T) {
	srv := newTestServer(t, session.PolicyStrict)
	status, body := srv.browser(t).get("/static/script.js")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "new WebSocket")
}

func TestLoginWhileHoldingSeatKeepsSession(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, session.PolicyStrict)
	alice := srv.browser(t)

	status, _ := alice.login("alice")
	req.Equal(http.StatusOK, status)

	status, body := alice.login("alice2")
	req.Equal(http.StatusOK, status)
	req.Contains(body, "Logged in as: alice<")
	req.False(srv.room.IsClaimed("alice2"))
	req.Equal(1, srv.room.Count())

	alice.get("/logout")
	req.Equal(0, srv.room.Count())

	status, _ = srv.browser(t).login("bob")
	req.Equal(http.StatusOK, status)
	status, _ = srv.browser(t).login("carol")
	req.Equal(http.StatusOK, status)
}

func TestStaleSessionCannotTouchNewHolder(t *testing.T) {
	req := require.New(t)
	srv := newTestServer(t, session.PolicyBroadcast)
	old, current := srv.browser(t), srv.browser(t)

	old.login("alice")
	oldWs := old.dial()
	readType(t, oldWs, "user_update")
	req.NoError(oldWs.Close())
	req.Eventually(func() bool { return !srv.room.IsClaimed("alice") }, 2*time.Second, 10*time.Millisecond)

	status, _ := current.login("alice")
	req.Equal(http.StatusOK, status)
	currentWs := current.dial()
	readType(t, currentWs, "user_update")

	rejected := readType(t, old.dial(), "error")
	req.Equal("JOIN_REJECTED", rejected.ErrorCode)
	req.JSONEq(`"TAKEN"`, string(rejected.Data))

	_, body := old.get("/")
	req.Contains(body, `action="/login"`)

	old.get("/logout")
	req.True(srv.room.IsClaimed("alice"))
	req.Equal([]session.Participant{{Name: "alice", Connected: true}}, srv.room.Snapshot().Participants)

	req.NoError(currentWs.WriteJSON(message.Envelope{Type: "send_message", Data: json.RawMessage(`{"message":"still here"}`)}))
	var chat message.ChatMessage
	req.NoError(json.Unmarshal(readType(t, currentWs, "receive_message").Data, &chat))
	req.Equal("still here", chat.Content)
}
