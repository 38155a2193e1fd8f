// WorkConnect - Real-time chat, presence and notification fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/workconnect

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gws "github.com/gorilla/websocket"

	"github.com/tomtom215/workconnect/internal/auth"
	"github.com/tomtom215/workconnect/internal/chat"
	"github.com/tomtom215/workconnect/internal/config"
	"github.com/tomtom215/workconnect/internal/database"
	"github.com/tomtom215/workconnect/internal/logging"
	"github.com/tomtom215/workconnect/internal/models"
	"github.com/tomtom215/workconnect/internal/presence"
	"github.com/tomtom215/workconnect/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

type testServer struct {
	srv          *httptest.Server
	db           *database.DB
	hub          *websocket.Hub
	tokens       *auth.JWTManager
	conversation string
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Environment: "test"},
		Security: config.SecurityConfig{
			JWTSecret:   "test-secret-test-secret-test-secret",
			CORSOrigins: []string{"https://app.example"},
		},
		Realtime: config.RealtimeConfig{
			SendBuffer:       64,
			WriteWait:        time.Second,
			PongWait:         10 * time.Second,
			MaxMessageSize:   16 * 1024,
			HandshakeTimeout: 5 * time.Second,
			FrameRate:        100,
			FrameBurst:       100,
			PreviewLength:    100,
			StoreTimeout:     5 * time.Second,
		},
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := testConfig()

	db, err := database.New(&config.DatabaseConfig{Path: ":memory:", MaxMemory: "256MB", Threads: 1})
	if err != nil {
		t.Fatalf("database.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, u := range []*models.User{
		{ID: "1", Email: "alice@example.com", FullName: "Alice", IsActive: true},
		{ID: "2", Email: "bob@example.com", FullName: "Bob", IsActive: true},
		{ID: "3", Email: "carol@example.com", FullName: "Carol", IsActive: true},
	} {
		if err := db.UpsertUser(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	conv, err := db.CreateConversation(ctx, []string{"1", "2"}, "")
	if err != nil {
		t.Fatal(err)
	}

	tokens, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		t.Fatal(err)
	}
	authenticator := auth.NewAuthenticator(tokens, db)
	hub := websocket.NewHub(4)
	tracker := presence.NewTracker(nil, time.Second)
	gateway := chat.NewGateway(db, authenticator, hub, tracker, chat.OptionsFromConfig(&cfg.Realtime, &cfg.Media))

	handler := NewHandler(cfg, gateway, authenticator, hub, db)
	router := NewRouter(handler, NewChiMiddleware(ChiMiddlewareConfigFrom(&cfg.Security)))
	srv := httptest.NewServer(router.SetupChi())
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, db: db, hub: hub, tokens: tokens, conversation: conv.ID}
}

func (ts *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := ts.tokens.GenerateToken(userID, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (ts *testServer) dial(t *testing.T, path, token string) (*gws.Conn, *http.Response, error) {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + path
	if token != "" {
		u += "?token=" + url.QueryEscape(token)
	}
	conn, resp, err := gws.DefaultDialer.Dial(u, nil)
	if conn != nil {
		t.Cleanup(func() { _ = conn.Close() })
	}
	return conn, resp, err
}

func readFrame(t *testing.T, conn *gws.Conn) map[string]interface{} {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatal(err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var frame map[string]interface{}
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("bad frame %s: %v", data, err)
	}
	return frame
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (ts *testServer) waitMembers(t *testing.T, channel string, n int) {
	t.Helper()
	waitFor(t, channel+" members", func() bool { return len(ts.hub.Registry().Members(channel)) == n })
}

func TestHandshake_Rejections(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"no token", "/ws/chat/" + ts.conversation, "", http.StatusUnauthorized},
		{"bad token", "/ws/chat/" + ts.conversation, "garbage", http.StatusUnauthorized},
		{"not participant", "/ws/chat/" + ts.conversation, ts.token(t, "3"), http.StatusForbidden},
		{"unknown conversation", "/ws/chat/7b0c1b59-2b55-4d5e-9d6e-0d1b0f6d9e11", ts.token(t, "1"), http.StatusNotFound},
		{"malformed conversation", "/ws/chat/nope", ts.token(t, "1"), http.StatusNotFound},
		{"unknown user", "/ws/presence", ts.token(t, "99"), http.StatusUnauthorized},
		{"presence without token", "/ws/presence", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, resp, err := ts.dial(t, tt.path, tt.token)
			if err == nil || conn != nil {
				t.Fatal("handshake should have been refused")
			}
			if resp == nil || resp.StatusCode != tt.status {
				t.Fatalf("status = %v, want %d", resp, tt.status)
			}
		})
	}

	if ts.hub.GetClientCount() != 0 {
		t.Errorf("refused handshakes registered %d clients", ts.hub.GetClientCount())
	}
}

func TestHandshake_BearerHeader(t *testing.T) {
	ts := newTestServer(t)
	u := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws/notifications"
	header := http.Header{"Authorization": []string{"Bearer " + ts.token(t, "1")}}
	conn, _, err := gws.DefaultDialer.Dial(u, header)
	if err != nil {
		t.Fatalf("Dial with bearer header: %v", err)
	}
	_ = conn.Close()
}

func TestHandshake_OriginCheck(t *testing.T) {
	ts := newTestServer(t)
	u := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws/presence?token=" + ts.token(t, "1")

	_, resp, err := gws.DefaultDialer.Dial(u, http.Header{"Origin": []string{"https://evil.example"}})
	if err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("foreign origin: resp=%v err=%v, want 403", resp, err)
	}

	conn, _, err := gws.DefaultDialer.Dial(u, http.Header{"Origin": []string{"https://app.example"}})
	if err != nil {
		t.Fatalf("allowed origin: %v", err)
	}
	_ = conn.Close()
}

func TestChat_EndToEnd(t *testing.T) {
	ts := newTestServer(t)
	channel := websocket.ConversationChannel(ts.conversation)

	alice, _, err := ts.dial(t, "/ws/chat/"+ts.conversation, ts.token(t, "1"))
	if err != nil {
		t.Fatal(err)
	}
	bob, _, err := ts.dial(t, "/ws/chat/"+ts.conversation, ts.token(t, "2"))
	if err != nil {
		t.Fatal(err)
	}
	bobNotes, _, err := ts.dial(t, "/ws/notifications", ts.token(t, "2"))
	if err != nil {
		t.Fatal(err)
	}
	ts.waitMembers(t, channel, 2)
	ts.waitMembers(t, websocket.NotificationChannel("2"), 1)

	if err := alice.WriteMessage(gws.TextMessage, []byte(`{"type":"send_message","content":"hi bob"}`)); err != nil {
		t.Fatal(err)
	}

	for name, c := range map[string]*gws.Conn{"alice": alice, "bob": bob} {
		f := readFrame(t, c)
		if f["type"] != "message_received" {
			t.Fatalf("%s got %v", name, f)
		}
		msg := f["message"].(map[string]interface{})
		if msg["content"] != "hi bob" || msg["sender"].(map[string]interface{})["name"] != "Alice" {
			t.Errorf("%s message = %v", name, msg)
		}
	}

	note := readFrame(t, bobNotes)
	if note["type"] != "new_message_notification" || note["conversation_id"] != ts.conversation {
		t.Errorf("notification = %v", note)
	}

	n, err := ts.db.CountMessages(context.Background(), ts.conversation)
	if err != nil || n != 1 {
		t.Errorf("CountMessages = %d, %v; want 1", n, err)
	}

	// Malformed input gets an error frame and the socket stays open.
	if err := bob.WriteMessage(gws.TextMessage, []byte(`{oops`)); err != nil {
		t.Fatal(err)
	}
	if f := readFrame(t, bob); f["type"] != "error" || f["message"] != chat.MsgInvalidJSON {
		t.Errorf("error frame = %v", f)
	}

	// Closing a socket removes it from the channel.
	_ = bob.Close()
	ts.waitMembers(t, channel, 1)
}

func TestPresence_EndToEnd(t *testing.T) {
	ts := newTestServer(t)

	watcher, _, err := ts.dial(t, "/ws/presence", ts.token(t, "3"))
	if err != nil {
		t.Fatal(err)
	}
	initial := readFrame(t, watcher)
	if initial["type"] != "initial_presence" || len(initial["online_users"].([]interface{})) != 0 {
		t.Fatalf("initial = %v", initial)
	}

	alice, _, err := ts.dial(t, "/ws/chat/"+ts.conversation, ts.token(t, "1"))
	if err != nil {
		t.Fatal(err)
	}
	online := readFrame(t, watcher)
	if online["type"] != "user_status_change" || online["user_id"] != "1" || online["is_online"] != true {
		t.Fatalf("online = %v", online)
	}

	_ = alice.Close()
	offline := readFrame(t, watcher)
	if offline["type"] != "user_status_change" || offline["is_online"] != false {
		t.Fatalf("offline = %v", offline)
	}
}

func TestHealthAndPresenceREST(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.srv.URL + "/api/v1/health")
	if err != nil {
		t.Fatal(err)
	}
	var body APIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !body.Success {
		t.Errorf("health = %d %+v", resp.StatusCode, body)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}

	resp, err = http.Get(ts.srv.URL + "/api/v1/health/ready")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("ready = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.srv.URL + "/api/v1/presence/online")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("presence without token = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.srv.URL+"/api/v1/presence/online", nil)
	req.Header.Set("Authorization", "Bearer "+ts.token(t, "1"))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("presence with token = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Get(ts.srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics = %d", resp.StatusCode)
	}
}

func TestSanitizeLogValue(t *testing.T) {
	if got := sanitizeLogValue("a\r\nb\x00c"); got != "abc" {
		t.Errorf("sanitizeLogValue = %q", got)
	}
	if got := sanitizeLogValue(strings.Repeat("x", 500)); len(got) != 200 {
		t.Errorf("len = %d, want 200", len(got))
	}
}
