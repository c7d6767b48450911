package chat_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"PPSocial/module/chat/message"
	"PPSocial/module/chat/model"
	"PPSocial/module/chat/service"
	"PPSocial/service/chat"
	"PPSocial/service/chat/handlers"
	"PPSocial/tools/errs"
	"PPSocial/tools/security"

	"github.com/gin-gonic/gin"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("ws-test-secret")

type users map[string]*model.PublicProfile

func (u users) FindByID(_ context.Context, id string) (*model.PublicProfile, error) {
	p, ok := u[id]
	if !ok {
		return nil, errs.ErrUserNotFound.Wrap()
	}
	return p, nil
}

type countingPresence struct{ online, offline chan string }

func (p *countingPresence) Online(_ context.Context, u string) error { p.online <- u; return nil }
func (p *countingPresence) Offline(_ context.Context, u string) error { p.offline <- u; return nil }
func (p *countingPresence) Refresh(context.Context, string) error { return nil }

type fixture struct {
	srv      *httptest.Server
	dir      *chat.Directory
	svc      *service.MessageService
	issuer   *security.Issuer
	presence *countingPresence
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	issuer, err := security.NewIssuer(security.DefaultOptions(secret))
	require.NoError(t, err)

	dir := chat.NewDirectory()
	router := chat.NewRouter(dir, nil)
	profiles := users{
		"alice": {ID: "alice", DisplayName: "Alice", AvatarRef: "a.png"},
		"bob":   {ID: "bob", DisplayName: "Bob", AvatarRef: "b.png"},
	}
	svc := service.NewMessageService(message.NewMemoryStore(), profiles, router, nil, service.DefaultOptions())

	disp := chat.NewDispatcher()
	handlers.Register(disp, svc)
	presence := &countingPresence{online: make(chan string, 16), offline: make(chan string, 16)}
	ws := chat.NewServer(router, issuer, disp, chat.ServerOptions{}).
		WithPresence(presence).
		WithConversationCounter(svc)

	engine := gin.New()
	engine.GET("/ws", ws.HandleWS)
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, dir: dir, svc: svc, issuer: issuer, presence: presence}
}

func (f *fixture) wsURL(query string) string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/ws" + query
}

func (f *fixture) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	tok, _, err := f.issuer.Issue(user)
	require.NoError(t, err)
	c, resp, err := websocket.DefaultDialer.Dial(f.wsURL("?auth.token="+url.QueryEscape(tok)), nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = c.Close() })

	ev := readFrame(t, c)
	require.Equal(t, model.EventConnected, ev.Event)
	var hello model.Connected
	require.NoError(t, json.Unmarshal(ev.Data, &hello))
	require.Equal(t, user, hello.UserID)
	require.NotEmpty(t, hello.ConnID)
	return c
}

func readFrame(t *testing.T, c *websocket.Conn) *model.Frame {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, raw, err := c.ReadMessage()
	require.NoError(t, err)
	f, err := model.DecodeFrame(raw)
	require.NoError(t, err)
	return f
}

func send(t *testing.T, c *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := model.EncodeFrame(event, data)
	require.NoError(t, err)
	require.NoError(t, c.WriteMessage(websocket.TextMessage, raw))
}

func TestHandshakeRefused(t *testing.T) {
	f := newFixture(t)

	expired, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
		"sub": "alice",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString(secret)
	require.NoError(t, err)

	valid, _, err := f.issuer.Issue("alice")
	require.NoError(t, err)
	tampered := valid[:len(valid)-2] + "xx"

	cases := []struct {
		name   string
		query  string
		header http.Header
		body   string
	}{
		{"no credential", "", nil, "unauthorized"},
		{"expired", "?token=" + expired, nil, "invalid_token"},
		{"tampered", "", http.Header{"Authorization": {"Bearer " + tampered}}, "invalid_token"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			conn, resp, err := websocket.DefaultDialer.Dial(f.wsURL(c.query), c.header)
			require.Error(t, err)
			assert.Nil(t, conn)
			require.NotNil(t, resp)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, c.body, body["error"])
			assert.Equal(t, 0, f.dir.Count())
		})
	}
	assert.Empty(t, f.presence.online)
}

func TestSendDMSymmetricDelivery(t *testing.T) {
	f := newFixture(t)
	alice := f.dial(t, "alice")
	bob := f.dial(t, "bob")
	assert.Equal(t, 2, f.dir.Count())

	send(t, alice, model.EventSendDM, map[string]any{"toUserId": "bob", "content": "hello", "imageUrls": []string{"p.png"}})

	for _, c := range []*websocket.Conn{bob, alice} {
		ev := readFrame(t, c)
		require.Equal(t, model.EventReceiveDM, ev.Event)
		var dm model.ReceiveDM
		require.NoError(t, json.Unmarshal(ev.Data, &dm))
		assert.Equal(t, "alice", dm.Sender.ID)
		assert.Equal(t, "Alice", dm.Sender.DisplayName)
		assert.Equal(t, "hello", dm.Content)
		assert.Equal(t, []string{"p.png"}, dm.ImageURLs)
		assert.NotEmpty(t, dm.ConversationID)
	}

	hist, err := f.svc.GetHistory(context.Background(), "bob", "alice", 1)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "hello", hist[0].Content)
}

func TestSendDMErrorsGoToCaller(t *testing.T) {
	f := newFixture(t)
	alice := f.dial(t, "alice")

	send(t, alice, model.EventSendDM, map[string]any{"toUserId": "alice", "content": "me"})
	ev := readFrame(t, alice)
	require.Equal(t, model.EventError, ev.Event)
	var e model.ErrorEvent
	require.NoError(t, json.Unmarshal(ev.Data, &e))
	assert.Equal(t, errs.SelfMessageError, e.Code)

	send(t, alice, "noSuchEvent", map[string]any{})
	ev = readFrame(t, alice)
	assert.Equal(t, model.EventError, ev.Event)

	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("not json")))
	ev = readFrame(t, alice)
	assert.Equal(t, model.EventError, ev.Event)

	// 连接仍然可用
	send(t, alice, model.EventMarkRead, map[string]any{"withUserId": "bob"})
	send(t, alice, model.EventSendDM, map[string]any{"toUserId": "bob", "content": "still here"})
	ev = readFrame(t, alice)
	assert.Equal(t, model.EventReceiveDM, ev.Event)
}

func TestDisconnectUnregisters(t *testing.T) {
	f := newFixture(t)
	alice := f.dial(t, "alice")
	assert.Equal(t, "alice", <-f.presence.online)
	assert.Equal(t, 1, f.dir.Online("alice"))

	require.NoError(t, alice.Close())
	select {
	case u := <-f.presence.offline:
		assert.Equal(t, "alice", u)
	case <-time.After(3 * time.Second):
		t.Fatal("connection was not torn down")
	}
	assert.Equal(t, 0, f.dir.Count())
	select {
	case u := <-f.presence.offline:
		t.Fatalf("second offline for %s", u)
	case <-time.After(200 * time.Millisecond):
	}
}
