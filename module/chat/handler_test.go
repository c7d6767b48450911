package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"PPSocial/middleware"
	"PPSocial/middleware/security"
	"PPSocial/module/chat/message"
	"PPSocial/module/chat/model"
	"PPSocial/module/chat/service"
	"PPSocial/tools/errs"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type users struct{}

func (users) FindByID(_ context.Context, id string) (*model.PublicProfile, error) {
	return &model.PublicProfile{ID: id, DisplayName: "n-" + id}, nil
}

type discard struct{}

func (discard) Publish(context.Context, string, []byte) error { return nil }

// cookie 值即用户ID
type sessions struct{}

func (sessions) Get(_ context.Context, sid string) (string, error) {
	if sid == "" {
		return "", errs.ErrUnauthorized.Wrap()
	}
	return sid, nil
}

func setup(t *testing.T, store message.ConversationStore) (*gin.Engine, *service.MessageService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	svc := service.NewMessageService(store, users{}, discard{}, nil, service.DefaultOptions())
	r := gin.New()
	NewHandler(svc).Routes(middleware.NewRoutes(r, security.SessionAuth(sessions{})))
	return r, svc
}

func get(r http.Handler, path, uid string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if uid != "" {
		req.AddCookie(&http.Cookie{Name: security.CookieName, Value: uid})
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHistoryRoute(t *testing.T) {
	r, svc := setup(t, message.NewMemoryStore())
	ctx := context.Background()
	for _, c := range []string{"one", "two", "three"} {
		_, err := svc.Send(ctx, "alice", "bob", c, nil)
		require.NoError(t, err)
	}

	w := get(r, "/api/chats/bob", "alice")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Messages []struct {
			Content string `json:"content"`
			Sender  struct {
				ID string `json:"id"`
			} `json:"sender"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Messages, 3)
	assert.Equal(t, "one", body.Messages[0].Content)
	assert.Equal(t, "alice", body.Messages[0].Sender.ID)

	w = get(r, "/api/chats/bob?page=2", "alice")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"messages":[]}`, w.Body.String())

	w = get(r, "/api/chats/carol", "alice")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"messages":[]}`, w.Body.String())

	w = get(r, "/api/chats/bob", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(r, "/api/chats", "bob")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"three"`)
}

type brokenStore struct{ message.ConversationStore }

func (brokenStore) FindByParticipants(context.Context, string, string) (*model.Conversation, error) {
	return nil, errs.ErrPersistence.WrapMsg("boom")
}

func TestHistoryStoreFailure(t *testing.T) {
	r, _ := setup(t, brokenStore{message.NewMemoryStore()})
	w := get(r, "/api/chats/bob", "alice")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Server error"}`, w.Body.String())
}
