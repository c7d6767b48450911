package service

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"PPSocial/module/chat/message"
	"PPSocial/module/user/store"
	"PPSocial/tools/errs"
	"PPSocial/tools/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSessions struct {
	mu  sync.Mutex
	n   int
	ids map[string]string
}

func newMemSessions() *memSessions { return &memSessions{ids: map[string]string{}} }

func (m *memSessions) Create(_ context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	sid := fmt.Sprintf("sid-%d", m.n)
	m.ids[sid] = userID
	return sid, nil
}

func (m *memSessions) Get(_ context.Context, sid string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid, ok := m.ids[sid]
	if !ok {
		return "", errs.ErrUnauthorized.Wrap()
	}
	return uid, nil
}

func (m *memSessions) Destroy(_ context.Context, sid string) error {
	m.mu.Lock()
	delete(m.ids, sid)
	m.mu.Unlock()
	return nil
}

type fixture struct {
	svc      *UserService
	sessions *memSessions
	issuer   *security.Issuer
	convs    *message.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	issuer, err := security.NewIssuer(security.Options{Secret: []byte("user-test"), TTL: time.Hour})
	require.NoError(t, err)
	f := &fixture{sessions: newMemSessions(), issuer: issuer, convs: message.NewMemoryStore()}
	f.svc = NewUserService(store.NewMemoryRepo(), f.sessions, issuer, f.convs)
	return f
}

func (f *fixture) register(t *testing.T, name string) string {
	t.Helper()
	u, err := f.svc.Register(context.Background(), name, "pw-"+name, "")
	require.NoError(t, err)
	return u.IDHex()
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.register(t, "alice")

	_, err := f.svc.Register(ctx, "alice", "other", "")
	assert.ErrorIs(t, err, errs.ErrRecordExists)
	_, err = f.svc.Register(ctx, "  ", "pw", "")
	assert.ErrorIs(t, err, errs.ErrValidation)

	res, err := f.svc.Login(ctx, "alice", "pw-alice")
	require.NoError(t, err)
	assert.Equal(t, id, res.UserID)

	// session 与 credential 指向同一个用户
	uid, err := f.sessions.Get(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, id, uid)
	sub, err := f.issuer.Validate(res.Token)
	require.NoError(t, err)
	assert.Equal(t, id, sub)

	_, err = f.svc.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
	_, err = f.svc.Login(ctx, "nobody", "pw")
	assert.ErrorIs(t, err, errs.ErrUserNotFound)

	require.NoError(t, f.svc.Logout(ctx, res.SessionID))
	_, err = f.sessions.Get(ctx, res.SessionID)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
}

func TestMeDefaultsRole(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, "bob")
	me, err := f.svc.Me(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "bob", me.Username)
	assert.Equal(t, "user", me.Role)
}

func TestFollowEnsuresConversation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.register(t, "alice")
	b := f.register(t, "bob")

	res, err := f.svc.Follow(ctx, a, b)
	require.NoError(t, err)
	assert.Equal(t, "bob", res.Username)
	assert.NotEmpty(t, res.ConversationID)

	conv, err := f.convs.FindByParticipants(ctx, a, b)
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, res.ConversationID, conv.ID.Hex())
	assert.Empty(t, conv.Messages)

	_, err = f.svc.Follow(ctx, a, b)
	assert.ErrorIs(t, err, errs.ErrConflict)
	_, err = f.svc.Follow(ctx, a, a)
	assert.ErrorIs(t, err, errs.ErrValidation)
	_, err = f.svc.Follow(ctx, a, "64b000000000000000000000")
	assert.ErrorIs(t, err, errs.ErrUserNotFound)

	// 反向关注复用同一个会话
	back, err := f.svc.Follow(ctx, b, a)
	require.NoError(t, err)
	assert.Equal(t, res.ConversationID, back.ConversationID)

	name, err := f.svc.Unfollow(ctx, a, b)
	require.NoError(t, err)
	assert.Equal(t, "bob", name)
	_, err = f.svc.Unfollow(ctx, a, b)
	assert.ErrorIs(t, err, errs.ErrConflict)
}

func TestSearchAndSelfPagination(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	me := f.register(t, "me")
	for i := 0; i < 7; i++ {
		id := f.register(t, fmt.Sprintf("user%02d", i))
		_, err := f.svc.Follow(ctx, me, id)
		require.NoError(t, err)
	}

	cards, p, err := f.svc.Search(ctx, "USER", 2, 3)
	require.NoError(t, err)
	assert.Equal(t, Pagination{Page: 2, Limit: 3}, p)
	require.Len(t, cards, 3)
	assert.Equal(t, "user03", cards[0].Username)
	require.Len(t, cards[0].Followers, 1)
	assert.Equal(t, "me", cards[0].Followers[0].Username)

	_, p, err = f.svc.Search(ctx, "", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, Pagination{Page: 1, Limit: DefaultSearchLimit}, p)

	card, sp, err := f.svc.Self(ctx, me, 1, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, SelfPagination{FollowersPage: 1, FollowingPage: 2, Limit: DefaultSelfLimit}, sp)
	assert.Empty(t, card.Followers)
	require.Len(t, card.Following, 2)
	assert.Equal(t, "user05", card.Following[0].Username)
}

func TestRecommendationsExcludeSelf(t *testing.T) {
	f := newFixture(t)
	me := f.register(t, "me")
	for i := 0; i < 8; i++ {
		f.register(t, fmt.Sprintf("u%d", i))
	}
	users, err := f.svc.Recommendations(context.Background(), me)
	require.NoError(t, err)
	assert.Len(t, users, RecommendationSize)
	for _, u := range users {
		assert.NotEqual(t, me, u.IDHex())
	}
}

func TestFindByIDPublicProfile(t *testing.T) {
	f := newFixture(t)
	id := f.register(t, "carol")
	p, err := f.svc.FindByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, "carol", p.DisplayName)

	_, err = f.svc.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, errs.ErrUserNotFound)
}

func TestHugePageNumbersAreEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	me := f.register(t, "me")
	for i := 0; i < 3; i++ {
		id := f.register(t, fmt.Sprintf("user%02d", i))
		_, err := f.svc.Follow(ctx, me, id)
		require.NoError(t, err)
	}

	for _, page := range []int{math.MaxInt64, math.MaxInt64/5 + 2} {
		cards, _, err := f.svc.Search(ctx, "user", page, 5)
		require.NoError(t, err)
		assert.Empty(t, cards)

		card, _, err := f.svc.Self(ctx, me, page, page, 5)
		require.NoError(t, err)
		assert.Empty(t, card.Followers)
		assert.Empty(t, card.Following)
	}

	ids := []string{"a", "b", "c"}
	assert.Empty(t, window(ids, math.MaxInt64/5+2, 5))
	assert.Empty(t, window(ids, 2, 5))
	assert.Equal(t, []string{"c"}, window(ids, 2, 2))
}
