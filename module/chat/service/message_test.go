package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"PPSocial/module/chat/message"
	"PPSocial/module/chat/model"
	"PPSocial/tools/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers struct {
	mu       sync.Mutex
	profiles map[string]*model.PublicProfile
	failFor  map[string]error
}

func newFakeUsers(ids ...string) *fakeUsers {
	u := &fakeUsers{profiles: map[string]*model.PublicProfile{}, failFor: map[string]error{}}
	for _, id := range ids {
		u.profiles[id] = &model.PublicProfile{ID: id, DisplayName: "name-" + id, AvatarRef: id + ".png"}
	}
	return u
}

func (u *fakeUsers) FindByID(_ context.Context, id string) (*model.PublicProfile, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.failFor[id]; err != nil {
		return nil, err
	}
	p, ok := u.profiles[id]
	if !ok {
		return nil, errs.ErrUserNotFound.WrapMsg("", "id", id)
	}
	cp := *p
	return &cp, nil
}

// recorder 记录每次投递时库里是否已经能查到该消息
type recorder struct {
	mu     sync.Mutex
	store  message.ConversationStore
	frames map[string][][]byte
	seen   []bool
}

func (r *recorder) Publish(ctx context.Context, userID string, frame []byte) error {
	var f model.Frame
	if err := json.Unmarshal(frame, &f); err != nil {
		return err
	}
	var ev model.ReceiveDM
	if err := json.Unmarshal(f.Data, &ev); err != nil {
		return err
	}
	durable := false
	if r.store != nil {
		convs, err := r.store.FindAllByParticipant(ctx, userID)
		if err != nil {
			return err
		}
		for _, c := range convs {
			full, err := r.store.FindByParticipants(ctx, c.Participants[0], c.Participants[1])
			if err != nil {
				return err
			}
			for _, m := range full.Messages {
				if m.MsgID == ev.MsgID {
					durable = true
				}
			}
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.frames == nil {
		r.frames = map[string][][]byte{}
	}
	r.frames[userID] = append(r.frames[userID], frame)
	r.seen = append(r.seen, durable)
	return nil
}

func (r *recorder) count(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames[userID])
}

type sinkRecorder struct {
	mu   sync.Mutex
	keys []string
}

func (s *sinkRecorder) Emit(key string, _ any) error {
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.mu.Unlock()
	return nil
}

func newTestService(t *testing.T) (*MessageService, *message.MemoryStore, *fakeUsers, *recorder, *sinkRecorder) {
	t.Helper()
	store := message.NewMemoryStore()
	users := newFakeUsers("alice", "bob", "carol")
	pub := &recorder{}
	sink := &sinkRecorder{}
	return NewMessageService(store, users, pub, sink, DefaultOptions()), store, users, pub, sink
}

func TestSendDeliversToBothParticipants(t *testing.T) {
	svc, store, _, pub, sink := newTestService(t)
	pub.store = store

	res, err := svc.Send(context.Background(), "alice", "bob", "  hi bob  ", nil)
	require.NoError(t, err)
	assert.True(t, res.Delivered)
	assert.Equal(t, "hi bob", res.Message.Content)
	assert.Equal(t, int64(1), res.Message.Seq)

	assert.Equal(t, 1, pub.count("bob"))
	assert.Equal(t, 1, pub.count("alice"), "sender gets its own echo")
	assert.Equal(t, []string{res.ConversationID}, sink.keys)

	var f model.Frame
	require.NoError(t, json.Unmarshal(pub.frames["bob"][0], &f))
	assert.Equal(t, model.EventReceiveDM, f.Event)
	var ev model.ReceiveDM
	require.NoError(t, json.Unmarshal(f.Data, &ev))
	assert.Equal(t, "alice", ev.Sender.ID)
	assert.Equal(t, "name-alice", ev.Sender.DisplayName)
	assert.Equal(t, "alice.png", ev.Sender.AvatarRef)
	assert.Equal(t, []string{}, ev.ImageURLs)
	assert.Equal(t, res.Message.MsgID, ev.MsgID)
}

func TestDeliveryHappensAfterPersistence(t *testing.T) {
	svc, store, _, pub, _ := newTestService(t)
	pub.store = store

	for i := 0; i < 5; i++ {
		_, err := svc.Send(context.Background(), "alice", "bob", fmt.Sprintf("m%d", i), nil)
		require.NoError(t, err)
	}
	require.Len(t, pub.seen, 10)
	for _, durable := range pub.seen {
		assert.True(t, durable)
	}

	hist, err := svc.GetHistory(context.Background(), "bob", "alice", 1)
	require.NoError(t, err)
	assert.Len(t, hist, 5)
}

func TestSendPersistenceFailureSkipsDelivery(t *testing.T) {
	svc, store, _, pub, sink := newTestService(t)
	store.FailNext = errors.New("write concern timeout")

	res, err := svc.Send(context.Background(), "alice", "bob", "hi", nil)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, errs.ErrPersistence))
	assert.Equal(t, 0, pub.count("alice")+pub.count("bob"))
	assert.Empty(t, sink.keys)
}

func TestSendEnrichmentFailureKeepsMessage(t *testing.T) {
	svc, _, users, pub, sink := newTestService(t)
	users.failFor["alice"] = errors.New("users collection unavailable")

	res, err := svc.Send(context.Background(), "alice", "bob", "hi", nil)
	require.NoError(t, err)
	assert.False(t, res.Delivered)
	assert.Equal(t, 0, pub.count("alice")+pub.count("bob"))
	assert.Len(t, sink.keys, 1)

	delete(users.failFor, "alice")
	hist, err := svc.GetHistory(context.Background(), "bob", "alice", 1)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "hi", hist[0].Content)
}

func TestSendValidation(t *testing.T) {
	svc, store, _, pub, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		to       string
		content  string
		images   []string
		expected error
	}{
		{"self", "alice", "hi", nil, errs.ErrSelfMessage},
		{"no recipient", " ", "hi", nil, errs.ErrValidation},
		{"empty", "bob", "   ", []string{" "}, errs.ErrValidation},
		{"unknown recipient", "dave", "hi", nil, errs.ErrUserNotFound},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := svc.Send(ctx, "alice", c.to, c.content, c.images)
			assert.True(t, errors.Is(err, c.expected), "%v", err)
		})
	}
	all, err := store.FindAllByParticipant(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, 0, pub.count("alice"))
}

func TestSendImageOnly(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	res, err := svc.Send(context.Background(), "alice", "bob", "", []string{"a.png", "", "b.png"})
	require.NoError(t, err)
	assert.Equal(t, "", res.Message.Content)
	assert.Equal(t, []string{"a.png", "b.png"}, res.Message.ImageURLs)
}

func TestGetHistoryPagination(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 120; i++ {
		from, to := "alice", "bob"
		if i%3 == 0 {
			from, to = to, from
		}
		_, err := svc.Send(ctx, from, to, fmt.Sprintf("m%03d", i), nil)
		require.NoError(t, err)
	}

	p1, err := svc.GetHistory(ctx, "alice", "bob", 1)
	require.NoError(t, err)
	require.Len(t, p1, 50)
	assert.Equal(t, "m070", p1[0].Content)
	assert.Equal(t, "m119", p1[49].Content)

	p3, err := svc.GetHistory(ctx, "bob", "alice", 3)
	require.NoError(t, err)
	require.Len(t, p3, 20)
	assert.Equal(t, "m000", p3[0].Content)
	assert.Equal(t, "bob", p3[0].Sender.ID)
	assert.Equal(t, "name-bob", p3[0].Sender.DisplayName)

	p4, err := svc.GetHistory(ctx, "bob", "alice", 4)
	require.NoError(t, err)
	assert.Empty(t, p4)
}

func TestGetHistoryWithoutConversation(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	hist, err := svc.GetHistory(context.Background(), "alice", "carol", 1)
	require.NoError(t, err)
	assert.NotNil(t, hist)
	assert.Empty(t, hist)
}

func TestListConversationsAndMarkRead(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Send(ctx, "alice", "bob", "one", nil)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	_, err = svc.Send(ctx, "carol", "alice", "two", nil)
	require.NoError(t, err)

	items, err := svc.ListConversations(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "carol", items[0].Peer.ID)
	assert.Equal(t, "two", items[0].Last.Content)

	changed, err := svc.MarkRead(ctx, "alice", "carol")
	require.NoError(t, err)
	assert.True(t, changed)
	hist, err := svc.GetHistory(ctx, "alice", "carol", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, hist[0].ReadBy)

	_, err = svc.MarkRead(ctx, "alice", "alice")
	assert.True(t, errors.Is(err, errs.ErrSelfMessage))
}
