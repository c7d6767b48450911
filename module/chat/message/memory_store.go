package message

import (
	"context"
	"sort"
	"sync"
	"time"

	"PPSocial/global"
	"PPSocial/module/chat/model"
)

// MemoryStore 进程内实现，语义与 MongoStore 一致；用于测试和单机无 Mongo 的场景
type MemoryStore struct {
	mu    sync.Mutex
	convs map[string]*model.Conversation // pair_key -> conversation
	now   func() time.Time

	// FailNext 非空时下一次写操作返回该错误
	FailNext error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string]*model.Conversation), now: time.Now}
}

func (s *MemoryStore) takeFailure() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

func (s *MemoryStore) getOrCreate(ps []string) (*model.Conversation, error) {
	key := global.PairKey(ps[0], ps[1])
	if c, ok := s.convs[key]; ok {
		return c, nil
	}
	c, err := model.NewConversation(ps[0], ps[1], s.now())
	if err != nil {
		return nil, err
	}
	s.convs[key] = c
	return c, nil
}

func (s *MemoryStore) FindByParticipants(_ context.Context, a, b string) (*model.Conversation, error) {
	ps, err := model.Participants(a, b)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[global.PairKey(ps[0], ps[1])]
	if !ok {
		return nil, nil
	}
	return cloneConversation(c, -1), nil
}

func (s *MemoryStore) UpsertAppend(_ context.Context, a, b string, msg *model.Message) (*AppendResult, error) {
	ps, err := model.Participants(a, b)
	if err != nil {
		return nil, err
	}
	if err := checkSender(ps, msg); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return nil, errPersistence(err, "op", "append message")
	}
	c, err := s.getOrCreate(ps)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC().Truncate(time.Millisecond)
	if n := len(c.Messages); n > 0 && now.Before(c.Messages[n-1].Timestamp) {
		now = c.Messages[n-1].Timestamp
	}
	c.NextSeq++
	stored := &model.Message{
		Seq:       c.NextSeq,
		MsgID:     msg.MsgID,
		Sender:    msg.Sender,
		Content:   msg.Content,
		ImageURLs: cloneStrings(msg.ImageURLs),
		Timestamp: now,
		ReadBy:    []string{},
	}
	c.Messages = append(c.Messages, stored)
	c.UpdateTime = now
	return &AppendResult{ConversationID: c.ID.Hex(), Message: cloneMessage(stored)}, nil
}

func (s *MemoryStore) FindAllByParticipant(_ context.Context, userID string) ([]*model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Conversation, 0)
	for _, c := range s.convs {
		if c.HasParticipant(userID) {
			out = append(out, cloneConversation(c, 1))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdateTime.After(out[j].UpdateTime) })
	return out, nil
}

func (s *MemoryStore) Ensure(_ context.Context, a, b string) (string, error) {
	ps, err := model.Participants(a, b)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.takeFailure(); err != nil {
		return "", errPersistence(err, "op", "ensure conversation")
	}
	c, err := s.getOrCreate(ps)
	if err != nil {
		return "", err
	}
	return c.ID.Hex(), nil
}

func (s *MemoryStore) MarkRead(_ context.Context, reader, other string) (bool, error) {
	ps, err := model.Participants(reader, other)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[global.PairKey(ps[0], ps[1])]
	if !ok {
		return false, nil
	}
	changed := false
	for _, m := range c.Messages {
		if m.Sender != other || containsString(m.ReadBy, reader) {
			continue
		}
		m.ReadBy = append(m.ReadBy, reader)
		changed = true
	}
	return changed, nil
}

// cloneConversation last<0 复制全部消息，否则只保留最后 last 条
func cloneConversation(c *model.Conversation, last int) *model.Conversation {
	out := *c
	out.Participants = cloneStrings(c.Participants)
	msgs := c.Messages
	if last >= 0 && len(msgs) > last {
		msgs = msgs[len(msgs)-last:]
	}
	out.Messages = make([]*model.Message, 0, len(msgs))
	for _, m := range msgs {
		out.Messages = append(out.Messages, cloneMessage(m))
	}
	return &out
}

func cloneMessage(m *model.Message) *model.Message {
	cp := *m
	cp.ImageURLs = cloneStrings(m.ImageURLs)
	cp.ReadBy = cloneStrings(m.ReadBy)
	return &cp
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
