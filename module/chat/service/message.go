package service

import (
	"context"
	"strings"
	"time"

	"PPSocial/logger"
	"PPSocial/module/chat/message"
	"PPSocial/module/chat/model"
	"PPSocial/tools/errs"
	"PPSocial/tools/ids"

	"go.uber.org/zap"
)

// UserDirectory 用户资料查询；不存在时返回 errs.ErrUserNotFound
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*model.PublicProfile, error)
}

// Publisher 把一帧投递到某个用户的个人通道；没有在线连接时什么也不做
type Publisher interface {
	Publish(ctx context.Context, userID string, frame []byte) error
}

// EventSink 落库后的消息事件出口（kafka），尽力而为
type EventSink interface {
	Emit(key string, event any) error
}

type Options struct {
	Limits   model.Limits
	PageSize int
}

func DefaultOptions() Options {
	return Options{Limits: model.DefaultLimits(), PageSize: model.DefaultPageSize}
}

type DispatchResult struct {
	ConversationID string
	Message        *model.Message
	Delivered      bool
}

// PersistedDM 写入事件出口的消息
type PersistedDM struct {
	ConversationID string    `json:"conversationId"`
	MsgID          string    `json:"msgId"`
	Seq            int64     `json:"seq"`
	Sender         string    `json:"sender"`
	Recipient      string    `json:"recipient"`
	Content        string    `json:"content"`
	ImageURLs      []string  `json:"imageUrls"`
	Timestamp      time.Time `json:"timestamp"`
}

// HistoryMessage 历史消息，sender 已补全资料
type HistoryMessage struct {
	MsgID     string               `json:"msgId"`
	Seq       int64                `json:"seq"`
	Sender    *model.PublicProfile `json:"sender"`
	Content   string               `json:"content"`
	ImageURLs []string             `json:"imageUrls"`
	Timestamp time.Time            `json:"timestamp"`
	ReadBy    []string             `json:"readBy"`
}

type ConversationItem struct {
	ID         string               `json:"id"`
	Peer       *model.PublicProfile `json:"peer"`
	Last       *HistoryMessage      `json:"last,omitempty"`
	UpdateTime time.Time            `json:"updateTime"`
}

type MessageService struct {
	store message.ConversationStore
	users UserDirectory
	pub   Publisher
	sink  EventSink
	opts  Options
}

// NewMessageService sink 可以为 nil
func NewMessageService(store message.ConversationStore, users UserDirectory, pub Publisher, sink EventSink, opts Options) *MessageService {
	if opts.PageSize <= 0 {
		opts.PageSize = model.DefaultPageSize
	}
	return &MessageService{store: store, users: users, pub: pub, sink: sink, opts: opts}
}

// Send 校验、落库、补全发送者资料，再投递给双方的个人通道。
// 落库失败直接返回错误且不投递；补全失败只记日志，消息仍在库里，Delivered=false。
func (s *MessageService) Send(ctx context.Context, senderID, recipientID, content string, imageRefs []string) (*DispatchResult, error) {
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return nil, errs.ErrValidation.WrapMsg("recipient is required")
	}
	if _, err := model.Participants(senderID, recipientID); err != nil {
		return nil, err
	}
	content, images, err := s.opts.Limits.Normalize(content, imageRefs)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.FindByID(ctx, recipientID); err != nil {
		return nil, errs.WrapMsg(err, "lookup recipient", "recipient", recipientID)
	}

	msg := &model.Message{
		MsgID:     ids.GenerateString(),
		Sender:    senderID,
		Content:   content,
		ImageURLs: images,
	}
	res, err := s.store.UpsertAppend(ctx, senderID, recipientID, msg)
	if err != nil {
		logger.Error("dm persist failed", zap.String("from", senderID), zap.String("to", recipientID), zap.Error(err))
		return nil, err
	}
	out := &DispatchResult{ConversationID: res.ConversationID, Message: res.Message}
	defer s.emit(out, recipientID)

	sender, err := s.users.FindByID(ctx, senderID)
	if err != nil {
		logger.Warn("dm enrichment failed, delivery skipped",
			zap.String("conversation", res.ConversationID),
			zap.String("msg", res.Message.MsgID),
			zap.Error(errs.ErrEnrichment.WrapMsg(err.Error())))
		return out, nil
	}

	frame, err := model.EncodeFrame(model.EventReceiveDM, model.NewReceiveDM(res.ConversationID, sender, res.Message))
	if err != nil {
		logger.Error("dm encode failed", zap.Error(err))
		return out, nil
	}
	for _, uid := range []string{recipientID, senderID} {
		if err := s.pub.Publish(ctx, uid, frame); err != nil {
			logger.Warn("dm publish failed", zap.String("user", uid), zap.Error(err))
		}
	}
	out.Delivered = true
	return out, nil
}

func (s *MessageService) emit(r *DispatchResult, recipient string) {
	if s.sink == nil {
		return
	}
	m := r.Message
	ev := &PersistedDM{
		ConversationID: r.ConversationID,
		MsgID:          m.MsgID,
		Seq:            m.Seq,
		Sender:         m.Sender,
		Recipient:      recipient,
		Content:        m.Content,
		ImageURLs:      m.ImageURLs,
		Timestamp:      m.Timestamp,
	}
	if err := s.sink.Emit(r.ConversationID, ev); err != nil {
		logger.Warn("dm event emit failed", zap.String("msg", m.MsgID), zap.Error(err))
	}
}

// GetHistory 返回第 page 页（从 1 开始），页内按时间升序；没有会话时返回空切片
func (s *MessageService) GetHistory(ctx context.Context, userID, otherID string, page int) ([]*HistoryMessage, error) {
	if _, err := model.Participants(userID, otherID); err != nil {
		return nil, err
	}
	conv, err := s.store.FindByParticipants(ctx, userID, otherID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return []*HistoryMessage{}, nil
	}
	msgs := model.Page(conv.Messages, page, s.opts.PageSize)
	profiles := s.profiles(ctx, conv.Participants)
	out := make([]*HistoryMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toHistory(m, profiles))
	}
	return out, nil
}

// ListConversations 当前用户的会话列表，每个会话只带最后一条
func (s *MessageService) ListConversations(ctx context.Context, userID string) ([]*ConversationItem, error) {
	convs, err := s.store.FindAllByParticipant(ctx, userID)
	if err != nil {
		return nil, err
	}
	peers := make([]string, 0, len(convs)+1)
	peers = append(peers, userID)
	for _, c := range convs {
		peers = append(peers, c.Peer(userID))
	}
	profiles := s.profiles(ctx, peers)

	out := make([]*ConversationItem, 0, len(convs))
	for _, c := range convs {
		sum := c.Summary()
		item := &ConversationItem{ID: sum.ID, Peer: profiles[c.Peer(userID)], UpdateTime: sum.UpdateTime}
		if sum.Last != nil {
			item.Last = toHistory(sum.Last, profiles)
		}
		out = append(out, item)
	}
	return out, nil
}

// MarkRead 把 reader 记入与 other 的会话中对方消息的已读
func (s *MessageService) MarkRead(ctx context.Context, reader, other string) (bool, error) {
	if _, err := model.Participants(reader, other); err != nil {
		return false, err
	}
	return s.store.MarkRead(ctx, reader, other)
}

// 查不到的用户只保留 id
func (s *MessageService) profiles(ctx context.Context, userIDs []string) map[string]*model.PublicProfile {
	out := make(map[string]*model.PublicProfile, len(userIDs))
	for _, id := range userIDs {
		if _, ok := out[id]; ok {
			continue
		}
		p, err := s.users.FindByID(ctx, id)
		if err != nil {
			logger.Debug("profile lookup failed", zap.String("user", id), zap.Error(err))
			p = &model.PublicProfile{ID: id}
		}
		out[id] = p
	}
	return out
}

func toHistory(m *model.Message, profiles map[string]*model.PublicProfile) *HistoryMessage {
	sender := profiles[m.Sender]
	if sender == nil {
		sender = &model.PublicProfile{ID: m.Sender}
	}
	images, readBy := m.ImageURLs, m.ReadBy
	if images == nil {
		images = []string{}
	}
	if readBy == nil {
		readBy = []string{}
	}
	return &HistoryMessage{
		MsgID:     m.MsgID,
		Seq:       m.Seq,
		Sender:    sender,
		Content:   m.Content,
		ImageURLs: images,
		Timestamp: m.Timestamp,
		ReadBy:    readBy,
	}
}

// CountConversations 连接建立时上报用户已有的会话数
func (s *MessageService) CountConversations(ctx context.Context, userID string) (int, error) {
	convs, err := s.store.FindAllByParticipant(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(convs), nil
}
