package model

import (
	"strings"
	"time"

	"PPSocial/global"
	"PPSocial/tools/errs"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const ConversationTableName = "conversation"

// Conversation 两人私聊：一对用户只有一个会话文档，消息内嵌在 messages 数组里
type Conversation struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PairKey      string             `bson:"pair_key" json:"-"`                // 排序后的两个用户ID，唯一索引
	Participants []string           `bson:"participants" json:"participants"` // 创建后不再修改
	Messages     []*Message         `bson:"messages" json:"messages,omitempty"`
	NextSeq      int64              `bson:"next_seq" json:"nextSeq"` // 已分配的最大消息序号
	CreateTime   time.Time          `bson:"create_time" json:"createTime"`
	UpdateTime   time.Time          `bson:"update_time" json:"updateTime"`
}

func (c *Conversation) GetTableName() string { return ConversationTableName }

func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Peer 返回 userID 在会话中的对端
func (c *Conversation) Peer(userID string) string {
	for _, p := range c.Participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// Participants 校验并规范化会话成员：必须恰好两个不同的非空用户
func Participants(ids ...string) ([]string, error) {
	if len(ids) != 2 {
		return nil, errs.ErrInvalidParticipants.WrapMsg("", "count", len(ids))
	}
	a, b := strings.TrimSpace(ids[0]), strings.TrimSpace(ids[1])
	if a == "" || b == "" {
		return nil, errs.ErrInvalidParticipants.WrapMsg("empty participant")
	}
	if a == b {
		return nil, errs.ErrSelfMessage.WrapMsg("", "user", a)
	}
	if a > b {
		a, b = b, a
	}
	return []string{a, b}, nil
}

// NewConversation 仅用于非 Mongo 存储；Mongo 由 upsert 直接生成文档
func NewConversation(a, b string, now time.Time) (*Conversation, error) {
	ps, err := Participants(a, b)
	if err != nil {
		return nil, err
	}
	return &Conversation{
		ID:           primitive.NewObjectID(),
		PairKey:      global.PairKey(ps[0], ps[1]),
		Participants: ps,
		Messages:     []*Message{},
		CreateTime:   now,
		UpdateTime:   now,
	}, nil
}

// ConversationSummary 会话列表项：不带完整消息，只带最后一条
type ConversationSummary struct {
	ID           string    `json:"id"`
	Participants []string  `json:"participants"`
	Last         *Message  `json:"last,omitempty"`
	UpdateTime   time.Time `json:"updateTime"`
}

func (c *Conversation) Summary() *ConversationSummary {
	s := &ConversationSummary{
		ID:           c.ID.Hex(),
		Participants: c.Participants,
		UpdateTime:   c.UpdateTime,
	}
	if n := len(c.Messages); n > 0 {
		s.Last = c.Messages[n-1]
	}
	return s
}
