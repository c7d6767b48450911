package message

import (
	"context"

	"PPSocial/module/chat/model"
)

// AppendResult 一次追加的结果：会话ID与落库后的消息（带 seq 与服务端时间）
type AppendResult struct {
	ConversationID string
	Message        *model.Message
}

// ConversationStore 会话存储。实现必须保证：
//   - 同一对用户最多一个会话（并发首发也只建一个）
//   - UpsertAppend 的“查找或创建 + 追加 + 分配 seq”是一次原子操作
//   - 成员创建后不可变，发送者必须是成员
type ConversationStore interface {
	// FindByParticipants 没有会话时返回 (nil, nil)
	FindByParticipants(ctx context.Context, a, b string) (*model.Conversation, error)
	UpsertAppend(ctx context.Context, a, b string, msg *model.Message) (*AppendResult, error)
	// FindAllByParticipant 每个会话只带最后一条消息，按更新时间倒序
	FindAllByParticipant(ctx context.Context, userID string) ([]*model.Conversation, error)
	// Ensure 确保会话存在并返回其ID（关注时调用）
	Ensure(ctx context.Context, a, b string) (string, error)
	// MarkRead 把 reader 记入对端所发消息的 read_by
	MarkRead(ctx context.Context, reader, other string) (bool, error)
}

func checkSender(ps []string, msg *model.Message) error {
	if msg == nil {
		return errValidation("nil message")
	}
	if msg.Sender != ps[0] && msg.Sender != ps[1] {
		return errValidation("sender is not a participant", "sender", msg.Sender)
	}
	return nil
}
