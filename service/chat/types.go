package chat

import (
	"context"
	"encoding/json"
)

// Handler 处理一种入站事件；同一连接上的事件串行调用
type Handler interface {
	Event() string
	Handle(ctx context.Context, c *Conn, data json.RawMessage) error
}

// Presence 在线状态记账，只做展示用途，不影响投递
type Presence interface {
	Online(ctx context.Context, userID string) error
	Offline(ctx context.Context, userID string) error
	Refresh(ctx context.Context, userID string) error
}

// CredentialValidator 校验连接凭证并返回用户ID
type CredentialValidator interface {
	Validate(token string) (string, error)
}

// ConversationCounter 用于 connected 事件里报告已有会话数
type ConversationCounter interface {
	CountConversations(ctx context.Context, userID string) (int, error)
}
