package model

import (
	"encoding/json"
	"time"

	"PPSocial/tools/errs"
)

// 实时通道事件名
const (
	EventConnected = "connected"
	EventSendDM    = "sendDM"
	EventReceiveDM = "receiveDM"
	EventMarkRead  = "markRead"
	EventError     = "error"
)

// Frame 实时通道上的 JSON 帧：{"event": "...", "data": {...}}
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// PublicProfile 对外可见的用户资料，用于给消息补全发送者
type PublicProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarRef   string `json:"avatarRef"`
}

// ReceiveDM 下发给会话双方的私信事件
type ReceiveDM struct {
	ConversationID string         `json:"conversationId"`
	MsgID          string         `json:"msgId"`
	Seq            int64          `json:"seq"`
	Sender         *PublicProfile `json:"sender"`
	Content        string         `json:"content"`
	ImageURLs      []string       `json:"imageUrls"`
	Timestamp      time.Time      `json:"timestamp"`
}

func NewReceiveDM(conversationID string, sender *PublicProfile, m *Message) *ReceiveDM {
	images := m.ImageURLs
	if images == nil {
		images = []string{}
	}
	return &ReceiveDM{
		ConversationID: conversationID,
		MsgID:          m.MsgID,
		Seq:            m.Seq,
		Sender:         sender,
		Content:        m.Content,
		ImageURLs:      images,
		Timestamp:      m.Timestamp,
	}
}

type Connected struct {
	UserID        string    `json:"userId"`
	ConnID        string    `json:"connId"`
	ServerTime    time.Time `json:"serverTime"`
	Conversations int       `json:"conversations"`
}

type ErrorEvent struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewErrorEvent 把错误转成客户端可见的 code/message，内部错误统一成 Server error
func NewErrorEvent(err error) *ErrorEvent {
	code := errs.ServerInternalError
	if ce, ok := errs.AsCode(err); ok {
		code = ce.Code
	}
	return &ErrorEvent{Code: code, Message: errs.Message(err)}
}

// EncodeFrame 序列化一帧
func EncodeFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, errs.WrapMsg(err, "encode event data", "event", event)
	}
	out, err := json.Marshal(&Frame{Event: event, Data: raw})
	if err != nil {
		return nil, errs.WrapMsg(err, "encode frame", "event", event)
	}
	return out, nil
}

// DecodeFrame 解析入站帧；event 不能为空
func DecodeFrame(raw []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, errs.ErrValidation.WrapMsg("malformed frame")
	}
	if f.Event == "" {
		return nil, errs.ErrValidation.WrapMsg("frame without event")
	}
	return &f, nil
}
