package handlers

import (
	"context"
	"encoding/json"

	"PPSocial/module/chat/model"
	"PPSocial/module/chat/service"
	"PPSocial/service/chat"
	"PPSocial/tools/decode"
	"PPSocial/tools/errs"
)

type DMSender interface {
	Send(ctx context.Context, senderID, recipientID, content string, imageRefs []string) (*service.DispatchResult, error)
}

type sendDMRequest struct {
	ToUserID  string   `json:"toUserId"`
	Content   string   `json:"content"`
	ImageURLs []string `json:"imageUrls"`
}

type SendDMHandler struct{ svc DMSender }

func NewSendDMHandler(svc DMSender) chat.Handler { return &SendDMHandler{svc: svc} }

func (h *SendDMHandler) Event() string { return model.EventSendDM }

// Handle 发送者取自连接，忽略 payload 里的任何身份字段
func (h *SendDMHandler) Handle(ctx context.Context, c *chat.Conn, data json.RawMessage) error {
	req, err := decode.Payload[sendDMRequest](data)
	if err != nil {
		return errs.ErrValidation.WrapMsg(err.Error())
	}
	_, err = h.svc.Send(ctx, c.UserID(), req.ToUserID, req.Content, req.ImageURLs)
	return err
}
