package handlers

import (
	"context"
	"encoding/json"

	"PPSocial/logger"
	"PPSocial/module/chat/model"
	"PPSocial/service/chat"
	"PPSocial/tools/decode"
	"PPSocial/tools/errs"

	"go.uber.org/zap"
)

type ReadMarker interface {
	MarkRead(ctx context.Context, reader, other string) (bool, error)
}

type markReadRequest struct {
	WithUserID string `json:"withUserId"`
}

type MarkReadHandler struct{ svc ReadMarker }

func NewMarkReadHandler(svc ReadMarker) chat.Handler { return &MarkReadHandler{svc: svc} }

func (h *MarkReadHandler) Event() string { return model.EventMarkRead }

func (h *MarkReadHandler) Handle(ctx context.Context, c *chat.Conn, data json.RawMessage) error {
	req, err := decode.Payload[markReadRequest](data)
	if err != nil {
		return errs.ErrValidation.WrapMsg(err.Error())
	}
	changed, err := h.svc.MarkRead(ctx, c.UserID(), req.WithUserID)
	if err != nil {
		return err
	}
	logger.Debug("messages marked read", zap.String("reader", c.UserID()), zap.String("with", req.WithUserID), zap.Bool("changed", changed))
	return nil
}
