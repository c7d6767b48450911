package handlers

import "PPSocial/service/chat"

// MessageService 同时满足发送和已读
type MessageService interface {
	DMSender
	ReadMarker
}

// Register 把所有入站事件处理器挂到分发器上
func Register(d *chat.Dispatcher, svc MessageService) {
	d.Register(
		NewSendDMHandler(svc),
		NewMarkReadHandler(svc),
	)
}
