package chat

import (
	"context"
	"sync"

	"PPSocial/module/chat/model"
	"PPSocial/tools/errs"
)

type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register 同名事件后注册的覆盖先注册的
func (d *Dispatcher) Register(hs ...Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, h := range hs {
		d.handlers[h.Event()] = h
	}
}

func (d *Dispatcher) GetHandler(event string) Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers[event]
}

func (d *Dispatcher) Dispatch(ctx context.Context, c *Conn, f *model.Frame) error {
	h := d.GetHandler(f.Event)
	if h == nil {
		return errs.ErrValidation.WrapMsg("unknown event", "event", f.Event)
	}
	return h.Handle(ctx, c, f.Data)
}
