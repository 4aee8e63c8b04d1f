package bot

import (
	"context"
	"runtime/debug"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/logger"
)

// Registry manages bot handlers and dispatches messages/postbacks.
type Registry struct {
	handlers []Handler
	freeText []FreeTextHandler
	logger   *logger.Logger
}

// NewRegistry creates a new handler registry. log may be nil.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{
		handlers: make([]Handler, 0),
		logger:   log,
	}
}

// Register adds a handler to the registry. Handlers that also implement
// FreeTextHandler join the free-text chain in registration order.
func (r *Registry) Register(h Handler) {
	r.handlers = append(r.handlers, h)
	if ft, ok := h.(FreeTextHandler); ok {
		r.freeText = append(r.freeText, ft)
	}
}

// DispatchMessage dispatches a text message to the first handler that can handle it.
func (r *Registry) DispatchMessage(ctx context.Context, text string) []messaging_api.MessageInterface {
	for _, h := range r.handlers {
		if h.CanHandle(text) {
			return r.guard(h.Name(), func() []messaging_api.MessageInterface {
				return h.HandleMessage(ctx, text)
			})
		}
	}
	return nil
}

// DispatchPostback dispatches a postback event based on the prefix.
func (r *Registry) DispatchPostback(ctx context.Context, data string) []messaging_api.MessageInterface {
	for _, h := range r.handlers {
		prefix := h.PostbackPrefix()
		if prefix != "" && strings.HasPrefix(data, prefix) {
			return r.guard(h.Name(), func() []messaging_api.MessageInterface {
				return h.HandlePostback(ctx, strings.TrimPrefix(data, prefix))
			})
		}
	}
	return nil
}

// DispatchFreeText walks the free-text chain until a handler replies.
func (r *Registry) DispatchFreeText(ctx context.Context, text string) []messaging_api.MessageInterface {
	for _, ft := range r.freeText {
		name := "free_text"
		if h, ok := ft.(Handler); ok {
			name = h.Name()
		}
		if msgs := r.guard(name, func() []messaging_api.MessageInterface {
			return ft.HandleFreeText(ctx, text)
		}); len(msgs) > 0 {
			return msgs
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

// GetHandler returns a handler by name.
func (r *Registry) GetHandler(name string) Handler {
	for _, h := range r.handlers {
		if h.Name() == name {
			return h
		}
	}
	return nil
}

// guard turns a handler panic into an empty reply.
func (r *Registry) guard(module string, fn func() []messaging_api.MessageInterface) (msgs []messaging_api.MessageInterface) {
	defer func() {
		if rec := recover(); rec != nil {
			if r.logger != nil {
				r.logger.WithModule(module).
					WithField("panic", rec).
					WithField("stack", string(debug.Stack())).
					Error("Handler panicked")
			}
			msgs = nil
		}
	}()
	return fn()
}
