package logger

import (
	"context"
	"log/slog"

	"github.com/ngspreakleap/kalyan-linebot-go/internal/ctxutil"
)

// ContextHandler is a slog.Handler decorator that copies tracing values from
// the context onto every record before passing it to the wrapped handler.
//
// Attributes added when present in the context:
//   - user_id: LINE user who sent the event
//   - chat_id: user, group or room the reply goes to
//   - request_id: webhook event id or HTTP request id
//
// Only the *Context logging calls (InfoContext, slog.WarnContext, ...) carry
// a context, so plain calls are logged without these attributes.
type ContextHandler struct {
	handler slog.Handler
}

// NewContextHandler wraps handler.
func NewContextHandler(handler slog.Handler) *ContextHandler {
	return &ContextHandler{handler: handler}
}

// Enabled delegates to the wrapped handler.
func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

// Handle adds the tracing attributes and delegates. The context is only
// read; its cancellation does not drop the record.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if userID := ctxutil.GetUserID(ctx); userID != "" {
		r.AddAttrs(slog.String("user_id", userID))
	}
	if chatID := ctxutil.GetChatID(ctx); chatID != "" {
		r.AddAttrs(slog.String("chat_id", chatID))
	}
	if requestID, ok := ctxutil.GetRequestID(ctx); ok {
		r.AddAttrs(slog.String("request_id", requestID))
	}
	return h.handler.Handle(ctx, r)
}

// WithAttrs returns a ContextHandler over the wrapped handler with attrs
// added, so derived loggers keep the context enrichment.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{handler: h.handler.WithAttrs(attrs)}
}

// WithGroup returns a ContextHandler whose later attributes are nested under
// name. Tracing attributes are added to the current group too.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{handler: h.handler.WithGroup(name)}
}
