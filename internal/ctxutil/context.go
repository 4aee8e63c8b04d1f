// Package ctxutil provides type-safe context value management.
// Uses private key types to prevent collisions.
package ctxutil

import (
	"context"
)

type contextKey string

const (
	userIDKey    contextKey = "ctxutil.userID"
	chatIDKey    contextKey = "ctxutil.chatID"
	requestIDKey contextKey = "ctxutil.requestID"
)

func withString(ctx context.Context, key contextKey, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

func getString(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	return v, ok && v != ""
}

// WithUserID adds the LINE user ID, used for per-user rate limiting and the
// QA event log.
func WithUserID(ctx context.Context, userID string) context.Context {
	return withString(ctx, userIDKey, userID)
}

// GetUserID returns the user ID, or "" when absent.
func GetUserID(ctx context.Context) string {
	v, _ := getString(ctx, userIDKey)
	return v
}

// WithChatID adds the chat ID (user, group or room).
func WithChatID(ctx context.Context, chatID string) context.Context {
	return withString(ctx, chatIDKey, chatID)
}

// GetChatID returns the chat ID, or "" when absent.
func GetChatID(ctx context.Context) string {
	v, _ := getString(ctx, chatIDKey)
	return v
}

// WithRequestID adds a request ID for log correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withString(ctx, requestIDKey, requestID)
}

// GetRequestID returns the request ID and whether it was set.
func GetRequestID(ctx context.Context) (string, bool) {
	return getString(ctx, requestIDKey)
}

// PreserveTracing returns a fresh context carrying only the tracing values.
// It is detached from the parent's cancellation, for work that outlives the
// webhook HTTP response.
func PreserveTracing(ctx context.Context) context.Context {
	out := context.Background()
	if v := GetUserID(ctx); v != "" {
		out = WithUserID(out, v)
	}
	if v := GetChatID(ctx); v != "" {
		out = WithChatID(out, v)
	}
	if v, ok := GetRequestID(ctx); ok {
		out = WithRequestID(out, v)
	}
	return out
}
