// Package sentry reports errors to Better Stack Errors through the Sentry SDK.
package sentry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/ngspreakleap/kalyan-linebot-go/internal/ctxutil"
)

// Config holds Sentry configuration for Better Stack integration.
type Config struct {
	Token       string // Better Stack Errors application token
	Host        string // ingesting host, e.g. "errors.betterstack.com"
	Environment string
	Release     string
	SampleRate  float64 // 0 means 1.0
	Debug       bool
}

// DSN builds the Better Stack DSN. The project id is required by the SDK
// and ignored by Better Stack.
func (c Config) DSN() string {
	return fmt.Sprintf("https://%s@%s/1", c.Token, c.Host)
}

// Initialize sets up the Sentry SDK. An empty Token disables reporting.
func Initialize(cfg Config) error {
	if cfg.Token == "" {
		return nil
	}
	if cfg.Host == "" {
		return errors.New("sentry host is required when token is provided")
	}

	sampleRate := cfg.SampleRate
	if sampleRate <= 0 {
		sampleRate = 1.0
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN(),
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		Debug:            cfg.Debug,
		AttachStacktrace: true,
		BeforeSend:       dropCanceled,
	})
}

// dropCanceled discards events for requests the client abandoned.
func dropCanceled(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if hint != nil && hint.OriginalException != nil && errors.Is(hint.OriginalException, context.Canceled) {
		return nil
	}
	return event
}

// Flush waits for buffered events to be sent to the server.
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// IsEnabled returns true if Sentry is initialized and active.
func IsEnabled() bool {
	return sentry.CurrentHub().Client() != nil
}

// CaptureException reports err tagged with the chat identifiers carried by
// ctx. The request hub installed by sentrygin is used when present.
func CaptureException(ctx context.Context, err error) {
	if err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		applyContext(ctx, scope)
		hub.CaptureException(err)
	})
}

func applyContext(ctx context.Context, scope *sentry.Scope) {
	if userID := ctxutil.GetUserID(ctx); userID != "" {
		scope.SetUser(sentry.User{ID: userID})
	}
	if chatID := ctxutil.GetChatID(ctx); chatID != "" {
		scope.SetTag("chat_id", chatID)
	}
	if requestID, ok := ctxutil.GetRequestID(ctx); ok {
		scope.SetTag("request_id", requestID)
	}
}
