package sentry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngspreakleap/kalyan-linebot-go/internal/ctxutil"
)

func TestInitializeEmptyTokenDisables(t *testing.T) {
	// Sentry uses global state; no t.Parallel.
	require.NoError(t, Initialize(Config{}))
}

func TestInitializeMissingHost(t *testing.T) {
	t.Parallel()

	err := Initialize(Config{Token: "test-token"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "host")
}

func TestDSN(t *testing.T) {
	t.Parallel()

	cfg := Config{Token: "abc", Host: "errors.betterstack.com"}
	assert.Equal(t, "https://abc@errors.betterstack.com/1", cfg.DSN())
}

func TestDropCanceled(t *testing.T) {
	t.Parallel()

	event := &sentry.Event{}
	canceled := fmt.Errorf("reply: %w", context.Canceled)

	assert.Nil(t, dropCanceled(event, &sentry.EventHint{OriginalException: canceled}))
	assert.Same(t, event, dropCanceled(event, &sentry.EventHint{OriginalException: errors.New("boom")}))
	assert.Same(t, event, dropCanceled(event, nil))
}

func TestApplyContext(t *testing.T) {
	t.Parallel()

	ctx := ctxutil.WithUserID(context.Background(), "U123")
	ctx = ctxutil.WithChatID(ctx, "C456")
	ctx = ctxutil.WithRequestID(ctx, "req-1")

	scope := sentry.NewScope()
	applyContext(ctx, scope)

	event := scope.ApplyToEvent(&sentry.Event{}, nil, nil)
	require.NotNil(t, event)
	assert.Equal(t, "U123", event.User.ID)
	assert.Equal(t, "C456", event.Tags["chat_id"])
	assert.Equal(t, "req-1", event.Tags["request_id"])
}

func TestCaptureExceptionNilIsNoop(t *testing.T) {
	t.Parallel()
	assert.NotPanics(t, func() { CaptureException(context.Background(), nil) })
}
