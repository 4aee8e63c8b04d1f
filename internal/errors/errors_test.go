package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	t.Parallel()

	err := NewValidationError("query", "empty")
	assert.Equal(t, "validation failed on query: empty", err.Error())
}

func TestSourceError(t *testing.T) {
	t.Parallel()

	cause := errors.New("unexpected EOF")
	err := fmt.Errorf("load: %w", NewSourceError("json", "offline.json", cause))

	var srcErr *SourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, "json", srcErr.Loader)
	assert.Equal(t, "offline.json", srcErr.Path)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "offline.json")
}

func TestErrorWrapper(t *testing.T) {
	t.Parallel()

	w := NewWrapper("ask", "online_answer")

	t.Run("nil stays nil", func(t *testing.T) {
		t.Parallel()
		assert.NoError(t, w.Wrap(nil, "msg"))
		assert.NoError(t, w.Wrapf(nil, "msg %d", 1))
	})

	t.Run("wraps cause", func(t *testing.T) {
		t.Parallel()
		err := w.Wrapf(ErrLLMUnavailable, "retry in %d seconds", 30)

		var wrapped *WrappedError
		require.ErrorAs(t, err, &wrapped)
		assert.Equal(t, "ask", wrapped.Module)
		assert.Equal(t, "online_answer", wrapped.Operation)
		assert.Equal(t, "retry in 30 seconds", wrapped.UserMessage)
		assert.ErrorIs(t, err, ErrLLMUnavailable)
	})
}

func TestGetUserMessage(t *testing.T) {
	t.Parallel()

	assert.Empty(t, GetUserMessage(nil))
	assert.Equal(t, "plain", GetUserMessage(errors.New("plain")))

	inner := NewWrapper("ask", "online_answer").Wrap(ErrRateLimitExceeded, "slow down")
	assert.Equal(t, "slow down", GetUserMessage(fmt.Errorf("handler: %w", inner)))
}
