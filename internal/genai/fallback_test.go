package genai

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/ngspreakleap/kalyan-linebot-go/internal/errors"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/metrics"
)

// stubAnswerer replays scripted results.
type stubAnswerer struct {
	provider Provider
	model    string
	mu       sync.Mutex
	results  []error // nil = success
	calls    int
	block    chan struct{}
	closed   bool
}

func (s *stubAnswerer) Answer(ctx context.Context, question string) (*Answer, error) {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.results) && s.results[i] != nil {
		return nil, s.results[i]
	}
	return &Answer{Text: "answer to " + question, Provider: s.provider, Model: s.model}, nil
}

func (s *stubAnswerer) Provider() Provider { return s.provider }

func (s *stubAnswerer) Close() error {
	s.closed = true
	return nil
}

func (s *stubAnswerer) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestFallbackAnswererPrimarySucceeds(t *testing.T) {
	t.Parallel()

	primary := &stubAnswerer{provider: ProviderGemini, model: "g"}
	backup := &stubAnswerer{provider: ProviderGroq, model: "q"}
	f := NewFallbackAnswerer(fastRetry(2), 0, nil, primary, backup)

	got, err := f.Answer(context.Background(), "ម៉ោងសិក្សា")
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, got.Provider)
	assert.Equal(t, 0, backup.Calls())
	assert.Equal(t, ProviderGemini, f.Provider())
	assert.Equal(t, 2, f.Len())
}

func TestFallbackAnswererRetriesThenFallsBack(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	transient := WrapError(errors.New("unavailable"), ProviderGemini, 503)
	primary := &stubAnswerer{provider: ProviderGemini, results: []error{transient, transient}}
	backup := &stubAnswerer{provider: ProviderGroq}
	f := NewFallbackAnswerer(fastRetry(2), 0, m, primary, backup)

	got, err := f.Answer(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, ProviderGroq, got.Provider)
	assert.Equal(t, 2, primary.Calls())
	assert.InDelta(t, 1, testutil.ToFloat64(m.LLMRetriesTotal.WithLabelValues("gemini")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("gemini", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("groq", "success")), 0)
}

func TestFallbackAnswererPermanentErrorMovesOn(t *testing.T) {
	t.Parallel()

	primary := &stubAnswerer{provider: ProviderGemini, results: []error{WrapError(errors.New("bad key"), ProviderGemini, 401)}}
	backup := &stubAnswerer{provider: ProviderCerebras}
	f := NewFallbackAnswerer(fastRetry(3), 0, nil, primary, backup)

	got, err := f.Answer(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, ProviderCerebras, got.Provider)
	assert.Equal(t, 1, primary.Calls())
}

func TestFallbackAnswererAllEmpty(t *testing.T) {
	t.Parallel()

	a := &stubAnswerer{provider: ProviderGemini, results: []error{ErrEmptyAnswer}}
	b := &stubAnswerer{provider: ProviderGroq, results: []error{WrapError(ErrEmptyAnswer, ProviderGroq, 0)}}
	f := NewFallbackAnswerer(fastRetry(2), 0, nil, a, b)

	_, err := f.Answer(context.Background(), "q")
	require.ErrorIs(t, err, ErrEmptyAnswer)
	assert.ErrorIs(t, err, domerrors.ErrLLMUnavailable)
}

func TestFallbackAnswererAllFail(t *testing.T) {
	t.Parallel()

	a := &stubAnswerer{provider: ProviderGemini, results: []error{errors.New("forbidden")}}
	f := NewFallbackAnswerer(fastRetry(1), 0, nil, a)

	_, err := f.Answer(context.Background(), "q")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyAnswer)
	assert.ErrorIs(t, err, domerrors.ErrLLMUnavailable)
	assert.Contains(t, err.Error(), "all providers failed")
}

func TestFallbackAnswererAttemptTimeout(t *testing.T) {
	t.Parallel()

	slow := &stubAnswerer{provider: ProviderGemini, block: make(chan struct{})}
	fast := &stubAnswerer{provider: ProviderGroq}
	f := NewFallbackAnswerer(fastRetry(1), 10*time.Millisecond, nil, slow, fast)

	got, err := f.Answer(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, ProviderGroq, got.Provider)
}

func TestFallbackAnswererDeduplicates(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	release := make(chan struct{})
	a := &stubAnswerer{provider: ProviderGemini, block: release}
	f := NewFallbackAnswerer(fastRetry(1), 0, m, a)

	var (
		wg    sync.WaitGroup
		oks   atomic.Int32
		texts sync.Map
	)
	for _, q := range []string{"Library Hours?", "library hours", "LIBRARY  HOURS"} {
		wg.Go(func() {
			got, err := f.Answer(context.Background(), q)
			if err == nil {
				oks.Add(1)
				texts.Store(got.Text, true)
			}
		})
	}
	// Let all three callers join the same flight.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(3), oks.Load())
	assert.Equal(t, 1, a.Calls())
	distinct := 0
	texts.Range(func(any, any) bool { distinct++; return true })
	assert.Equal(t, 1, distinct, "callers share one answer")
	assert.Positive(t, testutil.ToFloat64(m.SingleflightDedupTotal.WithLabelValues("llm")))
}

func TestFallbackAnswererSharedCallSurvivesFirstCaller(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	a := &stubAnswerer{provider: ProviderGemini, block: release}
	f := NewFallbackAnswerer(fastRetry(1), 0, nil, a)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := f.Answer(ctxA, "ម៉ោងសិក្សា?")
		errA <- err
	}()
	// Let the first caller start the flight.
	time.Sleep(20 * time.Millisecond)

	ctxB, cancelB := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancelB()
	type result struct {
		ans *Answer
		err error
	}
	resB := make(chan result, 1)
	go func() {
		ans, err := f.Answer(ctxB, "ម៉ោងសិក្សា")
		resB <- result{ans, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	require.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	got := <-resB
	require.NoError(t, got.err)
	require.NoError(t, ctxB.Err())
	assert.Equal(t, ProviderGemini, got.ans.Provider)
	assert.Equal(t, 1, a.Calls())
}

func TestFallbackAnswererNotConfigured(t *testing.T) {
	t.Parallel()

	var f *FallbackAnswerer
	_, err := f.Answer(context.Background(), "q")
	require.ErrorIs(t, err, domerrors.ErrLLMUnavailable)
	assert.NoError(t, f.Close())
	assert.Equal(t, 0, f.Len())
}

func TestFallbackAnswererClose(t *testing.T) {
	t.Parallel()

	a := &stubAnswerer{provider: ProviderGemini}
	b := &stubAnswerer{provider: ProviderGroq}
	require.NoError(t, NewFallbackAnswerer(fastRetry(1), 0, nil, a, b).Close())
	assert.True(t, a.closed)
	assert.True(t, b.closed)
}
