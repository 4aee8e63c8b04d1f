package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/ngspreakleap/kalyan-linebot-go/internal/config"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/ctxutil"
	domerrors "github.com/ngspreakleap/kalyan-linebot-go/internal/errors"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/metrics"
	"github.com/ngspreakleap/kalyan-linebot-go/internal/textnorm"
)

// FallbackAnswerer tries a chain of answerers in order. Concurrent
// identical questions share a single upstream call.
type FallbackAnswerer struct {
	chain          []Answerer
	retry          RetryConfig
	attemptTimeout time.Duration
	metrics        *metrics.Metrics
	group          singleflight.Group
}

// NewFallbackAnswerer builds a chain. m may be nil.
func NewFallbackAnswerer(cfg RetryConfig, attemptTimeout time.Duration, m *metrics.Metrics, chain ...Answerer) *FallbackAnswerer {
	return &FallbackAnswerer{
		chain:          chain,
		retry:          cfg,
		attemptTimeout: attemptTimeout,
		metrics:        m,
	}
}

// Answer implements Answerer.
func (f *FallbackAnswerer) Answer(ctx context.Context, question string) (*Answer, error) {
	if f == nil || len(f.chain) == 0 {
		return nil, fmt.Errorf("online answers not configured: %w", domerrors.ErrLLMUnavailable)
	}

	// The shared call outlives whichever caller started it; every caller
	// leaves early only through its own ctx.
	key := textnorm.Normalize(question)
	ch := f.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctxutil.PreserveTracing(ctx), config.LLMAnswer)
		defer cancel()
		return f.answer(callCtx, question)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			f.metrics.RecordSingleflightDedup("llm")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		// Callers get their own copy of the shared answer.
		answer := *res.Val.(*Answer)
		return &answer, nil
	}
}

func (f *FallbackAnswerer) answer(ctx context.Context, question string) (*Answer, error) {
	var errs []error
	for i, a := range f.chain {
		provider := a.Provider()
		start := time.Now()

		var answer *Answer
		err := WithRetry(ctx, f.retry,
			func(attempt int, err error) {
				f.metrics.RecordLLMRetry(provider.String())
				slog.DebugContext(ctx, "retrying online answer",
					"provider", provider, "attempt", attempt, "error", err)
			},
			func(ctx context.Context) error {
				callCtx, cancel := f.attemptContext(ctx)
				defer cancel()
				var err error
				answer, err = a.Answer(callCtx, question)
				return err
			})

		if err == nil {
			f.metrics.RecordLLM(provider.String(), "success", time.Since(start).Seconds())
			if i > 0 {
				slog.InfoContext(ctx, "online answer served by fallback",
					"provider", provider, "model", answer.Model, "position", i)
			}
			return answer, nil
		}

		status := "error"
		if errors.Is(err, ErrEmptyAnswer) {
			status = "empty"
		}
		f.metrics.RecordLLM(provider.String(), status, time.Since(start).Seconds())
		errs = append(errs, err)

		if ctx.Err() != nil {
			break
		}
		slog.WarnContext(ctx, "online answer failed, trying next",
			"provider", provider,
			"action", ClassifyError(err),
			"error", err)
	}

	err := errors.Join(errs...)
	if allEmpty(errs) {
		return nil, fmt.Errorf("%w: all providers returned empty answers: %w", domerrors.ErrLLMUnavailable, ErrEmptyAnswer)
	}
	return nil, fmt.Errorf("%w: all providers failed: %w", domerrors.ErrLLMUnavailable, err)
}

func (f *FallbackAnswerer) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if f.attemptTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, f.attemptTimeout)
}

func allEmpty(errs []error) bool {
	if len(errs) == 0 {
		return false
	}
	for _, err := range errs {
		if !errors.Is(err, ErrEmptyAnswer) {
			return false
		}
	}
	return true
}

// Provider returns the primary provider.
func (f *FallbackAnswerer) Provider() Provider {
	if f == nil || len(f.chain) == 0 {
		return ""
	}
	return f.chain[0].Provider()
}

// Len returns the number of answerers in the chain.
func (f *FallbackAnswerer) Len() int {
	if f == nil {
		return 0
	}
	return len(f.chain)
}

// Close closes every answerer in the chain.
func (f *FallbackAnswerer) Close() error {
	if f == nil {
		return nil
	}
	var errs []error
	for _, a := range f.chain {
		errs = append(errs, a.Close())
	}
	return errors.Join(errs...)
}
