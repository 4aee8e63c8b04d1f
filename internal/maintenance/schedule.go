// Package maintenance runs periodic background jobs (QA event retention)
// and remembers when each last succeeded, in R2 or in memory.
package maintenance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ngspreakleap/kalyan-linebot-go/internal/r2client"
)

// State stores the last successful run of each job, in unix seconds.
type State struct {
	LastRun   map[string]int64 `json:"last_run"`
	UpdatedAt int64            `json:"updated_at"`
}

// Last returns when job last succeeded, or 0.
func (s State) Last(job string) int64 {
	return s.LastRun[job]
}

func (s *State) mark(job string, at time.Time) {
	if s.LastRun == nil {
		s.LastRun = make(map[string]int64)
	}
	s.LastRun[job] = at.Unix()
	s.UpdatedAt = at.Unix()
}

// Store persists State.
type Store interface {
	Load(ctx context.Context) (State, error)
	Update(ctx context.Context, updater func(*State)) error
}

// IsDue reports whether a job last run at lastUnix should run again at now.
// A non-positive interval disables the job.
func IsDue(lastUnix int64, interval time.Duration, now time.Time) bool {
	if interval <= 0 {
		return false
	}
	if lastUnix == 0 {
		return true
	}
	return now.Sub(time.Unix(lastUnix, 0)) >= interval
}

// MemoryStore keeps State for the life of the process.
type MemoryStore struct {
	mu    sync.Mutex
	state State
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store.
func (m *MemoryStore) Load(context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneState(m.state), nil
}

// Update implements Store.
func (m *MemoryStore) Update(_ context.Context, updater func(*State)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := cloneState(m.state)
	updater(&s)
	m.state = s
	return nil
}

func cloneState(s State) State {
	out := State{UpdatedAt: s.UpdatedAt}
	if s.LastRun != nil {
		out.LastRun = make(map[string]int64, len(s.LastRun))
		for k, v := range s.LastRun {
			out.LastRun[k] = v
		}
	}
	return out
}

type r2ScheduleClient interface {
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
	PutObjectIfNotExists(ctx context.Context, key string, body io.Reader, contentType string) (bool, string, error)
	PutObjectIfMatch(ctx context.Context, key string, body io.Reader, etag string, contentType string) (bool, string, error)
}

// R2ScheduleStore persists State as a JSON object in R2, so the schedule
// survives redeploys.
type R2ScheduleStore struct {
	client         r2ScheduleClient
	key            string
	requestTimeout time.Duration
}

// NewR2ScheduleStore creates a new schedule store.
func NewR2ScheduleStore(client r2ScheduleClient, key string, requestTimeout time.Duration) (*R2ScheduleStore, error) {
	if client == nil {
		return nil, errors.New("maintenance: r2 client is required")
	}
	if key == "" {
		return nil, errors.New("maintenance: schedule key is required")
	}
	return &R2ScheduleStore{client: client, key: key, requestTimeout: requestTimeout}, nil
}

// Load implements Store. A missing object is an empty State.
func (s *R2ScheduleStore) Load(ctx context.Context) (State, error) {
	state, _, _, err := s.load(ctx)
	return state, err
}

// load retries transient errors up to 3 times; context errors are returned as is.
func (s *R2ScheduleStore) load(ctx context.Context) (State, string, bool, error) {
	const maxRetries = 3
	var lastErr error

	for attempt := range maxRetries {
		state, etag, exists, err := s.loadOnce(ctx)
		if err == nil {
			return state, etag, exists, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return State{}, "", false, err
		}
		lastErr = err

		if attempt < maxRetries-1 {
			select {
			case <-ctx.Done():
				return State{}, "", false, ctx.Err()
			case <-time.After(100 * time.Millisecond * time.Duration(attempt+1)):
			}
		}
	}
	return State{}, "", false, lastErr
}

func (s *R2ScheduleStore) loadOnce(ctx context.Context) (State, string, bool, error) {
	readCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	body, etag, err := s.client.Download(readCtx, s.key)
	if err != nil {
		if errors.Is(err, r2client.ErrNotFound) {
			return State{}, "", false, nil
		}
		return State{}, "", false, fmt.Errorf("maintenance: download state: %w", err)
	}
	defer func() { _ = body.Close() }()

	var state State
	if err := json.NewDecoder(body).Decode(&state); err != nil {
		return State{}, "", false, fmt.Errorf("maintenance: decode state: %w", err)
	}
	return state, etag, true, nil
}

// Update implements Store with ETag compare-and-swap. A lost race is retried
// from a fresh read.
func (s *R2ScheduleStore) Update(ctx context.Context, updater func(*State)) error {
	for range 3 {
		state, etag, exists, err := s.load(ctx)
		if err != nil {
			return err
		}

		updater(&state)
		state.UpdatedAt = time.Now().UTC().Unix()
		data, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("maintenance: marshal state: %w", err)
		}

		writeCtx, cancel := s.withTimeout(ctx)
		var written bool
		if exists {
			written, _, err = s.client.PutObjectIfMatch(writeCtx, s.key, bytes.NewReader(data), etag, "application/json")
		} else {
			written, _, err = s.client.PutObjectIfNotExists(writeCtx, s.key, bytes.NewReader(data), "application/json")
		}
		cancel()
		if err != nil {
			return fmt.Errorf("maintenance: write state: %w", err)
		}
		if written {
			return nil
		}
	}
	return errors.New("maintenance: failed to update state after retries")
}

func (s *R2ScheduleStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.requestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.requestTimeout)
}
