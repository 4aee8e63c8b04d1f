package r2client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// LockInfo is the JSON body of a lock object.
type LockInfo struct {
	Owner     string    `json:"owner"`
	Purpose   string    `json:"purpose,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PublishLock serializes knowledge-base publishes that share a bucket.
// It is held through conditional writes on a single lock object; an
// expired lock may be taken over by the next publisher.
type PublishLock struct {
	client  *Client
	key     string
	purpose string
	ttl     time.Duration
	ownerID string
	etag    string
	now     func() time.Time
}

// NewPublishLock creates a lock stored at key.
func NewPublishLock(client *Client, key, purpose string, ttl time.Duration) *PublishLock {
	return &PublishLock{
		client:  client,
		key:     key,
		purpose: purpose,
		ttl:     ttl,
		ownerID: uuid.NewString(),
		now:     time.Now,
	}
}

// OwnerID returns the unique identifier of this lock instance.
func (l *PublishLock) OwnerID() string {
	return l.ownerID
}

// Acquire tries to take the lock.
// Returns (false, nil) while another live owner holds it.
func (l *PublishLock) Acquire(ctx context.Context) (bool, error) {
	data, err := l.body()
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}

	created, etag, err := l.client.PutObjectIfNotExists(ctx, l.key, bytes.NewReader(data), "application/json")
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	if created {
		l.etag = etag
		return true, nil
	}

	info, currentETag, err := l.read(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	if info != nil && l.now().Before(info.ExpiresAt) {
		return false, nil
	}
	if currentETag == "" {
		// Deleted between the two calls; let the caller retry.
		return false, nil
	}

	taken, newETag, err := l.client.PutObjectIfMatch(ctx, l.key, bytes.NewReader(data), currentETag, "application/json")
	if err != nil {
		return false, fmt.Errorf("acquire lock: take over: %w", err)
	}
	if taken {
		l.etag = newETag
	}
	return taken, nil
}

// Release deletes the lock if this instance still owns it.
func (l *PublishLock) Release(ctx context.Context) error {
	info, _, err := l.read(ctx)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if info != nil && info.Owner != l.ownerID {
		return nil
	}
	if err := l.client.DeleteObject(ctx, l.key); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	l.etag = ""
	return nil
}

func (l *PublishLock) body() ([]byte, error) {
	return json.Marshal(LockInfo{
		Owner:     l.ownerID,
		Purpose:   l.purpose,
		ExpiresAt: l.now().Add(l.ttl),
	})
}

// read returns the current lock and its ETag. A missing lock yields
// (nil, "", nil); an unreadable one yields (nil, etag, nil) and is
// treated as expired.
func (l *PublishLock) read(ctx context.Context) (*LockInfo, string, error) {
	body, etag, err := l.client.Download(ctx, l.key)
	if errors.Is(err, ErrNotFound) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", fmt.Errorf("read lock: %w", err)
	}
	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, etag, nil
	}
	return &info, etag, nil
}
