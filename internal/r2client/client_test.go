package r2client

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/ngspreakleap/kalyan-linebot-go/internal/errors"
)

type storedObject struct {
	data     []byte
	etag     string
	encoding string
}

// memoryS3 implements objectAPI with R2's conditional-write semantics.
type memoryS3 struct {
	mu      sync.Mutex
	objects map[string]storedObject
}

func newMemoryS3() *memoryS3 {
	return &memoryS3{objects: make(map[string]storedObject)}
}

func (m *memoryS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := aws.ToString(in.Key)
	current, exists := m.objects[key]
	if in.IfNoneMatch != nil && exists {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed"}
	}
	if in.IfMatch != nil && (!exists || "\""+current.etag+"\"" != aws.ToString(in.IfMatch)) {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed"}
	}
	sum := md5.Sum(data)
	etag := hex.EncodeToString(sum[:])
	m.objects[key] = storedObject{data: data, etag: etag, encoding: aws.ToString(in.ContentEncoding)}
	return &s3.PutObjectOutput{ETag: aws.String("\"" + etag + "\"")}, nil
}

func (m *memoryS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(obj.data)),
		ETag: aws.String("\"" + obj.etag + "\""),
	}, nil
}

func (m *memoryS3) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ETag: aws.String("\"" + obj.etag + "\"")}, nil
}

func (m *memoryS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func TestNewRequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Endpoint: "https://x.r2.cloudflarestorage.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all config fields are required")
}

func TestClientUploadDownload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	fake := newMemoryS3()
	c := newWithAPI(fake, "kb")

	etag, err := c.Upload(ctx, "kb/offline.json.zst", strings.NewReader("payload"), "application/json")
	require.NoError(t, err)
	assert.NotEmpty(t, etag)
	assert.NotContains(t, etag, "\"")
	assert.Equal(t, "zstd", fake.objects["kb/offline.json.zst"].encoding)

	body, gotETag, err := c.Download(ctx, "kb/offline.json.zst")
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, etag, gotETag)

	headETag, err := c.HeadObject(ctx, "kb/offline.json.zst")
	require.NoError(t, err)
	assert.Equal(t, etag, headETag)
}

func TestClientNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newWithAPI(newMemoryS3(), "kb")

	_, _, err := c.Download(ctx, "missing.json")
	require.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, domerrors.ErrNotFound)

	_, err = c.HeadObject(ctx, "missing.json")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConditionalPuts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newWithAPI(newMemoryS3(), "kb")

	created, etag, err := c.PutObjectIfNotExists(ctx, "k", strings.NewReader("a"), "")
	require.NoError(t, err)
	require.True(t, created)

	created, _, err = c.PutObjectIfNotExists(ctx, "k", strings.NewReader("b"), "")
	require.NoError(t, err)
	assert.False(t, created)

	updated, _, err := c.PutObjectIfMatch(ctx, "k", strings.NewReader("c"), "stale", "")
	require.NoError(t, err)
	assert.False(t, updated)

	updated, newETag, err := c.PutObjectIfMatch(ctx, "k", strings.NewReader("c"), etag, "")
	require.NoError(t, err)
	assert.True(t, updated)
	assert.NotEqual(t, etag, newETag)
}

func TestPublishLock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newWithAPI(newMemoryS3(), "kb")

	first := NewPublishLock(c, "kb/publish.lock", "publish", time.Minute)
	second := NewPublishLock(c, "kb/publish.lock", "publish", time.Minute)
	assert.NotEqual(t, first.OwnerID(), second.OwnerID())

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "live lock must not be taken over")

	// Releasing someone else's lock is a no-op.
	require.NoError(t, second.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPublishLockTakeOverExpired(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	c := newWithAPI(newMemoryS3(), "kb")

	stale := NewPublishLock(c, "lock", "publish", time.Minute)
	ok, err := stale.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	next := NewPublishLock(c, "lock", "publish", time.Minute)
	next.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	ok, err = next.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// The stale owner no longer deletes the lock.
	require.NoError(t, stale.Release(ctx))
	_, err = c.HeadObject(ctx, "lock")
	assert.NoError(t, err)
}

func TestCompressBytesRoundTrip(t *testing.T) {
	t.Parallel()

	payload := []byte(strings.Repeat(`{"question": "answer"}`, 200))
	compressed, err := CompressBytes(payload)
	require.NoError(t, err)
	assert.Less(t, len(compressed), len(payload))

	out, err := DecompressAll(bytes.NewReader(compressed), 1<<20)
	require.NoError(t, err)
	assert.Equal(t, payload, out)

	_, err = DecompressAll(bytes.NewReader(compressed), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestDecompressAllRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := DecompressAll(strings.NewReader("not zstd"), 1<<20)
	assert.Error(t, err)
}

func TestCompressFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "offline.json")
	dst := filepath.Join(dir, "offline.json.zst")
	require.NoError(t, os.WriteFile(src, []byte(`{"q": "a"}`), 0o644))

	require.NoError(t, CompressFile(src, dst))

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	out, err := DecompressAll(f, 1<<20)
	require.NoError(t, err)
	assert.JSONEq(t, `{"q": "a"}`, string(out))

	assert.Error(t, CompressFile(filepath.Join(dir, "missing"), dst))
}

func TestIsCompressedKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key  string
		want bool
	}{
		{"kb/offline.json.zst", true},
		{"kb/OFFLINE.JSON.ZST", true},
		{"kb/offline.json", false},
		{"zst", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsCompressedKey(tt.key), tt.key)
	}
}
