package archive

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wikipulse/core/internal/pkg/cache"
	"github.com/wikipulse/core/internal/pkg/retry"
)

type putRecord struct {
	key         string
	body        []byte
	contentType string
	metadata    map[string]string
}

type fakeStore struct {
	mu           sync.Mutex
	puts         []putRecord
	failuresLeft map[string]int // partition prefix -> remaining transient failures
	alwaysFail   map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		failuresLeft: make(map[string]int),
		alwaysFail:   make(map[string]bool),
	}
}

func (f *fakeStore) Put(ctx context.Context, key string, body []byte, contentType string, metadata map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	typ := key[:strings.Index(key, "/")]
	if f.alwaysFail[typ] {
		return "", errors.New("service unavailable")
	}
	if f.failuresLeft[typ] > 0 {
		f.failuresLeft[typ]--
		return "", errors.New("connection reset")
	}
	f.puts = append(f.puts, putRecord{key: key, body: body, contentType: contentType, metadata: metadata})
	return `"etag-1"`, nil
}

func (f *fakeStore) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

func (f *fakeStore) putsForType(typ string) []putRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []putRecord
	for _, p := range f.puts {
		if strings.HasPrefix(p.key, typ+"/") {
			out = append(out, p)
		}
	}
	return out
}

func testRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func fixedClock() func() time.Time {
	at := time.Date(2024, 3, 15, 9, 30, 45, 0, time.UTC)
	return func() time.Time { return at }
}

func TestRunPartitionsByKeyPrefix(t *testing.T) {
	c := cache.New(time.Hour)
	defer c.Close()
	c.Set("views:en:a:b", 1)
	c.Set("views:fr:a:b", 2)
	c.Set("other:x", 3)
	c.Set("nocolon", 4)

	store := newFakeStore()
	svc := NewService(c, store, WithRetryConfig(testRetry()), WithClock(fixedClock()))

	records, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 3, store.putCount())

	views := store.putsForType("views")
	require.Len(t, views, 1)
	assert.Equal(t, "views/2024-03-15/09-30-45.json", views[0].key)
	assert.Equal(t, "application/json", views[0].contentType)
	assert.Equal(t, "views", views[0].metadata["archive-type"])
	assert.Equal(t, "2024-03-15T09:30:45Z", views[0].metadata["archive-timestamp"])
	assert.NotEmpty(t, views[0].metadata["archive-run"])

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(views[0].body, &body))
	assert.Len(t, body, 2)
	assert.Contains(t, body, "views:en:a:b")
	assert.Contains(t, body, "views:fr:a:b")

	unknown := store.putsForType("unknown")
	require.Len(t, unknown, 1)
	var ub map[string]interface{}
	require.NoError(t, json.Unmarshal(unknown[0].body, &ub))
	assert.Contains(t, ub, "nocolon")
}

func TestRunRetriesTransientUploadFailure(t *testing.T) {
	c := cache.New(time.Hour)
	defer c.Close()
	c.Set("views:en:a:b", 1)

	store := newFakeStore()
	store.failuresLeft["views"] = 1
	svc := NewService(c, store, WithRetryConfig(testRetry()), WithClock(fixedClock()))

	records, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, store.putCount())
	assert.Equal(t, `"etag-1"`, records[0].ETag)
}

func TestRunIsolatesPartitionFailures(t *testing.T) {
	c := cache.New(time.Hour)
	defer c.Close()
	c.Set("views:en:a:b", 1)
	c.Set("other:x", 2)

	store := newFakeStore()
	store.alwaysFail["views"] = true
	svc := NewService(c, store, WithRetryConfig(testRetry()), WithClock(fixedClock()))

	records, err := svc.Run(context.Background())
	require.Error(t, err)

	// the healthy partition still lands
	require.Len(t, records, 1)
	assert.True(t, strings.HasPrefix(records[0].Key, "other/"))

	var ue *UploadError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "views", ue.Partition)
	assert.Equal(t, 3, ue.Attempts)
}

func TestRunWithoutStore(t *testing.T) {
	c := cache.New(time.Hour)
	defer c.Close()
	c.Set("views:en:a:b", 1)

	svc := NewService(c, nil)
	records, err := svc.Run(context.Background())
	assert.ErrorIs(t, err, ErrStoreNotConfigured)
	assert.Nil(t, records)
}

func TestRunEmptyCache(t *testing.T) {
	c := cache.New(time.Hour)
	defer c.Close()

	store := newFakeStore()
	svc := NewService(c, store, WithRetryConfig(testRetry()))

	records, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, records)
	assert.Equal(t, 0, store.putCount())
}
