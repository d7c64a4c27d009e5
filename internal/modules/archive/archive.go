package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wikipulse/core/internal/pkg/cache"
	"github.com/wikipulse/core/internal/pkg/retry"
	"go.uber.org/zap"
)

// ObjectStore is the durable storage write interface the archiver depends
// on. The S3 adapter satisfies it; tests substitute fakes.
type ObjectStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string, metadata map[string]string) (etag string, err error)
}

// Record describes one successfully archived partition.
type Record struct {
	Key        string    `json:"key"`
	ETag       string    `json:"etag,omitempty"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// UploadError reports a partition whose upload exhausted its retry budget.
// It never crosses into request-serving paths; the scheduler only logs it.
type UploadError struct {
	Partition string
	Attempts  int
	Err       error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("archive upload for partition %q failed after %d attempt(s): %v", e.Partition, e.Attempts, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// ErrStoreNotConfigured is returned when the archiver runs without durable
// storage credentials.
var ErrStoreNotConfigured = errors.New("object storage not configured")

// Service snapshots the metrics cache into durable storage, one object per
// key-type partition.
type Service struct {
	cache    *cache.Cache
	store    ObjectStore
	logger   *zap.Logger
	retryCfg retry.Config
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger.Named("ArchiveService")
		}
	}
}

// WithRetryConfig overrides the upload retry budget (tests).
func WithRetryConfig(cfg retry.Config) Option {
	return func(s *Service) { s.retryCfg = cfg }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the archiver. store may be nil when storage is not
// configured; Run then fails fast instead of silently doing nothing.
func NewService(c *cache.Cache, store ObjectStore, opts ...Option) *Service {
	s := &Service{
		cache:    c,
		store:    store,
		logger:   zap.NewNop(),
		retryCfg: retry.DefaultConfig(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run snapshots the live cache, partitions it by key-type prefix and uploads
// each non-empty partition as one JSON object. Partitions upload
// concurrently with isolated failures: the returned records cover every
// successful upload even when the error is non-nil.
func (s *Service) Run(ctx context.Context) ([]Record, error) {
	if s.store == nil {
		return nil, ErrStoreNotConfigured
	}

	runID := uuid.New().String()
	log := s.logger.With(zap.String("run", runID))

	snapshot := s.cache.GetAll()
	if len(snapshot) == 0 {
		log.Info("no cache data to archive")
		return nil, nil
	}

	partitions := partition(snapshot)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		records []Record
		errs    []error
	)
	for typ, data := range partitions {
		wg.Add(1)
		go func(typ string, data map[string]interface{}) {
			defer wg.Done()
			rec, err := s.uploadPartition(ctx, runID, typ, data)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn("partition archive failed", zap.String("type", typ), zap.Error(err))
				errs = append(errs, err)
				return
			}
			records = append(records, rec)
		}(typ, data)
	}
	wg.Wait()

	log.Info("archive run finished",
		zap.Int("partitions", len(partitions)),
		zap.Int("archived", len(records)),
		zap.Int("failed", len(errs)))

	return records, errors.Join(errs...)
}

// partition groups cache entries by the substring before the first ':' in
// their key, or "unknown" when the key carries no type prefix.
func partition(snapshot map[string]interface{}) map[string]map[string]interface{} {
	out := make(map[string]map[string]interface{})
	for key, value := range snapshot {
		typ := "unknown"
		if idx := strings.Index(key, ":"); idx >= 0 {
			typ = key[:idx]
		}
		if out[typ] == nil {
			out[typ] = make(map[string]interface{})
		}
		out[typ][key] = value
	}
	return out
}

func (s *Service) uploadPartition(ctx context.Context, runID, typ string, data map[string]interface{}) (Record, error) {
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return Record{}, &UploadError{Partition: typ, Attempts: 0, Err: err}
	}

	uploadedAt := s.now().UTC()
	key := fmt.Sprintf("%s/%s.json", typ, uploadedAt.Format("2006-01-02/15-04-05"))
	metadata := map[string]string{
		"archive-type":      typ,
		"archive-timestamp": uploadedAt.Format(time.RFC3339),
		"archive-run":       runID,
	}

	var etag string
	attempts := 0
	err = retry.Do(ctx, s.retryCfg, s.logger, "archive_upload", func() error {
		attempts++
		var putErr error
		etag, putErr = s.store.Put(ctx, key, payload, "application/json", metadata)
		return putErr
	})
	if err != nil {
		return Record{}, &UploadError{Partition: typ, Attempts: attempts, Err: err}
	}

	s.logger.Info("partition archived",
		zap.String("type", typ),
		zap.String("key", key),
		zap.Int("entries", len(data)))

	return Record{Key: key, ETag: etag, UploadedAt: uploadedAt}, nil
}
