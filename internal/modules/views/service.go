package views

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/wikipulse/core/internal/config"
	"github.com/wikipulse/core/internal/pkg/cache"
	"github.com/wikipulse/core/internal/pkg/retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// upstreamResponse is the consumed subset of the upstream wire format. Items
// stays nil when the field is absent, which we treat as a malformed
// (permanent) response rather than an empty series.
type upstreamResponse struct {
	Items *[]RawPoint `json:"items"`
}

// Service fetches, caches and aggregates pageview series.
type Service struct {
	cache    *cache.Cache
	cfg      *config.AppConfig
	client   *http.Client
	logger   *zap.Logger
	baseURL  string
	retryCfg retry.Config
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger attaches a zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger.Named("PageviewsService")
		}
	}
}

// WithBaseURL overrides the upstream endpoint (tests).
func WithBaseURL(baseURL string) Option {
	return func(s *Service) { s.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient overrides the HTTP client (tests).
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) { s.client = client }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithRetryConfig overrides the retry budget (tests).
func WithRetryConfig(cfg retry.Config) Option {
	return func(s *Service) { s.retryCfg = cfg }
}

// NewService creates the fetcher. The cache instance is shared with the
// archiver; it is injected, never global.
func NewService(c *cache.Cache, cfg *config.AppConfig, opts ...Option) *Service {
	s := &Service{
		cache:   c,
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.RequestTimeout()},
		logger:  zap.NewNop(),
		baseURL: cfg.Wiki.BaseURL,
		retryCfg: retry.Config{
			MaxAttempts: cfg.Wiki.RetryAttempts,
			BaseDelay:   cfg.RetryBaseDelay(),
			MaxDelay:    30 * time.Second,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchPageviews returns aggregated current and previous series for one
// page. The two window fetches run concurrently; the first failure fails the
// whole call.
func (s *Service) FetchPageviews(ctx context.Context, periodDays int, page string) (*Result, error) {
	granularity, ok := ValidPeriods[periodDays]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPeriod, periodDays)
	}
	if page == "" {
		page = s.cfg.Wiki.DefaultPage
	}

	windows := ComputeWindows(s.now(), periodDays)

	var currRaw, prevRaw []RawPoint
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		currRaw, err = s.fetchDaily(gctx, page, windows.Current.Start, windows.Current.End)
		return err
	})
	g.Go(func() error {
		var err error
		prevRaw, err = s.fetchDaily(gctx, page, windows.Previous.Start, windows.Previous.End)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Result{
		Current:     Aggregate(currRaw, granularity),
		Previous:    Aggregate(prevRaw, granularity),
		Granularity: granularity,
	}, nil
}

// FetchPageviewsMultiple fans out FetchPageviews over a page set. Failures
// are isolated per page; the returned map always has one entry per input
// page.
func (s *Service) FetchPageviewsMultiple(ctx context.Context, periodDays int, pages []string) (map[string]PageResult, error) {
	if _, ok := ValidPeriods[periodDays]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPeriod, periodDays)
	}

	results := make(map[string]PageResult, len(pages))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, page := range pages {
		wg.Add(1)
		go func(page string) {
			defer wg.Done()
			res, err := s.FetchPageviews(ctx, periodDays, page)
			mu.Lock()
			results[page] = PageResult{Data: res, Err: err}
			mu.Unlock()
		}(page)
	}
	wg.Wait()
	return results, nil
}

// fetchDaily returns the raw daily series for one inclusive window,
// read-through cached under "views:<page>:<start>:<end>".
func (s *Service) fetchDaily(ctx context.Context, page, start, end string) ([]RawPoint, error) {
	key := fmt.Sprintf("views:%s:%s:%s", page, start, end)
	if v, ok := s.cache.Get(key); ok {
		if points, ok := v.([]RawPoint); ok {
			return points, nil
		}
	}

	var points []RawPoint
	attempts := 0
	err := retry.Do(ctx, s.retryCfg, s.logger, "upstream_fetch", func() error {
		attempts++
		fetched, err := s.requestDaily(ctx, page, start, end)
		if err != nil {
			return err
		}
		points = fetched
		return nil
	})
	if err != nil {
		return nil, &UpstreamError{Page: page, Attempts: attempts, Err: err}
	}

	s.cache.Set(key, points)
	return points, nil
}

// requestDaily issues one upstream GET. 5xx and transport errors are
// retryable; 4xx and malformed bodies are permanent.
func (s *Service) requestDaily(ctx context.Context, page, start, end string) ([]RawPoint, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/%s/%s/daily/%s/%s",
		s.baseURL,
		s.cfg.Wiki.Project,
		s.cfg.Wiki.Access,
		s.cfg.Wiki.Agent,
		url.PathEscape(page),
		start, end)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, retry.Permanent(err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, retry.Permanent(fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	var body upstreamResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, retry.Permanent(fmt.Errorf("decode upstream response: %w", err))
	}
	if body.Items == nil {
		return nil, retry.Permanent(errors.New("malformed upstream response: missing items"))
	}

	points := make([]RawPoint, 0, len(*body.Items))
	for _, item := range *body.Items {
		points = append(points, RawPoint{Timestamp: item.Timestamp, Views: item.Views})
	}
	return points, nil
}
