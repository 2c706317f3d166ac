package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ppiankov/chapterfeed/internal/cache"
	"github.com/ppiankov/chapterfeed/internal/model"
	"github.com/ppiankov/chapterfeed/internal/util"
	"go.uber.org/zap"
)

// RateLimiter paces requests per upstream host
type RateLimiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// fetchSleepFunc waits between attempts. Tests replace it.
var fetchSleepFunc = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const baseBackoff = 500 * time.Millisecond

// StatusError is returned for non-2xx upstream responses
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// transportError wraps a failure to complete the HTTP exchange
type transportError struct {
	err error
}

func (e *transportError) Error() string { return "fetch: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// ErrDisallowed is returned when robots.txt forbids fetching the feed
var ErrDisallowed = errors.New("disallowed by robots.txt")

// Fetcher retrieves the raw upstream feed document
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	attempts   int
	cache      cache.Cache
	limiter    RateLimiter
	robots     *util.RobotsChecker
	logger     *zap.Logger
}

// FetchResult is a retrieved feed document
type FetchResult struct {
	Body        []byte
	FinalURL    string
	StatusCode  int
	ContentType string
	FromCache   bool
}

// NewFetcher creates a fetcher. c, limiter and logger may be nil.
func NewFetcher(cfg model.HTTPConfig, c cache.Cache, limiter RateLimiter, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	attempts := cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy)

	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 3 {
				return fmt.Errorf("stopped after 3 redirects")
			}
			return nil
		},
	}

	f := &Fetcher{
		httpClient: client,
		userAgent:  cfg.UserAgent,
		maxBytes:   cfg.MaxBodyBytes,
		attempts:   attempts,
		cache:      c,
		limiter:    limiter,
		logger:     logger,
	}
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(cfg.UserAgent, client)
	}
	return f
}

// Fetch returns the feed at rawURL, from cache when a fresh copy exists
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	key := cache.Key(rawURL)
	if f.cache != nil {
		if body, ok := f.cache.Get(key); ok {
			f.logger.Debug("feed served from cache", zap.String("url", rawURL))
			return &FetchResult{Body: body, FinalURL: rawURL, StatusCode: http.StatusOK, FromCache: true}, nil
		}
	}

	if f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("robots: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
		}
		if delay > 0 {
			f.logger.Debug("honoring crawl delay", zap.Duration("delay", delay))
			if err := fetchSleepFunc(ctx, delay); err != nil {
				return nil, err
			}
		}
	}

	return f.fetchWithRetry(ctx, rawURL)
}

// Store caches body as the feed for rawURL. Callers store only documents
// that parsed, so an upstream error page is never replayed from cache.
func (f *Fetcher) Store(rawURL string, body []byte) {
	if f.cache == nil {
		return
	}
	if err := f.cache.Set(cache.Key(rawURL), body, 0); err != nil {
		f.logger.Warn("failed to cache feed", zap.String("url", rawURL), zap.Error(err))
	}
}

// Evict drops the cached feed for rawURL
func (f *Fetcher) Evict(rawURL string) {
	if f.cache == nil {
		return
	}
	if err := f.cache.Delete(cache.Key(rawURL)); err != nil {
		f.logger.Warn("failed to evict cached feed", zap.String("url", rawURL), zap.Error(err))
	}
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		if attempt > 1 {
			backoff := baseBackoff << (attempt - 2)
			f.logger.Info("retrying feed fetch",
				zap.String("url", rawURL),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			if err := fetchSleepFunc(ctx, backoff); err != nil {
				return nil, err
			}
		}

		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, rawURL); err != nil {
				return nil, fmt.Errorf("rate limit: %w", err)
			}
		}

		result, err := f.fetchOnce(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !isRetryableFetchError(err) {
			break
		}
	}
	return nil, lastErr
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "application/rss+xml,application/atom+xml,application/xml;q=0.9,text/xml;q=0.9,*/*;q=0.8")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	var reader io.Reader = resp.Body
	if f.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxBytes)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &FetchResult{
		Body:        body,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// isRetryableFetchError reports whether another attempt may succeed:
// 429, 5xx and transport failures are retried, everything else is final.
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500
	}
	var transportErr *transportError
	return errors.As(err, &transportErr)
}
