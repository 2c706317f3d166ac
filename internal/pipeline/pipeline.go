// Package pipeline turns one upstream feed into one sorted chapter feed.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ppiankov/chapterfeed/internal/cache"
	"github.com/ppiankov/chapterfeed/internal/emit"
	"github.com/ppiankov/chapterfeed/internal/extract"
	"github.com/ppiankov/chapterfeed/internal/feed"
	"github.com/ppiankov/chapterfeed/internal/model"
	"github.com/ppiankov/chapterfeed/internal/order"
	"go.uber.org/zap"
)

// Pipeline orchestrates fetch, extraction, ordering and emission
type Pipeline struct {
	config    *model.Config
	fetcher   *Fetcher
	extractor *extract.Extractor
	emitter   *emit.Emitter
	logger    *zap.Logger
}

// Option customizes a Pipeline
type Option func(*options)

type options struct {
	cache    cache.Cache
	cacheSet bool
	limiter  RateLimiter
	now      func() time.Time
}

// WithCache overrides the cache built from the configuration; nil disables caching
func WithCache(c cache.Cache) Option {
	return func(o *options) {
		o.cache = c
		o.cacheSet = true
	}
}

// WithLimiter paces upstream requests. Shared limiters let batch jobs
// respect one per-host budget.
func WithLimiter(l RateLimiter) Option {
	return func(o *options) { o.limiter = l }
}

// WithClock sets the clock used for lastBuildDate and date fallbacks
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New validates cfg and builds a pipeline
func New(cfg *model.Config, logger *zap.Logger, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if !o.cacheSet {
		o.cache = cache.New(cfg.Cache)
	}

	extractor := extract.NewExtractor(cfg.Extraction.Policy, cfg.Feed.SeriesFilter, logger.Named("extract"))
	logger.Debug("pipeline configured",
		zap.String("url", cfg.Feed.URL),
		zap.String("policy", string(extractor.Policy())),
		zap.String("output", cfg.Output.Path),
	)

	return &Pipeline{
		config:    cfg,
		fetcher:   NewFetcher(cfg.HTTP, o.cache, o.limiter, logger.Named("fetch")),
		extractor: extractor,
		emitter:   emit.NewEmitter(logger.Named("emit"), o.now),
		logger:    logger,
	}, nil
}

// Result summarizes a completed run
type Result struct {
	Records    []model.ChapterRecord // In output order
	Stats      extract.Stats
	OutputPath string
	FromCache  bool
}

// TopChapter returns the chapter number heading the feed
func (r *Result) TopChapter() int {
	if len(r.Records) == 0 {
		return 0
	}
	return r.Records[0].ChapterNumber
}

// Run executes one build and writes the output file
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	// 1. Fetch
	fetched, err := p.fetcher.Fetch(ctx, p.config.Feed.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch: %w", ErrFetch, err)
	}

	// 2. Parse
	doc, err := feed.Parse(fetched.Body)
	if err != nil {
		if fetched.FromCache {
			p.fetcher.Evict(p.config.Feed.URL)
		}
		return nil, fmt.Errorf("%w: parse feed: %w", ErrFetch, err)
	}
	p.logger.Debug("feed parsed",
		zap.String("url", fetched.FinalURL),
		zap.Int("entries", len(doc.Entries)),
		zap.Bool("cached", fetched.FromCache),
	)
	if !fetched.FromCache {
		p.fetcher.Store(p.config.Feed.URL, fetched.Body)
	}

	// 3. Extract
	records, stats := p.extractor.ExtractAll(doc.Entries)
	p.logListing("before sorting", records)

	if len(records) == 0 {
		p.logger.Error("no valid chapters found",
			zap.String("url", p.config.Feed.URL),
			zap.Int("entries", stats.Total),
			zap.Int("skipped", stats.Skipped),
			zap.Int("filtered", stats.Filtered),
		)
		return nil, ErrEmptyResult
	}

	// 4. Order
	sorted := order.ByChapterDesc(records)
	if !order.IsDescending(sorted) {
		return nil, fmt.Errorf("records not in descending chapter order after sorting")
	}
	p.logListing("after sorting", sorted)

	// 5. Emit
	channel := p.emitter.Emit(sorted, p.config.Feed.Meta())
	if err := p.emitter.WriteFile(channel, p.config.Output.Path); err != nil {
		return nil, fmt.Errorf("write feed: %w", err)
	}

	result := &Result{
		Records:    sorted,
		Stats:      stats,
		OutputPath: p.config.Output.Path,
		FromCache:  fetched.FromCache,
	}

	p.logger.Info("feed written",
		zap.String("path", result.OutputPath),
		zap.Int("items", len(sorted)),
		zap.Int("top_chapter", result.TopChapter()),
		zap.Int("fallback", stats.Fallback),
		zap.Int("skipped", stats.Skipped),
	)

	return result, nil
}

func (p *Pipeline) logListing(stage string, records []model.ChapterRecord) {
	if !p.logger.Core().Enabled(zap.InfoLevel) {
		return
	}
	for i, r := range records {
		p.logger.Info("chapter listing",
			zap.String("stage", stage),
			zap.Int("index", i+1),
			zap.String("title", r.SeriesTitle),
			zap.Int("chapter", r.ChapterNumber),
		)
	}
}
