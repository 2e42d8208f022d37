package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/weiawesome/wes-io-collab/completion-service/internal/cache"
	"github.com/weiawesome/wes-io-collab/completion-service/internal/domain"
	"github.com/weiawesome/wes-io-collab/completion-service/internal/generator"
	"github.com/weiawesome/wes-io-collab/pkg/log"
)

// Config tunes caching and generation.
type Config struct {
	CachePrefix     string
	CacheTTL        time.Duration
	GenerateTimeout time.Duration
}

type completionServiceImpl struct {
	gen    generator.Generator
	cache  cache.CompletionCache
	config Config
	sf     singleflight.Group
}

// NewCompletionService creates a completion service. A nil cache disables
// caching.
func NewCompletionService(gen generator.Generator, completionCache cache.CompletionCache, cfg Config) CompletionService {
	if completionCache == nil {
		completionCache = cache.NopCache{}
	}
	if cfg.CachePrefix == "" {
		cfg.CachePrefix = "completion"
	}
	if cfg.GenerateTimeout <= 0 {
		cfg.GenerateTimeout = 30 * time.Second
	}
	return &completionServiceImpl{
		gen:    gen,
		cache:  completionCache,
		config: cfg,
	}
}

func (s *completionServiceImpl) Complete(ctx context.Context, req *domain.CompletionRequest) (*domain.CompletionResponse, error) {
	prompt, err := req.Normalize()
	if err != nil {
		return nil, err
	}

	cacheKey := cache.Key(s.config.CachePrefix, prompt)

	result, err, shared := s.sf.Do(cacheKey, func() (interface{}, error) {
		// Try cache
		cached, err := s.cache.Get(ctx, cacheKey)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			l := log.Ctx(ctx)
			l.Warn().Err(err).Msg("cache get error")
		}

		genCtx, cancel := context.WithTimeout(ctx, s.config.GenerateTimeout)
		defer cancel()

		suggestions, err := s.gen.Complete(genCtx, prompt)
		if err != nil {
			return nil, err
		}

		// Async write cache
		s.asyncCacheSet(cacheKey, suggestions)

		return suggestions, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		l := log.Ctx(ctx)
		l.Debug().Str("language", prompt.Language).Msg("completion shared with concurrent request")
	}

	return &domain.CompletionResponse{Suggestions: result.([]string)}, nil
}

func (s *completionServiceImpl) asyncCacheSet(key string, suggestions []string) {
	if s.config.CacheTTL <= 0 {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := s.cache.Set(ctx, key, suggestions, s.config.CacheTTL); err != nil {
			l := log.L()
			l.Warn().Err(err).Str("key", key).Msg("cache set error")
		}
	}()
}
