package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/weiawesome/wes-io-collab/completion-service/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// CompletionCache stores suggestions per prompt.
type CompletionCache interface {
	Get(ctx context.Context, key string) ([]string, error)
	Set(ctx context.Context, key string, suggestions []string, ttl time.Duration) error
	Close() error
}

// Key derives a cache key from the prompt fields. Code is hashed so keys
// stay short.
func Key(prefix string, p domain.Prompt) string {
	h := sha256.New()
	h.Write([]byte(p.Language))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(p.Offset)))
	h.Write([]byte{0})
	h.Write([]byte(p.Code))
	return prefix + ":" + hex.EncodeToString(h.Sum(nil))
}

// NopCache is used when Redis is unavailable; every lookup misses.
type NopCache struct{}

func (NopCache) Get(context.Context, string) ([]string, error) { return nil, ErrCacheMiss }

func (NopCache) Set(context.Context, string, []string, time.Duration) error { return nil }

func (NopCache) Close() error { return nil }
