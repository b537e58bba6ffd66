package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"tooldispatch/internal/domain"
)

// Cached memoizes deterministic (temperature 0) completions.
type Cached struct {
	next  domain.Oracle
	cache *lru.Cache[string, string]
}

func NewCached(next domain.Oracle, size int) (*Cached, error) {
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create oracle cache: %w", err)
	}
	return &Cached{next: next, cache: cache}, nil
}

func (c *Cached) Complete(ctx context.Context, messages []domain.Message, temperature float64) (string, error) {
	if temperature != 0 {
		return c.next.Complete(ctx, messages, temperature)
	}
	key, err := cacheKey(messages)
	if err != nil {
		return c.next.Complete(ctx, messages, temperature)
	}
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}
	out, err := c.next.Complete(ctx, messages, temperature)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, out)
	return out, nil
}

// Len returns the number of cached replies.
func (c *Cached) Len() int {
	return c.cache.Len()
}

func cacheKey(messages []domain.Message) (string, error) {
	data, err := json.Marshal(messages)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
