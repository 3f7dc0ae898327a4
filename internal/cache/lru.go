package cache

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/mcncl/jsonflat/internal/models"
)

// LRU is an in-process, thread-safe cache holding a fixed number of results.
type LRU struct {
	cache *lru.Cache[string, *models.ConversionResult]
}

// NewLRU creates a new LRU cache with the specified maximum number of items.
func NewLRU(maxItems int) (*LRU, error) {
	c, err := lru.New[string, *models.ConversionResult](maxItems)
	if err != nil {
		return nil, err
	}
	return &LRU{cache: c}, nil
}

func (c *LRU) Get(_ context.Context, key string) (*models.ConversionResult, bool, error) {
	result, ok := c.cache.Get(key)
	return result, ok, nil
}

func (c *LRU) Put(_ context.Context, key string, result *models.ConversionResult) error {
	c.cache.Add(key, result)
	return nil
}

// Len returns the current number of items in the cache.
func (c *LRU) Len() int {
	return c.cache.Len()
}
