// Package cache keeps conversion results keyed by a hash of the input and
// the options that produced them.
package cache

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/mcncl/jsonflat/internal/models"
)

// Cache stores conversion results.
type Cache interface {
	Get(ctx context.Context, key string) (*models.ConversionResult, bool, error)
	Put(ctx context.Context, key string, result *models.ConversionResult) error
}

// Key derives the cache key for converting input with opts. Options are
// normalised first so that explicit defaults share a key with empty ones.
func Key(input string, opts models.Options) string {
	opts = opts.WithDefaults()

	d := xxhash.New()
	_, _ = d.WriteString(input)
	_, _ = fmt.Fprintf(d, "\x00%s\x00%s\x00%s\x00%s\x00%t\x00%s",
		opts.Format, opts.TableName, opts.SQLDialect, opts.CSVDelimiter, opts.Flatten(), opts.Select)
	return strconv.FormatUint(d.Sum64(), 16)
}

// Nop is a Cache that stores nothing.
type Nop struct{}

func (Nop) Get(context.Context, string) (*models.ConversionResult, bool, error) {
	return nil, false, nil
}

func (Nop) Put(context.Context, string, *models.ConversionResult) error { return nil }

// Tiered consults a local cache before a shared one and fills the local
// cache on shared hits.
type Tiered struct {
	Local  Cache
	Shared Cache
}

func (t *Tiered) Get(ctx context.Context, key string) (*models.ConversionResult, bool, error) {
	if result, ok, err := t.Local.Get(ctx, key); err == nil && ok {
		return result, true, nil
	}

	result, ok, err := t.Shared.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	_ = t.Local.Put(ctx, key, result)
	return result, true, nil
}

func (t *Tiered) Put(ctx context.Context, key string, result *models.ConversionResult) error {
	if err := t.Local.Put(ctx, key, result); err != nil {
		return err
	}
	return t.Shared.Put(ctx, key, result)
}
