// AngelaMos | 2026
// cache.go

package market

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/HTTPauloGoncalves/EncrypCoin/internal/core"
)

const (
	priceTTL        = 2 * time.Minute
	coinListTTL     = time.Hour
	marketsTTL      = 10 * time.Minute
	trendingTTL     = 30 * time.Minute
	vsCurrenciesTTL = 12 * time.Hour
	globalTTL       = 30 * time.Minute
	categoriesTTL   = time.Hour
	marketChartTTL  = 10 * time.Minute
	tokenPriceTTL   = 5 * time.Minute
)

// Cache stores upstream responses as JSON. *core.Redis satisfies it.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

var _ Cache = (*core.Redis)(nil)

func priceKey(coinID, vsCurrency string) string {
	return fmt.Sprintf("price:%s:%s", coinID, vsCurrency)
}

func marketsKey(vsCurrency string, perPage, page int) string {
	return fmt.Sprintf("markets:%s:%d:%d", vsCurrency, perPage, page)
}

func marketChartKey(coinID, vsCurrency string, days int) string {
	return fmt.Sprintf("market_chart:%s:%s:%d", coinID, vsCurrency, days)
}

func tokenPriceKey(platformID, contract, vsCurrency string) string {
	return fmt.Sprintf("token_price:%s:%s:%s", platformID, contract, vsCurrency)
}

// cached serves key from the cache when present and otherwise calls fetch
// and stores its result for ttl. Cache failures are logged and never fail
// the request.
func cached[T any](
	ctx context.Context,
	c *Client,
	key string,
	ttl time.Duration,
	fetch func(ctx context.Context) (T, error),
) (T, error) {
	var value T

	if c.cache != nil {
		hit, err := c.cache.GetJSON(ctx, key, &value)
		switch {
		case err != nil:
			c.logger.WarnContext(ctx, "market cache read failed",
				"key", key,
				"error", err,
			)
		case hit:
			core.AddSpanEvent(ctx, "market.cache_hit",
				attribute.String("cache.key", key),
			)
			return value, nil
		}
	}

	value, err := fetch(ctx)
	if err != nil {
		return value, err
	}

	if c.cache != nil {
		if setErr := c.cache.SetJSON(ctx, key, value, ttl); setErr != nil {
			c.logger.WarnContext(ctx, "market cache write failed",
				"key", key,
				"error", setErr,
			)
		}
	}

	return value, nil
}
