// AngelaMos | 2026
// client_test.go

package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HTTPauloGoncalves/EncrypCoin/internal/config"
	"github.com/HTTPauloGoncalves/EncrypCoin/internal/core"
)

type upstream struct {
	server *httptest.Server
	hits   atomic.Int32
	last   atomic.Pointer[http.Request]
}

func newUpstream(t *testing.T, handler http.HandlerFunc) *upstream {
	t.Helper()

	u := &upstream{}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		u.last.Store(r)
		handler(w, r)
	}))
	t.Cleanup(u.server.Close)
	return u
}

func jsonBody(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func newRedisCache(t *testing.T) (*core.Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{
		Addr:       mr.Addr(),
		MaxRetries: -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })

	return &core.Redis{Client: rdb}, mr
}

func newTestClient(u *upstream, cache Cache) *Client {
	return NewClient(config.MarketConfig{
		BaseURL: u.server.URL,
		APIKey:  "demo-key",
		Timeout: 2 * time.Second,
	}, cache, nil)
}

func TestGetPrice_CachesUpstreamResult(t *testing.T) {
	u := newUpstream(t, jsonBody(`{"bitcoin":{"usd":42000.5}}`))
	cache, mr := newRedisCache(t)
	client := newTestClient(u, cache)
	ctx := context.Background()

	price, err := client.GetPrice(ctx, " Bitcoin ", "USD")
	require.NoError(t, err)
	assert.Equal(t, &CoinPrice{CoinID: "bitcoin", VsCurrency: "usd", Price: 42000.5}, price)

	req := u.last.Load()
	assert.Equal(t, "/simple/price", req.URL.Path)
	assert.Equal(t, "bitcoin", req.URL.Query().Get("ids"))
	assert.Equal(t, "usd", req.URL.Query().Get("vs_currencies"))
	assert.Equal(t, "demo-key", req.Header.Get(apiKeyHeader))

	assert.True(t, mr.Exists("price:bitcoin:usd"))
	assert.Equal(t, priceTTL, mr.TTL("price:bitcoin:usd"))

	again, err := client.GetPrice(ctx, "bitcoin", "usd")
	require.NoError(t, err)
	assert.Equal(t, price, again)
	assert.Equal(t, int32(1), u.hits.Load())
}

func TestGetPrice_ExpiredEntryRefetches(t *testing.T) {
	u := newUpstream(t, jsonBody(`{"ethereum":{"eur":3000}}`))
	cache, mr := newRedisCache(t)
	client := newTestClient(u, cache)
	ctx := context.Background()

	_, err := client.GetPrice(ctx, "ethereum", "eur")
	require.NoError(t, err)

	mr.FastForward(priceTTL + time.Second)

	_, err = client.GetPrice(ctx, "ethereum", "eur")
	require.NoError(t, err)
	assert.Equal(t, int32(2), u.hits.Load())
}

func TestGetPrice_MissingPairIsNotFound(t *testing.T) {
	u := newUpstream(t, jsonBody(`{}`))
	cache, mr := newRedisCache(t)
	client := newTestClient(u, cache)

	_, err := client.GetPrice(context.Background(), "nosuchcoin", "usd")
	require.ErrorIs(t, err, core.ErrNotFound)
	assert.False(t, mr.Exists("price:nosuchcoin:usd"))
}

func TestClient_UpstreamFailure(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	})
	cache, mr := newRedisCache(t)
	client := newTestClient(u, cache)

	_, err := client.GetCoinsList(context.Background())
	require.ErrorIs(t, err, ErrUpstream)
	assert.False(t, mr.Exists("coins:list"))

	require.ErrorIs(t, client.Ping(context.Background()), ErrUpstream)
}

func TestClient_MalformedBodyIsUpstreamError(t *testing.T) {
	u := newUpstream(t, jsonBody(`not json`))
	client := newTestClient(u, nil)

	_, err := client.GetGlobalStats(context.Background())
	require.ErrorIs(t, err, ErrUpstream)
}

func TestClient_UnreachableCacheFallsThrough(t *testing.T) {
	u := newUpstream(t, jsonBody(`[{"id":"bitcoin","symbol":"btc","name":"Bitcoin"}]`))
	cache, mr := newRedisCache(t)
	client := newTestClient(u, cache)
	mr.Close()

	for range 2 {
		coins, err := client.GetCoinsList(context.Background())
		require.NoError(t, err)
		require.Len(t, coins, 1)
		assert.Equal(t, "btc", coins[0].Symbol)
	}
	assert.Equal(t, int32(2), u.hits.Load())
}

func TestClient_WithoutCache(t *testing.T) {
	u := newUpstream(t, jsonBody(`["usd","eur","btc"]`))
	client := newTestClient(u, nil)

	for range 2 {
		currencies, err := client.GetVsCurrencies(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"usd", "eur", "btc"}, currencies)
	}
	assert.Equal(t, int32(2), u.hits.Load())
}

func TestClient_CacheKeysAndRequests(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		call  func(c *Client) error
		path  string
		query map[string]string
		key   string
		ttl   time.Duration
	}{
		{
			name: "markets",
			body: `[{"id":"bitcoin","current_price":1}]`,
			call: func(c *Client) error {
				_, err := c.GetMarkets(context.Background(), "USD", 10, 2)
				return err
			},
			path: "/coins/markets",
			query: map[string]string{
				"vs_currency": "usd",
				"per_page":    "10",
				"page":        "2",
				"order":       "market_cap_desc",
			},
			key: "markets:usd:10:2",
			ttl: marketsTTL,
		},
		{
			name: "market chart",
			body: `{"prices":[[1700000000000,42000]]}`,
			call: func(c *Client) error {
				_, err := c.GetMarketChart(context.Background(), "bitcoin", "usd", 7)
				return err
			},
			path:  "/coins/bitcoin/market_chart",
			query: map[string]string{"vs_currency": "usd", "days": "7"},
			key:   "market_chart:bitcoin:usd:7",
			ttl:   marketChartTTL,
		},
		{
			name: "token price",
			body: `{"0xAbC":{"usd":1.01}}`,
			call: func(c *Client) error {
				_, err := c.GetTokenPrice(context.Background(), "ethereum", "0xAbC", "usd")
				return err
			},
			path:  "/simple/token_price/ethereum",
			query: map[string]string{"contract_addresses": "0xAbC", "vs_currencies": "usd"},
			key:   "token_price:ethereum:0xAbC:usd",
			ttl:   tokenPriceTTL,
		},
		{
			name: "trending",
			body: `{"coins":[{"item":{"id":"pepe","score":0}}]}`,
			call: func(c *Client) error {
				_, err := c.GetTrending(context.Background())
				return err
			},
			path: "/search/trending",
			key:  "trending",
			ttl:  trendingTTL,
		},
		{
			name: "categories",
			body: `[{"category_id":"layer-1","name":"Layer 1"}]`,
			call: func(c *Client) error {
				_, err := c.GetCategories(context.Background())
				return err
			},
			path: "/coins/categories",
			key:  "coins:categories",
			ttl:  categoriesTTL,
		},
		{
			name: "global",
			body: `{"data":{"active_cryptocurrencies":100}}`,
			call: func(c *Client) error {
				_, err := c.GetGlobalStats(context.Background())
				return err
			},
			path: "/global",
			key:  "global",
			ttl:  globalTTL,
		},
		{
			name: "vs currencies",
			body: `["usd"]`,
			call: func(c *Client) error {
				_, err := c.GetVsCurrencies(context.Background())
				return err
			},
			path: "/simple/supported_vs_currencies",
			key:  "vs_currencies",
			ttl:  vsCurrenciesTTL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newUpstream(t, jsonBody(tt.body))
			cache, mr := newRedisCache(t)
			client := newTestClient(u, cache)

			require.NoError(t, tt.call(client))
			require.NoError(t, tt.call(client))
			assert.Equal(t, int32(1), u.hits.Load())

			req := u.last.Load()
			assert.Equal(t, tt.path, req.URL.Path)
			for k, v := range tt.query {
				assert.Equal(t, v, req.URL.Query().Get(k), k)
			}

			assert.True(t, mr.Exists(tt.key))
			assert.Equal(t, tt.ttl, mr.TTL(tt.key))
		})
	}
}

func TestClient_SearchAndPingAreNotCached(t *testing.T) {
	u := newUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/ping" {
			_, _ = w.Write([]byte(`{"gecko_says":"(V3) To the Moon!"}`))
			return
		}
		_, _ = w.Write([]byte(`{"coins":[{"id":"bitcoin","api_symbol":"bitcoin","symbol":"BTC"}]}`))
	})
	cache, mr := newRedisCache(t)
	client := newTestClient(u, cache)
	ctx := context.Background()

	for range 2 {
		result, err := client.Search(ctx, "bit coin")
		require.NoError(t, err)
		require.Len(t, result.Coins, 1)
	}
	assert.Equal(t, "bit coin", u.last.Load().URL.Query().Get("query"))

	pong, err := client.CheckAPI(ctx)
	require.NoError(t, err)
	assert.Equal(t, "(V3) To the Moon!", pong.GeckoSays)
	require.NoError(t, client.Ping(ctx))

	assert.Equal(t, int32(4), u.hits.Load())
	assert.Empty(t, mr.Keys())
}
