// AngelaMos | 2026
// client.go

package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/HTTPauloGoncalves/EncrypCoin/internal/config"
	"github.com/HTTPauloGoncalves/EncrypCoin/internal/core"
)

var ErrUpstream = errors.New("market data upstream failed")

const (
	apiKeyHeader     = "x-cg-demo-api-key"
	maxErrorBodySize = 512
)

// Client reads market data from the CoinGecko REST API, caching responses
// in Cache where a TTL is defined.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	cache   Cache
	logger  *slog.Logger
}

func NewClient(cfg config.MarketConfig, cache Cache, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/") + "/",
		apiKey:  cfg.APIKey,
		cache:   cache,
		logger:  logger.With("component", "market"),
	}
}

func (c *Client) GetPrice(ctx context.Context, coinID, vsCurrency string) (*CoinPrice, error) {
	coinID = normalize(coinID)
	vsCurrency = normalize(vsCurrency)

	return cached(ctx, c, priceKey(coinID, vsCurrency), priceTTL,
		func(ctx context.Context) (*CoinPrice, error) {
			var resp map[string]map[string]float64
			query := url.Values{
				"ids":           {coinID},
				"vs_currencies": {vsCurrency},
			}
			if err := c.get(ctx, "simple/price", query, &resp); err != nil {
				return nil, err
			}

			price, ok := resp[coinID][vsCurrency]
			if !ok {
				return nil, fmt.Errorf(
					"price %s/%s: %w",
					coinID,
					vsCurrency,
					core.ErrNotFound,
				)
			}

			return &CoinPrice{
				CoinID:     coinID,
				VsCurrency: vsCurrency,
				Price:      price,
			}, nil
		},
	)
}

func (c *Client) GetCoinsList(ctx context.Context) ([]CoinListItem, error) {
	return cached(ctx, c, "coins:list", coinListTTL,
		func(ctx context.Context) ([]CoinListItem, error) {
			var coins []CoinListItem
			err := c.get(ctx, "coins/list", nil, &coins)
			return coins, err
		},
	)
}

func (c *Client) GetMarkets(
	ctx context.Context,
	vsCurrency string,
	perPage, page int,
) ([]CoinMarket, error) {
	vsCurrency = normalize(vsCurrency)

	return cached(ctx, c, marketsKey(vsCurrency, perPage, page), marketsTTL,
		func(ctx context.Context) ([]CoinMarket, error) {
			var markets []CoinMarket
			query := url.Values{
				"vs_currency": {vsCurrency},
				"order":       {"market_cap_desc"},
				"per_page":    {strconv.Itoa(perPage)},
				"page":        {strconv.Itoa(page)},
				"sparkline":   {"false"},
			}
			err := c.get(ctx, "coins/markets", query, &markets)
			return markets, err
		},
	)
}

func (c *Client) GetTrending(ctx context.Context) (*TrendingResponse, error) {
	return cached(ctx, c, "trending", trendingTTL,
		func(ctx context.Context) (*TrendingResponse, error) {
			var trending TrendingResponse
			if err := c.get(ctx, "search/trending", nil, &trending); err != nil {
				return nil, err
			}
			return &trending, nil
		},
	)
}

func (c *Client) GetVsCurrencies(ctx context.Context) ([]string, error) {
	return cached(ctx, c, "vs_currencies", vsCurrenciesTTL,
		func(ctx context.Context) ([]string, error) {
			var currencies []string
			err := c.get(ctx, "simple/supported_vs_currencies", nil, &currencies)
			return currencies, err
		},
	)
}

func (c *Client) GetGlobalStats(ctx context.Context) (*GlobalStats, error) {
	return cached(ctx, c, "global", globalTTL,
		func(ctx context.Context) (*GlobalStats, error) {
			var stats GlobalStats
			if err := c.get(ctx, "global", nil, &stats); err != nil {
				return nil, err
			}
			return &stats, nil
		},
	)
}

func (c *Client) GetCategories(ctx context.Context) ([]Category, error) {
	return cached(ctx, c, "coins:categories", categoriesTTL,
		func(ctx context.Context) ([]Category, error) {
			var categories []Category
			err := c.get(ctx, "coins/categories", nil, &categories)
			return categories, err
		},
	)
}

func (c *Client) GetMarketChart(
	ctx context.Context,
	coinID, vsCurrency string,
	days int,
) (*MarketChart, error) {
	coinID = normalize(coinID)
	vsCurrency = normalize(vsCurrency)

	return cached(ctx, c, marketChartKey(coinID, vsCurrency, days), marketChartTTL,
		func(ctx context.Context) (*MarketChart, error) {
			var chart MarketChart
			query := url.Values{
				"vs_currency": {vsCurrency},
				"days":        {strconv.Itoa(days)},
			}
			path := "coins/" + url.PathEscape(coinID) + "/market_chart"
			if err := c.get(ctx, path, query, &chart); err != nil {
				return nil, err
			}
			return &chart, nil
		},
	)
}

// GetTokenPrice returns prices keyed by contract address.
func (c *Client) GetTokenPrice(
	ctx context.Context,
	platformID, contract, vsCurrency string,
) (map[string]TokenPrice, error) {
	platformID = normalize(platformID)
	contract = strings.TrimSpace(contract)
	vsCurrency = normalize(vsCurrency)

	key := tokenPriceKey(platformID, contract, vsCurrency)
	return cached(ctx, c, key, tokenPriceTTL,
		func(ctx context.Context) (map[string]TokenPrice, error) {
			var prices map[string]TokenPrice
			query := url.Values{
				"contract_addresses": {contract},
				"vs_currencies":      {vsCurrency},
			}
			path := "simple/token_price/" + url.PathEscape(platformID)
			err := c.get(ctx, path, query, &prices)
			return prices, err
		},
	)
}

func (c *Client) Search(ctx context.Context, query string) (*SearchResponse, error) {
	var result SearchResponse
	if err := c.get(ctx, "search", url.Values{"query": {query}}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) CheckAPI(ctx context.Context) (*PingResponse, error) {
	var pong PingResponse
	if err := c.get(ctx, "ping", nil, &pong); err != nil {
		return nil, err
	}
	return &pong, nil
}

// Ping satisfies health.Checker.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.CheckAPI(ctx)
	return err
}

func (c *Client) get(
	ctx context.Context,
	path string,
	query url.Values,
	dest any,
) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}

	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		core.SetSpanError(ctx, err)
		return fmt.Errorf("get %s: %w: %w", path, ErrUpstream, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		c.logger.WarnContext(ctx, "market upstream returned error",
			"path", path,
			"status", resp.StatusCode,
			"body", string(body),
		)
		err := fmt.Errorf("get %s: status %d: %w", path, resp.StatusCode, ErrUpstream)
		core.SetSpanError(ctx, err)
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s: %w: %w", path, ErrUpstream, err)
	}

	return nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
