// AngelaMos | 2026
// dto.go

package market

type CoinPrice struct {
	CoinID     string  `json:"coin_id"`
	VsCurrency string  `json:"vs_currency"`
	Price      float64 `json:"price"`
}

type CoinListItem struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

type CoinMarket struct {
	ID                       string  `json:"id"`
	Symbol                   string  `json:"symbol"`
	Name                     string  `json:"name"`
	Image                    string  `json:"image,omitempty"`
	CurrentPrice             float64 `json:"current_price"`
	MarketCap                float64 `json:"market_cap"`
	MarketCapRank            int     `json:"market_cap_rank,omitempty"`
	TotalVolume              float64 `json:"total_volume"`
	PriceChangePercentage24h float64 `json:"price_change_percentage_24h"`
}

type TrendingResponse struct {
	Coins []TrendingCoin `json:"coins"`
}

type TrendingCoin struct {
	Item TrendingItem `json:"item"`
}

type TrendingItem struct {
	ID            string  `json:"id"`
	CoinID        int     `json:"coin_id"`
	Name          string  `json:"name"`
	Symbol        string  `json:"symbol"`
	MarketCapRank int     `json:"market_cap_rank"`
	Thumb         string  `json:"thumb"`
	Large         string  `json:"large"`
	PriceBTC      float64 `json:"price_btc"`
	Score         int     `json:"score"`
}

type PingResponse struct {
	GeckoSays string `json:"gecko_says"`
}

type GlobalStats struct {
	Data GlobalStatsData `json:"data"`
}

type GlobalStatsData struct {
	ActiveCryptocurrencies          int                `json:"active_cryptocurrencies"`
	UpcomingICOs                    int                `json:"upcoming_icos"`
	OngoingICOs                     int                `json:"ongoing_icos"`
	EndedICOs                       int                `json:"ended_icos"`
	Markets                         int                `json:"markets"`
	TotalMarketCap                  map[string]float64 `json:"total_market_cap"`
	TotalVolume                     map[string]float64 `json:"total_volume"`
	MarketCapPercentage             map[string]float64 `json:"market_cap_percentage"`
	MarketCapChangePercentage24hUSD float64            `json:"market_cap_change_percentage_24h_usd"`
}

type Category struct {
	CategoryID         string   `json:"category_id"`
	Name               string   `json:"name"`
	MarketCap          *float64 `json:"market_cap"`
	MarketCapChange24h *float64 `json:"market_cap_change_24h"`
	Volume24h          *float64 `json:"volume_24h"`
}

type SearchResponse struct {
	Coins []SearchCoin `json:"coins"`
}

type SearchCoin struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	APISymbol     string `json:"api_symbol"`
	Symbol        string `json:"symbol"`
	MarketCapRank *int   `json:"market_cap_rank"`
	Thumb         string `json:"thumb"`
	Large         string `json:"large"`
}

// MarketChart series are [unix millis, value] pairs.
type MarketChart struct {
	Prices       [][]float64 `json:"prices"`
	MarketCaps   [][]float64 `json:"market_caps"`
	TotalVolumes [][]float64 `json:"total_volumes"`
}

// TokenPrice maps a quote currency to the token's price in it.
type TokenPrice map[string]float64
