// AngelaMos | 2026
// handler.go

package market

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/HTTPauloGoncalves/EncrypCoin/internal/core"
)

const (
	maxPerPage   = 250
	maxChartDays = 3650
)

type Handler struct {
	client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{client: client}
}

// RegisterRoutes mounts /coins. Every route requires an authenticated and
// active account; extra middleware such as a per-user limiter runs after
// those checks.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, activeAccount func(http.Handler) http.Handler,
	extra ...func(http.Handler) http.Handler,
) {
	r.Route("/coins", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(activeAccount)
		r.Use(extra...)

		r.Get("/prices/{coinID}/{vsCurrency}", h.GetPrice)
		r.Get("/list", h.GetCoinsList)
		r.Get("/markets/{vsCurrency}/{perPage}/{page}", h.GetMarkets)
		r.Get("/trending", h.GetTrending)
		r.Get("/check-api", h.CheckAPI)
		r.Get("/vs-currencies/list", h.GetVsCurrencies)
		r.Get("/global", h.GetGlobalStats)
		r.Get("/categories", h.GetCategories)
		r.Get("/search", h.Search)
		r.Get("/chart/{coinID}/{vsCurrency}/{days}", h.GetMarketChart)
		r.Get(
			"/token-price/{platformID}/{contractAddress}/{vsCurrency}",
			h.GetTokenPrice,
		)
	})
}

func (h *Handler) GetPrice(w http.ResponseWriter, r *http.Request) {
	coinID := chi.URLParam(r, "coinID")
	vsCurrency := chi.URLParam(r, "vsCurrency")
	if blank(coinID, vsCurrency) {
		core.BadRequest(w, "coin id and vs currency are required")
		return
	}

	price, err := h.client.GetPrice(r.Context(), coinID, vsCurrency)
	if err != nil {
		writeMarketError(w, err)
		return
	}

	core.OK(w, price)
}

func (h *Handler) GetCoinsList(w http.ResponseWriter, r *http.Request) {
	coins, err := h.client.GetCoinsList(r.Context())
	if err != nil {
		writeMarketError(w, err)
		return
	}

	core.OK(w, coins)
}

func (h *Handler) GetMarkets(w http.ResponseWriter, r *http.Request) {
	vsCurrency := chi.URLParam(r, "vsCurrency")
	if blank(vsCurrency) {
		core.BadRequest(w, "vs currency is required")
		return
	}

	perPage, err := strconv.Atoi(chi.URLParam(r, "perPage"))
	if err != nil || perPage < 1 || perPage > maxPerPage {
		core.BadRequest(w, "per page must be between 1 and 250")
		return
	}

	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil || page < 1 {
		core.BadRequest(w, "page must be a positive integer")
		return
	}

	markets, err := h.client.GetMarkets(r.Context(), vsCurrency, perPage, page)
	if err != nil {
		writeMarketError(w, err)
		return
	}

	core.OK(w, markets)
}

// GetTrending returns the trending coin items without the wrapper objects.
func (h *Handler) GetTrending(w http.ResponseWriter, r *http.Request) {
	trending, err := h.client.GetTrending(r.Context())
	if err != nil {
		writeMarketError(w, err)
		return
	}

	items := make([]TrendingItem, 0, len(trending.Coins))
	for _, c := range trending.Coins {
		items = append(items, c.Item)
	}

	core.OK(w, items)
}

func (h *Handler) CheckAPI(w http.ResponseWriter, r *http.Request) {
	pong, err := h.client.CheckAPI(r.Context())
	if err != nil {
		writeMarketError(w, err)
		return
	}

	core.OK(w, pong)
}

func (h *Handler) GetVsCurrencies(w http.ResponseWriter, r *http.Request) {
	currencies, err := h.client.GetVsCurrencies(r.Context())
	if err != nil {
		writeMarketError(w, err)
		return
	}

	core.OK(w, currencies)
}

func (h *Handler) GetGlobalStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.client.GetGlobalStats(r.Context())
	if err != nil {
		writeMarketError(w, err)
		return
	}

	core.OK(w, stats)
}

func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.client.GetCategories(r.Context())
	if err != nil {
		writeMarketError(w, err)
		return
	}

	core.OK(w, categories)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		core.BadRequest(w, "query is required")
		return
	}

	result, err := h.client.Search(r.Context(), query)
	if err != nil {
		writeMarketError(w, err)
		return
	}

	core.OK(w, result)
}

func (h *Handler) GetMarketChart(w http.ResponseWriter, r *http.Request) {
	coinID := chi.URLParam(r, "coinID")
	vsCurrency := chi.URLParam(r, "vsCurrency")
	if blank(coinID, vsCurrency) {
		core.BadRequest(w, "coin id and vs currency are required")
		return
	}

	days, err := strconv.Atoi(chi.URLParam(r, "days"))
	if err != nil || days < 1 || days > maxChartDays {
		core.BadRequest(w, "days must be greater than zero")
		return
	}

	chart, err := h.client.GetMarketChart(r.Context(), coinID, vsCurrency, days)
	if err != nil {
		writeMarketError(w, err)
		return
	}

	core.OK(w, chart)
}

func (h *Handler) GetTokenPrice(w http.ResponseWriter, r *http.Request) {
	platformID := chi.URLParam(r, "platformID")
	contract := chi.URLParam(r, "contractAddress")
	vsCurrency := chi.URLParam(r, "vsCurrency")
	if blank(platformID, contract, vsCurrency) {
		core.BadRequest(w, "platform id, contract address and vs currency are required")
		return
	}

	prices, err := h.client.GetTokenPrice(r.Context(), platformID, contract, vsCurrency)
	if err != nil {
		writeMarketError(w, err)
		return
	}

	core.OK(w, prices)
}

func writeMarketError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "price")
	case errors.Is(err, ErrUpstream):
		core.JSONError(w, core.UpstreamError())
	default:
		core.InternalServerError(w, err)
	}
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}
